package engine

import (
	"bytes"
	"encoding/json"
)

// Object is an order-preserving JSON object. Query assembly fills it with
// entries sorted by ascending byte order of the underlying id, which the
// stdlib map type would not keep through marshalling.
type Object []Entry

// Entry is one key of an Object.
type Entry struct {
	Key   string
	Value any
}

// Value looks a key up linearly; responses are small.
func (o Object) Value(key string) (v any, ok bool) {
	for _, e := range o {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func (o Object) MarshalJSON() (b []byte, err error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		var k, v []byte
		if k, err = json.Marshal(e.Key); err != nil {
			return
		}
		buf.Write(k)
		buf.WriteByte(':')
		if v, err = json.Marshal(e.Value); err != nil {
			return
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Series is a time-bucketed aggregate: ascending
// [epoch seconds at bucket start, count] pairs.
type Series [][2]int64
