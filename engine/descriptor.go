package engine

import (
	"errors"

	"github.com/vmihailenco/msgpack/v5"

	"hiitrack.dev/store"
	"hiitrack.dev/utils/context"
)

// Descriptor is the payload stored behind a catalog entry: the display name
// of an event or property and its creation time.
type Descriptor struct {
	Name    string  `msgpack:"n"`
	Created float64 `msgpack:"t"`
}

// BucketDescriptor is stored under the owner's bucket catalog row.
type BucketDescriptor struct {
	Name        string  `msgpack:"n"`
	Description string  `msgpack:"d"`
	Created     float64 `msgpack:"t"`
}

func encodeDescriptor(d Descriptor) []byte {
	b, err := msgpack.Marshal(d)
	if err != nil {
		// Marshal of a flat struct cannot fail.
		panic(err)
	}
	return b
}

func decodeDescriptor(b []byte) (d Descriptor, err error) {
	err = msgpack.Unmarshal(b, &d)
	return
}

func encodeBucketDescriptor(d BucketDescriptor) []byte {
	b, err := msgpack.Marshal(d)
	if err != nil {
		panic(err)
	}
	return b
}

func decodeBucketDescriptor(b []byte) (d BucketDescriptor, err error) {
	err = msgpack.Unmarshal(b, &d)
	return
}

// ensureDescriptor buffers the catalog descriptor only when the id has not
// been seen yet, keeping Created at the first submission's time. A name
// cache hit skips the store read entirely.
func (e *E) ensureDescriptor(c context.T, b *store.Batch, bucketID, id,
	col []byte, name string, created float64) (err error) {
	if _, ok := e.names.Load(e.cacheKey(bucketID, id)); ok {
		return
	}
	if _, err = e.Store.Get(
		c, store.Relation, bucketID, col, e.CL,
	); err == nil {
		e.cacheName(bucketID, id, name)
		return
	}
	if !errors.Is(err, store.ErrNotFound) {
		return
	}
	b.Insert(store.Relation, bucketID, col, encodeDescriptor(Descriptor{
		Name:    name,
		Created: created,
	}))
	return nil
}
