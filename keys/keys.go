// Package keys constructs the row keys and column names for every logical
// coordinate in the keyspace. All coordinates are concatenations of 16 byte
// ids, single letter tags, and 8 byte big-endian time buckets; within a row
// the column length alone identifies which counter a column belongs to.
//
// Counter family rows:
//
//	B        event counters: I, I·u, I·I', I·I'·u
//	B·G      timed event counters: I·T, I·T·u, I·I'·T
//	B·P      per-value counters: I·Y, I·Y·u, I·I'·Y, I·I'·Y·u
//	B·P·G    timed per-value counters: I·Y·T, I·Y·T·u, I·I'·Y·T
//
// Relation family rows:
//
//	B        catalogs: e·I, n·P, v·P·Y, p·I·P
//	B·V      visitor state: p·P, e
//	u·R      unique markers for counter row R: column name · visitor id
package keys

import (
	"encoding/binary"

	"hiitrack.dev/hash"
)

// Interval identifies a time-bucket granularity by its single byte row tag.
type Interval byte

const (
	Hour  Interval = 'h'
	Day   Interval = 'd'
	Week  Interval = 'w'
	Month Interval = 'm'
)

// Intervals lists every granularity written at ingest time.
var Intervals = [4]Interval{Hour, Day, Week, Month}

// Seconds returns the bucket length of the interval.
func (iv Interval) Seconds() int64 {
	switch iv {
	case Hour:
		return 3600
	case Day:
		return 86400
	case Week:
		return 604800
	case Month:
		return 2629746
	}
	return 0
}

func (iv Interval) String() string {
	switch iv {
	case Hour:
		return "hour"
	case Day:
		return "day"
	case Week:
		return "week"
	case Month:
		return "month"
	}
	return ""
}

// ParseInterval maps the query parameter form to an interval tag.
func ParseInterval(s string) (iv Interval, ok bool) {
	switch s {
	case "hour":
		return Hour, true
	case "day", "":
		return Day, true
	case "week":
		return Week, true
	case "month":
		return Month, true
	}
	return 0, false
}

// Single letter tags used in relation family column names.
const (
	EventCatalog    = 'e' // e·I -> event descriptor
	PropertyCatalog = 'n' // n·P -> property descriptor
	ValueCatalog    = 'v' // v·P·Y -> value payload
	CrossLink       = 'p' // p·I·P -> property name
	VisitorProperty = 'p' // visitor row: p·P -> Y
	VisitorEvent    = 'e' // visitor row: e -> I
	MarkerRowTag    = 'u' // u·R -> unique marker row for counter row R
	UniqueTag       = 'u' // trailing u on a counter column name
)

// TimeLen is the width of a packed time bucket.
const TimeLen = 8

// Column lengths on each counter row, used by query assembly to tell the
// counters on a shared row apart.
const (
	LenTotal           = hash.Size                  // 16
	LenUniqueTotal     = hash.Size + 1              // 17
	LenPath            = 2 * hash.Size              // 32
	LenUniquePath      = 2*hash.Size + 1            // 33
	LenTimedTotal      = hash.Size + TimeLen        // 24
	LenTimedUnique     = hash.Size + TimeLen + 1    // 25
	LenTimedPath       = 2*hash.Size + TimeLen      // 40
	LenValueTotal      = 2 * hash.Size              // 32
	LenUniqueValue     = 2*hash.Size + 1            // 33
	LenValuePath       = 3 * hash.Size              // 48
	LenUniqueValuePath = 3*hash.Size + 1            // 49
	LenTimedValue      = 2*hash.Size + TimeLen      // 40
	LenTimedUniqueVal  = 2*hash.Size + TimeLen + 1  // 41
	LenTimedValuePath  = 3*hash.Size + TimeLen      // 56
)

func concat(parts ...[]byte) (b []byte) {
	var n int
	for _, p := range parts {
		n += len(p)
	}
	b = make([]byte, 0, n)
	for _, p := range parts {
		b = append(b, p...)
	}
	return
}

// TimeBucket packs epoch seconds integer-divided by the interval length.
func TimeBucket(iv Interval, epoch int64) (tb []byte) {
	tb = make([]byte, TimeLen)
	binary.BigEndian.PutUint64(tb, uint64(epoch/iv.Seconds()))
	return
}

// BucketStart recovers the epoch seconds at the start of a packed bucket.
func BucketStart(iv Interval, tb []byte) int64 {
	return int64(binary.BigEndian.Uint64(tb)) * iv.Seconds()
}

// Row keys.

// IntervalRow addresses the timed event counters of a bucket.
func IntervalRow(bucket []byte, iv Interval) []byte {
	return concat(bucket, []byte{byte(iv)})
}

// PropertyRow addresses the per-value counters of a bucket and property.
func PropertyRow(bucket, property []byte) []byte {
	return concat(bucket, property)
}

// PropertyIntervalRow addresses the timed per-value counters.
func PropertyIntervalRow(bucket, property []byte, iv Interval) []byte {
	return concat(bucket, property, []byte{byte(iv)})
}

// VisitorRow addresses the scratch row holding a visitor's property snapshot
// and most recent event.
func VisitorRow(bucket, visitor []byte) []byte {
	return concat(bucket, visitor)
}

// MarkerRow addresses the unique-marker row shadowing counter row.
func MarkerRow(row []byte) []byte {
	return concat([]byte{MarkerRowTag}, row)
}

// Counter column names.

// Unique appends the unique tag to a counter column name.
func Unique(col []byte) []byte {
	return concat(col, []byte{UniqueTag})
}

// Path names the prior-event transition counter on row B.
func Path(event, prior []byte) []byte {
	return concat(event, prior)
}

// TimedTotal names the timed total on row B·G.
func TimedTotal(event, tb []byte) []byte {
	return concat(event, tb)
}

// TimedPath names the timed transition counter on row B·G.
func TimedPath(event, prior, tb []byte) []byte {
	return concat(event, prior, tb)
}

// ValueTotal names the per-value total on row B·P.
func ValueTotal(event, value []byte) []byte {
	return concat(event, value)
}

// ValuePath names the per-value transition counter on row B·P.
func ValuePath(event, prior, value []byte) []byte {
	return concat(event, prior, value)
}

// TimedValueTotal names the timed per-value total on row B·P·G.
func TimedValueTotal(event, value, tb []byte) []byte {
	return concat(event, value, tb)
}

// TimedValuePath names the timed per-value transition counter on row B·P·G.
func TimedValuePath(event, prior, value, tb []byte) []byte {
	return concat(event, prior, value, tb)
}

// Relation column names.

// EventDescriptor names the catalog entry carrying an event's descriptor.
func EventDescriptor(event []byte) []byte {
	return concat([]byte{EventCatalog}, event)
}

// PropertyDescriptor names the catalog entry carrying a property's
// descriptor.
func PropertyDescriptor(property []byte) []byte {
	return concat([]byte{PropertyCatalog}, property)
}

// ValueEntry names the catalog entry carrying a decoded value payload.
func ValueEntry(property, value []byte) []byte {
	return concat([]byte{ValueCatalog}, property, value)
}

// CrossLinkCol names the event-to-property cross-link.
func CrossLinkCol(event, property []byte) []byte {
	return concat([]byte{CrossLink}, event, property)
}

// VisitorPropertyCol names a property snapshot column on a visitor row.
func VisitorPropertyCol(property []byte) []byte {
	return concat([]byte{VisitorProperty}, property)
}

// VisitorEventCol is the single column holding a visitor's last event id.
var VisitorEventCol = []byte{VisitorEvent}

// Marker names the unique-marker column for a counter column and a visitor.
func Marker(col, visitor []byte) []byte {
	return concat(col, visitor)
}

// PrefixRange returns the slice bounds covering every column that begins
// with prefix.
func PrefixRange(prefix []byte) (start, finish []byte) {
	start = concat(prefix)
	finish = concat(prefix, hash.High)
	return
}
