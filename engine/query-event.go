package engine

import (
	"bytes"
	"sort"

	"hiitrack.dev/hash"
	"hiitrack.dev/keys"
	"hiitrack.dev/store"
	"hiitrack.dev/utils/context"
)

// EventView is the response of GET event without a time range or property.
type EventView struct {
	Name        string `json:"name"`
	Total       int64  `json:"total"`
	UniqueTotal int64  `json:"unique_total"`
	Path        Object `json:"path"`
	UniquePath  Object `json:"unique_path"`
	Properties  Object `json:"properties"`
}

// EventPropertyView conditions the aggregates of an event on the values of
// one property.
type EventPropertyView struct {
	Name         string `json:"name"`
	Totals       Object `json:"totals"`
	UniqueTotals Object `json:"unique_totals"`
	Paths        Object `json:"paths"`
	UniquePaths  Object `json:"unique_paths"`
}

// TimedEventView is the response of GET event with a time range: every
// aggregate becomes an ascending series of [bucket start, count] pairs.
type TimedEventView struct {
	Name        string `json:"name"`
	Total       Series `json:"total"`
	UniqueTotal Series `json:"unique_total"`
	Path        Object `json:"path"`
}

// TimedEventPropertyView is the property-conditioned timed response.
type TimedEventPropertyView struct {
	Name         string `json:"name"`
	Totals       Object `json:"totals"`
	UniqueTotals Object `json:"unique_totals"`
	Paths        Object `json:"paths"`
}

// EventTotals answers GET event: one counter slice over the event's column
// prefix plus one relation slice for the cross-links. Unknown event names
// yield zero totals and empty collections, not an error.
func (e *E) EventTotals(c context.T, user, bucket, name string) (
	v EventView, err error,
) {
	bucketID := BucketID(user, bucket)
	eventID := EventID(bucketID, name)
	v = EventView{
		Name: name, Path: Object{}, UniquePath: Object{},
		Properties: Object{},
	}

	start, finish := keys.PrefixRange(eventID)
	cols, err := e.Store.CounterSlice(
		c, bucketID, start, finish, 0, e.CL,
	)
	if err != nil {
		return
	}
	path := map[string]int64{}
	upath := map[string]int64{}
	for _, col := range cols {
		switch len(col.Name) {
		case keys.LenTotal:
			v.Total = col.Value
		case keys.LenUniqueTotal:
			v.UniqueTotal = col.Value
		case keys.LenPath:
			path[hash.Hex(col.Name[hash.Size:])] = col.Value
		case keys.LenUniquePath:
			upath[hash.Hex(col.Name[hash.Size:2*hash.Size])] = col.Value
		}
	}
	v.Path = countObject(path)
	v.UniquePath = countObject(upath)

	v.Properties, err = e.eventCrossLinks(c, bucketID, eventID)
	return
}

// EventPropertyTotals answers GET event?property=Q: one slice over the
// per-property counter row.
func (e *E) EventPropertyTotals(c context.T, user, bucket, name,
	property string) (v EventPropertyView, err error) {
	bucketID := BucketID(user, bucket)
	eventID := EventID(bucketID, name)
	propertyID := PropertyID(bucketID, property)
	v = EventPropertyView{
		Name: name, Totals: Object{}, UniqueTotals: Object{},
		Paths: Object{}, UniquePaths: Object{},
	}

	start, finish := keys.PrefixRange(eventID)
	cols, err := e.Store.CounterSlice(
		c, keys.PropertyRow(bucketID, propertyID), start, finish, 0, e.CL,
	)
	if err != nil {
		return
	}
	totals := map[string]int64{}
	utotals := map[string]int64{}
	paths := map[string]map[string]int64{}
	upaths := map[string]map[string]int64{}
	for _, col := range cols {
		switch len(col.Name) {
		case keys.LenValueTotal:
			totals[hash.Hex(col.Name[hash.Size:])] = col.Value
		case keys.LenUniqueValue:
			utotals[hash.Hex(col.Name[hash.Size:2*hash.Size])] = col.Value
		case keys.LenValuePath:
			prior := hash.Hex(col.Name[hash.Size : 2*hash.Size])
			value := hash.Hex(col.Name[2*hash.Size:])
			nest(paths, value, prior, col.Value)
		case keys.LenUniqueValuePath:
			prior := hash.Hex(col.Name[hash.Size : 2*hash.Size])
			value := hash.Hex(col.Name[2*hash.Size : 3*hash.Size])
			nest(upaths, value, prior, col.Value)
		}
	}
	v.Totals = countObject(totals)
	v.UniqueTotals = countObject(utotals)
	v.Paths = nestedObject(paths)
	v.UniquePaths = nestedObject(upaths)
	return
}

// EventSeries answers GET event with a time range: slices the interval row
// over the event prefix and filters buckets into [start, finish]
// inclusively.
func (e *E) EventSeries(c context.T, user, bucket, name string,
	iv keys.Interval, startEpoch, finishEpoch int64) (
	v TimedEventView, err error,
) {
	bucketID := BucketID(user, bucket)
	eventID := EventID(bucketID, name)
	v = TimedEventView{Name: name, Total: Series{}, UniqueTotal: Series{}}

	lo, hi := bucketBounds(iv, startEpoch, finishEpoch)
	start, finish := keys.PrefixRange(eventID)
	cols, err := e.Store.CounterSlice(
		c, keys.IntervalRow(bucketID, iv), start, finish, 0, e.CL,
	)
	if err != nil {
		return
	}
	paths := map[string]Series{}
	for _, col := range cols {
		switch len(col.Name) {
		case keys.LenTimedTotal:
			tb := col.Name[hash.Size:]
			if inRange(tb, lo, hi) {
				v.Total = append(v.Total, pair(iv, tb, col.Value))
			}
		case keys.LenTimedUnique:
			tb := col.Name[hash.Size : hash.Size+keys.TimeLen]
			if inRange(tb, lo, hi) {
				v.UniqueTotal = append(
					v.UniqueTotal, pair(iv, tb, col.Value),
				)
			}
		case keys.LenTimedPath:
			tb := col.Name[2*hash.Size:]
			if inRange(tb, lo, hi) {
				prior := hash.Hex(col.Name[hash.Size : 2*hash.Size])
				paths[prior] = append(paths[prior], pair(iv, tb, col.Value))
			}
		}
	}
	sortSeries(v.Total)
	sortSeries(v.UniqueTotal)
	v.Path = seriesObject(paths)
	return
}

// EventPropertySeries is EventSeries conditioned on one property.
func (e *E) EventPropertySeries(c context.T, user, bucket, name,
	property string, iv keys.Interval, startEpoch, finishEpoch int64) (
	v TimedEventPropertyView, err error,
) {
	bucketID := BucketID(user, bucket)
	eventID := EventID(bucketID, name)
	propertyID := PropertyID(bucketID, property)
	v = TimedEventPropertyView{
		Name: name, Totals: Object{}, UniqueTotals: Object{},
		Paths: Object{},
	}

	lo, hi := bucketBounds(iv, startEpoch, finishEpoch)
	start, finish := keys.PrefixRange(eventID)
	cols, err := e.Store.CounterSlice(
		c, keys.PropertyIntervalRow(bucketID, propertyID, iv),
		start, finish, 0, e.CL,
	)
	if err != nil {
		return
	}
	totals := map[string]Series{}
	utotals := map[string]Series{}
	paths := map[string]map[string]Series{}
	for _, col := range cols {
		switch len(col.Name) {
		case keys.LenTimedValue:
			tb := col.Name[2*hash.Size:]
			if inRange(tb, lo, hi) {
				value := hash.Hex(col.Name[hash.Size : 2*hash.Size])
				totals[value] = append(totals[value], pair(iv, tb, col.Value))
			}
		case keys.LenTimedUniqueVal:
			tb := col.Name[2*hash.Size : 2*hash.Size+keys.TimeLen]
			if inRange(tb, lo, hi) {
				value := hash.Hex(col.Name[hash.Size : 2*hash.Size])
				utotals[value] = append(
					utotals[value], pair(iv, tb, col.Value),
				)
			}
		case keys.LenTimedValuePath:
			tb := col.Name[3*hash.Size:]
			if inRange(tb, lo, hi) {
				prior := hash.Hex(col.Name[hash.Size : 2*hash.Size])
				value := hash.Hex(col.Name[2*hash.Size : 3*hash.Size])
				if paths[value] == nil {
					paths[value] = map[string]Series{}
				}
				paths[value][prior] = append(
					paths[value][prior], pair(iv, tb, col.Value),
				)
			}
		}
	}
	v.Totals = seriesObject(totals)
	v.UniqueTotals = seriesObject(utotals)
	p := Object{}
	for value, priors := range paths {
		p = append(p, Entry{Key: value, Value: seriesObject(priors)})
	}
	sort.Slice(p, func(i, j int) bool { return p[i].Key < p[j].Key })
	v.Paths = p
	return
}

// eventCrossLinks slices the event's property cross-links into
// property id -> property name.
func (e *E) eventCrossLinks(c context.T, bucketID, eventID []byte) (
	o Object, err error,
) {
	start, finish := keys.PrefixRange(
		keys.CrossLinkCol(eventID, nil),
	)
	cols, err := e.Store.Slice(
		c, store.Relation, bucketID, start, finish, 0, e.CL,
	)
	if err != nil {
		return
	}
	o = Object{}
	for _, col := range cols {
		if len(col.Name) != 1+2*hash.Size {
			continue
		}
		o = append(o, Entry{
			Key:   hash.Hex(col.Name[1+hash.Size:]),
			Value: string(col.Value),
		})
	}
	sort.Slice(o, func(i, j int) bool { return o[i].Key < o[j].Key })
	return
}

// Assembly helpers. Hex encoding is monotone with respect to byte order,
// so sorting the rendered keys preserves the id ordering guarantee.

func countObject(m map[string]int64) (o Object) {
	o = Object{}
	for k, v := range m {
		o = append(o, Entry{Key: k, Value: v})
	}
	sort.Slice(o, func(i, j int) bool { return o[i].Key < o[j].Key })
	return
}

func nest(m map[string]map[string]int64, outer, inner string, v int64) {
	if m[outer] == nil {
		m[outer] = map[string]int64{}
	}
	m[outer][inner] = v
}

func nestedObject(m map[string]map[string]int64) (o Object) {
	o = Object{}
	for k, inner := range m {
		o = append(o, Entry{Key: k, Value: countObject(inner)})
	}
	sort.Slice(o, func(i, j int) bool { return o[i].Key < o[j].Key })
	return
}

func seriesObject(m map[string]Series) (o Object) {
	o = Object{}
	for k, s := range m {
		sortSeries(s)
		o = append(o, Entry{Key: k, Value: s})
	}
	sort.Slice(o, func(i, j int) bool { return o[i].Key < o[j].Key })
	return
}

func pair(iv keys.Interval, tb []byte, count int64) [2]int64 {
	return [2]int64{keys.BucketStart(iv, tb), count}
}

func sortSeries(s Series) {
	sort.Slice(s, func(i, j int) bool { return s[i][0] < s[j][0] })
}

func bucketBounds(iv keys.Interval, startEpoch, finishEpoch int64) (
	lo, hi []byte,
) {
	lo = keys.TimeBucket(iv, startEpoch)
	hi = keys.TimeBucket(iv, finishEpoch)
	return
}

func inRange(tb, lo, hi []byte) bool {
	return bytes.Compare(tb, lo) >= 0 && bytes.Compare(tb, hi) <= 0
}
