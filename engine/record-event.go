package engine

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"hiitrack.dev/keys"
	"hiitrack.dev/store"
	"hiitrack.dev/utils/context"
)

// markerLimit caps the marker existence checks in flight for one fan-out.
const markerLimit = 16

// counter is one increment the fan-out will emit. Counters flagged unique
// also maintain a unique variant guarded by a per-visitor marker.
type counter struct {
	row    []byte
	col    []byte
	unique bool
}

// RecordEvent is the hot path: one submission increments the full
// cross-product of counters needed to answer every supported query without
// scan-time joins. Totals count every call; unique variants count a visitor
// at most once, enforced by markers in the relation family. The first event
// of a visitor records no path edge.
func (e *E) RecordEvent(c context.T, user, bucket string, visitor []byte,
	name string, now time.Time) (err error) {
	if name == "" || len(visitor) == 0 {
		return fmt.Errorf(
			"%w: event name and visitor_id required", ErrBadRequest,
		)
	}
	bucketID := BucketID(user, bucket)
	eventID := EventID(bucketID, name)
	visitorID := VisitorID(visitor)

	st, err := e.readVisitor(c, bucketID, visitorID)
	if err != nil {
		return
	}
	prior := st.PriorEvent

	b := store.GetBatch()
	defer store.PutBatch(b)
	if err = e.ensureDescriptor(
		c, b, bucketID, eventID, keys.EventDescriptor(eventID), name,
		float64(now.UnixNano())/1e9,
	); err != nil {
		return
	}

	epoch := now.Unix()
	counters := []counter{{row: bucketID, col: eventID, unique: true}}
	if prior != nil {
		counters = append(counters, counter{
			row: bucketID, col: keys.Path(eventID, prior), unique: true,
		})
	}
	for _, iv := range keys.Intervals {
		tb := keys.TimeBucket(iv, epoch)
		row := keys.IntervalRow(bucketID, iv)
		counters = append(counters, counter{
			row: row, col: keys.TimedTotal(eventID, tb), unique: true,
		})
		if prior != nil {
			counters = append(counters, counter{
				row: row, col: keys.TimedPath(eventID, prior, tb),
			})
		}
	}
	for _, pv := range st.Snapshot {
		propRow := keys.PropertyRow(bucketID, pv.Property)
		counters = append(counters, counter{
			row:    propRow,
			col:    keys.ValueTotal(eventID, pv.Value),
			unique: true,
		})
		if prior != nil {
			counters = append(counters, counter{
				row:    propRow,
				col:    keys.ValuePath(eventID, prior, pv.Value),
				unique: true,
			})
		}
		for _, iv := range keys.Intervals {
			tb := keys.TimeBucket(iv, epoch)
			row := keys.PropertyIntervalRow(bucketID, pv.Property, iv)
			counters = append(counters, counter{
				row:    row,
				col:    keys.TimedValueTotal(eventID, pv.Value, tb),
				unique: true,
			})
			if prior != nil {
				counters = append(counters, counter{
					row: row,
					col: keys.TimedValuePath(
						eventID, prior, pv.Value, tb,
					),
				})
			}
		}
		var propName string
		if propName, err = e.propertyName(c, bucketID, pv.Property); err != nil {
			return
		}
		b.Insert(
			store.Relation, bucketID,
			keys.CrossLinkCol(eventID, pv.Property), []byte(propName),
		)
	}

	// Unique accounting: check the markers in parallel, then fold the
	// absent ones into the same batch as the plain increments.
	absent := make([]bool, len(counters))
	g, gc := errgroup.WithContext(c)
	g.SetLimit(markerLimit)
	for i, ct := range counters {
		if !ct.unique {
			continue
		}
		g.Go(func() error {
			_, err := e.Store.Get(
				gc, store.Relation, keys.MarkerRow(ct.row),
				keys.Marker(ct.col, visitorID), e.CL,
			)
			if errors.Is(err, store.ErrNotFound) {
				absent[i] = true
				return nil
			}
			return err
		})
	}
	if err = g.Wait(); err != nil {
		return
	}

	for i, ct := range counters {
		b.Add(ct.row, ct.col, 1)
		if absent[i] {
			b.Insert(
				store.Relation, keys.MarkerRow(ct.row),
				keys.Marker(ct.col, visitorID), nil,
			)
			b.Add(ct.row, keys.Unique(ct.col), 1)
		}
	}
	b.Insert(
		store.Relation, keys.VisitorRow(bucketID, visitorID),
		keys.VisitorEventCol, eventID,
	)
	if err = b.Flush(c, e.Store, e.CL); err != nil {
		return
	}
	e.cacheName(bucketID, eventID, name)
	e.Events.Inc()
	return
}

// propertyName resolves a property id to its display name through the
// process-wide cache, falling back to the catalog descriptor.
func (e *E) propertyName(c context.T, bucketID, propertyID []byte) (
	name string, err error,
) {
	if cached, ok := e.names.Load(e.cacheKey(bucketID, propertyID)); ok {
		return cached, nil
	}
	raw, err := e.Store.Get(
		c, store.Relation, bucketID, keys.PropertyDescriptor(propertyID),
		e.CL,
	)
	if errors.Is(err, store.ErrNotFound) {
		// Snapshot references a property whose descriptor is gone;
		// the cross-link still records the id.
		return "", nil
	}
	if err != nil {
		return
	}
	var d Descriptor
	if d, err = decodeDescriptor(raw); err != nil {
		return
	}
	e.cacheName(bucketID, propertyID, d.Name)
	return d.Name, nil
}
