package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"hiitrack.dev/keys"
	"hiitrack.dev/store"
	"hiitrack.dev/utils/context"
)

// RecordProperty tags the visitor with a property value. The catalog
// entries are idempotent (same derivation yields the same address), the
// visitor snapshot column overwrites. No counters move here; counting is
// event-driven.
func (e *E) RecordProperty(c context.T, user, bucket string, visitor []byte,
	name string, value []byte) (err error) {
	if name == "" || len(visitor) == 0 {
		return fmt.Errorf(
			"%w: property name and visitor_id required", ErrBadRequest,
		)
	}
	if !json.Valid(value) {
		return fmt.Errorf("%w: property value is not JSON", ErrBadRequest)
	}
	bucketID := BucketID(user, bucket)
	propertyID := PropertyID(bucketID, name)
	valueID := ValueID(bucketID, name, value)
	visitorID := VisitorID(visitor)

	b := store.GetBatch()
	defer store.PutBatch(b)
	if err = e.ensureDescriptor(
		c, b, bucketID, propertyID, keys.PropertyDescriptor(propertyID),
		name, float64(time.Now().UnixNano())/1e9,
	); err != nil {
		return
	}
	b.Insert(
		store.Relation, bucketID, keys.ValueEntry(propertyID, valueID),
		value,
	)
	b.Insert(
		store.Relation, keys.VisitorRow(bucketID, visitorID),
		keys.VisitorPropertyCol(propertyID), valueID,
	)
	if err = b.Flush(c, e.Store, e.CL); err != nil {
		return
	}
	e.cacheName(bucketID, propertyID, name)
	e.Properties.Inc()
	return
}
