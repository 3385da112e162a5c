package engine

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"hiitrack.dev/hash"
	"hiitrack.dev/keys"
	"hiitrack.dev/store"
	"hiitrack.dev/utils/context"
)

// BucketInfo is one entry of a user's bucket catalog.
type BucketInfo struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Created     float64 `json:"created"`
}

// Summary is the response of GET /{user}/{bucket}.
type Summary struct {
	Description string `json:"description"`
	Events      Object `json:"events"`
	Properties  Object `json:"properties"`
}

// CatalogEntry is one named id in a bucket summary.
type CatalogEntry struct {
	ID string `json:"id"`
}

// CreateBucket writes the bucket descriptor under the owner's catalog row.
func (e *E) CreateBucket(c context.T, user, bucket, description string) (
	err error,
) {
	if bucket == "" {
		return fmt.Errorf("%w: bucket name required", ErrBadRequest)
	}
	desc := BucketDescriptor{
		Name:        bucket,
		Description: description,
		Created:     float64(time.Now().UnixNano()) / 1e9,
	}
	if err = e.Store.Insert(
		c, store.Relation, bucketCatalogRow(user), BucketID(user, bucket),
		encodeBucketDescriptor(desc), e.CL,
	); err != nil {
		return
	}
	e.lg.Info(
		"bucket created",
		zap.String("user", user), zap.String("bucket", bucket),
	)
	return
}

// BucketExists reports whether the bucket descriptor is present.
func (e *E) BucketExists(c context.T, user, bucket string) (
	ok bool, err error,
) {
	_, err = e.Store.Get(
		c, store.Relation, bucketCatalogRow(user), BucketID(user, bucket),
		e.CL,
	)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrNotFound):
		return false, nil
	}
	return
}

// Buckets lists the user's buckets sorted by id.
func (e *E) Buckets(c context.T, user string) (
	out []BucketInfo, err error,
) {
	cols, err := e.Store.Slice(
		c, store.Relation, bucketCatalogRow(user), nil, nil, 0, e.CL,
	)
	if err != nil {
		return
	}
	for _, col := range cols {
		var d BucketDescriptor
		if d, err = decodeBucketDescriptor(col.Value); err != nil {
			return
		}
		out = append(out, BucketInfo{
			ID:          hash.Hex(col.Name),
			Name:        d.Name,
			Description: d.Description,
			Created:     d.Created,
		})
	}
	return
}

// BucketSummary assembles the event and property catalogs of a bucket.
// ErrNoSuchBucket when the descriptor is absent.
func (e *E) BucketSummary(c context.T, user, bucket string) (
	s Summary, err error,
) {
	raw, err := e.Store.Get(
		c, store.Relation, bucketCatalogRow(user), BucketID(user, bucket),
		e.CL,
	)
	if errors.Is(err, store.ErrNotFound) {
		err = ErrNoSuchBucket
		return
	}
	if err != nil {
		return
	}
	var desc BucketDescriptor
	if desc, err = decodeBucketDescriptor(raw); err != nil {
		return
	}
	s.Description = desc.Description

	bucketID := BucketID(user, bucket)
	if s.Events, err = e.catalog(
		c, bucketID, keys.EventCatalog,
	); err != nil {
		return
	}
	s.Properties, err = e.catalog(c, bucketID, keys.PropertyCatalog)
	return
}

// catalog slices one letter-prefixed descriptor range of the bucket row
// into name -> {id} entries sorted by name.
func (e *E) catalog(c context.T, bucketID []byte, tag byte) (
	o Object, err error,
) {
	start, finish := keys.PrefixRange([]byte{tag})
	cols, err := e.Store.Slice(
		c, store.Relation, bucketID, start, finish, 0, e.CL,
	)
	if err != nil {
		return
	}
	o = Object{}
	for _, col := range cols {
		if len(col.Name) != 1+hash.Size {
			continue
		}
		var d Descriptor
		if d, err = decodeDescriptor(col.Value); err != nil {
			return
		}
		o = append(o, Entry{
			Key:   d.Name,
			Value: CatalogEntry{ID: hash.Hex(col.Name[1:])},
		})
	}
	sort.Slice(o, func(i, j int) bool { return o[i].Key < o[j].Key })
	return
}

// DeleteBucket removes the descriptor, the catalog row, and every counter
// and marker row addressable from the catalogs. Visitor scratch rows have
// no index and are left behind.
func (e *E) DeleteBucket(c context.T, user, bucket string) (err error) {
	bucketID := BucketID(user, bucket)

	// Property ids are needed to enumerate the per-property counter rows.
	start, finish := keys.PrefixRange([]byte{keys.PropertyCatalog})
	cols, err := e.Store.Slice(
		c, store.Relation, bucketID, start, finish, 0, e.CL,
	)
	if err != nil {
		return
	}
	rows := [][]byte{bucketID}
	for _, iv := range keys.Intervals {
		rows = append(rows, keys.IntervalRow(bucketID, iv))
	}
	for _, col := range cols {
		if len(col.Name) != 1+hash.Size {
			continue
		}
		propertyID := col.Name[1:]
		rows = append(rows, keys.PropertyRow(bucketID, propertyID))
		for _, iv := range keys.Intervals {
			rows = append(
				rows,
				keys.PropertyIntervalRow(bucketID, propertyID, iv),
			)
		}
	}
	for _, row := range rows {
		if err = e.Store.RemoveCounter(c, row, nil, e.CL); err != nil {
			return
		}
		if err = e.Store.Remove(
			c, store.Relation, keys.MarkerRow(row), nil, e.CL,
		); err != nil {
			return
		}
	}
	if err = e.Store.Remove(c, store.Relation, bucketID, nil, e.CL); err != nil {
		return
	}
	if err = e.Store.Remove(
		c, store.Relation, bucketCatalogRow(user), bucketID, e.CL,
	); err != nil {
		return
	}
	e.dropBucketCache(bucketID)
	e.lg.Info(
		"bucket deleted",
		zap.String("user", user), zap.String("bucket", bucket),
	)
	return
}
