// Package engine is the aggregation and indexing core: it explodes event
// and property submissions into the full cross-product of counters the
// query side needs, and answers each read with a bounded fan-out of slice
// reads against those counters. The HTTP layer calls into it; it owns the
// store adapter and the write batches.
package engine

import (
	"errors"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"hiitrack.dev/hash"
	"hiitrack.dev/store"
)

var (
	// ErrNoSuchUser reports an unknown account.
	ErrNoSuchUser = errors.New("no such user")
	// ErrNoSuchBucket reports an unknown bucket under a known user.
	ErrNoSuchBucket = errors.New("no such bucket")
	// ErrNotAuthorized reports an authenticated user acting on another
	// user's resources.
	ErrNotAuthorized = errors.New("not authorized")
	// ErrBadRequest reports malformed client input.
	ErrBadRequest = errors.New("bad request")
)

// E is the engine. One value serves every request; the store client and the
// catalog name cache are the only shared state.
type E struct {
	Store store.Conn
	CL    store.Consistency
	lg    *zap.Logger

	// names caches property id -> display name per bucket, read on the
	// event hot path when writing cross-links.
	names *xsync.MapOf[string, string]

	// Ingest counters, reported by the stats log loop.
	Events     atomic.Int64
	Properties atomic.Int64
}

// New returns an engine over the given store.
func New(s store.Conn, lg *zap.Logger) *E {
	return &E{
		Store: s,
		CL:    store.One,
		lg:    lg,
		names: xsync.NewMapOf[string, string](),
	}
}

// Authorize is the middleware contract: the authenticated user may only act
// on their own resources.
func Authorize(authedUser, targetUser string) error {
	if authedUser != targetUser {
		return ErrNotAuthorized
	}
	return nil
}

// Id derivations. Every id is stable under re-derivation from its source
// tuple within the same bucket.

// BucketID derives the bucket id from its owner and name.
func BucketID(user, bucket string) []byte {
	return hash.Strings(user, bucket)
}

// EventID derives an event id within a bucket. The kind tag keeps an event
// and a property of the same name from sharing an id.
func EventID(bucketID []byte, name string) []byte {
	return hash.Tuple(bucketID, []byte("event"), []byte(name))
}

// PropertyID derives a property id within a bucket.
func PropertyID(bucketID []byte, name string) []byte {
	return hash.Tuple(bucketID, []byte("property"), []byte(name))
}

// ValueID derives a value id from the property name and the value payload.
func ValueID(bucketID []byte, property string, value []byte) []byte {
	return hash.Tuple(bucketID, []byte("property"), []byte(property), value)
}

// VisitorID folds a client-supplied visitor identifier to 16 bytes.
func VisitorID(raw []byte) []byte {
	return hash.Tuple(raw)
}

func (e *E) cacheKey(bucketID, propertyID []byte) string {
	return string(bucketID) + string(propertyID)
}

func (e *E) cacheName(bucketID, propertyID []byte, name string) {
	e.names.Store(e.cacheKey(bucketID, propertyID), name)
}

func (e *E) dropBucketCache(bucketID []byte) {
	prefix := string(bucketID)
	e.names.Range(func(k string, _ string) bool {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			e.names.Delete(k)
		}
		return true
	})
}
