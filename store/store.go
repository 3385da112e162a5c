// Package store defines the contract with the wide-column store backing the
// engine: three column families addressed by raw byte row keys and column
// names, point and slice reads, counter increments, and a coalescing write
// batch. Backends live in the subpackages.
package store

import (
	"errors"

	"hiitrack.dev/utils/context"
)

// Family names one of the three column families.
type Family string

const (
	User     Family = "user"
	Relation Family = "relation"
	Counter  Family = "counter"
)

// Consistency is forwarded per call to the backend. The embedded backend
// ignores it.
type Consistency int

const (
	Any Consistency = iota
	One
	Quorum
	All
)

// MaxSliceCount bounds every slice read.
const MaxSliceCount = 10000

// Column is a relation or user family cell.
type Column struct {
	Name  []byte
	Value []byte
}

// CounterColumn is a counter family cell.
type CounterColumn struct {
	Name  []byte
	Value int64
}

// ErrNotFound reports a point read of an absent column. The engine converts
// it to domain-level absence; it never reaches a client.
var ErrNotFound = errors.New("store: not found")

// ErrTransient wraps timeouts and transport failures. The core never
// retries; the HTTP layer maps it to 503.
var ErrTransient = errors.New("store: transient failure")

// Conn is the thin adapter over the wide-column store. Implementations must
// be safe for concurrent use; every call suspends on the backend.
type Conn interface {
	// Insert writes a single column into the user or relation family.
	Insert(c context.T, fam Family, row, col, val []byte, cl Consistency) error
	// Get point-reads a column; ErrNotFound when absent.
	Get(c context.T, fam Family, row, col []byte, cl Consistency) ([]byte, error)
	// Slice reads the columns of row with start <= name <= finish, in
	// ascending byte order, at most count entries. Empty result for an
	// absent row.
	Slice(c context.T, fam Family, row, start, finish []byte, count int,
		cl Consistency) ([]Column, error)
	// Add increments a counter, creating it at delta on first touch.
	Add(c context.T, row, col []byte, delta int64, cl Consistency) error
	// CounterGet point-reads a counter; ErrNotFound when absent.
	CounterGet(c context.T, row, col []byte, cl Consistency) (int64, error)
	// CounterSlice is Slice over the counter family.
	CounterSlice(c context.T, row, start, finish []byte, count int,
		cl Consistency) ([]CounterColumn, error)
	// Remove deletes a column, or the whole row when col is nil.
	Remove(c context.T, fam Family, row, col []byte, cl Consistency) error
	// RemoveCounter deletes a counter column, or the whole counter row
	// when col is nil.
	RemoveCounter(c context.T, row, col []byte, cl Consistency) error
	Close() error
}
