package store

import (
	"sync"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"hiitrack.dev/utils/context"
)

// flushLimit caps the store calls a single flush has in flight.
const flushLimit = 16

type batchKey struct {
	fam Family
	row string
	col string
}

// Batch coalesces relation inserts and counter increments by
// (family, row, column) so one fan-out issues each physical write once.
// Inserts are last-writer-wins, increments sum. A Batch belongs to a single
// fan-out; Flush dispatches synchronously before the fan-out reports
// success.
type Batch struct {
	inserts map[batchKey][]byte
	adds    map[batchKey]int64
}

var batchPool = sync.Pool{
	New: func() any {
		return &Batch{
			inserts: make(map[batchKey][]byte),
			adds:    make(map[batchKey]int64),
		}
	},
}

// Flushed counts of physical writes dispatched, exported for log lines.
var (
	FlushedInserts = atomic.NewInt64(0)
	FlushedAdds    = atomic.NewInt64(0)
)

// GetBatch takes an empty batch from the pool.
func GetBatch() *Batch { return batchPool.Get().(*Batch) }

// PutBatch resets and returns a batch to the pool.
func PutBatch(b *Batch) {
	clear(b.inserts)
	clear(b.adds)
	batchPool.Put(b)
}

// Insert buffers a relation or user family write.
func (b *Batch) Insert(fam Family, row, col, val []byte) {
	b.inserts[batchKey{fam, string(row), string(col)}] = val
}

// Add buffers a counter increment.
func (b *Batch) Add(row, col []byte, delta int64) {
	b.adds[batchKey{Counter, string(row), string(col)}] += delta
}

// Len reports the number of distinct physical writes buffered.
func (b *Batch) Len() int { return len(b.inserts) + len(b.adds) }

// Flush dispatches every buffered write and waits for all of them. The
// first error aborts the remainder; dispatched increments are not rolled
// back.
func (b *Batch) Flush(c context.T, s Conn, cl Consistency) (err error) {
	g, gc := errgroup.WithContext(c)
	g.SetLimit(flushLimit)
	for k, v := range b.inserts {
		g.Go(func() error {
			return s.Insert(gc, k.fam, []byte(k.row), []byte(k.col), v, cl)
		})
	}
	for k, delta := range b.adds {
		g.Go(func() error {
			return s.Add(gc, []byte(k.row), []byte(k.col), delta, cl)
		})
	}
	if err = g.Wait(); err != nil {
		return
	}
	FlushedInserts.Add(int64(len(b.inserts)))
	FlushedAdds.Add(int64(len(b.adds)))
	return
}
