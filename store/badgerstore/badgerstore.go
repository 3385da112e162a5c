// Package badgerstore implements the store contract on an embedded badger
// keyspace. A cell (family, row, column) maps onto the badger key
// famTag · uvarint(len(row)) · row · column, which keeps the columns of a
// row contiguous and in ascending byte order under prefix iteration.
package badgerstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"hiitrack.dev/store"
	"hiitrack.dev/utils/context"
)

// addAttempts bounds the optimistic retry loop on counter increments.
// Increments commute, so replaying a conflicted transaction is safe.
const addAttempts = 32

var famTags = map[store.Family]byte{
	store.User:     'U',
	store.Relation: 'R',
	store.Counter:  'C',
}

// D is an embedded badger store.
type D struct {
	ctx     context.T
	cancel  context.F
	dataDir string
	lg      *zap.Logger
	*badger.DB
}

// New opens (or creates) a badger store at dataDir. An empty dataDir opens
// an in-memory keyspace, which the tests use.
func New(ctx context.T, cancel context.F, dataDir string, lg *zap.Logger) (
	d *D, err error,
) {
	d = &D{ctx: ctx, cancel: cancel, dataDir: dataDir, lg: lg}
	var opts badger.Options
	if dataDir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err = os.MkdirAll(dataDir, 0755); err != nil {
			return
		}
		opts = badger.DefaultOptions(dataDir)
		opts.CompactL0OnClose = true
	}
	opts = opts.WithLogger(badgerZap{lg.Sugar()})
	if d.DB, err = badger.Open(opts); err != nil {
		return
	}
	go func() {
		<-d.ctx.Done()
		d.cancel()
	}()
	return
}

// Path returns the directory holding the store files.
func (d *D) Path() string { return d.dataDir }

func cellKey(fam store.Family, row, col []byte) []byte {
	k := make([]byte, 0, 1+binary.MaxVarintLen16+len(row)+len(col))
	k = append(k, famTags[fam])
	k = binary.AppendUvarint(k, uint64(len(row)))
	k = append(k, row...)
	k = append(k, col...)
	return k
}

func rowPrefix(fam store.Family, row []byte) []byte {
	return cellKey(fam, row, nil)
}

func (d *D) Insert(c context.T, fam store.Family, row, col, val []byte,
	_ store.Consistency) (err error) {
	if err = c.Err(); err != nil {
		return transient(err)
	}
	err = d.Update(func(txn *badger.Txn) error {
		return txn.Set(cellKey(fam, row, col), val)
	})
	return transient(err)
}

func (d *D) Get(c context.T, fam store.Family, row, col []byte,
	_ store.Consistency) (val []byte, err error) {
	if err = c.Err(); err != nil {
		err = transient(err)
		return
	}
	err = d.View(func(txn *badger.Txn) (err error) {
		item, err := txn.Get(cellKey(fam, row, col))
		if err != nil {
			return
		}
		val, err = item.ValueCopy(nil)
		return
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		val, err = nil, store.ErrNotFound
		return
	}
	err = transient(err)
	return
}

func (d *D) Slice(c context.T, fam store.Family, row, start, finish []byte,
	count int, _ store.Consistency) (cols []store.Column, err error) {
	if err = c.Err(); err != nil {
		err = transient(err)
		return
	}
	if count <= 0 || count > store.MaxSliceCount {
		count = store.MaxSliceCount
	}
	prefix := rowPrefix(fam, row)
	err = d.View(func(txn *badger.Txn) (err error) {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		seek := append(append([]byte{}, prefix...), start...)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			name := item.KeyCopy(nil)[len(prefix):]
			if len(finish) > 0 && bytes.Compare(name, finish) > 0 {
				break
			}
			var val []byte
			if val, err = item.ValueCopy(nil); err != nil {
				return
			}
			cols = append(cols, store.Column{Name: name, Value: val})
			if len(cols) >= count {
				break
			}
		}
		return
	})
	err = transient(err)
	return
}

func (d *D) Add(c context.T, row, col []byte, delta int64,
	_ store.Consistency) (err error) {
	if err = c.Err(); err != nil {
		return transient(err)
	}
	key := cellKey(store.Counter, row, col)
	for i := 0; i < addAttempts; i++ {
		err = d.Update(func(txn *badger.Txn) (err error) {
			var cur int64
			item, err := txn.Get(key)
			switch {
			case err == nil:
				var raw []byte
				if raw, err = item.ValueCopy(nil); err != nil {
					return
				}
				cur = decodeCounter(raw)
			case errors.Is(err, badger.ErrKeyNotFound):
				err = nil
			default:
				return
			}
			return txn.Set(key, encodeCounter(cur+delta))
		})
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}
	return transient(err)
}

func (d *D) CounterGet(c context.T, row, col []byte, cl store.Consistency) (
	val int64, err error,
) {
	raw, err := d.Get(c, store.Counter, row, col, cl)
	if err != nil {
		return
	}
	val = decodeCounter(raw)
	return
}

func (d *D) CounterSlice(c context.T, row, start, finish []byte, count int,
	cl store.Consistency) (cols []store.CounterColumn, err error) {
	raw, err := d.Slice(c, store.Counter, row, start, finish, count, cl)
	if err != nil {
		return
	}
	for _, col := range raw {
		cols = append(
			cols,
			store.CounterColumn{
				Name:  col.Name,
				Value: decodeCounter(col.Value),
			},
		)
	}
	return
}

func (d *D) Remove(c context.T, fam store.Family, row, col []byte,
	_ store.Consistency) (err error) {
	if err = c.Err(); err != nil {
		return transient(err)
	}
	if col != nil {
		err = d.Update(func(txn *badger.Txn) error {
			return txn.Delete(cellKey(fam, row, col))
		})
		return transient(err)
	}
	err = d.dropRow(fam, row)
	return transient(err)
}

func (d *D) RemoveCounter(c context.T, row, col []byte,
	cl store.Consistency) (err error) {
	return d.Remove(c, store.Counter, row, col, cl)
}

// dropRow deletes every column of a row in one transaction.
func (d *D) dropRow(fam store.Family, row []byte) (err error) {
	prefix := rowPrefix(fam, row)
	return d.Update(func(txn *badger.Txn) (err error) {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		var keys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()
		for _, k := range keys {
			if err = txn.Delete(k); err != nil {
				return
			}
		}
		return
	})
}

func (d *D) Close() (err error) {
	d.lg.Info("closing badger store", zap.String("path", d.dataDir))
	return d.DB.Close()
}

func encodeCounter(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func decodeCounter(b []byte) int64 {
	if len(b) != 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}

func transient(err error) error {
	if err == nil || errors.Is(err, store.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %v", store.ErrTransient, err)
}

// badgerZap adapts zap to badger's logger interface.
type badgerZap struct{ s *zap.SugaredLogger }

func (b badgerZap) Errorf(f string, args ...interface{}) {
	b.s.Errorf(f, args...)
}

func (b badgerZap) Warningf(f string, args ...interface{}) {
	b.s.Warnf(f, args...)
}

func (b badgerZap) Infof(f string, args ...interface{}) {
	b.s.Debugf(f, args...)
}

func (b badgerZap) Debugf(f string, args ...interface{}) {
	b.s.Debugf(f, args...)
}
