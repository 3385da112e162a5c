// Package cassandra implements the store contract on a Cassandra cluster
// through gocql, with the three column families as blob-keyed tables and a
// counter table for increments. Consistency is forwarded per call.
package cassandra

import (
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"hiitrack.dev/store"
	"hiitrack.dev/utils/context"
)

// Config is the connection configuration for a cluster.
type Config struct {
	Host              string
	Port              int
	Keyspace          string
	ReplicationFactor int
	Timeout           time.Duration
}

// D is a Cassandra-backed store.
type D struct {
	session *gocql.Session
	lg      *zap.Logger
}

// New ensures the keyspace and tables exist, then opens a session bound to
// the keyspace.
func New(cfg Config, lg *zap.Logger) (d *D, err error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.ReplicationFactor == 0 {
		cfg.ReplicationFactor = 1
	}
	if err = ensureSchema(cfg); err != nil {
		return
	}
	cluster := gocql.NewCluster(cfg.Host)
	cluster.Port = cfg.Port
	cluster.Keyspace = cfg.Keyspace
	cluster.Timeout = cfg.Timeout
	cluster.Consistency = gocql.One
	var session *gocql.Session
	if session, err = cluster.CreateSession(); err != nil {
		err = transient(err)
		return
	}
	lg.Info(
		"connected to cassandra",
		zap.String("host", cfg.Host), zap.Int("port", cfg.Port),
		zap.String("keyspace", cfg.Keyspace),
	)
	d = &D{session: session, lg: lg}
	return
}

func ensureSchema(cfg Config) (err error) {
	cluster := gocql.NewCluster(cfg.Host)
	cluster.Port = cfg.Port
	cluster.Timeout = cfg.Timeout
	session, err := cluster.CreateSession()
	if err != nil {
		return transient(err)
	}
	defer session.Close()
	stmts, err := Schema(SchemaConfig{
		Keyspace:          cfg.Keyspace,
		ReplicationFactor: cfg.ReplicationFactor,
	})
	if err != nil {
		return
	}
	for _, stmt := range stmts {
		if err = session.Query(stmt).Exec(); err != nil {
			return transient(err)
		}
	}
	return
}

func table(fam store.Family) string {
	if fam == store.User {
		return `"user"`
	}
	return string(fam)
}

func level(cl store.Consistency) gocql.Consistency {
	switch cl {
	case store.Any:
		return gocql.Any
	case store.Quorum:
		return gocql.Quorum
	case store.All:
		return gocql.All
	}
	return gocql.One
}

func (d *D) Insert(c context.T, fam store.Family, row, col, val []byte,
	cl store.Consistency) (err error) {
	q := fmt.Sprintf(
		`INSERT INTO %s (key, column, value) VALUES (?, ?, ?)`, table(fam),
	)
	err = d.session.Query(q, row, col, val).
		WithContext(c).Consistency(level(cl)).Exec()
	return transient(err)
}

func (d *D) Get(c context.T, fam store.Family, row, col []byte,
	cl store.Consistency) (val []byte, err error) {
	q := fmt.Sprintf(
		`SELECT value FROM %s WHERE key = ? AND column = ?`, table(fam),
	)
	err = d.session.Query(q, row, col).
		WithContext(c).Consistency(level(cl)).Scan(&val)
	if errors.Is(err, gocql.ErrNotFound) {
		val, err = nil, store.ErrNotFound
		return
	}
	err = transient(err)
	return
}

func (d *D) Slice(c context.T, fam store.Family, row, start, finish []byte,
	count int, cl store.Consistency) (cols []store.Column, err error) {
	if count <= 0 || count > store.MaxSliceCount {
		count = store.MaxSliceCount
	}
	iter := d.sliceIter(c, table(fam), row, start, finish, count, cl)
	var name, val []byte
	for iter.Scan(&name, &val) {
		cols = append(cols, store.Column{
			Name:  append([]byte{}, name...),
			Value: append([]byte{}, val...),
		})
	}
	err = transient(iter.Close())
	return
}

func (d *D) sliceIter(c context.T, tbl string, row, start, finish []byte,
	count int, cl store.Consistency) *gocql.Iter {
	switch {
	case len(start) > 0 && len(finish) > 0:
		return d.session.Query(
			fmt.Sprintf(
				`SELECT column, value FROM %s WHERE key = ? AND column >= ? AND column <= ? LIMIT ?`,
				tbl,
			), row, start, finish, count,
		).WithContext(c).Consistency(level(cl)).Iter()
	case len(start) > 0:
		return d.session.Query(
			fmt.Sprintf(
				`SELECT column, value FROM %s WHERE key = ? AND column >= ? LIMIT ?`,
				tbl,
			), row, start, count,
		).WithContext(c).Consistency(level(cl)).Iter()
	case len(finish) > 0:
		return d.session.Query(
			fmt.Sprintf(
				`SELECT column, value FROM %s WHERE key = ? AND column <= ? LIMIT ?`,
				tbl,
			), row, finish, count,
		).WithContext(c).Consistency(level(cl)).Iter()
	}
	return d.session.Query(
		fmt.Sprintf(
			`SELECT column, value FROM %s WHERE key = ? LIMIT ?`, tbl,
		), row, count,
	).WithContext(c).Consistency(level(cl)).Iter()
}

func (d *D) Add(c context.T, row, col []byte, delta int64,
	cl store.Consistency) (err error) {
	err = d.session.Query(
		`UPDATE counter SET value = value + ? WHERE key = ? AND column = ?`,
		delta, row, col,
	).WithContext(c).Consistency(level(cl)).Exec()
	return transient(err)
}

func (d *D) CounterGet(c context.T, row, col []byte, cl store.Consistency) (
	val int64, err error,
) {
	err = d.session.Query(
		`SELECT value FROM counter WHERE key = ? AND column = ?`, row, col,
	).WithContext(c).Consistency(level(cl)).Scan(&val)
	if errors.Is(err, gocql.ErrNotFound) {
		val, err = 0, store.ErrNotFound
		return
	}
	err = transient(err)
	return
}

func (d *D) CounterSlice(c context.T, row, start, finish []byte, count int,
	cl store.Consistency) (cols []store.CounterColumn, err error) {
	if count <= 0 || count > store.MaxSliceCount {
		count = store.MaxSliceCount
	}
	iter := d.sliceIter(c, "counter", row, start, finish, count, cl)
	var name []byte
	var val int64
	for iter.Scan(&name, &val) {
		cols = append(cols, store.CounterColumn{
			Name:  append([]byte{}, name...),
			Value: val,
		})
	}
	err = transient(iter.Close())
	return
}

func (d *D) Remove(c context.T, fam store.Family, row, col []byte,
	cl store.Consistency) (err error) {
	if col != nil {
		err = d.session.Query(
			fmt.Sprintf(
				`DELETE FROM %s WHERE key = ? AND column = ?`, table(fam),
			), row, col,
		).WithContext(c).Consistency(level(cl)).Exec()
		return transient(err)
	}
	err = d.session.Query(
		fmt.Sprintf(`DELETE FROM %s WHERE key = ?`, table(fam)), row,
	).WithContext(c).Consistency(level(cl)).Exec()
	return transient(err)
}

func (d *D) RemoveCounter(c context.T, row, col []byte,
	cl store.Consistency) (err error) {
	return d.Remove(c, store.Counter, row, col, cl)
}

func (d *D) Close() error {
	d.session.Close()
	return nil
}

func transient(err error) error {
	if err == nil || errors.Is(err, store.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %v", store.ErrTransient, err)
}
