package keys

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/frand"

	"hiitrack.dev/hash"
)

func TestIntervalSeconds(t *testing.T) {
	assert.EqualValues(t, 3600, Hour.Seconds())
	assert.EqualValues(t, 86400, Day.Seconds())
	assert.EqualValues(t, 604800, Week.Seconds())
	assert.EqualValues(t, 2629746, Month.Seconds())
}

func TestParseInterval(t *testing.T) {
	for _, iv := range Intervals {
		got, ok := ParseInterval(iv.String())
		require.True(t, ok)
		assert.Equal(t, iv, got)
	}
	// Default granularity when the client names none.
	got, ok := ParseInterval("")
	require.True(t, ok)
	assert.Equal(t, Day, got)
	_, ok = ParseInterval("fortnight")
	assert.False(t, ok)
}

func TestTimeBucketRoundTrip(t *testing.T) {
	const epoch = int64(1335197043)
	for _, iv := range Intervals {
		tb := TimeBucket(iv, epoch)
		require.Len(t, tb, TimeLen)
		start := BucketStart(iv, tb)
		assert.LessOrEqual(t, start, epoch)
		assert.Greater(t, start+iv.Seconds(), epoch)
		assert.Zero(t, start%iv.Seconds())
	}
}

func TestTimeBucketOrdering(t *testing.T) {
	// Consecutive buckets must sort in byte order for range slices.
	a := TimeBucket(Day, 86400*100)
	b := TimeBucket(Day, 86400*101)
	assert.Equal(t, -1, compare(a, b))
}

// TestInjectivity enumerates every coordinate constructor over a seeded
// sample of ids and checks that no two logical coordinates share a
// (row, column) address within a family.
func TestInjectivity(t *testing.T) {
	rng := frand.NewCustom(make([]byte, 32), 1024, 12)
	id := func() []byte { return rng.Bytes(hash.Size) }
	bucket := id()
	events := [][]byte{id(), id(), id()}
	props := [][]byte{id(), id()}
	vals := [][]byte{id(), id()}
	visitors := [][]byte{id(), id()}
	tb := TimeBucket(Hour, 1335197043)

	type addr struct{ row, col string }
	seen := map[addr]string{}
	record := func(label string, row, col []byte) {
		a := addr{string(row), string(col)}
		if prev, ok := seen[a]; ok {
			t.Fatalf("%s collides with %s", label, prev)
		}
		seen[a] = label
	}

	for ei, e := range events {
		record(fmt.Sprintf("total %d", ei), bucket, e)
		record(fmt.Sprintf("unique %d", ei), bucket, Unique(e))
		for pi, prior := range events {
			record(
				fmt.Sprintf("path %d<-%d", ei, pi), bucket,
				Path(e, prior),
			)
			record(
				fmt.Sprintf("upath %d<-%d", ei, pi), bucket,
				Unique(Path(e, prior)),
			)
		}
		for _, iv := range Intervals {
			row := IntervalRow(bucket, iv)
			record(
				fmt.Sprintf("timed %d %c", ei, iv), row,
				TimedTotal(e, tb),
			)
			record(
				fmt.Sprintf("timed unique %d %c", ei, iv), row,
				Unique(TimedTotal(e, tb)),
			)
			for pi, prior := range events {
				record(
					fmt.Sprintf("timed path %d<-%d %c", ei, pi, iv),
					row, TimedPath(e, prior, tb),
				)
			}
		}
		for qi, p := range props {
			row := PropertyRow(bucket, p)
			for vi, y := range vals {
				record(
					fmt.Sprintf("value %d.%d.%d", ei, qi, vi), row,
					ValueTotal(e, y),
				)
				record(
					fmt.Sprintf("uvalue %d.%d.%d", ei, qi, vi), row,
					Unique(ValueTotal(e, y)),
				)
				for pi, prior := range events {
					record(
						fmt.Sprintf(
							"vpath %d.%d.%d<-%d", ei, qi, vi, pi,
						),
						row, ValuePath(e, prior, y),
					)
				}
				for _, iv := range Intervals {
					trow := PropertyIntervalRow(bucket, p, iv)
					record(
						fmt.Sprintf(
							"tvalue %d.%d.%d %c", ei, qi, vi, iv,
						),
						trow, TimedValueTotal(e, y, tb),
					)
				}
			}
		}
	}

	// Relation family coordinates, checked in their own namespace.
	seen = map[addr]string{}
	for ei, e := range events {
		record(fmt.Sprintf("edesc %d", ei), bucket, EventDescriptor(e))
		for qi, p := range props {
			record(
				fmt.Sprintf("xlink %d.%d", ei, qi), bucket,
				CrossLinkCol(e, p),
			)
		}
	}
	for qi, p := range props {
		record(fmt.Sprintf("pdesc %d", qi), bucket, PropertyDescriptor(p))
		for vi, y := range vals {
			record(
				fmt.Sprintf("ventry %d.%d", qi, vi), bucket,
				ValueEntry(p, y),
			)
		}
	}
	for vi, v := range visitors {
		row := VisitorRow(bucket, v)
		record(fmt.Sprintf("vis event %d", vi), row, VisitorEventCol)
		for qi, p := range props {
			record(
				fmt.Sprintf("vis prop %d.%d", vi, qi), row,
				VisitorPropertyCol(p),
			)
		}
		for ei, e := range events {
			record(
				fmt.Sprintf("marker %d.%d", vi, ei),
				MarkerRow(bucket), Marker(e, v),
			)
		}
	}
}

func TestPrefixRange(t *testing.T) {
	prefix := []byte{0x01, 0x02}
	start, finish := PrefixRange(prefix)
	assert.Equal(t, prefix, start)
	assert.Equal(t, append([]byte{0x01, 0x02}, hash.High...), finish)
}

func compare(a, b []byte) int {
	for i := range a {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	return 0
}
