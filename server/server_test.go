package server

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"hiitrack.dev/engine"
	"hiitrack.dev/hash"
	"hiitrack.dev/store/badgerstore"
	"hiitrack.dev/utils/context"
)

const (
	user     = "alice"
	password = "sekrit"
	bucket   = "site"
)

type fixture struct {
	*S
	ts *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx, cancel := context.Cancel(context.Bg())
	d, err := badgerstore.New(ctx, cancel, "", zap.NewNop())
	require.NoError(t, err)
	e := engine.New(d, zap.NewNop())
	s := New(ctx, cancel, "127.0.0.1:0", e, d, zap.NewNop())
	ts := httptest.NewServer(s)
	t.Cleanup(func() {
		ts.Close()
		cancel()
		_ = d.Close()
	})
	f := &fixture{S: s, ts: ts}
	f.do(t, http.StatusCreated, "POST", "/"+user, false,
		url.Values{"password": {password}})
	f.do(t, http.StatusCreated, "POST", "/"+user+"/"+bucket, true,
		url.Values{"description": {"test bucket"}})
	return f
}

// do issues one request and decodes the JSON body, asserting the status.
func (f *fixture) do(t *testing.T, wantStatus int, method, path string,
	auth bool, form url.Values) map[string]any {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequest(method, f.ts.URL+path, body)
	require.NoError(t, err)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if auth {
		req.SetBasicAuth(user, password)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.Equal(t, wantStatus, res.StatusCode, "%s %s: %s", method, path, raw)
	if len(raw) == 0 {
		return nil
	}
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	return decoded
}

func (f *fixture) post(t *testing.T, path, visitor string) {
	t.Helper()
	// Ingestion acknowledges with a plain 200.
	f.do(t, http.StatusOK, "POST", path, false,
		url.Values{"visitor_id": {visitor}})
}

func (f *fixture) event(t *testing.T, visitor, name string) {
	f.post(t, fmt.Sprintf("/%s/%s/event/%s", user, bucket, name), visitor)
}

func (f *fixture) property(t *testing.T, visitor, name string,
	value []byte) {
	f.post(t, fmt.Sprintf(
		"/%s/%s/property/%s?value=%s", user, bucket, name,
		url.QueryEscape(base64.StdEncoding.EncodeToString(value)),
	), visitor)
}

func eventHex(name string) string {
	return hash.Hex(engine.EventID(engine.BucketID(user, bucket), name))
}

func valueHex(property string, value []byte) string {
	return hash.Hex(engine.ValueID(
		engine.BucketID(user, bucket), property, value,
	))
}

func TestSingleEvent(t *testing.T) {
	f := newFixture(t)
	f.event(t, "v1", "A")

	v := f.do(t, http.StatusOK, "GET",
		"/"+user+"/"+bucket+"/event/A", true, nil)
	assert.EqualValues(t, 1, v["total"])
	assert.EqualValues(t, 1, v["unique_total"])
	assert.Empty(t, v["path"])
	assert.Empty(t, v["unique_path"])
}

func TestAlternatingPath(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"A", "B", "A", "B", "A"} {
		f.event(t, "v1", name)
	}

	b := f.do(t, http.StatusOK, "GET",
		"/"+user+"/"+bucket+"/event/B", true, nil)
	assert.EqualValues(t, 2, b["total"])
	assert.EqualValues(t, 2, b["path"].(map[string]any)[eventHex("A")])

	a := f.do(t, http.StatusOK, "GET",
		"/"+user+"/"+bucket+"/event/A", true, nil)
	assert.EqualValues(t, 3, a["total"])
	assert.EqualValues(t, 2, a["path"].(map[string]any)[eventHex("B")])
}

func TestPropertyConditioned(t *testing.T) {
	f := newFixture(t)
	red := []byte(`"red"`)
	f.property(t, "v1", "color", red)
	f.event(t, "v1", "A")
	f.event(t, "v2", "A")

	v := f.do(t, http.StatusOK, "GET",
		"/"+user+"/"+bucket+"/event/A?property=color", true, nil)
	totals := v["totals"].(map[string]any)
	utotals := v["unique_totals"].(map[string]any)
	assert.EqualValues(t, 1, totals[valueHex("color", red)])
	assert.EqualValues(t, 1, utotals[valueHex("color", red)])

	f.property(t, "v2", "color", red)
	f.event(t, "v2", "A")
	v = f.do(t, http.StatusOK, "GET",
		"/"+user+"/"+bucket+"/event/A?property=color", true, nil)
	totals = v["totals"].(map[string]any)
	utotals = v["unique_totals"].(map[string]any)
	assert.EqualValues(t, 2, totals[valueHex("color", red)])
	assert.EqualValues(t, 2, utotals[valueHex("color", red)])
}

func TestDaySeries(t *testing.T) {
	f := newFixture(t)
	t0 := time.Date(2012, 4, 23, 23, 30, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)
	// The route stamps events with the wall clock; fixed timestamps go in
	// through the engine.
	require.NoError(t, f.Engine.RecordEvent(
		context.Bg(), user, bucket, []byte("v1"), "A", t0,
	))
	require.NoError(t, f.Engine.RecordEvent(
		context.Bg(), user, bucket, []byte("v1"), "A", t1,
	))

	v := f.do(t, http.StatusOK, "GET", fmt.Sprintf(
		"/%s/%s/event/A?interval=day&start=%d&finish=%d",
		user, bucket, t0.Unix(), t1.Unix(),
	), true, nil)
	total := v["total"].([]any)
	require.Len(t, total, 2)
	for _, p := range total {
		assert.EqualValues(t, 1, p.([]any)[1])
	}
}

func TestDeleteBucket(t *testing.T) {
	f := newFixture(t)
	f.property(t, "v1", "color", []byte(`"red"`))
	f.event(t, "v1", "A")

	f.do(t, http.StatusNoContent, "DELETE", "/"+user+"/"+bucket, true, nil)
	f.do(t, http.StatusNotFound, "GET", "/"+user+"/"+bucket, true, nil)
	f.do(t, http.StatusNotFound, "GET",
		"/"+user+"/"+bucket+"/event/A", true, nil)
	f.do(t, http.StatusNotFound, "DELETE", "/"+user+"/"+bucket, true, nil)
}

func TestBucketSummary(t *testing.T) {
	f := newFixture(t)
	f.event(t, "v1", "A")
	f.property(t, "v1", "color", []byte(`"red"`))

	v := f.do(t, http.StatusOK, "GET", "/"+user+"/"+bucket, true, nil)
	assert.Equal(t, "test bucket", v["description"])
	events := v["events"].(map[string]any)
	entry := events["A"].(map[string]any)
	assert.Equal(t, eventHex("A"), entry["id"])
	props := v["properties"].(map[string]any)
	assert.Contains(t, props, "color")
}

func TestPropertyQuery(t *testing.T) {
	f := newFixture(t)
	red := []byte(`"red"`)
	f.property(t, "v1", "color", red)
	f.event(t, "v1", "A")

	v := f.do(t, http.StatusOK, "GET",
		"/"+user+"/"+bucket+"/property/color", true, nil)
	values := v["values"].(map[string]any)
	vv := values[valueHex("color", red)].(map[string]any)
	assert.Equal(t, "red", vv["value"])
	assert.EqualValues(t, 1, vv["total"].(map[string]any)[eventHex("A")])
	events := v["events"].(map[string]any)
	assert.Equal(t, "A", events[eventHex("A")])
}

func TestAuth(t *testing.T) {
	f := newFixture(t)

	// No credentials.
	f.do(t, http.StatusUnauthorized, "GET", "/"+user+"/"+bucket, false, nil)

	// Bad password.
	req, err := http.NewRequest("GET", f.ts.URL+"/"+user+"/"+bucket, nil)
	require.NoError(t, err)
	req.SetBasicAuth(user, "wrong")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	// Valid credentials against another user's path.
	f.do(t, http.StatusCreated, "POST", "/bob", false,
		url.Values{"password": {"hunter2"}})
	req, err = http.NewRequest("GET", f.ts.URL+"/bob/"+bucket, nil)
	require.NoError(t, err)
	req.SetBasicAuth(user, password)
	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
}

func TestBadRequests(t *testing.T) {
	f := newFixture(t)

	// Missing visitor_id.
	f.do(t, http.StatusBadRequest, "POST",
		"/"+user+"/"+bucket+"/event/A", false, url.Values{})

	// Property value not base64.
	f.do(t, http.StatusBadRequest, "POST",
		"/"+user+"/"+bucket+"/property/color?value=%25%25", false,
		url.Values{"visitor_id": {"v1"}})

	// Property value not JSON.
	f.do(t, http.StatusBadRequest, "POST",
		"/"+user+"/"+bucket+"/property/color?value="+
			base64.StdEncoding.EncodeToString([]byte("nope")), false,
		url.Values{"visitor_id": {"v1"}})

	// Bad interval and bad range.
	f.do(t, http.StatusBadRequest, "GET",
		"/"+user+"/"+bucket+"/event/A?start=0&interval=fortnight",
		true, nil)
	f.do(t, http.StatusBadRequest, "GET",
		"/"+user+"/"+bucket+"/event/A?start=yesterday", true, nil)

	// Missing password on user creation.
	f.do(t, http.StatusBadRequest, "POST", "/carol", false, url.Values{})
}

func TestDeleteUserCascades(t *testing.T) {
	f := newFixture(t)
	f.event(t, "v1", "A")
	f.do(t, http.StatusNoContent, "DELETE", "/"+user, true, nil)

	// Credentials are gone with the account.
	f.do(t, http.StatusUnauthorized, "GET", "/"+user+"/"+bucket, true, nil)
}

func TestUnknownNamesAreEmptyNot404(t *testing.T) {
	f := newFixture(t)
	v := f.do(t, http.StatusOK, "GET",
		"/"+user+"/"+bucket+"/event/never-posted", true, nil)
	assert.EqualValues(t, 0, v["total"])
	v = f.do(t, http.StatusOK, "GET",
		"/"+user+"/"+bucket+"/property/never-set", true, nil)
	assert.Empty(t, v["values"])
}
