package opensearch

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/wippyai/hostbridge/docstore"
	"github.com/wippyai/hostbridge/errors"
)

type recorded struct {
	Method string
	Path   string
	Query  string
	Body   string
}

type cluster struct {
	t        *testing.T
	mu       sync.Mutex
	requests []recorded
	respond  func(r recorded) (int, string)
}

func (c *cluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	require.NoError(c.t, err)
	rec := recorded{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: string(body)}

	status, out := http.StatusOK, `{"cluster_name":"test","version":{"number":"2.11.0"}}`
	if r.URL.Path != "/" {
		c.mu.Lock()
		c.requests = append(c.requests, rec)
		c.mu.Unlock()
		status, out = c.respond(rec)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, out)
}

func (c *cluster) last() recorded {
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(c.t, c.requests)
	return c.requests[len(c.requests)-1]
}

func newTestStore(t *testing.T, respond func(recorded) (int, string)) (*Store, *cluster) {
	t.Helper()
	SetLogger(zaptest.NewLogger(t))
	t.Cleanup(func() { SetLogger(nil) })

	c := &cluster{t: t, respond: respond}
	srv := httptest.NewServer(c)
	t.Cleanup(srv.Close)

	s, err := Connect(context.Background(), Config{
		Addresses:    []string{srv.URL},
		Username:     "elastic",
		Password:     "changeme",
		DisableRetry: true,
	})
	require.NoError(t, err)
	return s, c
}

func reply(status int, body string) func(recorded) (int, string) {
	return func(recorded) (int, string) { return status, body }
}

func TestStore_CreateIndex(t *testing.T) {
	s, c := newTestStore(t, reply(http.StatusOK, `{"acknowledged":true,"index":"telemetry"}`))

	require.NoError(t, s.CreateIndex(context.Background(), "telemetry"))
	req := c.last()
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/telemetry", req.Path)
}

func TestStore_CreateIndexExisting(t *testing.T) {
	s, _ := newTestStore(t, reply(http.StatusBadRequest,
		`{"error":{"type":"resource_already_exists_exception","reason":"index [telemetry/abc] already exists"},"status":400}`))

	err := s.CreateIndex(context.Background(), "telemetry")
	require.ErrorIs(t, err, errors.ErrIO)
	status, ok := errors.Status(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, err.Error(), "resource_already_exists_exception")
	assert.False(t, docstore.IsTransport(err))
}

func TestStore_DeleteIndex(t *testing.T) {
	s, c := newTestStore(t, reply(http.StatusOK, `{"acknowledged":true}`))

	require.NoError(t, s.DeleteIndex(context.Background(), "telemetry"))
	req := c.last()
	assert.Equal(t, http.MethodDelete, req.Method)
	assert.Equal(t, "/telemetry", req.Path)
	assert.Contains(t, req.Query, "ignore_unavailable=true")
}

func TestStore_Index(t *testing.T) {
	s, c := newTestStore(t, reply(http.StatusCreated, `{"_index":"telemetry","_id":"k2Jd","result":"created"}`))

	id, err := s.Index(context.Background(), "telemetry", docstore.Document{"name": "cpu", "value": 3})
	require.NoError(t, err)
	assert.Equal(t, "k2Jd", id)

	req := c.last()
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/telemetry/_doc", req.Path)
	assert.Contains(t, req.Query, "refresh=wait_for")
	assert.JSONEq(t, `{"name":"cpu","value":3}`, req.Body)
}

func TestStore_IndexMissingID(t *testing.T) {
	s, _ := newTestStore(t, reply(http.StatusCreated, `{"result":"created"}`))

	_, err := s.Index(context.Background(), "telemetry", docstore.Document{"name": "cpu"})
	require.Error(t, err)
	assert.Equal(t, errors.KindInvalidData, errors.KindOf(err))
}

func TestStore_BulkIndex(t *testing.T) {
	s, c := newTestStore(t, reply(http.StatusOK, `{"took":3,"errors":false,"items":[]}`))

	docs := []docstore.Document{
		{"id": "a", "name": "cpu", "value": 1},
		{"name": "mem", "value": 2},
	}
	require.NoError(t, s.BulkIndex(context.Background(), "telemetry", docs))

	req := c.last()
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/telemetry/_bulk", req.Path)
	assert.Contains(t, req.Query, "refresh=wait_for")

	var lines []string
	sc := bufio.NewScanner(strings.NewReader(req.Body))
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.Len(t, lines, 4)
	assert.JSONEq(t, `{"index":{"_id":"a"}}`, lines[0])
	assert.JSONEq(t, `{"id":"a","name":"cpu","value":1}`, lines[1])
	assert.JSONEq(t, `{"index":{}}`, lines[2])
	assert.JSONEq(t, `{"name":"mem","value":2}`, lines[3])
}

func TestStore_BulkIndexEmpty(t *testing.T) {
	s, c := newTestStore(t, reply(http.StatusOK, `{}`))

	require.NoError(t, s.BulkIndex(context.Background(), "telemetry", nil))
	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Empty(t, c.requests)
}

func TestStore_BulkIndexItemFailure(t *testing.T) {
	s, _ := newTestStore(t, reply(http.StatusOK, `{"errors":true,"items":[
		{"index":{"_id":"a","status":201}},
		{"index":{"_id":"b","status":400,"error":{"type":"mapper_parsing_exception","reason":"failed to parse field [value]"}}}
	]}`))

	err := s.BulkIndex(context.Background(), "telemetry", []docstore.Document{{"id": "a"}, {"id": "b"}})
	require.ErrorIs(t, err, errors.ErrIO)
	status, _ := errors.Status(err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, err.Error(), "mapper_parsing_exception")
}

func TestStore_Delete(t *testing.T) {
	s, c := newTestStore(t, reply(http.StatusOK, `{"_id":"k2Jd","result":"deleted"}`))

	require.NoError(t, s.Delete(context.Background(), "telemetry", "k2Jd"))
	req := c.last()
	assert.Equal(t, http.MethodDelete, req.Method)
	assert.Equal(t, "/telemetry/_doc/k2Jd", req.Path)
	assert.Contains(t, req.Query, "refresh=wait_for")
}

func TestStore_DeleteMissing(t *testing.T) {
	s, _ := newTestStore(t, reply(http.StatusNotFound, `{"_id":"nope","result":"not_found"}`))

	err := s.Delete(context.Background(), "telemetry", "nope")
	require.Error(t, err)
	assert.True(t, docstore.IsNotFound(err))
}

func TestStore_DeleteAll(t *testing.T) {
	s, c := newTestStore(t, reply(http.StatusOK, `{"deleted":2}`))

	require.NoError(t, s.DeleteAll(context.Background(), "telemetry"))
	req := c.last()
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/telemetry/_delete_by_query", req.Path)
	assert.Contains(t, req.Query, "refresh=true")
	assert.JSONEq(t, `{"query":{"match_all":{}}}`, req.Body)
}

func TestStore_Search(t *testing.T) {
	s, c := newTestStore(t, reply(http.StatusOK, `{"hits":{"total":{"value":2},"hits":[
		{"_id":"1","_source":{"id":"a","name":"cpu","value":1}},
		{"_id":"2","_source":{"id":"b","name":"mem","value":2}}
	]}}`))

	docs, err := s.Search(context.Background(), "telemetry")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "cpu", docs[0]["name"])
	assert.Equal(t, "b", docs[1]["id"])

	req := c.last()
	assert.Equal(t, "/telemetry/_search", req.Path)
	assert.Contains(t, req.Query, "allow_no_indices=true")

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(req.Body), &body))
	assert.Contains(t, body, "query")
}

func TestStore_SearchEmpty(t *testing.T) {
	s, _ := newTestStore(t, reply(http.StatusOK, `{"hits":{"hits":[]}}`))

	docs, err := s.Search(context.Background(), "telemetry")
	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
}

func TestStore_SearchUnexpectedStatus(t *testing.T) {
	s, _ := newTestStore(t, reply(http.StatusAccepted, `{}`))

	_, err := s.Search(context.Background(), "telemetry")
	require.ErrorIs(t, err, errors.ErrIO)
	status, _ := errors.Status(err)
	assert.Equal(t, http.StatusAccepted, status)
}

func TestStore_TransportFailure(t *testing.T) {
	c := &cluster{t: t, respond: reply(http.StatusOK, `{}`)}
	srv := httptest.NewServer(c)
	s, err := Connect(context.Background(), Config{Addresses: []string{srv.URL}, DisableRetry: true})
	require.NoError(t, err)
	srv.Close()

	_, err = s.Search(context.Background(), "telemetry")
	require.ErrorIs(t, err, errors.ErrIO)
	assert.True(t, docstore.IsTransport(err))
}

func TestStore_Ping(t *testing.T) {
	s, c := newTestStore(t, reply(http.StatusOK, `{}`))
	require.NoError(t, s.Ping(context.Background()))

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Empty(t, c.requests, "ping only reads the info document")
}

func TestStore_PingUnauthorized(t *testing.T) {
	SetLogger(zaptest.NewLogger(t))
	t.Cleanup(func() { SetLogger(nil) })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"type":"security_exception","reason":"missing authentication credentials"}}`))
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{Addresses: []string{srv.URL}, DisableRetry: true})
	require.NoError(t, err)

	err = NewStore(client).Ping(context.Background())
	require.ErrorIs(t, err, errors.ErrIO)
	status, ok := errors.Status(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, err.Error(), "security_exception")
	assert.False(t, docstore.IsTransport(err))

	_, err = Connect(context.Background(), Config{Addresses: []string{srv.URL}, DisableRetry: true})
	status, _ = errors.Status(err)
	assert.Equal(t, http.StatusUnauthorized, status, "Connect reports the ping failure")
}

func TestStore_PingUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := NewClient(Config{Addresses: []string{url}, DisableRetry: true})
	require.NoError(t, err)

	err = NewStore(client).Ping(context.Background())
	require.ErrorIs(t, err, errors.ErrIO)
	assert.True(t, docstore.IsTransport(err))

	_, err = Connect(context.Background(), Config{Addresses: []string{url}, DisableRetry: true})
	assert.True(t, docstore.IsTransport(err))
}
