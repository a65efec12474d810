package binding

import (
	"context"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/wippyai/hostbridge/bridge"
	"github.com/wippyai/hostbridge/docstore"
	"github.com/wippyai/hostbridge/docstore/memory"
	"github.com/wippyai/hostbridge/errors"
	"github.com/wippyai/hostbridge/host"
	"github.com/wippyai/hostbridge/script"
	"github.com/wippyai/hostbridge/telemetry"
)

type env struct {
	rt    *script.Runtime
	b     *bridge.Bridge
	store *memory.Store
}

func newEnv(t *testing.T) *env {
	t.Helper()
	SetLogger(zaptest.NewLogger(t))
	t.Cleanup(func() { SetLogger(nil) })

	rt := script.New()
	t.Cleanup(func() { rt.Close() })
	return &env{rt: rt, b: bridge.New(rt), store: memory.New()}
}

func (e *env) method(t *testing.T, obj host.Handle, name string) host.Handle {
	t.Helper()
	h, err := e.b.Resolve(context.Background(), obj, name, nil)
	require.NoError(t, err)
	return h
}

// later returns a host function that settles after d with fn's outcome.
func later(d time.Duration, fn func(c *script.Call) (any, error)) script.Func {
	return func(c *script.Call) (any, error) {
		tok := c.Runtime.Promise(c.Name)
		v, err := fn(c)
		if _, aerr := c.Runtime.Loop().AfterFunc(d, func() {
			if err != nil {
				tok.Reject(err)
				return
			}
			tok.Resolve(v)
		}); aerr != nil {
			return nil, aerr
		}
		return tok, nil
	}
}

func TestElastic_DocumentLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	el, err := NewElastic(ctx, e.rt, e.store)
	require.NoError(t, err)
	obj := el.Handle()

	_, err = e.b.AwaitForeign(ctx, e.method(t, obj, "createIndex"), "telemetry")
	require.NoError(t, err)

	id, err := bridge.Await[string](ctx, e.b, e.method(t, obj, "index"), "telemetry",
		telemetry.Event{ID: "1", Name: "abc", Value: 123})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	events := make([]telemetry.Event, 0, 10)
	for i := int32(20); i < 30; i++ {
		events = append(events, telemetry.Event{ID: strconv.Itoa(int(i)), Name: "Event " + strconv.Itoa(int(i)), Value: 123 + i})
	}
	_, err = e.b.AwaitForeign(ctx, e.method(t, obj, "bulkIndex"), "telemetry", events)
	require.NoError(t, err)

	search := e.method(t, obj, "search")
	docs, err := bridge.Await[[]docstore.Document](ctx, e.b, search, "telemetry")
	require.NoError(t, err)
	require.Len(t, docs, 11)
	assert.Equal(t, "abc", docs[0]["name"])

	_, err = e.b.AwaitForeign(ctx, e.method(t, obj, "delete"), "telemetry", id)
	require.NoError(t, err)
	docs, err = bridge.Await[[]docstore.Document](ctx, e.b, search, "telemetry")
	require.NoError(t, err)
	assert.Len(t, docs, 10)

	_, err = e.b.AwaitForeign(ctx, e.method(t, obj, "deleteAll"), "telemetry")
	require.NoError(t, err)
	docs, err = bridge.Await[[]docstore.Document](ctx, e.b, search, "telemetry")
	require.NoError(t, err)
	assert.Empty(t, docs)

	_, err = e.b.AwaitForeign(ctx, e.method(t, obj, "deleteIndex"), "telemetry")
	require.NoError(t, err)
	assert.Empty(t, e.store.Indices())
}

func TestElastic_StoreFailureRejects(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	el, err := NewElastic(ctx, e.rt, e.store)
	require.NoError(t, err)
	create := e.method(t, el.Handle(), "createIndex")

	_, err = e.b.AwaitForeign(ctx, create, "telemetry")
	require.NoError(t, err)

	_, err = e.b.AwaitForeign(ctx, create, "telemetry")
	require.ErrorIs(t, err, errors.ErrRejection)
	require.ErrorIs(t, err, errors.ErrIO)
	status, ok := errors.Status(err)
	require.True(t, ok)
	assert.Equal(t, 400, status)

	assert.False(t, docstore.IsTransport(err))

	_, err = e.b.AwaitForeign(ctx, e.method(t, el.Handle(), "delete"), "telemetry", "missing")
	require.ErrorIs(t, err, errors.ErrRejection)
	assert.True(t, docstore.IsNotFound(err))
}

func TestElastic_ArgumentsCheckedBeforeEntry(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	el, err := NewElastic(ctx, e.rt, e.store)
	require.NoError(t, err)

	_, err = e.b.AwaitForeign(ctx, e.method(t, el.Handle(), "index"), "telemetry", 42)
	require.ErrorIs(t, err, errors.ErrInvocation)
	assert.ErrorIs(t, err, errors.ErrTypeMismatch)

	_, err = e.b.AwaitForeign(ctx, e.method(t, el.Handle(), "createIndex"))
	require.ErrorIs(t, err, errors.ErrInvocation)
	assert.Empty(t, e.store.Indices())
}

type unreachable struct {
	*memory.Store
}

func (unreachable) Search(context.Context, string) ([]docstore.Document, error) {
	return nil, errors.Transport("search", context.DeadlineExceeded)
}

func TestReceiver_FindTelemetryEvents(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	recv := telemetry.NewReceiver(e.store)
	require.NoError(t, e.store.CreateIndex(ctx, "telemetry"))
	want := []telemetry.Event{
		{ID: "1", Name: "Document 1", Value: 1},
		{ID: "2", Name: "Document 2", Value: 2},
	}
	require.NoError(t, recv.Publish(ctx, "telemetry", want...))

	r, err := NewReceiver(ctx, e.rt, recv)
	require.NoError(t, err)

	got, err := bridge.Await[[]telemetry.Event](ctx, e.b, e.method(t, r.Handle(), "findTelemetryEvents"), "telemetry")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestReceiver_TransportFailureRejects(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	r, err := NewReceiver(ctx, e.rt, telemetry.NewReceiver(unreachable{memory.New()}))
	require.NoError(t, err)

	_, err = e.b.AwaitForeign(ctx, e.method(t, r.Handle(), "findTelemetryEvents"), "telemetry")
	require.ErrorIs(t, err, errors.ErrRejection)
	assert.True(t, docstore.IsTransport(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCall0(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	var calls atomic.Int32
	fn, err := e.rt.NewFunction(ctx, "dummy", nil, func(c *script.Call) (any, error) {
		calls.Add(1)
		return nil, nil
	})
	require.NoError(t, err)

	require.NoError(t, Call0(ctx, e.b, fn))
	assert.Equal(t, int32(1), calls.Load())
}

func TestCall0_Throws(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	fn, err := e.rt.NewFunction(ctx, "dummy", nil, func(c *script.Call) (any, error) {
		panic("Hello, world!")
	})
	require.NoError(t, err)

	err = Call0(ctx, e.b, fn)
	require.ErrorIs(t, err, errors.ErrInvocation)
}

func TestCallAsync(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	fn, err := e.rt.NewFunction(ctx, "dummy", nil, later(20*time.Millisecond, func(c *script.Call) (any, error) {
		n, err := c.Int(0)
		return n + 1, err
	}))
	require.NoError(t, err)

	start := time.Now()
	got, err := CallAsync(ctx, e.b, fn, 99)
	require.NoError(t, err)
	assert.Equal(t, int32(100), got)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestCallAsync_ResultMustFit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	fn, err := e.rt.NewFunction(ctx, "wide", nil, func(c *script.Call) (any, error) {
		return int64(1) << 40, nil
	})
	require.NoError(t, err)

	_, err = CallAsync(ctx, e.b, fn, 1)
	require.ErrorIs(t, err, errors.ErrConversion)
}

func TestCallAsyncOnObject(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	obj, err := e.rt.NewObject(ctx, "caller")
	require.NoError(t, err)
	require.NoError(t, e.rt.Set(ctx, obj, "step", int64(5)))
	require.NoError(t, e.rt.Define(ctx, obj, "increment", nil, later(5*time.Millisecond, func(c *script.Call) (any, error) {
		n, err := c.Int(0)
		if err != nil {
			return nil, err
		}
		step, _ := c.Prop("step")
		return n + step.(int64), nil
	})))

	got, err := CallAsyncOnObject(ctx, e.b, obj, "increment", 95)
	require.NoError(t, err)
	assert.Equal(t, int32(100), got)

	_, err = CallAsyncOnObject(ctx, e.b, obj, "decrement", 1)
	require.ErrorIs(t, err, errors.ErrNotFound)
}

func clusterReceiver(t *testing.T, e *env, license script.Func) host.Handle {
	t.Helper()
	ctx := context.Background()

	obj, err := e.rt.NewObject(ctx, "receiver")
	require.NoError(t, err)
	require.NoError(t, e.rt.Define(ctx, obj, "fetchClusterInfo", nil, later(50*time.Millisecond, func(*script.Call) (any, error) {
		return map[string]any{
			"cluster_uuid": "5Kr0XhCbQ1e7",
			"cluster_name": "elasticsearch",
			"version": map[string]any{
				"number":         "8.11.0",
				"build_flavor":   "default",
				"build_snapshot": false,
				"lucene_version": "9.8.0",
			},
		}, nil
	})))
	require.NoError(t, e.rt.Define(ctx, obj, "fetchLicenseInfo", nil, license))
	return obj
}

func TestFetchClusterData(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	obj := clusterReceiver(t, e, later(50*time.Millisecond, func(*script.Call) (any, error) {
		return map[string]any{
			"status":               "active",
			"uid":                  "d3b0",
			"type":                 "trial",
			"issue_date_in_millis": float64(1700000000000),
			"max_nodes":            float64(1000),
		}, nil
	}))

	start := time.Now()
	data, err := FetchClusterData(ctx, e.b, obj)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 95*time.Millisecond, "calls should run concurrently")

	assert.Equal(t, "elasticsearch", data.ClusterInfo.ClusterName)
	require.NotNil(t, data.ClusterInfo.Version)
	assert.Equal(t, "8.11.0", data.ClusterInfo.Version.Number)
	require.NotNil(t, data.ClusterInfo.Version.BuildSnapshot)
	assert.False(t, *data.ClusterInfo.Version.BuildSnapshot)
	assert.Equal(t, "trial", data.LicenseInfo.Type)
	require.NotNil(t, data.LicenseInfo.IssueDateInMillis)
	assert.Equal(t, int64(1700000000000), *data.LicenseInfo.IssueDateInMillis)
	require.NotNil(t, data.LicenseInfo.MaxNodes)
	assert.Equal(t, uint32(1000), *data.LicenseInfo.MaxNodes)
	assert.Nil(t, data.LicenseInfo.ExpiryDate)
}

func TestFetchClusterData_LicenseRejected(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	obj := clusterReceiver(t, e, func(c *script.Call) (any, error) {
		return c.Runtime.Rejected(c.Name, map[string]any{"reason": "license expired"}), nil
	})

	_, err := FetchClusterData(ctx, e.b, obj)
	require.ErrorIs(t, err, errors.ErrAggregate)
	require.ErrorIs(t, err, errors.ErrRejection)

	idx, ok := errors.Index(err)
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	payload, ok := errors.Payload(err)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"reason": "license expired"}, payload)
}

func TestFetchClusterData_MissingMethod(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	obj, err := e.rt.NewObject(ctx, "receiver")
	require.NoError(t, err)

	_, err = FetchClusterData(ctx, e.b, obj)
	require.ErrorIs(t, err, errors.ErrNotFound)
}
