package executor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"toolhub/internal/domain"
	"toolhub/internal/infra/localtools"
	"toolhub/internal/infra/refresh"
	"toolhub/internal/infra/registry"
	"toolhub/internal/infra/resultcache"
	"toolhub/internal/infra/telemetry"
	"toolhub/internal/infra/transport"
)

const calculatorListing = `{"tools": [{
	"name": "calculator",
	"description": "Performs basic arithmetic",
	"endpoint": "/api/tools/calculator",
	"parameters": {
		"first_number": ["int", "first operand"],
		"second_number": ["int", "second operand"],
		"operation": ["str", "add, subtract, multiply or divide"]
	},
	"cache_enabled": true,
	"cache_rules": {"operation": "multiply"}
}, {
	"name": "echo",
	"description": "Echoes its input",
	"endpoint": "/api/tools/echo",
	"parameters": {"text": ["str", "text to echo"]}
}]}`

type calcProvider struct {
	server      *httptest.Server
	discoveries atomic.Int32
	calls       atomic.Int32
	fail        atomic.Bool
	lastReqID   atomic.Value
}

func newCalcProvider(t *testing.T) *calcProvider {
	t.Helper()
	p := &calcProvider{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /tools", func(w http.ResponseWriter, _ *http.Request) {
		p.discoveries.Add(1)
		_, _ = w.Write([]byte(calculatorListing))
	})
	mux.HandleFunc("POST /api/tools/calculator", func(w http.ResponseWriter, r *http.Request) {
		p.calls.Add(1)
		p.lastReqID.Store(r.Header.Get(telemetry.RequestIDHeader))
		if p.fail.Load() {
			http.Error(w, "upstream down", http.StatusServiceUnavailable)
			return
		}
		var args struct {
			First     float64 `json:"first_number"`
			Second    float64 `json:"second_number"`
			Operation string  `json:"operation"`
		}
		if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		value, err := localtools.Calculate(args.Operation, args.First, args.Second)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": value})
	})
	mux.HandleFunc("POST /api/tools/echo", func(w http.ResponseWriter, r *http.Request) {
		p.calls.Add(1)
		var args map[string]any
		_ = json.NewDecoder(r.Body).Decode(&args)
		_ = json.NewEncoder(w).Encode(args)
	})
	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

type fixture struct {
	provider *calcProvider
	executor *Executor
	cache    *resultcache.Cache
	metrics  *recordingMetrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	p := newCalcProvider(t)
	cfg := domain.ProviderConfig{
		Name:    "calc",
		BaseURL: p.server.URL,
		Enabled: true,
		Endpoints: []domain.EndpointSpec{
			{Method: http.MethodGet, Path: "/tools"},
			{Method: http.MethodPost, Path: "/api/tools/calculator"},
		},
	}
	conns, err := transport.Open([]domain.ProviderConfig{cfg}, domain.Settings{}, transport.Options{Logger: zap.NewNop()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conns.Close() })

	reg := registry.New(registry.Options{})
	refresher := refresh.NewRefresher(refresh.Options{
		Providers:   []domain.ProviderConfig{cfg},
		Connections: conns,
		Registry:    reg,
	})
	_, err = refresher.Refresh(context.Background())
	require.NoError(t, err)

	cache := resultcache.New()
	metrics := &recordingMetrics{}
	return &fixture{
		provider: p,
		cache:    cache,
		metrics:  metrics,
		executor: New(Options{Logger: zap.NewNop(), Tools: reg, Cache: cache, Metrics: metrics}),
	}
}

func TestInvoke_CalculatorCachesOnOperation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.executor.Invoke(ctx, "calculator", map[string]any{"first_number": 3, "second_number": 4, "operation": "multiply"})
	require.NoError(t, err)
	assert.Equal(t, 12.0, first.Value)
	assert.False(t, first.Cached)
	assert.NotEmpty(t, first.RequestID)

	second, err := f.executor.Invoke(ctx, "calculator", map[string]any{"first_number": 99, "second_number": 1, "operation": "multiply"})
	require.NoError(t, err)
	assert.Equal(t, 12.0, second.Value)
	assert.True(t, second.Cached)
	assert.Equal(t, int32(1), f.provider.calls.Load())

	third, err := f.executor.Invoke(ctx, "calculator", map[string]any{"first_number": 99, "second_number": 1, "operation": "add"})
	require.NoError(t, err)
	assert.Equal(t, 100.0, third.Value)
	assert.False(t, third.Cached)
	assert.Equal(t, int32(2), f.provider.calls.Load())
	assert.Equal(t, 2, f.cache.Len())
}

func TestInvoke_UnknownToolMakesNoRequest(t *testing.T) {
	f := newFixture(t)
	discoveries := f.provider.discoveries.Load()

	_, err := f.executor.Invoke(context.Background(), "does-not-exist", map[string]any{})
	require.ErrorIs(t, err, domain.ErrToolNotFound)

	code, ok := domain.CodeFrom(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeNotFound, code)
	assert.Zero(t, f.provider.calls.Load())
	assert.Equal(t, discoveries, f.provider.discoveries.Load())
	assert.Equal(t, []domain.InvocationOutcome{domain.InvocationNotFound}, f.metrics.outcomes())
}

func TestInvoke_ValidationFailureMakesNoRequest(t *testing.T) {
	f := newFixture(t)

	_, err := f.executor.Invoke(context.Background(), "calculator", map[string]any{"first_number": 3, "operation": "multiply"})

	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, []string{"second_number"}, validationErr.Params())
	assert.Zero(t, f.provider.calls.Load())
	assert.Zero(t, f.cache.Len())
}

func TestInvoke_FailuresAreNotCached(t *testing.T) {
	f := newFixture(t)
	f.provider.fail.Store(true)
	args := map[string]any{"first_number": 3, "second_number": 4, "operation": "multiply"}

	_, err := f.executor.Invoke(context.Background(), "calculator", args)
	var invErr *domain.InvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, "calculator", invErr.Tool)
	assert.Equal(t, http.StatusServiceUnavailable, invErr.StatusCode)
	assert.Zero(t, f.cache.Len())

	f.provider.fail.Store(false)
	result, err := f.executor.Invoke(context.Background(), "calculator", args)
	require.NoError(t, err)
	assert.False(t, result.Cached)
	assert.Equal(t, int32(2), f.provider.calls.Load())
}

func TestInvoke_UncachedToolAlwaysCallsProvider(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 2; i++ {
		result, err := f.executor.Invoke(context.Background(), "echo", map[string]any{"text": "hi", "ignored": true})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"text": "hi"}, result.Value)
		assert.False(t, result.Cached)
	}
	assert.Equal(t, int32(2), f.provider.calls.Load())
}

func TestInvoke_ForwardsRequestID(t *testing.T) {
	f := newFixture(t)
	ctx := telemetry.WithRequestMeta(context.Background(), telemetry.RequestMeta{RequestID: "req-42"})

	result, err := f.executor.Invoke(ctx, "calculator", map[string]any{"first_number": 1, "second_number": 2, "operation": "add"})
	require.NoError(t, err)
	assert.Equal(t, "req-42", result.RequestID)
	assert.Equal(t, "req-42", f.provider.lastReqID.Load())
}

func TestCacheKeyParams_DefaultsToAllFields(t *testing.T) {
	tool := &domain.RegisteredTool{
		Name:     "t",
		Cache:    domain.CachePolicy{Enabled: true},
		Contract: fieldsOnly{"a", "b"},
	}
	assert.Equal(t, []string{"a", "b"}, cacheKeyParams(tool))

	tool.Cache.KeyBy = []string{"b"}
	assert.Equal(t, []string{"b"}, cacheKeyParams(tool))
}

func TestInvoke_TimeoutIsInvocationError(t *testing.T) {
	for _, name := range []string{"slow", "slow_cached"} {
		t.Run(name, func(t *testing.T) {
			p := newSlowProvider(t)
			exec := newSlowExecutor(t, p, 100*time.Millisecond)

			started := time.Now()
			_, err := exec.Invoke(context.Background(), name, map[string]any{"q": "x"})

			var invErr *domain.InvocationError
			require.ErrorAs(t, err, &invErr)
			assert.Equal(t, name, invErr.Tool)
			assert.Equal(t, "slow", invErr.Provider)
			assert.Less(t, time.Since(started), 2*time.Second)
			assert.Equal(t, int32(1), p.calls.Load())
		})
	}
}

func TestInvoke_SharedMissSurvivesCanceledCaller(t *testing.T) {
	p := newSlowProvider(t)
	exec := newSlowExecutor(t, p, 5*time.Second)
	args := map[string]any{"q": "x"}

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := exec.Invoke(firstCtx, "slow_cached", args)
		firstErr <- err
	}()
	select {
	case <-p.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("provider never received the call")
	}

	type outcome struct {
		result domain.InvocationResult
		err    error
	}
	second := make(chan outcome, 1)
	go func() {
		result, err := exec.Invoke(context.Background(), "slow_cached", args)
		second <- outcome{result: result, err: err}
	}()
	// Give the second caller time to join the in-flight call.
	time.Sleep(50 * time.Millisecond)

	cancel()
	select {
	case err := <-firstErr:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("canceled caller kept waiting")
	}

	p.unblock()
	select {
	case got := <-second:
		require.NoError(t, got.err)
		assert.Equal(t, "done", got.result.Value)
	case <-time.After(2 * time.Second):
		t.Fatal("second caller never returned")
	}
	assert.Equal(t, int32(1), p.calls.Load())

	cached, err := exec.Invoke(context.Background(), "slow_cached", args)
	require.NoError(t, err)
	assert.True(t, cached.Cached)
	assert.Equal(t, int32(1), p.calls.Load())
}
