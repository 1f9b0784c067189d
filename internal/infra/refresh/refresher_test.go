package refresh

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"toolhub/internal/domain"
	"toolhub/internal/infra/registry"
	"toolhub/internal/infra/telemetry"
	"toolhub/internal/infra/transport"
)

type fakeProvider struct {
	server *httptest.Server
	body   atomic.Value
	calls  atomic.Int32
}

func newFakeProvider(t *testing.T, body string) *fakeProvider {
	t.Helper()
	p := &fakeProvider{}
	p.body.Store(body)
	p.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tools" {
			p.calls.Add(1)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"result": "ok"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(p.body.Load().(string)))
	}))
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakeProvider) config(name string) domain.ProviderConfig {
	return domain.ProviderConfig{
		Name:    name,
		BaseURL: p.server.URL,
		Enabled: true,
		Endpoints: []domain.EndpointSpec{
			{Method: http.MethodGet, Path: "/tools"},
		},
	}
}

type recordingHistory struct {
	mu      sync.Mutex
	reports []domain.RefreshReport
}

func (h *recordingHistory) Record(_ context.Context, report domain.RefreshReport) error {
	h.mu.Lock()
	h.reports = append(h.reports, report)
	h.mu.Unlock()
	return nil
}

type harness struct {
	refresher *Refresher
	registry  *registry.Registry
	health    *telemetry.HealthTracker
	history   *recordingHistory
}

func newHarness(t *testing.T, settings domain.Settings, providers ...domain.ProviderConfig) *harness {
	t.Helper()
	conns, err := transport.Open(providers, settings, transport.Options{Logger: zap.NewNop()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conns.Close() })

	h := &harness{
		registry: registry.New(registry.Options{}),
		health:   telemetry.NewHealthTracker(),
		history:  &recordingHistory{},
	}
	h.refresher = NewRefresher(Options{
		Logger:      zap.NewNop(),
		Providers:   providers,
		Settings:    settings,
		Connections: conns,
		Registry:    h.registry,
		Health:      h.health,
		History:     h.history,
	})
	return h
}

func TestRefresh_LastProviderWins(t *testing.T) {
	a := newFakeProvider(t, `{"tools": [{"name": "search", "description": "from A", "endpoint": "/a"}]}`)
	b := newFakeProvider(t, `{"tools": [{"name": "search", "description": "from B", "endpoint": "/b"}, {"name": "fetch", "endpoint": "/f"}]}`)
	h := newHarness(t, domain.Settings{}, a.config("A"), b.config("B"))

	report, err := h.refresher.Refresh(context.Background())
	require.NoError(t, err)
	require.True(t, report.Applied)
	assert.Equal(t, []string{"fetch", "search"}, report.Tools)
	assert.Equal(t, []string{"search"}, report.Collisions)

	tool, err := h.registry.Get("search")
	require.NoError(t, err)
	assert.Equal(t, "B", tool.Provider)
	assert.Equal(t, "from B", tool.Description)

	assert.Equal(t, domain.RefreshIdle, h.refresher.State())
	assert.Equal(t, "ok", h.health.Report().Status)
	require.Len(t, h.history.reports, 1)
	assert.Equal(t, uint64(1), h.history.reports[0].Generation)
}

func TestRefresh_StrictModeLeavesRegistryUntouched(t *testing.T) {
	p := newFakeProvider(t, `{"tools": [{"name": "one", "endpoint": "/one"}, {"name": "two", "endpoint": "/two"}]}`)
	h := newHarness(t, domain.Settings{StrictRefresh: true}, p.config("p"))

	first, err := h.refresher.Refresh(context.Background())
	require.NoError(t, err)
	before := h.registry.Snapshot()

	p.body.Store(`{"tools": [
		{"name": "one", "endpoint": "/one-v2"},
		{"name": "three", "endpoint": "/three"},
		{"name": "broken", "endpoint": "/broken", "parameters": {"a": [1, 2, 3]}}
	]}`)

	report, err := h.refresher.Refresh(context.Background())
	require.ErrorIs(t, err, ErrStrictRefresh)
	require.False(t, report.Applied)
	require.Len(t, report.SchemaErrors, 1)

	after := h.registry.Snapshot()
	assert.Same(t, before, after)
	assert.Equal(t, first.ETag, after.ETag)
	assert.Equal(t, []string{"one", "two"}, h.registry.ListNames())
	tool, err := h.registry.Get("one")
	require.NoError(t, err)
	assert.Equal(t, "/one", tool.Endpoint)
	assert.Len(t, h.history.reports, 1)
}

func TestRefresh_LenientModeDropsBadRecords(t *testing.T) {
	p := newFakeProvider(t, `{"tools": [
		{"name": "good", "endpoint": "/good"},
		{"name": "bad", "endpoint": "/bad", "cache_enabled": true, "cache_rules": {"missing": 1}}
	]}`)
	h := newHarness(t, domain.Settings{}, p.config("p"))

	report, err := h.refresher.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"good"}, report.Tools)
	require.Len(t, report.SchemaErrors, 1)
	assert.Equal(t, "bad", report.SchemaErrors[0].Tool)
}

func TestRefresh_EmptyCatalogAborts(t *testing.T) {
	p := newFakeProvider(t, `{"tools": [{"name": "keep", "endpoint": "/keep"}]}`)
	h := newHarness(t, domain.Settings{}, p.config("p"))
	_, err := h.refresher.Refresh(context.Background())
	require.NoError(t, err)

	p.body.Store(`{"tools": []}`)
	report, err := h.refresher.Refresh(context.Background())
	require.ErrorIs(t, err, domain.ErrEmptyCatalog)
	require.False(t, report.Applied)
	assert.Equal(t, uint64(1), report.Generation)
	assert.Equal(t, []string{"keep"}, h.registry.ListNames())

	code, ok := domain.CodeFrom(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeFailedPrecond, code)
	assert.Equal(t, "ok", h.health.Report().Status)
	assert.Equal(t, 1, h.health.Report().ConsecutiveFail)
}

func TestRefresh_UnreachableProviderIsIsolated(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadCfg := domain.ProviderConfig{
		Name:      "A",
		BaseURL:   dead.URL,
		Enabled:   true,
		Endpoints: []domain.EndpointSpec{{Method: http.MethodGet, Path: "/tools"}},
	}
	dead.Close()
	b := newFakeProvider(t, `{"tools": [{"name": "t1", "endpoint": "/t1"}, {"name": "t2", "endpoint": "/t2"}]}`)
	h := newHarness(t, domain.Settings{}, deadCfg, b.config("B"))

	report, err := h.refresher.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, h.registry.ListNames())
	require.Len(t, report.ProviderErrors, 1)
	assert.Equal(t, "A", report.ProviderErrors[0].Provider)
}

func TestTryRefresh_RejectsWhileBusy(t *testing.T) {
	p := newFakeProvider(t, `{"tools": [{"name": "x", "endpoint": "/x"}]}`)
	h := newHarness(t, domain.Settings{}, p.config("p"))

	require.True(t, h.refresher.gate.TryAcquire())
	_, err := h.refresher.TryRefresh(context.Background())
	require.ErrorIs(t, err, domain.ErrRefreshInProgress)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = h.refresher.Refresh(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	h.refresher.gate.Release()
	_, err = h.refresher.TryRefresh(context.Background())
	require.NoError(t, err)
}

func TestRefresh_CanceledContextAborts(t *testing.T) {
	p := newFakeProvider(t, `{"tools": [{"name": "x", "endpoint": "/x"}]}`)
	h := newHarness(t, domain.Settings{}, p.config("p"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.refresher.Refresh(ctx)
	require.Error(t, err)
	assert.Zero(t, h.registry.Snapshot().Generation)
	assert.Equal(t, "degraded", h.health.Report().Status)
}

func TestRefresh_LocalHandlers(t *testing.T) {
	p := newFakeProvider(t, `{"tools": [
		{"name": "calc", "endpoint": "local:calculator", "parameters": {"first_number": ["int", ""], "second_number": ["int", ""], "operation": ["str", ""]}},
		{"name": "ghost", "endpoint": "local:ghost"}
	]}`)
	h := newHarness(t, domain.Settings{}, p.config("p"))

	report, err := h.refresher.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"calc"}, report.Tools)
	require.Len(t, report.SchemaErrors, 1)

	tool, err := h.registry.Get("calc")
	require.NoError(t, err)
	require.True(t, tool.Local)
	value, err := tool.Invoke(context.Background(), map[string]any{"operation": "multiply", "first_number": int64(3), "second_number": int64(4)})
	require.NoError(t, err)
	assert.Equal(t, int64(12), value)
	assert.Zero(t, p.calls.Load())
}

func TestBuilder_RemoteInvoke(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		w.WriteHeader(int(status.Load()))
		_, _ = w.Write([]byte(`{"result": 12}`))
	}))
	t.Cleanup(server.Close)

	cfg := domain.ProviderConfig{
		Name:    "calc",
		BaseURL: server.URL,
		Enabled: true,
		Endpoints: []domain.EndpointSpec{
			{Method: http.MethodGet, Path: "/tools"},
			{Method: http.MethodPut, Path: "/api/tools/calculator"},
		},
	}
	conns, err := transport.Open([]domain.ProviderConfig{cfg}, domain.Settings{}, transport.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conns.Close() })

	tool, err := NewBuilder(conns, nil).Build(domain.ToolDescriptor{
		Provider: "calc",
		Name:     "calculator",
		Endpoint: "/api/tools/calculator",
	})
	require.NoError(t, err)

	value, err := tool.Invoke(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, 12.0, value)

	status.Store(http.StatusInternalServerError)
	_, err = tool.Invoke(context.Background(), map[string]any{})
	var invErr *domain.InvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, http.StatusInternalServerError, invErr.StatusCode)
	assert.Equal(t, "calculator", invErr.Tool)
}

func TestDecodeResult(t *testing.T) {
	value, err := decodeResult([]byte(`{"result": {"a": 1}}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1.0}, value)

	value, err = decodeResult([]byte(`{"result": 1, "unit": "cm"}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"result": 1.0, "unit": "cm"}, value)

	value, err = decodeResult(nil)
	require.NoError(t, err)
	assert.Nil(t, value)

	_, err = decodeResult([]byte(`not json`))
	require.Error(t, err)
}

func TestGate_SerializesAcquire(t *testing.T) {
	gate := NewGate()
	ctx := context.Background()

	require.NoError(t, gate.Acquire(ctx))
	require.False(t, gate.TryAcquire())

	done := make(chan error, 1)
	go func() { done <- gate.Acquire(ctx) }()

	select {
	case err := <-done:
		t.Fatalf("unexpected acquire: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	gate.Release()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("acquire timeout")
	}
}
