package executor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"toolhub/internal/domain"
	"toolhub/internal/infra/refresh"
	"toolhub/internal/infra/registry"
	"toolhub/internal/infra/transport"
)

type recordingMetrics struct {
	mu   sync.Mutex
	seen []domain.InvocationOutcome
}

func (m *recordingMetrics) ObserveRefresh(domain.RefreshResult, time.Duration) {}
func (m *recordingMetrics) SetRegisteredTools(int)                             {}
func (m *recordingMetrics) ObserveProviderError(string)                        {}
func (m *recordingMetrics) ObserveSchemaError(string)                          {}
func (m *recordingMetrics) ObserveCacheLookup(string, bool)                    {}

func (m *recordingMetrics) ObserveInvocation(_ string, outcome domain.InvocationOutcome, _ time.Duration) {
	m.mu.Lock()
	m.seen = append(m.seen, outcome)
	m.mu.Unlock()
}

func (m *recordingMetrics) outcomes() []domain.InvocationOutcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.InvocationOutcome(nil), m.seen...)
}

var _ domain.Metrics = (*recordingMetrics)(nil)

type fieldsOnly []string

func (f fieldsOnly) Validate(args map[string]any) (map[string]any, error) { return args, nil }

func (f fieldsOnly) Fields() []domain.ParameterSpec {
	out := make([]domain.ParameterSpec, 0, len(f))
	for _, name := range f {
		out = append(out, domain.ParameterSpec{Name: name, Type: domain.ParamString})
	}
	return out
}

func (f fieldsOnly) InputSchema() *jsonschema.Schema { return &jsonschema.Schema{Type: "object"} }

const slowListing = `{"tools": [{
	"name": "slow",
	"description": "Answers after a delay",
	"endpoint": "/api/tools/slow",
	"parameters": {"q": ["str", "query"]}
}, {
	"name": "slow_cached",
	"description": "Answers after a delay and caches by query",
	"endpoint": "/api/tools/slow",
	"parameters": {"q": ["str", "query"]},
	"cache_enabled": true,
	"cache_rules": ["q"]
}]}`

type slowProvider struct {
	server  *httptest.Server
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

// newSlowProvider serves tools whose calls block until release is closed or
// the request context ends.
func newSlowProvider(t *testing.T) *slowProvider {
	t.Helper()
	p := &slowProvider{
		entered: make(chan struct{}, 8),
		release: make(chan struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /tools", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(slowListing))
	})
	mux.HandleFunc("POST /api/tools/slow", func(w http.ResponseWriter, r *http.Request) {
		p.calls.Add(1)
		p.entered <- struct{}{}
		select {
		case <-p.release:
		case <-r.Context().Done():
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": "done"})
	})
	p.server = httptest.NewServer(mux)
	t.Cleanup(func() {
		p.unblock()
		p.server.Close()
	})
	return p
}

func (p *slowProvider) unblock() {
	p.once.Do(func() { close(p.release) })
}

func newSlowExecutor(t *testing.T, p *slowProvider, timeout time.Duration) *Executor {
	t.Helper()
	cfg := domain.ProviderConfig{
		Name:      "slow",
		BaseURL:   p.server.URL,
		Enabled:   true,
		Endpoints: []domain.EndpointSpec{{Method: http.MethodGet, Path: "/tools"}},
	}
	conns, err := transport.Open([]domain.ProviderConfig{cfg}, domain.Settings{}, transport.Options{Logger: zap.NewNop()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conns.Close() })

	reg := registry.New(registry.Options{})
	_, err = refresh.NewRefresher(refresh.Options{
		Providers:   []domain.ProviderConfig{cfg},
		Connections: conns,
		Registry:    reg,
	}).Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, reg.Len())

	return New(Options{Logger: zap.NewNop(), Tools: reg, ResponseTimeout: timeout})
}
