package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"toolhub/internal/domain"
)

const providerBListing = `{"tools": [
	{"name": "echo", "description": "Echoes text", "endpoint": "/api/tools/echo",
	 "parameters": {"text": ["str", "text to echo"]}},
	{"name": "sum", "description": "Adds numbers", "endpoint": "/api/tools/sum",
	 "parameters": {"values": ["list", "numbers to add"]}}
]}`

func newListingServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /tools", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	})
	mux.HandleFunc("POST /api/tools/echo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result": "hello"}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func providerConfig(name, baseURL string) domain.ProviderConfig {
	return domain.ProviderConfig{
		Name:    name,
		BaseURL: baseURL,
		Enabled: true,
		Endpoints: []domain.EndpointSpec{
			{Method: http.MethodGet, Path: "/tools"},
		},
	}
}

func TestToolService_UnreachableProviderIsIsolated(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	downURL := down.URL
	down.Close()
	up := newListingServer(t, providerBListing)

	cfg := domain.Config{
		Settings: domain.Settings{ResponseTimeoutSeconds: 2},
		Providers: []domain.ProviderConfig{
			providerConfig("A", downURL),
			providerConfig("B", up.URL),
		},
	}
	service, err := InitializeToolService(cfg, LoggingConfig{Logger: zap.NewNop()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = service.Close() })

	require.NoError(t, service.Initialize(context.Background()))
	assert.Equal(t, []string{"echo", "sum"}, service.ListTools())

	info, err := service.GetTool("echo")
	require.NoError(t, err)
	assert.Equal(t, "B", info.Provider)
	require.Len(t, info.Parameters, 1)
	assert.Equal(t, "text", info.Parameters[0].Name)

	result, err := service.Invoke(context.Background(), "echo", map[string]any{"text": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", result.Value)

	described := service.DescribeTools()
	require.Len(t, described, 2)
	assert.Equal(t, "echo", described[0].Name)
}

func TestToolService_EmptyCatalogIsNotFatal(t *testing.T) {
	up := newListingServer(t, `{"tools": []}`)
	cfg := domain.Config{Providers: []domain.ProviderConfig{providerConfig("B", up.URL)}}

	service, err := InitializeToolService(cfg, LoggingConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = service.Close() })

	require.NoError(t, service.Initialize(context.Background()))
	assert.Empty(t, service.ListTools())

	_, err = service.GetTool("calculator")
	assert.ErrorIs(t, err, domain.ErrToolNotFound)

	_, err = service.Refresh(context.Background())
	assert.ErrorIs(t, err, domain.ErrEmptyCatalog)
}

func TestToolService_RefreshRequiresInitialize(t *testing.T) {
	service, err := InitializeToolService(domain.Config{}, LoggingConfig{})
	require.NoError(t, err)

	_, err = service.Refresh(context.Background())
	code, ok := domain.CodeFrom(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeFailedPrecond, code)
}

func TestToolService_CloseIsIdempotent(t *testing.T) {
	up := newListingServer(t, providerBListing)
	cfg := domain.Config{Providers: []domain.ProviderConfig{providerConfig("B", up.URL)}}

	service, err := InitializeToolService(cfg, LoggingConfig{})
	require.NoError(t, err)
	require.NoError(t, service.Initialize(context.Background()))

	require.NoError(t, service.Close())
	require.NoError(t, service.Close())

	_, err = service.Invoke(context.Background(), "echo", map[string]any{"text": "x"})
	assert.ErrorIs(t, err, domain.ErrServiceClosed)
	_, err = service.TryRefresh(context.Background())
	assert.ErrorIs(t, err, domain.ErrServiceClosed)
	assert.ErrorIs(t, service.Initialize(context.Background()), domain.ErrServiceClosed)
}

func TestToolService_RecordsHistory(t *testing.T) {
	up := newListingServer(t, providerBListing)
	cfg := domain.Config{
		Settings: domain.Settings{
			History: domain.HistoryConfig{Path: filepath.Join(t.TempDir(), "history.db"), Keep: 5},
		},
		Providers: []domain.ProviderConfig{providerConfig("B", up.URL)},
	}

	service, err := InitializeToolService(cfg, LoggingConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = service.Close() })

	require.NoError(t, service.Initialize(context.Background()))
	_, err = service.Refresh(context.Background())
	require.NoError(t, err)

	entries, err := service.History(0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, uint64(2), entries[0].Generation)
	assert.Equal(t, []string{"echo", "sum"}, entries[0].Tools)
}

func TestToolService_CanceledInitialize(t *testing.T) {
	up := newListingServer(t, providerBListing)
	cfg := domain.Config{Providers: []domain.ProviderConfig{providerConfig("B", up.URL)}}

	service, err := InitializeToolService(cfg, LoggingConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = service.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = service.Initialize(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestApplication_RunStopsOnCancel(t *testing.T) {
	up := newListingServer(t, providerBListing)
	cfg := domain.Config{Providers: []domain.ProviderConfig{providerConfig("B", up.URL)}}

	ctx, cancel := context.WithCancel(context.Background())
	application, err := InitializeApplication(ctx, ServeConfig{ConfigPath: "toolhub.yaml"}, cfg, LoggingConfig{})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- application.Run() }()

	require.Eventually(t, func() bool {
		return len(application.Service().ListTools()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("application did not stop")
	}
}

func TestValidateConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toolhub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
toolServices:
  - name: calc
    enabled: true
    baseURL: http://localhost:8000
    endpoints:
      - {method: GET, path: /tools}
`), 0o600))

	cfg, err := ValidateConfig(context.Background(), path, nil)
	require.NoError(t, err)
	require.Len(t, cfg.Providers, 1)
	assert.Equal(t, "calc", cfg.Providers[0].Name)
}
