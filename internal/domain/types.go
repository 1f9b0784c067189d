package domain

import (
	"net/http"
	"strings"
	"time"
)

// EndpointSpec is one method + path pair declared by a provider.
type EndpointSpec struct {
	Method string `json:"method" yaml:"method" toml:"method"`
	Path   string `json:"path" yaml:"path" toml:"path"`
}

// IsDiscovery reports whether the endpoint lists the provider's tools.
func (e EndpointSpec) IsDiscovery() bool {
	return strings.EqualFold(e.Method, http.MethodGet) && strings.Contains(e.Path, "/tools")
}

// ProviderConfig describes one remote tool provider. It is immutable after load.
type ProviderConfig struct {
	Name               string         `json:"name" yaml:"name" toml:"name"`
	BaseURL            string         `json:"baseURL" yaml:"baseURL" toml:"baseURL"`
	Enabled            bool           `json:"enabled" yaml:"enabled" toml:"enabled"`
	Endpoints          []EndpointSpec `json:"endpoints" yaml:"endpoints" toml:"endpoints"`
	RateLimitPerSecond float64        `json:"rateLimitPerSecond,omitempty" yaml:"rateLimitPerSecond,omitempty" toml:"rateLimitPerSecond,omitempty"`
}

// DiscoveryEndpoints returns the endpoints used to list the provider's tools.
func (p ProviderConfig) DiscoveryEndpoints() []EndpointSpec {
	out := make([]EndpointSpec, 0, 1)
	for _, endpoint := range p.Endpoints {
		if endpoint.IsDiscovery() {
			out = append(out, endpoint)
		}
	}
	return out
}

// MethodFor returns the declared non-discovery method for path, or POST.
func (p ProviderConfig) MethodFor(path string) string {
	for _, endpoint := range p.Endpoints {
		if endpoint.Path != path || endpoint.IsDiscovery() {
			continue
		}
		if method := strings.ToUpper(strings.TrimSpace(endpoint.Method)); method != "" {
			return method
		}
	}
	return http.MethodPost
}

// EnabledProviders filters out disabled providers, preserving declaration order.
func EnabledProviders(providers []ProviderConfig) []ProviderConfig {
	out := make([]ProviderConfig, 0, len(providers))
	for _, provider := range providers {
		if provider.Enabled {
			out = append(out, provider)
		}
	}
	return out
}

type Settings struct {
	ResponseTimeoutSeconds int                 `json:"responseTimeoutSeconds" yaml:"responseTimeoutSeconds" toml:"responseTimeoutSeconds"`
	RefreshTimeoutSeconds  int                 `json:"refreshTimeoutSeconds" yaml:"refreshTimeoutSeconds" toml:"refreshTimeoutSeconds"`
	RefreshConcurrency     int                 `json:"refreshConcurrency" yaml:"refreshConcurrency" toml:"refreshConcurrency"`
	RefreshSchedule        string              `json:"refreshSchedule" yaml:"refreshSchedule" toml:"refreshSchedule"`
	StrictRefresh          bool                `json:"strictRefresh" yaml:"strictRefresh" toml:"strictRefresh"`
	Observability          ObservabilityConfig `json:"observability" yaml:"observability" toml:"observability"`
	History                HistoryConfig       `json:"history" yaml:"history" toml:"history"`
}

// ResponseTimeout bounds every provider request.
func (s Settings) ResponseTimeout() time.Duration {
	if s.ResponseTimeoutSeconds <= 0 {
		return time.Duration(DefaultResponseTimeoutSeconds) * time.Second
	}
	return time.Duration(s.ResponseTimeoutSeconds) * time.Second
}

// RefreshTimeout bounds a whole refresh cycle.
func (s Settings) RefreshTimeout() time.Duration {
	if s.RefreshTimeoutSeconds <= 0 {
		return time.Duration(DefaultRefreshTimeoutSeconds) * time.Second
	}
	return time.Duration(s.RefreshTimeoutSeconds) * time.Second
}

type ObservabilityConfig struct {
	Enabled       bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
	ListenAddress string `json:"listenAddress" yaml:"listenAddress" toml:"listenAddress"`
}

type HistoryConfig struct {
	Path string `json:"path" yaml:"path" toml:"path"`
	Keep int    `json:"keep" yaml:"keep" toml:"keep"`
}

// Config is the explicit configuration object built once at startup.
type Config struct {
	Settings  Settings         `json:"settings" yaml:"settings" toml:"settings"`
	Providers []ProviderConfig `json:"toolServices" yaml:"toolServices" toml:"toolServices"`
}
