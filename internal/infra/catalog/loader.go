package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"toolhub/internal/domain"
)

type Loader struct {
	logger *zap.Logger
}

func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		return &Loader{logger: zap.NewNop()}
	}
	return &Loader{logger: logger.Named("catalog")}
}

func newConfigViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("settings.responseTimeoutSeconds", domain.DefaultResponseTimeoutSeconds)
	v.SetDefault("settings.refreshTimeoutSeconds", domain.DefaultRefreshTimeoutSeconds)
	v.SetDefault("settings.refreshConcurrency", domain.DefaultRefreshConcurrency)
	v.SetDefault("settings.refreshSchedule", "")
	v.SetDefault("settings.strictRefresh", false)
	v.SetDefault("settings.observability.enabled", false)
	v.SetDefault("settings.observability.listenAddress", domain.DefaultObservabilityListenAddress)
	v.SetDefault("settings.history.path", "")
	v.SetDefault("settings.history.keep", domain.DefaultHistoryKeep)
}

type rawConfig struct {
	Settings     rawSettings      `mapstructure:"settings"`
	ToolServices []rawToolService `mapstructure:"toolServices"`
}

type rawSettings struct {
	ResponseTimeoutSeconds int                    `mapstructure:"responseTimeoutSeconds"`
	RefreshTimeoutSeconds  int                    `mapstructure:"refreshTimeoutSeconds"`
	RefreshConcurrency     int                    `mapstructure:"refreshConcurrency"`
	RefreshSchedule        string                 `mapstructure:"refreshSchedule"`
	StrictRefresh          bool                   `mapstructure:"strictRefresh"`
	Observability          rawObservabilityConfig `mapstructure:"observability"`
	History                rawHistoryConfig       `mapstructure:"history"`
}

type rawObservabilityConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	ListenAddress string `mapstructure:"listenAddress"`
}

type rawHistoryConfig struct {
	Path string `mapstructure:"path"`
	Keep int    `mapstructure:"keep"`
}

type rawToolService struct {
	Name               string        `mapstructure:"name"`
	Enabled            *bool         `mapstructure:"enabled"`
	BaseURL            string        `mapstructure:"baseURL"`
	RateLimitPerSecond float64       `mapstructure:"rateLimitPerSecond"`
	Endpoints          []rawEndpoint `mapstructure:"endpoints"`
}

type rawEndpoint struct {
	Method string `mapstructure:"method"`
	Path   string `mapstructure:"path"`
}

// Load reads, expands and validates the configuration file at path.
func (l *Loader) Load(ctx context.Context, path string) (domain.Config, error) {
	if path == "" {
		return domain.Config{}, &domain.ConfigError{Problems: []string{"config path is required"}}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := l.Parse(ctx, data)
	if err != nil {
		return domain.Config{}, err
	}
	l.logger.Info("configuration loaded",
		zap.String("path", path),
		zap.Int("providers", len(cfg.Providers)),
		zap.Int("enabled", len(domain.EnabledProviders(cfg.Providers))),
	)
	return cfg, nil
}

// Parse decodes YAML configuration content. All validation problems are
// reported together in a single ConfigError.
func (l *Loader) Parse(ctx context.Context, data []byte) (domain.Config, error) {
	expanded, missing, err := expandConfigEnv(data)
	if err != nil {
		return domain.Config{}, &domain.ConfigError{Problems: []string{err.Error()}}
	}
	if len(missing) > 0 {
		l.logger.Warn("missing environment variables in config", zap.Strings("missing", missing))
	}

	v := newConfigViper()
	if err := v.ReadConfig(bytes.NewBufferString(expanded)); err != nil {
		return domain.Config{}, &domain.ConfigError{Problems: []string{fmt.Sprintf("parse config: %v", err)}}
	}

	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return domain.Config{}, &domain.ConfigError{Problems: []string{fmt.Sprintf("decode config: %v", err)}}
	}

	if err := ctx.Err(); err != nil {
		return domain.Config{}, err
	}

	settings, problems := normalizeSettings(raw.Settings)
	providers := make([]domain.ProviderConfig, 0, len(raw.ToolServices))
	nameSeen := make(map[string]struct{}, len(raw.ToolServices))

	for i, svc := range raw.ToolServices {
		provider := normalizeToolService(svc)
		if _, exists := nameSeen[provider.Name]; exists {
			problems = append(problems, fmt.Sprintf("toolServices[%d]: duplicate name %q", i, provider.Name))
		} else if provider.Name != "" {
			nameSeen[provider.Name] = struct{}{}
		}
		if svc.Enabled == nil {
			l.logger.Warn("tool service has no enabled flag; treating as disabled",
				zap.String("provider", provider.Name),
				zap.Int("index", i),
			)
		}
		if errs := validateProvider(provider, i); len(errs) > 0 {
			problems = append(problems, errs...)
			continue
		}
		if provider.Enabled && len(provider.DiscoveryEndpoints()) == 0 {
			l.logger.Warn("enabled tool service declares no discovery endpoint",
				zap.String("provider", provider.Name),
			)
		}
		providers = append(providers, provider)
	}

	if len(problems) > 0 {
		return domain.Config{}, &domain.ConfigError{Problems: problems}
	}
	if len(domain.EnabledProviders(providers)) == 0 {
		l.logger.Warn("no enabled tool services configured")
	}

	return domain.Config{Settings: settings, Providers: providers}, nil
}

func normalizeSettings(raw rawSettings) (domain.Settings, []string) {
	var problems []string
	settings := domain.Settings{
		ResponseTimeoutSeconds: raw.ResponseTimeoutSeconds,
		RefreshTimeoutSeconds:  raw.RefreshTimeoutSeconds,
		RefreshConcurrency:     raw.RefreshConcurrency,
		RefreshSchedule:        strings.TrimSpace(raw.RefreshSchedule),
		StrictRefresh:          raw.StrictRefresh,
		Observability: domain.ObservabilityConfig{
			Enabled:       raw.Observability.Enabled,
			ListenAddress: strings.TrimSpace(raw.Observability.ListenAddress),
		},
		History: domain.HistoryConfig{
			Path: strings.TrimSpace(raw.History.Path),
			Keep: raw.History.Keep,
		},
	}

	if settings.ResponseTimeoutSeconds <= 0 {
		problems = append(problems, "settings.responseTimeoutSeconds must be > 0")
	}
	if settings.RefreshTimeoutSeconds <= 0 {
		problems = append(problems, "settings.refreshTimeoutSeconds must be > 0")
	}
	if settings.RefreshConcurrency <= 0 {
		problems = append(problems, "settings.refreshConcurrency must be > 0")
	}
	if settings.RefreshSchedule != "" {
		if _, err := cron.ParseStandard(settings.RefreshSchedule); err != nil {
			problems = append(problems, fmt.Sprintf("settings.refreshSchedule: %v", err))
		}
	}
	if settings.Observability.Enabled && settings.Observability.ListenAddress == "" {
		problems = append(problems, "settings.observability.listenAddress is required when observability is enabled")
	}
	if settings.History.Path != "" && settings.History.Keep <= 0 {
		problems = append(problems, "settings.history.keep must be > 0 when history.path is set")
	}
	return settings, problems
}

func normalizeToolService(raw rawToolService) domain.ProviderConfig {
	provider := domain.ProviderConfig{
		Name:               strings.TrimSpace(raw.Name),
		BaseURL:            strings.TrimRight(strings.TrimSpace(raw.BaseURL), "/"),
		Enabled:            raw.Enabled != nil && *raw.Enabled,
		RateLimitPerSecond: raw.RateLimitPerSecond,
		Endpoints:          make([]domain.EndpointSpec, 0, len(raw.Endpoints)),
	}
	for _, endpoint := range raw.Endpoints {
		provider.Endpoints = append(provider.Endpoints, domain.EndpointSpec{
			Method: strings.ToUpper(strings.TrimSpace(endpoint.Method)),
			Path:   strings.TrimSpace(endpoint.Path),
		})
	}
	return provider
}

var allowedMethods = map[string]struct{}{
	http.MethodGet:    {},
	http.MethodPost:   {},
	http.MethodPut:    {},
	http.MethodPatch:  {},
	http.MethodDelete: {},
}

func validateProvider(provider domain.ProviderConfig, index int) []string {
	var errs []string
	prefix := fmt.Sprintf("toolServices[%d]", index)

	if provider.Name == "" {
		errs = append(errs, prefix+": name is required")
	}
	if provider.BaseURL == "" {
		errs = append(errs, prefix+": baseURL is required")
	} else if err := validateBaseURL(provider.BaseURL); err != nil {
		errs = append(errs, fmt.Sprintf("%s: baseURL %v", prefix, err))
	}
	if provider.RateLimitPerSecond < 0 {
		errs = append(errs, prefix+": rateLimitPerSecond must be >= 0")
	}
	for j, endpoint := range provider.Endpoints {
		if _, ok := allowedMethods[endpoint.Method]; !ok {
			errs = append(errs, fmt.Sprintf("%s.endpoints[%d]: unsupported method %q", prefix, j, endpoint.Method))
		}
		if !strings.HasPrefix(endpoint.Path, "/") {
			errs = append(errs, fmt.Sprintf("%s.endpoints[%d]: path must start with /", prefix, j))
		}
	}
	return errs
}

func validateBaseURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("is invalid: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("must use http or https")
	}
	if parsed.Host == "" {
		return errors.New("must include a host")
	}
	return nil
}
