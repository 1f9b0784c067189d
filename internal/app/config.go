package app

import (
	"context"

	"go.uber.org/zap"

	"toolhub/internal/domain"
	"toolhub/internal/infra/catalog"
)

// LoadConfig reads and validates the configuration at path.
func LoadConfig(ctx context.Context, path string, logger *zap.Logger) (domain.Config, error) {
	cfg, err := catalog.NewLoader(logger).Load(ctx, path)
	if err != nil {
		return domain.Config{}, err
	}
	return cfg, nil
}

// ValidateConfig loads the configuration at path and logs a summary.
func ValidateConfig(ctx context.Context, path string, logger *zap.Logger) (domain.Config, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg, err := LoadConfig(ctx, path, logger)
	if err != nil {
		return domain.Config{}, err
	}
	logger.Info("configuration validated",
		zap.String("config", path),
		zap.Int("providers", len(cfg.Providers)),
		zap.Int("enabled", len(domain.EnabledProviders(cfg.Providers))),
	)
	return cfg, nil
}
