//go:build wireinject
// +build wireinject

package app

import (
	"context"

	"github.com/google/wire"

	"toolhub/internal/domain"
)

func InitializeToolService(cfg domain.Config, logging LoggingConfig) (*ToolService, error) {
	wire.Build(ServiceSet)
	return nil, nil
}

func InitializeApplication(ctx context.Context, serve ServeConfig, cfg domain.Config, logging LoggingConfig) (*Application, error) {
	wire.Build(AppSet)
	return nil, nil
}
