package app

import (
	"go.uber.org/fx"

	"github.com/hsiatein/helenium/internal/config"
	"github.com/hsiatein/helenium/internal/config/logger"
	"github.com/hsiatein/helenium/internal/kernel"
	"github.com/hsiatein/helenium/internal/services"
)

// newKernel wires the service registry into a Kernel, for fx.Provide.
func newKernel(cfg *config.Config, log logger.Logger) (*kernel.Kernel, error) {
	return kernel.New(cfg, services.Factories(cfg, log), log)
}

// Module provides the fx dependency injection options for the app package.
var Module = fx.Options(
	fx.Provide(newKernel),
	fx.Provide(NewApp),
	fx.Invoke(Register),
)
