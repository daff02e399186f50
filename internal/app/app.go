package app

import (
	"context"

	"go.uber.org/fx"

	"github.com/hsiatein/helenium/internal/config/logger"
	"github.com/hsiatein/helenium/internal/kernel"
)

// App wraps the Kernel with the goroutine/cancel bookkeeping an fx
// OnStart/OnStop hook pair needs: Kernel.Run blocks until its context
// is canceled, so OnStart launches it in its own goroutine and OnStop
// cancels and waits, the same Start/Close pairing tab-fuku's own
// Register gave its log writer.
type App struct {
	k      *kernel.Kernel
	log    logger.Logger
	cancel context.CancelFunc
	done   chan error
}

// NewApp wraps an already-constructed Kernel.
func NewApp(k *kernel.Kernel, log logger.Logger) *App {
	return &App{k: k, log: log}
}

// Register registers the Kernel's lifecycle with fx: OnStart launches
// Kernel.Run, which drives the dependency-ordered launch of every
// registered service; OnStop cancels it and waits for the three-stage
// shutdown to finish.
func Register(lifecycle fx.Lifecycle, app *App) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			runCtx, cancel := context.WithCancel(context.Background())
			app.cancel = cancel
			app.done = make(chan error, 1)

			go func() {
				app.done <- app.k.Run(runCtx)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if app.cancel == nil {
				return nil
			}
			app.cancel()

			select {
			case err := <-app.done:
				if err != nil && app.log != nil {
					app.log.Error().Err(err).Msg("kernel run returned an error")
				}
			case <-ctx.Done():
			}
			return nil
		},
	})
}
