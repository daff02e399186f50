// Package runtime supplies the one actor loop every Helenium service
// shares, replacing what heleny-service's #[base_service] proc-macro
// generated in the original: a factory builds the Handler, Run drives
// its mailbox, ticks and lifecycle. Grounded on tab-fuku's
// internal/app/runtime event/command bus idiom (buffered per-
// subscriber channels, non-blocking publish with a blocking escalation
// path for critical traffic) generalized from "broadcast to N
// subscribers" to "drive one Handler's select loop".
package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/hsiatein/helenium/internal/bus"
	"github.com/hsiatein/helenium/internal/config/logger"
	"github.com/hsiatein/helenium/internal/errors"
	"github.com/hsiatein/helenium/internal/proto"
)

// Handler is what every auxiliary service implements. It mirrors
// heleny-service's Service trait: a typed-message handler, a tick
// handler, a resource-push handler, and a stop hook. The common
// control messages (Stop, Resource) are tried by Run only after
// HandleMessage reports it didn't recognize the payload, mirroring the
// trait's own handle() -> handle_common_message() fallback chain.
type Handler interface {
	// HandleMessage processes env.Payload if it recognizes the
	// concrete type, returning handled=false to let Run try the common
	// control messages instead.
	HandleMessage(ctx context.Context, env proto.SignedEnvelope) (handled bool, err error)
	// HandleTick fires on every tick of the runtime's ticker.
	HandleTick(ctx context.Context) error
	// HandleResource is called when a subscribed Hub resource changes.
	HandleResource(ctx context.Context, res proto.Resource) error
	// Stop releases the handler's resources. Called once, either on
	// StopCommand or on context cancellation.
	Stop(ctx context.Context) error
}

// Factory constructs a Handler once its dependencies are healthy. The
// kernel service calls this after registering the service's mailbox,
// mirroring heleny-service's ServiceFactory/inventory::collect!
// registry, replaced here by an explicit slice built at startup (see
// SPEC_FULL.md §9.1 — Go has no macro-driven global registry).
type Factory struct {
	Name string
	Deps []string
	Role proto.Role
	New  func(ctx context.Context, h *bus.Handle, b bus.Bus) (Handler, error)
}

// Options configures Run.
type Options struct {
	Tick    time.Duration
	Log     logger.Logger
	OnPanic func(name string, recovered any)
}

// Run drives handler's actor loop until ctx is canceled, a StopCommand
// arrives, or HandleMessage/HandleTick/HandleResource returns an error.
// A panic inside any handler callback is recovered, reported through
// opts.OnPanic (the kernel service wires this to a Sentry capture plus
// a synthetic ServiceSignal.Terminate, per the crash-handling
// addendum), and turned into an error return so the caller's status
// bookkeeping sees the service as failed rather than silently gone.
func Run(ctx context.Context, name string, h *bus.Handle, handler Handler, opts Options) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if opts.OnPanic != nil {
				opts.OnPanic(name, r)
			}
			err = fmt.Errorf("%w: %s panicked: %v", errors.ErrLifecycle, name, r)
		}
	}()

	var tickCh <-chan time.Time
	if opts.Tick > 0 {
		ticker := time.NewTicker(opts.Tick)
		defer ticker.Stop()
		tickCh = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return handler.Stop(context.Background())

		case env, ok := <-h.Recv():
			if !ok {
				return nil
			}

			handled, herr := handler.HandleMessage(ctx, env)
			if herr != nil {
				return herr
			}
			if handled {
				continue
			}

			if err := dispatchCommon(ctx, handler, env); err != nil {
				if err == errStop {
					return handler.Stop(ctx)
				}
				return err
			}

		case t := <-tickCh:
			_ = t
			if err := handler.HandleTick(ctx); err != nil {
				return err
			}
		}
	}
}

var errStop = errors.New("stop requested")

func dispatchCommon(ctx context.Context, handler Handler, env proto.SignedEnvelope) error {
	switch p := env.Payload.(type) {
	case proto.StopCommand:
		if env.Role != proto.RoleSystem {
			return nil
		}
		return errStop
	case proto.ResourceCommand:
		return handler.HandleResource(ctx, p.Resource)
	default:
		return nil
	}
}
