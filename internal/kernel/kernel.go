// Package kernel implements the Kernel: the process that owns the Bus,
// boots KernelService synchronously, and drives the three-stage
// shutdown every admin command funnels through. Grounded on
// heleny-kernel/src/kernel.rs.
package kernel

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/hsiatein/helenium/internal/bus"
	"github.com/hsiatein/helenium/internal/config"
	"github.com/hsiatein/helenium/internal/config/logger"
	"github.com/hsiatein/helenium/internal/kernelsvc"
	"github.com/hsiatein/helenium/internal/proto"
	"github.com/hsiatein/helenium/internal/runtime"
)

// ShutdownStage mirrors heleny-kernel's ShutdownStage enum: admin
// shutdown always passes through these in order, never skipping a
// stage even when triggered by a signal rather than an AdminCommand.
type ShutdownStage int

const (
	StageStart ShutdownStage = iota
	StageStopAllService
	StageStopKernel
)

// Kernel owns the Bus and the registered KernelService. AdminServiceNames
// (proto.AdminServiceNames = ["KernelService", "UserService"]) are the
// only two endpoints the kernel itself is allowed to message directly;
// everything else goes through the bus like any other participant.
type Kernel struct {
	Bus      bus.Bus
	handle   *bus.Handle
	ksHandle *bus.Handle
	ks       *kernelsvc.KernelService
	log      logger.Logger
	cfg      *config.Config
}

// New wires the Bus, registers the kernel's own endpoint under
// proto.KernelName, and synchronously constructs KernelService — Go
// has no need for heleny-kernel's InitParams workaround since
// KernelService's dependent fields are just constructor arguments
// here, not separately-owned state shared in before the struct exists.
func New(cfg *config.Config, factories []runtime.Factory, log logger.Logger) (*Kernel, error) {
	b := bus.New(cfg, log)

	kh, err := b.Register(proto.KernelName, proto.RoleSystem)
	if err != nil {
		return nil, err
	}

	ksh, err := b.Register(proto.KernelService, proto.RoleSystem)
	if err != nil {
		return nil, err
	}

	ks, err := kernelsvc.New(factories, b, ksh, log, cfg.Kernel.ShutdownBudget)
	if err != nil {
		return nil, err
	}

	ks.SetOnCrash(func(name string, recovered any) {
		if log != nil {
			log.Error().Str("service", name).Msgf("panic: %v", recovered)
		}
		sentry.CaptureMessage("service panic: " + name)
	})

	return &Kernel{Bus: b, handle: kh, ksHandle: ksh, ks: ks, log: log, cfg: cfg}, nil
}

// Run launches KernelService's own actor loop and starts every
// registered factory in dependency order, blocking until ctx is
// canceled, at which point it drives the three-stage shutdown.
func (k *Kernel) Run(ctx context.Context) error {
	ksCtx, ksCancel := context.WithCancel(context.Background())
	defer ksCancel()

	ksDone := make(chan error, 1)
	go func() {
		ksDone <- runtime.Run(ksCtx, proto.KernelService, k.ksHandle, k.ks, runtime.Options{Log: k.log})
	}()

	k.ks.LaunchAll(ctx)

	<-ctx.Done()

	k.shutdown()

	ksCancel()
	<-ksDone

	return nil
}

// shutdown drives the three stages in order: Start (recorded only for
// symmetry with heleny-kernel's stage enum), StopAllService (asks
// KernelService to stop every dependent-ordered service and waits up
// to the configured budget), StopKernel (tears down the bus itself).
func (k *Kernel) shutdown() {
	_ = StageStart

	reply := make(chan struct{})
	_ = bus.Tell(k.Bus, k.handle, proto.KernelService, kernelsvc.StopAllRequest{Reply: reply}, true)

	select {
	case <-reply:
	case <-time.After(k.cfg.Kernel.ShutdownBudget + time.Second):
	}

	_ = StageStopKernel
	k.Bus.Close()
}
