package kernelsvc

import (
	"context"
	"sync"
	"time"

	gofsm "github.com/looplab/fsm"

	"github.com/hsiatein/helenium/internal/bus"
	"github.com/hsiatein/helenium/internal/config/logger"
	"github.com/hsiatein/helenium/internal/hub"
	"github.com/hsiatein/helenium/internal/proto"
	"github.com/hsiatein/helenium/internal/runtime"
)

// Signal is the Go rendering of heleny-kernel's ServiceSignal enum: the
// four things a launched service reports about itself to KernelService.
type Signal int

const (
	SignalReady Signal = iota
	SignalAlive
	SignalInitFail
	SignalTerminate
)

// StatusUpload is what a running service's supervising goroutine sends
// to KernelService's mailbox on every lifecycle transition.
type StatusUpload struct {
	Name   string
	Signal Signal
	Err    error
}

// WaitForRequest blocks the caller until Name becomes Healthy, or
// replies immediately if it already is.
type WaitForRequest struct {
	Name  string
	Reply chan struct{}
}

// GetHealthRequest asks for a snapshot of the whole kernel health map.
type GetHealthRequest struct {
	Reply chan proto.KernelHealth
}

// StopAllRequest starts the dependents-first shutdown sequence and
// replies once every service has reported Stopped (or the shutdown
// budget elapses).
type StopAllRequest struct {
	Reply chan struct{}
}

// KernelService owns the dependency-DAG lifecycle engine: it launches
// every registered Factory in dependency order, tracks each one's
// health, and stops them in reverse order. Grounded on
// heleny-kernel/src/service.rs's KernelService struct and its
// companion cal_deps.rs/handle_status.rs algorithms.
//
// Go's lack of Rust's ownership-driven InitParams dance (heleny-kernel
// sent a mutex-guarded health map and handle map into KernelService::new
// before the struct finished constructing, to break a cyclic-ownership
// problem) is not needed here: KernelService is just a struct built
// before its Run loop starts, so the fields it needs are simply
// constructor arguments.
type KernelService struct {
	mu        sync.Mutex
	bus       bus.Bus
	handle    *bus.Handle
	graph     *depGraph
	factories map[string]runtime.Factory
	health    proto.KernelHealth
	fsms      map[string]*gofsm.FSM
	cancels   map[string]context.CancelFunc
	waiters   map[string][]chan struct{}
	pending   map[string]bool // unlocked by readiness cache but not yet spawned
	initCache *readinessCache
	stopCache *readinessCache
	stopping  bool
	stopReply []chan struct{}
	log       logger.Logger
	onCrash   func(name string, recovered any)
	shutdownBudget time.Duration
}

// New builds the engine and validates the dependency graph, but does
// not launch anything; call LaunchAll for that.
func New(factories []runtime.Factory, b bus.Bus, h *bus.Handle, log logger.Logger, shutdownBudget time.Duration) (*KernelService, error) {
	graph, err := buildDepGraph(factories)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]runtime.Factory, len(factories))
	fsms := make(map[string]*gofsm.FSM, len(factories))
	for _, f := range factories {
		byName[f.Name] = f
		fsms[f.Name] = newServiceFSM()
	}

	return &KernelService{
		bus:            b,
		handle:         h,
		graph:          graph,
		factories:      byName,
		health:         proto.NewKernelHealth(graph.names),
		fsms:           fsms,
		cancels:        make(map[string]context.CancelFunc, len(factories)),
		waiters:        make(map[string][]chan struct{}),
		pending:        make(map[string]bool),
		log:            log,
		shutdownBudget: shutdownBudget,
	}, nil
}

// SetOnCrash installs the panic handler every launched service's
// runtime.Run call receives: report to Sentry (wired by the kernel,
// not this package) and upload a synthetic Terminate signal.
func (k *KernelService) SetOnCrash(f func(name string, recovered any)) {
	k.onCrash = f
}

// LaunchAll starts the first readiness wave (services with no
// dependencies) and returns immediately; subsequent waves are launched
// as StatusUpload{Ready} messages arrive, handled by HandleMessage.
func (k *KernelService) LaunchAll(ctx context.Context) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.initCache = newReadinessCache(k.graph.deps, k.graph.names)
	for _, name := range k.initCache.prepare() {
		k.spawnLocked(ctx, name)
	}
}

// spawnLocked launches name's factory in its own goroutine after the
// secondary direct-deps-ready check: even though the readiness cache
// only unlocks a name once every direct dependency reported Ready, a
// dependency can have gone Unhealthy in the interim, so every direct
// dep is re-checked against the live health map right before spawning.
func (k *KernelService) spawnLocked(ctx context.Context, name string) {
	for _, dep := range k.graph.deps[name] {
		st, ok := k.health.Services[dep]
		if !ok || st.Status != proto.Healthy {
			k.pending[name] = true
			return
		}
	}
	delete(k.pending, name)

	factory, ok := k.factories[name]
	if !ok {
		return
	}

	svcCtx, cancel := context.WithCancel(ctx)
	k.cancels[name] = cancel

	h, err := k.bus.Register(name, factory.Role)
	if err != nil {
		k.uploadLocked(StatusUpload{Name: name, Signal: SignalInitFail, Err: err})
		return
	}

	go func() {
		handler, err := factory.New(svcCtx, h, k.bus)
		if err != nil {
			k.upload(StatusUpload{Name: name, Signal: SignalInitFail, Err: err})
			return
		}

		k.upload(StatusUpload{Name: name, Signal: SignalReady})

		runErr := runtime.Run(svcCtx, name, h, handler, runtime.Options{
			Tick: time.Second,
			Log:  k.log,
			OnPanic: func(n string, r any) {
				if k.onCrash != nil {
					k.onCrash(n, r)
				}
			},
		})

		if runErr != nil {
			k.upload(StatusUpload{Name: name, Signal: SignalTerminate, Err: runErr})
		} else {
			k.upload(StatusUpload{Name: name, Signal: SignalTerminate})
		}
	}()
}

func (k *KernelService) upload(u StatusUpload) {
	_ = bus.Tell(k.bus, k.handle, k.handle.Name, u, true)
}

func (k *KernelService) uploadLocked(u StatusUpload) {
	// Same as upload but called while k.mu is already held; Tell itself
	// does not touch k.mu so this is just documentation of the caller's
	// obligation.
	k.upload(u)
}

// HandleMessage implements runtime.Handler.
func (k *KernelService) HandleMessage(ctx context.Context, env proto.SignedEnvelope) (bool, error) {
	switch p := env.Payload.(type) {
	case StatusUpload:
		k.handleStatusUpload(ctx, p)
		return true, nil
	case WaitForRequest:
		k.handleWaitFor(p)
		return true, nil
	case GetHealthRequest:
		k.mu.Lock()
		p.Reply <- k.health.Clone()
		k.mu.Unlock()
		return true, nil
	case StopAllRequest:
		k.mu.Lock()
		k.beginShutdownLocked(ctx)
		k.stopReply = append(k.stopReply, p.Reply)
		k.mu.Unlock()
		return true, nil
	default:
		return false, nil
	}
}

func (k *KernelService) handleStatusUpload(ctx context.Context, u StatusUpload) {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := time.Now()

	switch u.Signal {
	case SignalReady, SignalAlive:
		k.health.SetAlive(u.Name, now)
		_ = fireFSM(k.fsms[u.Name], evReady)

		for _, w := range k.waiters[u.Name] {
			close(w)
		}
		delete(k.waiters, u.Name)

		if k.stopping {
			if unlocked := k.stopCache.refresh(u.Name); len(unlocked) > 0 {
				for _, name := range unlocked {
					k.stopOneLocked(name)
				}
			}
			k.maybeFinishShutdownLocked()
			return
		}

		if k.initCache != nil {
			if unlocked := k.initCache.refresh(u.Name); len(unlocked) > 0 {
				for _, name := range unlocked {
					k.spawnLocked(ctx, name)
				}
			}
		}

	case SignalInitFail, SignalTerminate:
		k.health.SetDead(u.Name, now)
		_ = fireFSM(k.fsms[u.Name], evFail)

		if k.log != nil {
			if u.Err != nil {
				k.log.Error().Str("service", u.Name).Err(u.Err).Msg("service terminated")
			} else {
				k.log.Info().Str("service", u.Name).Msg("service stopped")
			}
		}

		if k.stopping {
			if unlocked := k.stopCache.refresh(u.Name); len(unlocked) > 0 {
				for _, name := range unlocked {
					k.stopOneLocked(name)
				}
			}
			k.maybeFinishShutdownLocked()
		}
	}
}

func (k *KernelService) handleWaitFor(req WaitForRequest) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if st, ok := k.health.Services[req.Name]; ok && st.Status == proto.Healthy {
		close(req.Reply)
		return
	}

	k.waiters[req.Name] = append(k.waiters[req.Name], req.Reply)
}

// beginShutdownLocked starts the dependents-first shutdown: services
// nobody depends on are asked to stop first, and StatusUpload{Terminate}
// unlocks their own dependencies in turn, a mirror image of LaunchAll.
func (k *KernelService) beginShutdownLocked(ctx context.Context) {
	if k.stopping {
		return
	}
	k.stopping = true
	k.stopCache = newReadinessCache(k.graph.dependents, k.graph.names)

	for _, name := range k.stopCache.prepare() {
		k.stopOneLocked(name)
	}

	if k.shutdownBudget > 0 {
		go func() {
			time.Sleep(k.shutdownBudget)
			k.forceFinishShutdown()
		}()
	}
}

func (k *KernelService) stopOneLocked(name string) {
	cancel, ok := k.cancels[name]
	if !ok {
		// never launched (e.g. failed init) — treat as already stopped.
		k.stopCache.refresh(name)
		return
	}
	_ = fireFSM(k.fsms[name], evStopping)
	cancel()
}

func (k *KernelService) maybeFinishShutdownLocked() {
	if !k.stopping || k.stopCache.remaining() > 0 {
		return
	}
	for _, reply := range k.stopReply {
		close(reply)
	}
	k.stopReply = nil
}

func (k *KernelService) forceFinishShutdown() {
	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.stopping {
		return
	}
	for name, cancel := range k.cancels {
		_ = name
		cancel()
	}
	for _, reply := range k.stopReply {
		close(reply)
	}
	k.stopReply = nil
}

// HandleTick implements runtime.Handler: demotes stale Healthy entries
// and republishes the Health resource through the Hub when it changed.
func (k *KernelService) HandleTick(ctx context.Context) error {
	k.mu.Lock()
	prev := k.health.Clone()
	k.health.Update(time.Now())
	changed := !k.health.IsSame(prev)
	snapshot := k.health.Clone()

	// Retry any service whose secondary direct-deps-ready check failed
	// at the moment its readiness-cache wave unlocked it (a dependency
	// went unhealthy between unlock and spawn).
	for name := range k.pending {
		k.spawnLocked(ctx, name)
	}

	k.mu.Unlock()

	if !changed {
		return nil
	}

	_ = bus.Tell(k.bus, k.handle, proto.HubService, hub.PublishRequest{
		Resource: proto.Resource{Name: proto.ResourceHealth, Payload: proto.HealthPayload{Health: snapshot}},
	}, false)

	return nil
}

// HandleResource implements runtime.Handler. KernelService does not
// subscribe to any Hub resource.
func (k *KernelService) HandleResource(ctx context.Context, res proto.Resource) error { return nil }

// Stop implements runtime.Handler.
func (k *KernelService) Stop(ctx context.Context) error { return nil }

// Health returns a snapshot, for callers inside the same process
// (e.g. the Kernel's synchronous admin path) that don't want to round
// -trip through the bus.
func (k *KernelService) Health() proto.KernelHealth {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.health.Clone()
}
