package kernelsvc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	helbus "github.com/hsiatein/helenium/internal/bus"
	"github.com/hsiatein/helenium/internal/config"
	"github.com/hsiatein/helenium/internal/proto"
	"github.com/hsiatein/helenium/internal/runtime"
)

// noopHandler is a minimal runtime.Handler used to exercise
// KernelService's orchestration without a real auxiliary service.
type noopHandler struct{}

func (noopHandler) HandleMessage(ctx context.Context, env proto.SignedEnvelope) (bool, error) {
	return false, nil
}
func (noopHandler) HandleTick(ctx context.Context) error                     { return nil }
func (noopHandler) HandleResource(ctx context.Context, res proto.Resource) error { return nil }
func (noopHandler) Stop(ctx context.Context) error                           { return nil }

func testFactory(name string, deps ...string) runtime.Factory {
	return runtime.Factory{
		Name: name,
		Deps: deps,
		Role: proto.RoleStandard,
		New: func(ctx context.Context, h *helbus.Handle, b helbus.Bus) (runtime.Handler, error) {
			return noopHandler{}, nil
		},
	}
}

func newTestKernelService(t *testing.T, factories []runtime.Factory) (*KernelService, helbus.Bus, *helbus.Handle) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Bus.MailboxSize = 16
	b := helbus.New(cfg, nil)

	h, err := b.Register("KernelService", proto.RoleSystem)
	require.NoError(t, err)

	ks, err := New(factories, b, h, nil, 200*time.Millisecond)
	require.NoError(t, err)

	return ks, b, h
}

func Test_KernelService_LaunchAll_ChainBecomesHealthy(t *testing.T) {
	ks, b, h := newTestKernelService(t, []runtime.Factory{
		testFactory("a"),
		testFactory("b", "a"),
		testFactory("c", "b"),
	})
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = runtime.Run(ctx, "KernelService", h, ks, runtime.Options{}) }()

	ks.LaunchAll(ctx)

	require.Eventually(t, func() bool {
		health := ks.Health()
		for _, name := range []string{"a", "b", "c"} {
			if health.Services[name].Status != proto.Healthy {
				return false
			}
		}
		return true
	}, time.Second, 10*time.Millisecond)
}

func Test_KernelService_WaitFor_UnblocksOnHealthy(t *testing.T) {
	ks, b, h := newTestKernelService(t, []runtime.Factory{
		testFactory("a"),
	})
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = runtime.Run(ctx, "KernelService", h, ks, runtime.Options{}) }()

	caller, err := b.Register("caller", proto.RoleStandard)
	require.NoError(t, err)

	ks.LaunchAll(ctx)

	reply := make(chan struct{})
	require.NoError(t, helbus.Tell(b, caller, "KernelService", WaitForRequest{Name: "a", Reply: reply}, false))

	select {
	case <-reply:
	case <-time.After(time.Second):
		t.Fatal("WaitFor never unblocked")
	}
}

func Test_KernelService_StopAll_DependentsFirst(t *testing.T) {
	ks, b, h := newTestKernelService(t, []runtime.Factory{
		testFactory("a"),
		testFactory("b", "a"),
	})
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = runtime.Run(ctx, "KernelService", h, ks, runtime.Options{}) }()

	ks.LaunchAll(ctx)

	require.Eventually(t, func() bool {
		health := ks.Health()
		return health.Services["a"].Status == proto.Healthy && health.Services["b"].Status == proto.Healthy
	}, time.Second, 10*time.Millisecond)

	caller, err := b.Register("caller", proto.RoleSystem)
	require.NoError(t, err)

	reply := make(chan struct{})
	require.NoError(t, helbus.Tell(b, caller, "KernelService", StopAllRequest{Reply: reply}, false))

	select {
	case <-reply:
	case <-time.After(2 * time.Second):
		t.Fatal("StopAll never completed")
	}
}

func Test_KahnOrder_UsedByLaunchOrder(t *testing.T) {
	g, err := buildDepGraph([]runtime.Factory{
		testFactory("a"),
		testFactory("b", "a"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, g.order)
}
