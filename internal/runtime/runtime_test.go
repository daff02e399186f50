package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsiatein/helenium/internal/bus"
	"github.com/hsiatein/helenium/internal/config"
	"github.com/hsiatein/helenium/internal/proto"
)

type recordingHandler struct {
	messages  []any
	ticks     int
	resources []proto.Resource
	stopped   bool
	stopErr   error
	tickErr   error
	panicOn   string
}

func (h *recordingHandler) HandleMessage(ctx context.Context, env proto.SignedEnvelope) (bool, error) {
	if h.panicOn == "message" {
		panic("boom")
	}
	if env.Payload == "unhandled" {
		return false, nil
	}
	h.messages = append(h.messages, env.Payload)
	return true, nil
}

func (h *recordingHandler) HandleTick(ctx context.Context) error {
	h.ticks++
	return h.tickErr
}

func (h *recordingHandler) HandleResource(ctx context.Context, res proto.Resource) error {
	h.resources = append(h.resources, res)
	return nil
}

func (h *recordingHandler) Stop(ctx context.Context) error {
	h.stopped = true
	return h.stopErr
}

func newTestBus() bus.Bus {
	cfg := config.DefaultConfig()
	cfg.Bus.MailboxSize = 8
	return bus.New(cfg, nil)
}

func Test_Run_DeliversMessages(t *testing.T) {
	b := newTestBus()
	defer b.Close()

	sender, err := b.Register("sender", proto.RoleStandard)
	require.NoError(t, err)
	target, err := b.Register("target", proto.RoleStandard)
	require.NoError(t, err)

	h := &recordingHandler{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Run(ctx, "target", target, h, Options{}) }()

	require.NoError(t, bus.Tell(b, sender, "target", "hello", false))

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}

	assert.Equal(t, []any{"hello"}, h.messages)
	assert.True(t, h.stopped)
}

func Test_Run_StopCommand(t *testing.T) {
	b := newTestBus()
	defer b.Close()

	sender, err := b.Register("sender", proto.RoleSystem)
	require.NoError(t, err)
	target, err := b.Register("target", proto.RoleStandard)
	require.NoError(t, err)

	h := &recordingHandler{}
	done := make(chan error, 1)
	go func() { done <- Run(context.Background(), "target", target, h, Options{}) }()

	require.NoError(t, bus.Tell(b, sender, "target", proto.StopCommand{}, true))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on StopCommand")
	}

	assert.True(t, h.stopped)
}

func Test_Run_ResourceCommand(t *testing.T) {
	b := newTestBus()
	defer b.Close()

	sender, err := b.Register("sender", proto.RoleSystem)
	require.NoError(t, err)
	target, err := b.Register("target", proto.RoleStandard)
	require.NoError(t, err)

	h := &recordingHandler{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Run(ctx, "target", target, h, Options{}) }()

	res := proto.Resource{Name: proto.ResourceHealth}
	require.NoError(t, bus.Tell(b, sender, "target", proto.ResourceCommand{Resource: res}, false))

	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	require.Len(t, h.resources, 1)
	assert.Equal(t, proto.ResourceHealth, h.resources[0].Name)
}

func Test_Run_Tick(t *testing.T) {
	b := newTestBus()
	defer b.Close()

	target, err := b.Register("target", proto.RoleStandard)
	require.NoError(t, err)

	h := &recordingHandler{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Run(ctx, "target", target, h, Options{Tick: 10 * time.Millisecond}) }()

	time.Sleep(35 * time.Millisecond)
	cancel()
	<-done

	assert.GreaterOrEqual(t, h.ticks, 2)
}

func Test_Run_RecoversPanicAndReports(t *testing.T) {
	b := newTestBus()
	defer b.Close()

	sender, err := b.Register("sender", proto.RoleStandard)
	require.NoError(t, err)
	target, err := b.Register("target", proto.RoleStandard)
	require.NoError(t, err)

	h := &recordingHandler{panicOn: "message"}

	var reportedName string
	var reportedPanic any
	opts := Options{OnPanic: func(name string, recovered any) {
		reportedName = name
		reportedPanic = recovered
	}}

	done := make(chan error, 1)
	go func() { done <- Run(context.Background(), "target", target, h, opts) }()

	require.NoError(t, bus.Tell(b, sender, "target", "trigger", false))

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after panic")
	}

	assert.Equal(t, "target", reportedName)
	assert.Equal(t, "boom", reportedPanic)
}

func Test_Run_TickErrorStopsLoop(t *testing.T) {
	b := newTestBus()
	defer b.Close()

	target, err := b.Register("target", proto.RoleStandard)
	require.NoError(t, err)

	wantErr := errors.New("tick failed")
	h := &recordingHandler{tickErr: wantErr}

	done := make(chan error, 1)
	go func() { done <- Run(context.Background(), "target", target, h, Options{Tick: 10 * time.Millisecond}) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, wantErr)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after tick error")
	}
}
