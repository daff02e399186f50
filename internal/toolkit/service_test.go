package toolkit

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	helbus "github.com/hsiatein/helenium/internal/bus"
	"github.com/hsiatein/helenium/internal/config"
	"github.com/hsiatein/helenium/internal/proto"
	"github.com/hsiatein/helenium/internal/runtime"
	"github.com/hsiatein/helenium/internal/task"
)

type fakeTool struct{}

func (t *fakeTool) Invoke(ctx context.Context, command string, args map[string]any, consent ConsentRequester) (string, error) {
	if err := consent.RequestConsent(ctx, "do the thing"); err != nil {
		return "", err
	}
	return "done: " + command, nil
}

type fakeFactory struct {
	name   string
	manual string
}

func (f *fakeFactory) Name() string          { return f.name }
func (f *fakeFactory) Manual() string        { return f.manual }
func (f *fakeFactory) Create() (Tool, error) { return &fakeTool{}, nil }

func newTestRuntime(t *testing.T, toolsDir string) (helbus.Bus, *helbus.Handle, *Runtime) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Bus.MailboxSize = 16

	b := helbus.New(cfg, nil)
	h, err := b.Register(proto.ToolkitService, proto.RoleStandard)
	require.NoError(t, err)

	c := config.DefaultConfig()
	r, err := New(c, b, h, nil)
	require.NoError(t, err)
	if toolsDir != "" {
		r.cfg.ToolsDir = toolsDir
		r.readManuals()
	}

	return b, h, r
}

func runToolkitService(ctx context.Context, b helbus.Bus, h *helbus.Handle, r *Runtime) {
	go func() { _ = runtime.Run(ctx, proto.ToolkitService, h, r, runtime.Options{}) }()
}

func writeManual(t *testing.T, dir, name, description string) {
	t.Helper()
	raw, err := json.Marshal(Manual{Name: name, Description: description})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".json"), raw, 0o644))
}

// getIntro is a small helper around GetIntroRequest used to observe
// registry state purely through the bus, never by touching Runtime's
// actor-owned fields from the test goroutine.
func getIntro(t *testing.T, b helbus.Bus, caller *helbus.Handle) string {
	t.Helper()
	intro, err := helbus.Ask(context.Background(), b, caller, proto.ToolkitService, func(reply chan string) GetIntroRequest {
		return GetIntroRequest{Reply: reply}
	})
	require.NoError(t, err)
	return intro
}

func Test_Runtime_ReadManualsLoadsDiskManualsButLeavesThemUnavailable(t *testing.T) {
	dir := t.TempDir()
	writeManual(t, dir, "weather", "reports the weather")

	b, h, r := newTestRuntime(t, dir)
	defer b.Close()

	// No goroutine running yet: inspecting fields directly here is safe.
	assert.Contains(t, r.manuals, "weather")
	assert.False(t, r.manuals["weather"].toAbstract().Enabled)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runToolkitService(ctx, b, h, r)

	caller, err := b.Register("caller", proto.RoleStandard)
	require.NoError(t, err)

	// A manual with no registered factory never appears in GetIntro.
	assert.Equal(t, "[]", getIntro(t, b, caller))
}

func Test_Runtime_RegisterMakesToolAvailableInIntro(t *testing.T) {
	b, h, r := newTestRuntime(t, "")
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runToolkitService(ctx, b, h, r)

	caller, err := b.Register("caller", proto.RoleStandard)
	require.NoError(t, err)

	factory := &fakeFactory{name: "weather", manual: "reports the weather"}
	require.NoError(t, helbus.Tell(b, caller, proto.ToolkitService, RegisterFactoryRequest{Owner: "weather-svc", Factory: factory}, false))

	require.Eventually(t, func() bool {
		return strings.Contains(getIntro(t, b, caller), "weather")
	}, time.Second, 10*time.Millisecond)
}

func Test_Runtime_GetToolkitBindsOnlyRegisteredToolsAndSkipsUnknownNames(t *testing.T) {
	b, h, r := newTestRuntime(t, "")
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runToolkitService(ctx, b, h, r)

	caller, err := b.Register("caller", proto.RoleStandard)
	require.NoError(t, err)

	factory := &fakeFactory{name: "weather", manual: "reports the weather"}
	require.NoError(t, helbus.Tell(b, caller, proto.ToolkitService, RegisterFactoryRequest{Owner: "weather-svc", Factory: factory}, false))
	require.Eventually(t, func() bool {
		return strings.Contains(getIntro(t, b, caller), "weather")
	}, time.Second, 10*time.Millisecond)

	tk, err := helbus.Ask(context.Background(), b, caller, proto.ToolkitService, func(reply chan task.Toolkit) task.GetToolkitRequest {
		return task.GetToolkitRequest{ToolNames: []string{"weather", "unknown"}, TaskID: uuid.New(), TaskDescription: "check weather", Reply: reply}
	})
	require.NoError(t, err)
	require.NotNil(t, tk)
	assert.Contains(t, tk.Manuals(), "weather")

	bt, ok := tk.(*boundToolkit)
	require.True(t, ok)
	assert.Len(t, bt.tools, 1)
	assert.Contains(t, bt.tools, "weather")
}

func Test_Runtime_UnregisterByWrongOwnerIsNoop(t *testing.T) {
	b, h, r := newTestRuntime(t, "")
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runToolkitService(ctx, b, h, r)

	caller, err := b.Register("caller", proto.RoleStandard)
	require.NoError(t, err)

	factory := &fakeFactory{name: "weather", manual: "reports the weather"}
	require.NoError(t, helbus.Tell(b, caller, proto.ToolkitService, RegisterFactoryRequest{Owner: "weather-svc", Factory: factory}, false))
	require.Eventually(t, func() bool {
		return strings.Contains(getIntro(t, b, caller), "weather")
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, helbus.Tell(b, caller, proto.ToolkitService, UnregisterFactoryRequest{Owner: "someone-else", Name: "weather"}, false))
	time.Sleep(30 * time.Millisecond)
	assert.Contains(t, getIntro(t, b, caller), "weather")

	require.NoError(t, helbus.Tell(b, caller, proto.ToolkitService, UnregisterFactoryRequest{Owner: "weather-svc", Name: "weather"}, false))
	require.Eventually(t, func() bool {
		return getIntro(t, b, caller) == "[]"
	}, time.Second, 10*time.Millisecond)
}

func Test_Runtime_EnableToolRequestGlobTogglesAvailability(t *testing.T) {
	b, h, r := newTestRuntime(t, "")
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runToolkitService(ctx, b, h, r)

	caller, err := b.Register("caller", proto.RoleStandard)
	require.NoError(t, err)

	require.NoError(t, helbus.Tell(b, caller, proto.ToolkitService, RegisterFactoryRequest{Owner: "weather-svc", Factory: &fakeFactory{name: "weather", manual: "reports the weather"}}, false))
	require.NoError(t, helbus.Tell(b, caller, proto.ToolkitService, RegisterFactoryRequest{Owner: "forecast-svc", Factory: &fakeFactory{name: "weather-forecast", manual: "forecasts"}}, false))
	require.Eventually(t, func() bool {
		intro := getIntro(t, b, caller)
		return strings.Contains(intro, "weather-forecast")
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, helbus.Tell(b, caller, proto.ToolkitService, EnableToolRequest{Pattern: "weather*", Enable: false}, false))
	require.Eventually(t, func() bool {
		return getIntro(t, b, caller) == "[]"
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, helbus.Tell(b, caller, proto.ToolkitService, EnableToolRequest{Pattern: "weather*", Enable: true}, false))
	require.Eventually(t, func() bool {
		intro := getIntro(t, b, caller)
		return strings.Contains(intro, "weather") && strings.Contains(intro, "weather-forecast")
	}, time.Second, 10*time.Millisecond)
}
