// Package toolkit also hosts the Toolkit service itself: the registry
// that binds registered Factory values into a per-task Toolkit on
// demand, and the static manual reader that advertises tools nothing
// has registered a factory for yet. Grounded on service-toolkit/src/
// lib.rs's ToolkitService in its entirety.
package toolkit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gobwas/glob"
	"github.com/google/uuid"

	"github.com/hsiatein/helenium/internal/bus"
	"github.com/hsiatein/helenium/internal/config"
	"github.com/hsiatein/helenium/internal/config/logger"
	"github.com/hsiatein/helenium/internal/errors"
	"github.com/hsiatein/helenium/internal/hub"
	"github.com/hsiatein/helenium/internal/proto"
	"github.com/hsiatein/helenium/internal/runtime"
	"github.com/hsiatein/helenium/internal/task"
)

// toolkitConfig is this service's own subtree of the configuration
// document. ToolkitConfig in the original carries only tools_dir; the
// Go translation keeps exactly that.
type toolkitConfig struct {
	ToolsDir string `json:"tools_dir"`
}

func loadToolkitConfig(cfg *config.Config) toolkitConfig {
	tc := toolkitConfig{ToolsDir: config.DefaultToolsDir}
	if cfg == nil {
		return tc
	}
	if raw := cfg.ServiceSubtree(proto.ToolkitService); raw != nil {
		_ = json.Unmarshal(raw, &tc)
	}
	if tc.ToolsDir == "" {
		tc.ToolsDir = config.DefaultToolsDir
	}
	return tc
}

// GetIntroRequest asks for the JSON-serialized description of every
// tool that currently has a registered factory — what a planner is
// shown when deciding which tools a task needs.
type GetIntroRequest struct {
	Reply chan string
}

// ReloadRequest asks the service to re-read its manuals directory.
type ReloadRequest struct{}

// EnableToolRequest toggles every tool whose name matches Pattern (a
// glob, e.g. "schedule*") on or off administratively, independent of
// whether a factory is registered for it. Grounded on
// ToolkitServiceMessage::EnableTool, generalized from an exact name to
// a glob so one request can gate a whole tool family at once.
type EnableToolRequest struct {
	Pattern string
	Enable  bool
}

// Runtime implements runtime.Handler: the Toolkit service. Grounded on
// ToolkitService — manuals read from disk directly rather than proxied
// through a Fs service (the same simplification Scheduler's
// persistence already makes, see DESIGN.md), registered factories kept
// in a plain map, and ToolAbstracts republished on every registration
// change.
type Runtime struct {
	bus    bus.Bus
	handle *bus.Handle
	log    logger.Logger

	cfg toolkitConfig

	manuals      map[string]Manual
	descOrder    []string
	factories    map[string]Factory
	factoryOwner map[string]string
	disabled     map[string]bool
}

// New constructs a Runtime and performs the initial manual read.
// Grounded on ToolkitService::new.
func New(cfg *config.Config, b bus.Bus, h *bus.Handle, log logger.Logger) (*Runtime, error) {
	tc := loadToolkitConfig(cfg)
	r := &Runtime{
		bus:          b,
		handle:       h,
		log:          log,
		cfg:          tc,
		manuals:      make(map[string]Manual),
		factories:    make(map[string]Factory),
		factoryOwner: make(map[string]string),
		disabled:     make(map[string]bool),
	}
	r.readManuals()
	return r, nil
}

// Factory adapts New to runtime.Factory.
func Factory(cfg *config.Config, log logger.Logger) runtime.Factory {
	return runtime.Factory{
		Name: proto.ToolkitService,
		Deps: []string{proto.HubService},
		Role: proto.RoleStandard,
		New: func(ctx context.Context, h *bus.Handle, b bus.Bus) (runtime.Handler, error) {
			return New(cfg, b, h, log)
		},
	}
}

func (r *Runtime) HandleMessage(ctx context.Context, env proto.SignedEnvelope) (bool, error) {
	switch p := env.Payload.(type) {
	case GetIntroRequest:
		p.Reply <- r.intro()
		return true, nil

	case task.GetToolkitRequest:
		p.Reply <- r.bindToolkit(p.TaskID, p.TaskDescription, p.ToolNames)
		return true, nil

	case RegisterFactoryRequest:
		r.register(p.Owner, p.Factory)
		return true, nil

	case UnregisterFactoryRequest:
		r.unregister(p.Owner, p.Name)
		return true, nil

	case ReloadRequest:
		r.readManuals()
		return true, nil

	case EnableToolRequest:
		r.enableTool(p.Pattern, p.Enable)
		return true, nil

	default:
		return false, nil
	}
}

func (r *Runtime) HandleTick(ctx context.Context) error                        { return nil }
func (r *Runtime) HandleResource(ctx context.Context, res proto.Resource) error { return nil }
func (r *Runtime) Stop(ctx context.Context) error                              { return nil }

// intro lists every tool description whose name currently has a
// registered factory, JSON-serialized the way a planner consumes it.
// Grounded on ToolkitServiceMessage::GetIntro.
func (r *Runtime) intro() string {
	type description struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	out := make([]description, 0, len(r.descOrder))
	for _, name := range r.descOrder {
		if _, ok := r.factories[name]; !ok {
			continue
		}
		if r.disabled[name] {
			continue
		}
		out = append(out, description{Name: name, Description: r.manuals[name].Description})
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return "[]"
	}
	return string(raw)
}

// bindToolkit mints a fresh Tool from every requested name that has a
// registered factory and is not disabled, silently skipping every other
// name; a bound tool's manual is included when one is known — the
// same shape as ToolkitServiceMessage::GetToolkit's
// let-else-continue behavior. Grounded on ToolkitService::handle's
// GetToolkit arm.
func (r *Runtime) bindToolkit(taskID uuid.UUID, taskDescription string, toolNames []string) task.Toolkit {
	manuals := make([]Manual, 0, len(toolNames))
	tools := make(map[string]Tool, len(toolNames))

	for _, name := range toolNames {
		if r.disabled[name] {
			continue
		}
		factory, ok := r.factories[name]
		if !ok {
			continue
		}
		t, err := factory.Create()
		if err != nil {
			if r.log != nil {
				r.log.Warn().Str("tool", name).Err(err).Msg("failed to create tool instance")
			}
			continue
		}
		if manual, ok := r.manuals[name]; ok {
			manuals = append(manuals, manual)
		}
		tools[name] = t
	}

	raw, _ := json.Marshal(manuals)
	return &boundToolkit{
		bus:         r.bus,
		handle:      r.handle,
		taskID:      taskID,
		description: taskDescription,
		manuals:     string(raw),
		tools:       tools,
	}
}

// register adds a factory to the registry and republishes the
// ToolAbstracts resource so its availability flips to true. Grounded
// on ToolkitServiceMessage::Register.
func (r *Runtime) register(owner string, f Factory) {
	name := f.Name()
	r.factories[name] = f
	r.factoryOwner[name] = owner
	if _, known := r.manuals[name]; !known {
		r.manuals[name] = Manual{Name: name, Description: f.Manual()}
		r.descOrder = append(r.descOrder, name)
	}
	if r.log != nil {
		r.log.Info().Str("tool", name).Str("owner", owner).Msg("registered tool")
	}
	r.publishAbstracts()
}

// unregister withdraws a factory, e.g. on the owning service's
// shutdown, and republishes the ToolAbstracts resource.
func (r *Runtime) unregister(owner, name string) {
	if r.factoryOwner[name] != owner {
		return
	}
	delete(r.factories, name)
	delete(r.factoryOwner, name)
	r.publishAbstracts()
}

// enableTool toggles every currently-known tool name matching pattern.
// An invalid pattern is logged and otherwise ignored — nothing this
// request does is a hard dependency for the caller's own success.
func (r *Runtime) enableTool(pattern string, enable bool) {
	g, err := glob.Compile(pattern)
	if err != nil {
		if r.log != nil {
			r.log.Warn().Str("pattern", pattern).Err(fmt.Errorf("%w: %s", errors.ErrProtocol, err)).Msg("invalid tool enable pattern")
		}
		return
	}
	for name := range r.manuals {
		if !g.Match(name) {
			continue
		}
		if enable {
			delete(r.disabled, name)
		} else {
			r.disabled[name] = true
		}
	}
	r.publishAbstracts()
}

// readManuals scans the configured directory for *.json manual files.
// Read directly from the local filesystem rather than proxied through
// a Fs service, the same simplification Scheduler's persistence
// already makes; see DESIGN.md.
func (r *Runtime) readManuals() {
	entries, err := os.ReadDir(r.cfg.ToolsDir)
	if err != nil {
		if r.log != nil {
			r.log.Warn().Str("dir", r.cfg.ToolsDir).Err(err).Msg("no tool manuals directory")
		}
		r.publishAbstracts()
		return
	}

	manuals := make(map[string]Manual)
	order := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(r.cfg.ToolsDir, entry.Name()))
		if err != nil {
			continue
		}
		var m Manual
		if err := json.Unmarshal(raw, &m); err != nil {
			if r.log != nil {
				r.log.Warn().Str("file", entry.Name()).Err(err).Msg("failed to parse tool manual")
			}
			continue
		}
		manuals[m.Name] = m
		order = append(order, m.Name)
	}

	// Factory-registered tools (e.g. schedule) already carry their own
	// manual text and never live on disk; keep them alongside whatever
	// was just read from the tools directory.
	for name, f := range r.factories {
		if _, ok := manuals[name]; !ok {
			manuals[name] = Manual{Name: name, Description: f.Manual()}
			order = append(order, name)
		}
	}

	r.manuals = manuals
	r.descOrder = order
	if r.log != nil {
		r.log.Info().Int("count", len(manuals)).Msg("read tool manuals")
	}
	r.publishAbstracts()
}

func (r *Runtime) publishAbstracts() {
	abstracts := make([]proto.ToolAbstract, 0, len(r.descOrder))
	for _, name := range r.descOrder {
		m := r.manuals[name]
		abs := m.toAbstract()
		_, available := r.factories[name]
		abs.Enabled = available && !r.disabled[name]
		abstracts = append(abstracts, abs)
	}
	res := proto.Resource{Name: proto.ResourceToolAbstracts, Payload: proto.ToolAbstractsPayload{Abstracts: abstracts}}
	_ = bus.Tell(r.bus, r.handle, proto.HubService, hub.PublishRequest{Resource: res}, false)
}
