package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hsiatein/helenium/internal/bus"
	"github.com/hsiatein/helenium/internal/config"
	"github.com/hsiatein/helenium/internal/config/logger"
	"github.com/hsiatein/helenium/internal/errors"
	"github.com/hsiatein/helenium/internal/hub"
	"github.com/hsiatein/helenium/internal/proto"
	"github.com/hsiatein/helenium/internal/runtime"
	"github.com/hsiatein/helenium/internal/toolkit"
)

// scheduleConfig is this service's own subtree of the configuration
// document, mirroring service-schedule/src/config.rs's ScheduleConfig.
type scheduleConfig struct {
	ScheduleDir string `json:"schedule_dir"`
	OffsetSecs  int    `json:"offset"`
}

func loadScheduleConfig(cfg *config.Config) scheduleConfig {
	sc := scheduleConfig{ScheduleDir: ".", OffsetSecs: 0}
	if cfg == nil {
		return sc
	}
	if raw := cfg.ServiceSubtree(proto.ScheduleService); raw != nil {
		_ = json.Unmarshal(raw, &sc)
	}
	if sc.ScheduleDir == "" {
		sc.ScheduleDir = "."
	}
	return sc
}

// AddTaskRequest asks the Runtime to store a new scheduled task. Task
// need carry no ID or NextTrigger — both are computed here.
type AddTaskRequest struct {
	Task proto.ScheduledTask
}

// ListTaskRequest synchronously reads every scheduled task.
type ListTaskRequest struct {
	Reply chan map[uuid.UUID]proto.ScheduledTask
}

// CancelTaskRequest removes a scheduled task by ID.
type CancelTaskRequest struct {
	ID uuid.UUID
}

// ReloadRequest re-reads schedule.json from disk, discarding in-memory
// state, e.g. after an out-of-band edit of the file. No caller in this
// module sends it.
type ReloadRequest struct{}

type checkReadyMessage struct{}

// Runtime implements runtime.Handler: the Schedule service. Grounded
// on service-schedule/src/lib.rs's ScheduleService.
type Runtime struct {
	mu sync.Mutex

	bus    bus.Bus
	handle *bus.Handle
	log    logger.Logger

	offsetSecs int
	path       string

	tasks map[uuid.UUID]proto.ScheduledTask

	timer *time.Timer
}

// New constructs a Runtime, loading any persisted schedule.json and
// recomputing every task's next trigger (grounded on
// ScheduleService::new's load-then-update_next_trigger sequence).
func New(cfg *config.Config, b bus.Bus, h *bus.Handle, log logger.Logger) (*Runtime, error) {
	sc := loadScheduleConfig(cfg)

	r := &Runtime{
		bus:        b,
		handle:     h,
		log:        log,
		offsetSecs: sc.OffsetSecs,
		path:       filepath.Join(sc.ScheduleDir, "schedule.json"),
		tasks:      make(map[uuid.UUID]proto.ScheduledTask),
	}

	if err := r.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", errors.ErrIO, err)
	}

	for id, task := range r.tasks {
		r.tasks[id] = r.refreshNextTrigger(task)
	}

	factory := scheduleToolFactory{bus: b, handle: h, offsetSecs: sc.OffsetSecs}
	_ = bus.Tell(b, h, proto.ToolkitService, toolkit.RegisterFactoryRequest{Owner: proto.ScheduleService, Factory: factory}, false)

	r.publishSchedule()
	r.rearm()

	return r, nil
}

// Factory adapts New to runtime.Factory. Only HubService is a real
// dependency today: the original also depended on FsService for
// persistence, but this port writes schedule.json directly (see
// DESIGN.md). TaskService and ToolkitService are best-effort send
// targets, not dependencies: a Tell to a target that is not registered
// yet fails with an ignored error and the message is lost.
func Factory(cfg *config.Config, log logger.Logger) runtime.Factory {
	return runtime.Factory{
		Name: proto.ScheduleService,
		Deps: []string{proto.HubService},
		Role: proto.RoleStandard,
		New: func(ctx context.Context, h *bus.Handle, b bus.Bus) (runtime.Handler, error) {
			return New(cfg, b, h, log)
		},
	}
}

func (r *Runtime) HandleMessage(ctx context.Context, env proto.SignedEnvelope) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch p := env.Payload.(type) {
	case AddTaskRequest:
		task := p.Task
		task.ID = uuid.New()
		task = r.refreshNextTrigger(task)
		r.tasks[task.ID] = task
		r.rearm()
		return true, r.persistLocked()

	case ListTaskRequest:
		out := make(map[uuid.UUID]proto.ScheduledTask, len(r.tasks))
		for id, t := range r.tasks {
			out[id] = t
		}
		p.Reply <- out
		return true, nil

	case CancelTaskRequest:
		if _, ok := r.tasks[p.ID]; ok {
			delete(r.tasks, p.ID)
			r.rearm()
			return true, r.persistLocked()
		}
		return true, nil

	case ReloadRequest:
		if err := r.load(); err != nil {
			return true, fmt.Errorf("%w: %s", errors.ErrIO, err)
		}
		for id, task := range r.tasks {
			r.tasks[id] = r.refreshNextTrigger(task)
		}
		r.rearm()
		r.publishSchedule()
		return true, nil

	case checkReadyMessage:
		r.fireReadyLocked(ctx)
		return true, nil

	default:
		return false, nil
	}
}

func (r *Runtime) HandleTick(ctx context.Context) error                     { return nil }
func (r *Runtime) HandleResource(ctx context.Context, res proto.Resource) error { return nil }

// Stop persists once more on the way out, mirroring
// ScheduleService::stop's best-effort final persist.
func (r *Runtime) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
	}
	return r.persistLocked()
}

// fireReadyLocked emits AddTask to the Task service for every task
// whose next trigger has arrived, advances it, and rearms. Grounded on
// ScheduleService::handle_sub_endpoint's WorkerMessage::IsReady arm.
func (r *Runtime) fireReadyLocked(ctx context.Context) {
	now := time.Now().In(location(r.offsetSecs))
	for id, task := range r.tasks {
		if task.NextTrigger == nil || task.NextTrigger.After(now) {
			continue
		}
		_ = bus.Tell(r.bus, r.handle, proto.TaskService, proto.AddTaskSignal{Description: task.Description}, false)
		r.tasks[id] = r.refreshNextTrigger(task)
	}
	r.rearm()
	_ = r.persistLocked()
}

// refreshNextTrigger recomputes task.NextTrigger as the minimum
// next_trigger across all of task's triggers, dropping any trigger
// that can never fire again. Grounded on
// ScheduledTask::update_next_trigger.
func (r *Runtime) refreshNextTrigger(task proto.ScheduledTask) proto.ScheduledTask {
	var min *time.Time
	kept := task.Triggers[:0:0]
	for _, trig := range task.Triggers {
		next, err := nextTrigger(trig, r.offsetSecs)
		if err != nil {
			continue
		}
		kept = append(kept, trig)
		if min == nil || next.Before(*min) {
			t := next
			min = &t
		}
	}
	task.Triggers = kept
	task.NextTrigger = min
	return task
}

// rearm recomputes the global minimum next trigger across every task
// and arms a single timer against it, canceling whatever timer was
// previously pending. Grounded on ScheduleService::find_next_trigger's
// single-notifier-at-a-time invariant.
func (r *Runtime) rearm() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}

	var min *time.Time
	for id, task := range r.tasks {
		if task.NextTrigger == nil {
			delete(r.tasks, id)
			continue
		}
		if min == nil || task.NextTrigger.Before(*min) {
			t := *task.NextTrigger
			min = &t
		}
	}
	if min == nil {
		return
	}

	d := time.Until(*min)
	if d < 0 {
		d = 0
	}
	r.timer = time.AfterFunc(d, func() {
		_ = bus.Tell(r.bus, r.handle, r.handle.Name, checkReadyMessage{}, true)
	})
}

func (r *Runtime) publishSchedule() {
	snapshot := make(map[uuid.UUID]proto.ScheduledTask, len(r.tasks))
	for id, t := range r.tasks {
		snapshot[id] = t
	}
	res := proto.Resource{Name: proto.ResourceSchedule, Payload: proto.SchedulesPayload{Schedules: snapshot}}
	_ = bus.Tell(r.bus, r.handle, proto.HubService, hub.PublishRequest{Resource: res}, false)
}

func (r *Runtime) load() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return err
	}
	var loaded map[uuid.UUID]proto.ScheduledTask
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrConfig, err)
	}
	r.tasks = loaded
	return nil
}

// persistLocked publishes the Schedule resource so Hub subscribers see
// the change, then writes schedule.json atomically (tmp file + rename),
// matching the Config service's own persistence idiom.
func (r *Runtime) persistLocked() error {
	r.publishSchedule()

	data, err := json.MarshalIndent(r.tasks, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %s", errors.ErrConfig, err)
	}

	if dir := filepath.Dir(r.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: %s", errors.ErrIO, err)
		}
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrIO, err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrIO, err)
	}
	return nil
}
