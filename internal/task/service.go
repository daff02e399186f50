package task

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/hsiatein/helenium/internal/bus"
	"github.com/hsiatein/helenium/internal/config"
	"github.com/hsiatein/helenium/internal/config/logger"
	"github.com/hsiatein/helenium/internal/proto"
	"github.com/hsiatein/helenium/internal/runtime"
)

// taskConfig is this service's own subtree of the configuration
// document, mirroring service-task/src/config.rs's TaskConfig.
type taskConfig struct {
	MaxRunningTasks int `json:"max_running_tasks"`
	MaxWorkingLoop  int `json:"max_working_loop"`
}

func loadTaskConfig(cfg *config.Config) taskConfig {
	tc := taskConfig{MaxRunningTasks: config.DefaultMaxRunningTasks, MaxWorkingLoop: config.DefaultMaxWorkingLoop}
	if cfg == nil {
		return tc
	}
	if raw := cfg.ServiceSubtree(proto.TaskService); raw != nil {
		_ = json.Unmarshal(raw, &tc)
	}
	if tc.MaxRunningTasks < 1 {
		tc.MaxRunningTasks = config.DefaultMaxRunningTasks
	}
	if tc.MaxWorkingLoop < 1 {
		tc.MaxWorkingLoop = config.DefaultMaxWorkingLoop
	}
	return tc
}

// Runtime implements runtime.Handler: the Task service. Grounded on
// service-task/src/lib.rs's TaskService — running_tasks/pending_tasks
// bookkeeping with a max-running-tasks cap, the log actor it owns, and
// the Finish/GetPlanner/GetExecutor/GetToolkit sub-dispatch collapsed
// here into ordinary HandleMessage cases, since Go tasks report back
// over the bus directly instead of through a privileged sub-endpoint.
type Runtime struct {
	bus    bus.Bus
	handle *bus.Handle
	log    logger.Logger

	cfg taskConfig

	logs *taskLogger

	running map[uuid.UUID]*runningTask
	pending []*task

	// baseCtx is the actor loop's own context, captured from the first
	// HandleMessage call, so a task launched in response to one message
	// and an already-running task relaunched from a later one (cancel,
	// finish) share the same shutdown-propagation parent instead of
	// drifting onto context.Background().
	baseCtx context.Context
}

// New constructs a Runtime with an empty queue, publishing an empty
// TaskAbstract snapshot so Hub subscribers see the resource exist
// immediately. Grounded on TaskService::new.
func New(cfg *config.Config, b bus.Bus, h *bus.Handle, log logger.Logger) (*Runtime, error) {
	tc := loadTaskConfig(cfg)
	logs := newTaskLogger(b, h)
	logs.publishAbstracts()

	return &Runtime{
		bus:     b,
		handle:  h,
		log:     log,
		cfg:     tc,
		logs:    logs,
		running: make(map[uuid.UUID]*runningTask),
	}, nil
}

// Factory adapts New to runtime.Factory. HubService is the only real
// dependency: ChatService and ToolkitService are best-effort targets
// this service Asks at task-preprocess time, not at construction time,
// so the Task service itself can start before either exists — a task
// added before they register simply fails preprocessing with an
// unknown-target error from the bus, logged like any other failure.
func Factory(cfg *config.Config, log logger.Logger) runtime.Factory {
	return runtime.Factory{
		Name: proto.TaskService,
		Deps: []string{proto.HubService},
		Role: proto.RoleStandard,
		New: func(ctx context.Context, h *bus.Handle, b bus.Bus) (runtime.Handler, error) {
			return New(cfg, b, h, log)
		},
	}
}

func (r *Runtime) HandleMessage(ctx context.Context, env proto.SignedEnvelope) (bool, error) {
	r.baseCtx = ctx

	switch p := env.Payload.(type) {
	case proto.AddTaskSignal:
		r.addTask(p.Description)
		return true, nil

	case AddTaskRequest:
		r.addTask(p.Description)
		return true, nil

	case CancelTaskRequest:
		r.cancelTask(p.ID)
		return true, nil

	case SubscribeTaskLogsRequest:
		r.logs.subscribe(p.Ctx, p.ID, p.Sender)
		return true, nil

	case GetTaskLogRequest:
		log, err := r.logs.get(p.ID)
		if err != nil {
			p.Reply <- TaskLog{}
			return true, nil
		}
		p.Reply <- log
		return true, nil

	case finishSignal:
		r.finish(p.ID, p.Success)
		return true, nil

	default:
		return false, nil
	}
}

func (r *Runtime) HandleTick(ctx context.Context) error                        { return nil }
func (r *Runtime) HandleResource(ctx context.Context, res proto.Resource) error { return nil }
func (r *Runtime) Stop(ctx context.Context) error                              { return nil }

func (r *Runtime) addTask(description string) {
	id := uuid.New()
	t := newTask(id, description, r.bus, r.handle, r.logs, r.cfg.MaxWorkingLoop)
	r.logs.addTask(id, description)
	r.pending = append(r.pending, t)
	r.launchTasks()
}

func (r *Runtime) cancelTask(id uuid.UUID) {
	if running, ok := r.running[id]; ok {
		running.cancel()
		delete(r.running, id)
		r.logs.setStatus(id, proto.TaskCanceled)
		r.launchTasks()
		return
	}

	for i, t := range r.pending {
		if t.id == id {
			r.pending = append(r.pending[:i], r.pending[i+1:]...)
			r.logs.setStatus(id, proto.TaskCanceled)
			return
		}
	}
}

// launchTasks pops pending tasks onto goroutines while running stays
// under the configured cap. Grounded on TaskService::launch_tasks.
func (r *Runtime) launchTasks() {
	base := r.baseCtx
	if base == nil {
		base = context.Background()
	}
	for len(r.running) < r.cfg.MaxRunningTasks && len(r.pending) > 0 {
		t := r.pending[0]
		r.pending = r.pending[1:]

		r.logs.setStatus(t.id, proto.TaskRunning)
		taskCtx, cancel := context.WithCancel(base)
		r.running[t.id] = &runningTask{id: t.id, cancel: cancel}
		t.launch(taskCtx)
	}
}

// finish removes a task from running and forwards its final log to
// the Chat service, mirroring WorkerMessage::Finish's behavior in the
// original, minus the abort() call Go doesn't need (the goroutine has
// already returned by the time finishSignal is sent).
func (r *Runtime) finish(id uuid.UUID, success bool) {
	if _, ok := r.running[id]; !ok {
		return
	}
	delete(r.running, id)

	status := proto.TaskFail
	if success {
		status = proto.TaskSuccess
	}
	r.logs.setStatus(id, status)

	log, err := r.logs.get(id)
	if err == nil {
		_ = bus.Tell(r.bus, r.handle, proto.ChatService, taskFinishedSignal{ID: id, Log: log}, false)
	}

	r.launchTasks()
}

// taskFinishedSignal is sent to ChatService once a task's goroutine
// has returned, carrying its full log so the chat surface can report
// the outcome to the user. Grounded on ChatServiceMessage::TaskFinished.
type taskFinishedSignal struct {
	ID  uuid.UUID
	Log TaskLog
}
