package task

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/hsiatein/helenium/internal/bus"
	"github.com/hsiatein/helenium/internal/errors"
	"github.com/hsiatein/helenium/internal/hub"
	"github.com/hsiatein/helenium/internal/proto"
)

type logRecord struct {
	description string
	status      proto.TaskStatus
	lines       []string
}

type logSubscriber struct {
	ctx context.Context
	ch  chan string
}

// taskLogger accumulates every task's log lines and publishes the
// TaskAbstract resource whenever a task is added or changes status.
// Grounded on service-task/src/task_logger.rs's TaskLogger actor,
// collapsed from its own mpsc-driven goroutine into a mutex-guarded
// struct owned directly by Runtime: nothing outside this package ever
// addresses it, so it needs no bus identity of its own, just safety
// against concurrent access from Task goroutines.
type taskLogger struct {
	mu     sync.Mutex
	bus    bus.Bus
	handle *bus.Handle
	logs   map[uuid.UUID]*logRecord
	subs   map[uuid.UUID][]logSubscriber
}

func newTaskLogger(b bus.Bus, h *bus.Handle) *taskLogger {
	return &taskLogger{
		bus:    b,
		handle: h,
		logs:   make(map[uuid.UUID]*logRecord),
		subs:   make(map[uuid.UUID][]logSubscriber),
	}
}

func (tl *taskLogger) addTask(id uuid.UUID, description string) {
	tl.mu.Lock()
	tl.logs[id] = &logRecord{description: description, status: proto.TaskPending}
	tl.mu.Unlock()
	tl.publishAbstracts()
}

func (tl *taskLogger) setStatus(id uuid.UUID, status proto.TaskStatus) {
	tl.mu.Lock()
	if rec, ok := tl.logs[id]; ok {
		rec.status = status
	}
	tl.mu.Unlock()
	tl.publishAbstracts()
}

// log appends a line and fans it out to every live subscriber,
// dropping (pruning) any whose context has ended — the Go analogue of
// Rust's "retain subscribers whose sender is not closed" sweep.
func (tl *taskLogger) log(id uuid.UUID, line string) {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	rec, ok := tl.logs[id]
	if !ok {
		return
	}
	rec.lines = append(rec.lines, line)

	live := tl.subs[id][:0]
	for _, s := range tl.subs[id] {
		if s.ctx.Err() != nil {
			continue
		}
		select {
		case s.ch <- line:
			live = append(live, s)
		default:
			live = append(live, s)
		}
	}
	tl.subs[id] = live
}

func (tl *taskLogger) subscribe(ctx context.Context, id uuid.UUID, sender chan string) {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	if rec, ok := tl.logs[id]; ok {
		for _, line := range rec.lines {
			select {
			case sender <- line:
			default:
			}
		}
	}
	tl.subs[id] = append(tl.subs[id], logSubscriber{ctx: ctx, ch: sender})
}

func (tl *taskLogger) get(id uuid.UUID) (TaskLog, error) {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	rec, ok := tl.logs[id]
	if !ok {
		return TaskLog{}, errors.ErrUnknownTask
	}
	lines := make([]string, len(rec.lines))
	copy(lines, rec.lines)
	return TaskLog{Description: rec.description, Status: rec.status, Lines: lines}, nil
}

func (tl *taskLogger) publishAbstracts() {
	tl.mu.Lock()
	abstracts := make([]proto.TaskAbstract, 0, len(tl.logs))
	for id, rec := range tl.logs {
		abstracts = append(abstracts, proto.TaskAbstract{ID: id, Description: rec.description, Status: rec.status})
	}
	tl.mu.Unlock()

	res := proto.Resource{Name: proto.ResourceTaskAbstract, Payload: proto.TaskAbstractPayload{TaskAbstracts: abstracts}}
	_ = bus.Tell(tl.bus, tl.handle, proto.HubService, hub.PublishRequest{Resource: res}, false)
}
