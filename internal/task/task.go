package task

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/hsiatein/helenium/internal/bus"
	"github.com/hsiatein/helenium/internal/errors"
	"github.com/hsiatein/helenium/internal/proto"
)

// runningTask is a task in flight: one goroutine running task.run,
// cancelable via cancel. Grounded on task.rs's Task/TaskHandle pair
// — tokio::task::JoinHandle's abort() becomes a context.CancelFunc
// here, since Go goroutines cannot be killed from outside, only asked
// to stop via their context.
type runningTask struct {
	id     uuid.UUID
	cancel context.CancelFunc
}

// task is the per-run state machine: preprocess once, then loop
// proposing and executing intents until a terminal intent, an error,
// or the working-loop budget is exhausted. Grounded on task.rs's
// Task::run/preprocess.
type task struct {
	id             uuid.UUID
	description    string
	bus            bus.Bus
	handle         *bus.Handle
	logs           *taskLogger
	maxWorkingLoop int
	current        int
}

func newTask(id uuid.UUID, description string, b bus.Bus, h *bus.Handle, logs *taskLogger, maxWorkingLoop int) *task {
	return &task{id: id, description: description, bus: b, handle: h, logs: logs, maxWorkingLoop: maxWorkingLoop}
}

// launch runs the task on its own goroutine and reports completion
// back to the owning Runtime through a finishSignal. Grounded on
// task.rs's Task::launch.
func (t *task) launch(ctx context.Context) {
	go func() {
		err := t.run(ctx)
		success := err == nil
		if success {
			t.log("task succeeded")
		} else {
			t.log(fmt.Sprintf("task failed: %s", err))
		}
		_ = bus.Tell(t.bus, t.handle, proto.TaskService, finishSignal{ID: t.id, Success: success}, true)
	}()
}

func (t *task) run(ctx context.Context) error {
	executor, toolkit, err := t.preprocess(ctx)
	if err != nil {
		return err
	}

	input := t.description
	for t.current < t.maxWorkingLoop {
		intent, err := executor.GetIntent(ctx, input)
		if err != nil {
			t.log(fmt.Sprintf("failed to obtain intent, retrying: %s", err))
			t.current++
			continue
		}

		if intent.IsTerminal() {
			return nil
		}
		if raw, err := json.Marshal(intent); err == nil {
			t.log(string(raw))
		}

		result, err := toolkit.Invoke(ctx, intent)
		if err != nil {
			result = err.Error()
		}
		input = fmt.Sprintf("<tool_result>%s</tool_result>", result)
		t.log(input)
		t.current++
	}

	t.log("reached max working loop limit")
	return errors.ErrLoopLimitReached
}

// preprocess obtains a planner, asks it which tools the task needs,
// binds those tools into a per-task Toolkit, then obtains an executor
// primed with the bound tools' manuals. Any failure here is terminal —
// the task never enters its working loop. Grounded on task.rs's
// Task::preprocess.
func (t *task) preprocess(ctx context.Context) (Executor, Toolkit, error) {
	planner, err := t.getPlanner(ctx)
	if err != nil {
		msg := fmt.Sprintf("unable to obtain the manuals this task needs: %s", err)
		t.log(msg)
		return nil, nil, errors.New(msg)
	}
	t.log("obtained planner")

	toolsList, err := planner.GetToolsList(ctx, t.description)
	if err != nil {
		msg := fmt.Sprintf("failed to obtain the tools list: %s", err)
		t.log(msg)
		return nil, nil, errors.New(msg)
	}
	t.log(fmt.Sprintf("obtained tools list: %v", toolsList.Tools))

	if toolsList.Tools == nil {
		t.log("no tool suffices for this task, cannot continue")
		return nil, nil, errors.ErrNoSuitableTool
	}

	toolkit, err := t.getToolkit(ctx, toolsList.Tools)
	if err != nil {
		msg := fmt.Sprintf("failed to obtain the required toolkit: %s", err)
		t.log(msg)
		return nil, nil, errors.New(msg)
	}
	t.log("obtained toolkit")

	executor, err := t.getExecutor(ctx)
	if err != nil {
		msg := fmt.Sprintf("failed to obtain an executor: %s", err)
		t.log(msg)
		return nil, nil, errors.New(msg)
	}
	executor.AddPreset(toolkit.Manuals())
	t.log("obtained executor")

	return executor, toolkit, nil
}

func (t *task) log(line string) {
	t.logs.log(t.id, line)
}

func (t *task) getPlanner(ctx context.Context) (Planner, error) {
	ctx, cancel := bus.WithRequestTimeout(ctx)
	defer cancel()
	return bus.Ask(ctx, t.bus, t.handle, proto.ChatService, func(reply chan Planner) GetPlannerRequest {
		return GetPlannerRequest{Reply: reply}
	})
}

func (t *task) getExecutor(ctx context.Context) (Executor, error) {
	ctx, cancel := bus.WithRequestTimeout(ctx)
	defer cancel()
	return bus.Ask(ctx, t.bus, t.handle, proto.ChatService, func(reply chan Executor) GetExecutorRequest {
		return GetExecutorRequest{Reply: reply}
	})
}

func (t *task) getToolkit(ctx context.Context, toolNames []string) (Toolkit, error) {
	ctx, cancel := bus.WithRequestTimeout(ctx)
	defer cancel()
	return bus.Ask(ctx, t.bus, t.handle, proto.ToolkitService, func(reply chan Toolkit) GetToolkitRequest {
		return GetToolkitRequest{ToolNames: toolNames, TaskID: t.id, TaskDescription: t.description, Reply: reply}
	})
}
