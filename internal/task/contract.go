// Package task implements the Task service: the planner/executor/
// toolkit working loop that turns a plain-text description into a
// bounded sequence of tool invocations, plus the per-task log actor
// every subscriber (attach CLI, webui) streams from. Grounded on
// service-task/src/lib.rs, task.rs, task_logger.rs and config.rs in
// their entirety.
package task

import (
	"context"

	"github.com/google/uuid"

	"github.com/hsiatein/helenium/internal/proto"
)

// ToolsList is a planner's answer to "which tools does this
// description need". A nil Tools means no registered tool suffices —
// the task fails preprocessing rather than run with an empty toolbox,
// mirroring tools_list.tools being Option<Vec<String>> in Rust.
type ToolsList struct {
	Tools []string
}

// Planner is obtained from the Chat service once per task and asked
// which tools the task will need. Grounded on heleny-proto's
// PlannerModel.
type Planner interface {
	GetToolsList(ctx context.Context, description string) (ToolsList, error)
}

// Executor drives the working loop: each call proposes the next
// Intent given the latest input (the task description, or the
// previous step's <tool_result>). Grounded on heleny-proto's
// ExecutorModel.
type Executor interface {
	AddPreset(manual string)
	GetIntent(ctx context.Context, input string) (proto.Intent, error)
}

// Toolkit is the bound, per-task set of tools a task may invoke,
// handed back by the Toolkit service once it knows which names the
// planner asked for. Grounded on heleny-service's Toolkit type.
type Toolkit interface {
	Invoke(ctx context.Context, intent proto.Intent) (string, error)
	Manuals() string
}

// GetPlannerRequest is sent to ChatService; it owns the model that
// answers planning questions.
type GetPlannerRequest struct {
	Reply chan Planner
}

// GetExecutorRequest is sent to ChatService; it owns the model that
// proposes intents.
type GetExecutorRequest struct {
	Reply chan Executor
}

// GetToolkitRequest is sent to ToolkitService once the planner has
// named which tools a task needs; the reply is a Toolkit bound to
// exactly those tools for exactly this task.
type GetToolkitRequest struct {
	ToolNames       []string
	TaskID          uuid.UUID
	TaskDescription string
	Reply           chan Toolkit
}

// AddTaskRequest asks the Task service to start a new task from a
// plain-text description. Prefer sending proto.AddTaskSignal instead —
// this type exists so a caller that already holds a task.Runtime
// reference (tests, in-process callers) can address it directly
// without importing proto's wire alias.
type AddTaskRequest struct {
	Description string
}

// CancelTaskRequest cancels a running or still-pending task.
type CancelTaskRequest struct {
	ID uuid.UUID
}

// SubscribeTaskLogsRequest streams every future log line for Task ID
// into Sender, replaying the lines already recorded first.
type SubscribeTaskLogsRequest struct {
	ID     uuid.UUID
	Ctx    context.Context
	Sender chan string
}

// GetTaskLogRequest synchronously reads everything logged for Task ID
// so far.
type GetTaskLogRequest struct {
	ID    uuid.UUID
	Reply chan TaskLog
}

// TaskLog is a snapshot of one task's accumulated log lines and
// read-model fields.
type TaskLog struct {
	Description string
	Status      proto.TaskStatus
	Lines       []string
}

// finishSignal is Task's private report back to its owning Runtime
// that it has stopped running, win or lose. Routed through the bus
// (rather than a direct method call) so it lands on the Runtime's own
// actor loop instead of racing its mutex-free bookkeeping from the
// Task's goroutine — the Go analogue of WorkerMessage::Finish crossing
// back over the sub-endpoint in the original.
type finishSignal struct {
	ID      uuid.UUID
	Success bool
}
