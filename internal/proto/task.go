package proto

import "github.com/google/uuid"

// TaskStatus is a task's lifecycle state.
type TaskStatus string

const (
	TaskPending  TaskStatus = "Pending"
	TaskRunning  TaskStatus = "Running"
	TaskCanceled TaskStatus = "Canceled"
	TaskSuccess  TaskStatus = "Success"
	TaskFail     TaskStatus = "Fail"
)

// TaskAbstract is the read-model projection of a task published to the
// Hub's TaskAbstract resource.
type TaskAbstract struct {
	ID          uuid.UUID
	Description string
	Status      TaskStatus
}

// ToolAbstract is the read-model projection of a registered tool
// published to the Hub's ToolAbstracts resource.
type ToolAbstract struct {
	Name        string
	Description string
	Enabled     bool
}

// AddTaskSignal asks the Task service to start a new task from a
// plain-text description — the message Scheduler (and any other
// participant) sends to enqueue work.
type AddTaskSignal struct {
	Description string
}

// UserDecision is the server->client consent-request wire shape.
type UserDecision struct {
	RequestID   uuid.UUID
	Description string
}

// Intent is the executor model's next-step proposal: either a tool/
// command invocation, or a terminal answer with no further step.
type Intent struct {
	Reason  string         `json:"reason"`
	Tool    *string        `json:"tool,omitempty"`
	Command *string        `json:"command,omitempty"`
	Args    map[string]any `json:"args,omitempty"`
}

// IsTerminal reports whether the intent signals "no further tool step".
func (i Intent) IsTerminal() bool {
	return i.Tool == nil && i.Command == nil
}
