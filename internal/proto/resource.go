package proto

import (
	"time"

	"github.com/google/uuid"
)

// Well-known resource names, grounded on heleny-proto's static
// resource-name strings.
const (
	ResourceTotalBusTraffic = "TotalBusTraffic"
	ResourceDisplayMessages = "DisplayMessages"
	ResourceHealth          = "Health"
	ResourceTaskAbstract    = "TaskAbstract"
	ResourceSchedule        = "Schedule"
	ResourceToolAbstracts   = "ToolAbstracts"
)

// Resource is a named, versioned value published by at most one
// service and observed by many.
type Resource struct {
	Name    string
	Payload ResourcePayload
}

// ResourcePayload is a type-erased tagged union; concrete payload types
// below implement it as a marker. Receivers type-switch on the concrete
// type, mirroring heleny-proto's ResourcePayload enum.
type ResourcePayload interface {
	resourcePayload()
}

type HealthPayload struct{ Health KernelHealth }

func (HealthPayload) resourcePayload() {}

type TrafficPoint struct {
	At    time.Time
	Count int
}

type TotalBusTrafficPayload struct{ Points []TrafficPoint }

func (TotalBusTrafficPayload) resourcePayload() {}

type DisplayMessagesPayload struct {
	New      bool
	Messages []MemoryEntry
}

func (DisplayMessagesPayload) resourcePayload() {}

type ImagePayload struct {
	ID     int64
	Base64 string
}

func (ImagePayload) resourcePayload() {}

type TaskAbstractPayload struct{ TaskAbstracts []TaskAbstract }

func (TaskAbstractPayload) resourcePayload() {}

type TaskLogsPayload struct {
	ID   uuid.UUID
	Logs []string
}

func (TaskLogsPayload) resourcePayload() {}

type SchedulesPayload struct{ Schedules map[uuid.UUID]ScheduledTask }

func (SchedulesPayload) resourcePayload() {}

type ToolAbstractsPayload struct{ Abstracts []ToolAbstract }

func (ToolAbstractsPayload) resourcePayload() {}
