package proto

import (
	"time"

	"github.com/google/uuid"
)

// TriggerKind tags which TriggerTime variant a trigger carries.
type TriggerKind int

const (
	TriggerOnce TriggerKind = iota
	TriggerInterval
	TriggerDaily
	TriggerWeekly
	TriggerMonthly
)

// TriggerTime is the algebraic description of when a scheduled task
// should fire next. Only the fields relevant to Kind are meaningful;
// the scheduler package owns next_trigger math.
type TriggerTime struct {
	Kind TriggerKind

	// Once
	At time.Time

	// Interval
	Anchor  time.Time
	Minutes int

	// Daily / Weekly / Monthly: time-of-day
	Hour   int
	Minute int

	// Weekly: 0=Monday .. 6=Sunday
	Weekday int

	// Monthly: 1..31, clamped to the month's last day
	Day int
}

// ScheduledTask is a persisted schedule entry.
type ScheduledTask struct {
	ID          uuid.UUID
	Description string
	Triggers    []TriggerTime
	OffsetSecs  int
	NextTrigger *time.Time
}
