// Package scheduler implements the Schedule service: the
// TriggerTime algebra, a Cron-expression expander, and a Runtime actor
// that persists scheduled tasks and emits AddTask to the Task engine
// when they come due. Grounded on heleny-proto/src/schedule.rs in its
// entirety, including its own test suite as the template for the Go
// tests here — the richest single grounding source in the corpus for
// this component.
package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/hsiatein/helenium/internal/errors"
	"github.com/hsiatein/helenium/internal/proto"
)

// location turns a fixed UTC offset in seconds into the *time.Location
// every trigger computation in this package runs against. There is no
// Go stdlib equivalent of chrono's FixedOffset type; FixedZone is it.
func location(offsetSecs int) *time.Location {
	return time.FixedZone("", offsetSecs)
}

// parseOnce parses a comma-separated list of RFC3339 timestamps. Any
// invalid element is a hard error — the whole list is rejected, not
// just the bad element.
func parseOnce(s string) ([]proto.TriggerTime, error) {
	parts := strings.Split(s, ",")
	triggers := make([]proto.TriggerTime, 0, len(parts))
	for _, p := range parts {
		t, err := time.Parse(time.RFC3339, p)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid RFC3339 timestamp %q", errors.ErrConfig, p)
		}
		triggers = append(triggers, proto.TriggerTime{Kind: proto.TriggerOnce, At: t})
	}
	return triggers, nil
}

// parseInterval builds a fresh Interval trigger anchored to now.
func parseInterval(minutes int, offsetSecs int) (proto.TriggerTime, error) {
	if minutes < 1 {
		return proto.TriggerTime{}, fmt.Errorf("%w: interval must be >= 1 minute", errors.ErrConfig)
	}
	return proto.TriggerTime{
		Kind:    proto.TriggerInterval,
		Anchor:  time.Now().In(location(offsetSecs)),
		Minutes: minutes,
	}, nil
}

// nextTrigger computes when t next fires, given the fixed offset the
// owning ScheduledTask carries.
func nextTrigger(t proto.TriggerTime, offsetSecs int) (time.Time, error) {
	loc := location(offsetSecs)
	now := time.Now().In(loc)

	switch t.Kind {
	case proto.TriggerOnce:
		at := t.At.In(loc)
		if now.After(at) {
			return time.Time{}, errors.ErrPastTrigger
		}
		return at, nil

	case proto.TriggerInterval:
		return nextIntervalTrigger(t.Anchor.In(loc), t.Minutes, now)

	case proto.TriggerDaily:
		today := now
		scheduledToday := time.Date(today.Year(), today.Month(), today.Day(), t.Hour, t.Minute, 0, 0, loc)
		return nextIntervalTrigger(scheduledToday, 24*60, now)

	case proto.TriggerWeekly:
		today := now
		daysAhead := (t.Weekday - mondayBased(today.Weekday()) + 7) % 7
		candidateDate := today.AddDate(0, 0, daysAhead)
		candidate := time.Date(candidateDate.Year(), candidateDate.Month(), candidateDate.Day(), t.Hour, t.Minute, 0, 0, loc)
		return nextIntervalTrigger(candidate, 7*24*60, now)

	case proto.TriggerMonthly:
		if t.Day < 1 {
			return time.Time{}, fmt.Errorf("%w: monthly day must be >= 1", errors.ErrConfig)
		}
		candidate := monthlyCandidate(now.Year(), now.Month(), t.Day, t.Hour, t.Minute, loc)
		if candidate.After(now) {
			return candidate, nil
		}
		year, month := now.Year(), now.Month()+1
		if month > 12 {
			month = 1
			year++
		}
		return monthlyCandidate(year, month, t.Day, t.Hour, t.Minute, loc), nil
	}

	return time.Time{}, fmt.Errorf("%w: unknown trigger kind", errors.ErrConfig)
}

// nextIntervalTrigger is the one piece of math every periodic trigger
// kind (Interval itself, plus Daily/Weekly expressed as a 1440- or
// 10080-minute stride from a computed anchor) reduces to: the smallest
// anchor + k*step strictly greater than now, computed without a loop.
func nextIntervalTrigger(anchor time.Time, stepMinutes int, now time.Time) (time.Time, error) {
	if stepMinutes <= 0 {
		return time.Time{}, fmt.Errorf("%w: interval must be > 0", errors.ErrConfig)
	}
	if now.Before(anchor) {
		return anchor, nil
	}
	step := time.Duration(stepMinutes) * time.Minute
	t := int64(now.Sub(anchor) / step)
	return anchor.Add(time.Duration(t+1) * step), nil
}

// mondayBased converts Go's Sunday=0..Saturday=6 weekday into the
// Monday=0..Sunday=6 convention proto.TriggerTime.Weekday uses.
func mondayBased(w time.Weekday) int {
	return (int(w) + 6) % 7
}

// monthlyCandidate clamps day to the month's last day and builds the
// time-of-day in loc. time.Date(y, m+1, 0, ...) is the stdlib idiom for
// "last day of month m".
func monthlyCandidate(year int, month time.Month, day, hour, minute int, loc *time.Location) time.Time {
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(year, month, day, hour, minute, 0, 0, loc)
}
