package scheduler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/hsiatein/helenium/internal/errors"
	"github.com/hsiatein/helenium/internal/proto"
)

// cronFieldParser validates the five-field grammar robfig/cron already
// knows how to read. It is used purely to reject malformed expressions
// early with a familiar cron error message; the expansion rules below
// (month must be "*", comma lists explode into Daily/Monthly/Weekly
// triggers) are this system's own semantics, not robfig's scheduling.
var cronFieldParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// parseCron expands a 5-field cron expression into the TriggerTime set
// it describes. Month must be "*"; minute and hour must each be an
// integer or a comma-separated list of integers; day-of-month and
// day-of-week may also be "*".
func parseCron(expr string) ([]proto.TriggerTime, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("%w: expected 5 fields, got %d", errors.ErrInvalidCron, len(fields))
	}

	if _, err := cronFieldParser.Parse(expr); err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrInvalidCron, err)
	}

	minuteField, hourField, domField, monthField, dowField := fields[0], fields[1], fields[2], fields[3], fields[4]
	if monthField != "*" {
		return nil, fmt.Errorf("%w: month field must be \"*\"", errors.ErrInvalidCron)
	}

	minutes, err := parseIntList(minuteField)
	if err != nil || len(minutes) == 0 {
		return nil, fmt.Errorf("%w: bad minute field %q", errors.ErrInvalidCron, minuteField)
	}
	hours, err := parseIntList(hourField)
	if err != nil || len(hours) == 0 {
		return nil, fmt.Errorf("%w: bad hour field %q", errors.ErrInvalidCron, hourField)
	}

	type clock struct{ hour, minute int }
	var times []clock
	for _, h := range hours {
		for _, m := range minutes {
			if h < 0 || h > 23 || m < 0 || m > 59 {
				continue
			}
			times = append(times, clock{hour: h, minute: m})
		}
	}
	if len(times) == 0 {
		return nil, fmt.Errorf("%w: no valid hour/minute combination", errors.ErrInvalidCron)
	}

	if domField == "*" && dowField == "*" {
		triggers := make([]proto.TriggerTime, 0, len(times))
		for _, c := range times {
			triggers = append(triggers, proto.TriggerTime{Kind: proto.TriggerDaily, Hour: c.hour, Minute: c.minute})
		}
		return triggers, nil
	}

	doms, _ := parseIntList(domField)
	dowsRaw, _ := parseIntList(dowField)

	var triggersMonthly, triggersWeekly []proto.TriggerTime
	for _, d := range doms {
		if d < 1 || d > 31 {
			continue
		}
		for _, c := range times {
			triggersMonthly = append(triggersMonthly, proto.TriggerTime{Kind: proto.TriggerMonthly, Day: d, Hour: c.hour, Minute: c.minute})
		}
	}
	for _, raw := range dowsRaw {
		weekday, ok := mondayBasedFromCron(raw)
		if !ok {
			continue
		}
		for _, c := range times {
			triggersWeekly = append(triggersWeekly, proto.TriggerTime{Kind: proto.TriggerWeekly, Weekday: weekday, Hour: c.hour, Minute: c.minute})
		}
	}

	return append(triggersMonthly, triggersWeekly...), nil
}

// mondayBasedFromCron maps cron's 0-7 Sunday-first day-of-week (with
// both 0 and 7 meaning Sunday) to proto.TriggerTime's Monday=0..Sunday=6.
func mondayBasedFromCron(raw int) (int, bool) {
	switch raw {
	case 1, 2, 3, 4, 5, 6:
		return raw - 1, true
	case 0, 7:
		return 6, true
	default:
		return 0, false
	}
}

func parseIntList(field string) ([]int, error) {
	parts := strings.Split(field, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
