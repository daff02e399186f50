package scheduler

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hsiatein/helenium/internal/bus"
	"github.com/hsiatein/helenium/internal/errors"
	"github.com/hsiatein/helenium/internal/proto"
	"github.com/hsiatein/helenium/internal/toolkit"
)

// scheduleToolFactory registers the "schedule" tool family with the
// Toolkit service: once/interval/cron/list/cancel, each consent-gated
// before it mutates the schedule. Grounded on
// service-schedule/src/tool.rs's ScheduleToolFactory/ScheduleTool.
type scheduleToolFactory struct {
	bus        bus.Bus
	handle     *bus.Handle
	offsetSecs int
}

func (scheduleToolFactory) Name() string { return "schedule" }

func (scheduleToolFactory) Manual() string {
	return "Manage scheduled tasks. Commands: once(time,description), " +
		"interval(every,description), cron(cron,description), list(), cancel(id)."
}

func (f scheduleToolFactory) Create() (toolkit.Tool, error) {
	return &scheduleTool{bus: f.bus, handle: f.handle, offsetSecs: f.offsetSecs}, nil
}

type scheduleTool struct {
	bus        bus.Bus
	handle     *bus.Handle
	offsetSecs int
}

func (t *scheduleTool) Invoke(ctx context.Context, command string, args map[string]any, consent toolkit.ConsentRequester) (string, error) {
	switch command {
	case "once":
		when, err := stringArg(args, "time")
		if err != nil {
			return "", err
		}
		description, err := stringArg(args, "description")
		if err != nil {
			return "", err
		}
		triggers, err := parseOnce(when)
		if err != nil {
			return "", err
		}
		task := proto.ScheduledTask{Description: description, Triggers: triggers, OffsetSecs: t.offsetSecs}
		if err := consent.RequestConsent(ctx, fmt.Sprintf("create schedule task: %+v", task)); err != nil {
			return "", err
		}
		_ = bus.Tell(t.bus, t.handle, proto.ScheduleService, AddTaskRequest{Task: task}, false)
		return "once schedule task created", nil

	case "interval":
		minutes, err := intArg(args, "every")
		if err != nil {
			return "", err
		}
		description, err := stringArg(args, "description")
		if err != nil {
			return "", err
		}
		trig, err := parseInterval(minutes, t.offsetSecs)
		if err != nil {
			return "", err
		}
		task := proto.ScheduledTask{Description: description, Triggers: []proto.TriggerTime{trig}, OffsetSecs: t.offsetSecs}
		if err := consent.RequestConsent(ctx, fmt.Sprintf("create schedule task: %+v", task)); err != nil {
			return "", err
		}
		_ = bus.Tell(t.bus, t.handle, proto.ScheduleService, AddTaskRequest{Task: task}, false)
		return "interval schedule task created", nil

	case "cron":
		expr, err := stringArg(args, "cron")
		if err != nil {
			return "", err
		}
		description, err := stringArg(args, "description")
		if err != nil {
			return "", err
		}
		triggers, err := parseCron(expr)
		if err != nil {
			return "", err
		}
		task := proto.ScheduledTask{Description: description, Triggers: triggers, OffsetSecs: t.offsetSecs}
		if err := consent.RequestConsent(ctx, fmt.Sprintf("create schedule task: %+v", task)); err != nil {
			return "", err
		}
		_ = bus.Tell(t.bus, t.handle, proto.ScheduleService, AddTaskRequest{Task: task}, false)
		return "cron schedule task created", nil

	case "list":
		got, err := bus.Ask(ctx, t.bus, t.handle, proto.ScheduleService, func(reply chan map[uuid.UUID]proto.ScheduledTask) ListTaskRequest {
			return ListTaskRequest{Reply: reply}
		})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%+v", got), nil

	case "cancel":
		idStr, err := stringArg(args, "id")
		if err != nil {
			return "", err
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return "", fmt.Errorf("%w: invalid id %q", errors.ErrConfig, idStr)
		}
		if err := consent.RequestConsent(ctx, "cancel schedule task "+idStr); err != nil {
			return "", err
		}
		_ = bus.Tell(t.bus, t.handle, proto.ScheduleService, CancelTaskRequest{ID: id}, false)
		return "schedule task canceled", nil

	default:
		return "", fmt.Errorf("%w: unknown schedule command %q", errors.ErrProtocol, command)
	}
}

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("%w: missing arg %q", errors.ErrProtocol, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: arg %q must be a string", errors.ErrProtocol, key)
	}
	return s, nil
}

func intArg(args map[string]any, key string) (int, error) {
	v, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing arg %q", errors.ErrProtocol, key)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("%w: arg %q must be a number", errors.ErrProtocol, key)
	}
}
