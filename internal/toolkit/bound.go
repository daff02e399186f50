package toolkit

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hsiatein/helenium/internal/bus"
	"github.com/hsiatein/helenium/internal/errors"
	"github.com/hsiatein/helenium/internal/proto"
)

// RequestConsentRequest is sent to the User service by a boundToolkit
// before a Tool performs anything side-effecting, carrying enough
// context for a human operator to approve or deny it. Grounded on
// heleny-service's UserServiceMessage::RequestConsent /
// ConsentRequestion.
type RequestConsentRequest struct {
	TaskID          uuid.UUID
	TaskDescription string
	Reason          string
	Description     string
	Reply           chan bool
}

// boundToolkit is the per-task set of tools a task may invoke,
// produced by Runtime.bindToolkit. It satisfies task.Toolkit without
// importing the task package — interface satisfaction in Go is
// structural, so the registry only needs to import task for the one
// request type it answers. Grounded on heleny-service's Toolkit/
// ToolkitEndpoint pair, collapsed into a single type: Go has no
// equivalent need for Toolkit to hold a nested endpoint wrapper purely
// to smuggle a task_id/reason pair into CanRequestConsent, since a
// plain struct field does the same job.
type boundToolkit struct {
	bus         bus.Bus
	handle      *bus.Handle
	taskID      uuid.UUID
	description string
	manuals     string
	tools       map[string]Tool
}

func (bt *boundToolkit) Manuals() string { return bt.manuals }

// Invoke dispatches intent.Tool/intent.Command into the bound Tool
// instance, gating consent through the User service. Grounded on
// Toolkit::invoke; the "you didn't fill in tool/command" guidance
// message mirrors the original's operator-facing correction text, not
// translated verbatim but carrying the same instruction.
func (bt *boundToolkit) Invoke(ctx context.Context, intent proto.Intent) (string, error) {
	if intent.Tool == nil || intent.Command == nil {
		return "", fmt.Errorf("%w: an intent needs both a tool and a command field, not nested inside one another", errors.ErrProtocol)
	}

	tool, ok := bt.tools[*intent.Tool]
	if !ok {
		return "", fmt.Errorf("%w: tool %q", errors.ErrUnknownTool, *intent.Tool)
	}

	consent := &taskConsentRequester{
		bus:         bt.bus,
		handle:      bt.handle,
		taskID:      bt.taskID,
		description: bt.description,
		reason:      intent.Reason,
	}
	return tool.Invoke(ctx, *intent.Command, intent.Args, consent)
}

// taskConsentRequester implements toolkit.ConsentRequester by asking
// the User service for a live operator decision. Grounded on
// ToolkitEndpoint's CanRequestConsent implementation.
type taskConsentRequester struct {
	bus         bus.Bus
	handle      *bus.Handle
	taskID      uuid.UUID
	description string
	reason      string
}

func (c *taskConsentRequester) RequestConsent(ctx context.Context, description string) error {
	ok, err := bus.Ask(ctx, c.bus, c.handle, proto.UserService, func(reply chan bool) RequestConsentRequest {
		return RequestConsentRequest{
			TaskID:          c.taskID,
			TaskDescription: c.description,
			Reason:          c.reason,
			Description:     description,
			Reply:           reply,
		}
	})
	if err != nil {
		return err
	}
	if !ok {
		return errors.ErrConsentDenied
	}
	return nil
}
