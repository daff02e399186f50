package toolkit

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	helbus "github.com/hsiatein/helenium/internal/bus"
	"github.com/hsiatein/helenium/internal/config"
	"github.com/hsiatein/helenium/internal/errors"
	"github.com/hsiatein/helenium/internal/proto"
)

type consentTool struct{}

func (consentTool) Invoke(ctx context.Context, command string, args map[string]any, consent ConsentRequester) (string, error) {
	if err := consent.RequestConsent(ctx, "perform "+command); err != nil {
		return "", err
	}
	return "ok: " + command, nil
}

func newBoundToolkitFixture(t *testing.T) (helbus.Bus, *boundToolkit) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Bus.MailboxSize = 8
	b := helbus.New(cfg, nil)

	h, err := b.Register("task-caller", proto.RoleStandard)
	require.NoError(t, err)

	bt := &boundToolkit{
		bus:         b,
		handle:      h,
		taskID:      uuid.New(),
		description: "water the plants",
		manuals:     `[{"name":"plant","description":"waters plants"}]`,
		tools:       map[string]Tool{"plant": consentTool{}},
	}
	return b, bt
}

func runUserServiceDecision(ctx context.Context, t *testing.T, b helbus.Bus, decision bool) {
	t.Helper()
	user, err := b.Register(proto.UserService, proto.RoleStandard)
	require.NoError(t, err)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case env, ok := <-user.Recv():
				if !ok {
					return
				}
				if req, ok := env.Payload.(RequestConsentRequest); ok {
					req.Reply <- decision
				}
			}
		}
	}()
}

func Test_BoundToolkit_Invoke_ConsentGrantedRunsTheTool(t *testing.T) {
	b, bt := newBoundToolkitFixture(t)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runUserServiceDecision(ctx, t, b, true)

	tool := "plant"
	command := "water"
	result, err := bt.Invoke(context.Background(), proto.Intent{Tool: &tool, Command: &command})
	require.NoError(t, err)
	assert.Equal(t, "ok: water", result)
}

func Test_BoundToolkit_Invoke_ConsentDeniedFailsTheInvoke(t *testing.T) {
	b, bt := newBoundToolkitFixture(t)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runUserServiceDecision(ctx, t, b, false)

	tool := "plant"
	command := "water"
	_, err := bt.Invoke(context.Background(), proto.Intent{Tool: &tool, Command: &command})
	assert.ErrorIs(t, err, errors.ErrConsentDenied)
}

func Test_BoundToolkit_Invoke_UnknownToolFails(t *testing.T) {
	b, bt := newBoundToolkitFixture(t)
	defer b.Close()

	tool := "ghost"
	command := "water"
	_, err := bt.Invoke(context.Background(), proto.Intent{Tool: &tool, Command: &command})
	assert.ErrorIs(t, err, errors.ErrUnknownTool)
}

func Test_BoundToolkit_Invoke_MissingToolOrCommandFails(t *testing.T) {
	b, bt := newBoundToolkitFixture(t)
	defer b.Close()

	_, err := bt.Invoke(context.Background(), proto.Intent{Reason: "no fields set"})
	assert.ErrorIs(t, err, errors.ErrProtocol)
}

func Test_BoundToolkit_Manuals(t *testing.T) {
	b, bt := newBoundToolkitFixture(t)
	defer b.Close()

	assert.Contains(t, bt.Manuals(), "waters plants")
}
