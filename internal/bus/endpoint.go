package bus

import (
	"context"

	"github.com/hsiatein/helenium/internal/config"
	"github.com/hsiatein/helenium/internal/proto"
)

// Tell is a fire-and-forget send: build the envelope from h's token and
// hand it to the bus. Critical messages (health signals, shutdown
// commands) should set critical so the bus blocks rather than drops
// them under backpressure.
func Tell(b Bus, h *Handle, target string, payload any, critical bool) error {
	return b.Send(proto.TokenEnvelope{
		Target:   target,
		Token:    h.Token,
		Payload:  payload,
		Critical: critical,
	})
}

// Ask implements the in-process request/response idiom every auxiliary
// service uses for synchronous calls: the caller embeds a reply channel
// directly in its request payload (the Go analogue of heleny-service's
// oneshot::Sender<T> fields), sends it like any other message, and
// blocks on that channel with a deadline instead of polling a
// correlation table. mk receives the reply channel and must return the
// request payload carrying it.
func Ask[Req any, Resp any](ctx context.Context, b Bus, h *Handle, target string, mk func(reply chan Resp) Req) (Resp, error) {
	var zero Resp

	reply := make(chan Resp, 1)
	req := mk(reply)

	if err := Tell(b, h, target, req, false); err != nil {
		return zero, err
	}

	select {
	case resp := <-reply:
		return resp, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// WithRequestTimeout wraps ctx with Helenium's default request budget,
// matching the kernel's 5-10s oneshot timeout convention.
func WithRequestTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, config.DefaultRequestTimeout)
}
