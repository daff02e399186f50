// Package bus implements the token-authenticated message bus every
// Helenium service sends and receives through. Grounded on tab-fuku's
// internal/app/bus package (mutex-guarded subscriber map, non-blocking
// publish with a blocking fallback for critical messages, a NoOp
// implementation for tests) generalized from fuku's broadcast-only
// event bus to heleny-bus's addressed, token-authenticated model: every
// participant registers once and gets back a private mailbox plus a
// Token bound to its (name, role) pair, and every send is routed to
// exactly one target after the sender's token is resolved.
package bus

import (
	"fmt"
	"sync"

	"github.com/hsiatein/helenium/internal/config"
	"github.com/hsiatein/helenium/internal/config/logger"
	"github.com/hsiatein/helenium/internal/errors"
	"github.com/hsiatein/helenium/internal/proto"
)

// Tap observes every envelope the Bus successfully delivers, used by
// the Stats service to publish TotalBusTraffic without coupling the
// Bus to any one subscriber's representation of a sample.
type Tap func(target string)

// Bus is the interface every Endpoint and service runtime talks to.
type Bus interface {
	// Register creates a mailbox for name under role and returns the
	// token the caller must present on every subsequent Send.
	Register(name string, role proto.Role) (*Handle, error)
	// Unregister tears down name's mailbox and invalidates its token.
	Unregister(name string)
	// Send routes an envelope to its target, after resolving the
	// sender's token into a name and role. Delivery is non-blocking
	// unless the envelope is marked Critical, in which case Send
	// blocks (in a detached goroutine) until the mailbox accepts it
	// or the bus closes.
	Send(env proto.TokenEnvelope) error
	// SetTap installs (or clears, with nil) the traffic observer.
	SetTap(tap Tap)
	// Close tears down every mailbox. Safe to call more than once.
	Close()
}

// Handle is what Register hands back: the token to sign future
// envelopes with, and the channel the holder should range over.
type Handle struct {
	Name  string
	Token proto.Token
	Role  proto.Role
	recv  chan proto.SignedEnvelope
}

// Recv returns the mailbox's receive side.
func (h *Handle) Recv() <-chan proto.SignedEnvelope { return h.recv }

type bus struct {
	mu          sync.RWMutex
	mailboxSize int
	endpoints   map[string]*mailbox
	tokens      map[proto.Token]string
	closed      bool
	tap         Tap
	log         logger.Logger
}

type mailbox struct {
	role proto.Role
	ch   chan proto.SignedEnvelope
}

// New builds a Bus sized from cfg.Bus.MailboxSize.
func New(cfg *config.Config, log logger.Logger) Bus {
	size := config.DefaultMailboxSize
	if cfg != nil && cfg.Bus.MailboxSize > 0 {
		size = cfg.Bus.MailboxSize
	}

	return &bus{
		mailboxSize: size,
		endpoints:   make(map[string]*mailbox),
		tokens:      make(map[proto.Token]string),
		log:         log,
	}
}

func (b *bus) Register(name string, role proto.Role) (*Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, errors.ErrBusClosed
	}

	if _, exists := b.endpoints[name]; exists {
		return nil, fmt.Errorf("%w: %s", errors.ErrDuplicateName, name)
	}

	token := proto.NewToken()
	mb := &mailbox{role: role, ch: make(chan proto.SignedEnvelope, b.mailboxSize)}
	b.endpoints[name] = mb
	b.tokens[token] = name

	if b.log != nil {
		b.log.Debug().Str("endpoint", name).Msg("endpoint registered")
	}

	return &Handle{Name: name, Token: token, Role: role, recv: mb.ch}, nil
}

func (b *bus) Unregister(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	mb, ok := b.endpoints[name]
	if !ok {
		return
	}

	delete(b.endpoints, name)
	for tok, n := range b.tokens {
		if n == name {
			delete(b.tokens, tok)
			break
		}
	}

	close(mb.ch)
}

func (b *bus) Send(env proto.TokenEnvelope) error {
	b.mu.RLock()

	if b.closed {
		b.mu.RUnlock()
		return errors.ErrBusClosed
	}

	senderName, ok := b.tokens[env.Token]
	if !ok {
		b.mu.RUnlock()
		return errors.ErrUnknownToken
	}

	senderMB := b.endpoints[senderName]

	target, ok := b.endpoints[env.Target]
	if !ok {
		b.mu.RUnlock()
		return fmt.Errorf("%w: %s", errors.ErrUnknownTarget, env.Target)
	}

	tap := b.tap
	b.mu.RUnlock()

	signed := proto.SignedEnvelope{
		Target:   env.Target,
		Name:     senderName,
		Role:     senderMB.role,
		Payload:  env.Payload,
		Critical: env.Critical,
	}

	select {
	case target.ch <- signed:
		if tap != nil {
			tap(env.Target)
		}
		return nil
	default:
		if !env.Critical {
			return nil
		}

		go func() {
			defer func() { _ = recover() }()
			target.ch <- signed
		}()

		if tap != nil {
			tap(env.Target)
		}
		return nil
	}
}

func (b *bus) SetTap(tap Tap) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tap = tap
}

func (b *bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true

	for _, mb := range b.endpoints {
		close(mb.ch)
	}

	b.endpoints = nil
	b.tokens = nil
}

// NoOp returns a Bus that accepts registrations but never delivers
// anything, for components that only need a mailbox to satisfy an
// interface in tests.
func NoOp() Bus { return &noOpBus{} }

type noOpBus struct{}

func (n *noOpBus) Register(name string, role proto.Role) (*Handle, error) {
	ch := make(chan proto.SignedEnvelope)
	return &Handle{Name: name, Token: proto.NewToken(), Role: role, recv: ch}, nil
}

func (n *noOpBus) Unregister(name string)             {}
func (n *noOpBus) Send(env proto.TokenEnvelope) error { return nil }
func (n *noOpBus) SetTap(tap Tap)                     {}
func (n *noOpBus) Close()                             {}
