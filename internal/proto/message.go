package proto

import "github.com/google/uuid"

// Token is the opaque identifier a participant presents to the Bus on
// every send. It is bound to exactly one (name, role) pair for its
// lifetime, aside from the role promotion performed by SetUser.
type Token = uuid.UUID

// NewToken mints a fresh token. Grounded on heleny-bus's Uuid::new_v4()
// token minting at endpoint creation.
func NewToken() Token { return uuid.New() }

// TokenEnvelope is what an Endpoint produces: a destination, the
// sender's token, and a type-erased payload. The Bus resolves the token
// into a SignedEnvelope before forwarding.
type TokenEnvelope struct {
	Target   string
	Token    Token
	Payload  any
	Critical bool
}

// SignedEnvelope is what the Bus delivers to a target mailbox: the
// token has been resolved into the sender's name and role.
type SignedEnvelope struct {
	Target   string
	Name     string
	Role     Role
	Payload  any
	Critical bool
}

// Downcast attempts to narrow an envelope payload to T. Go's type
// assertions already do what heleny-proto's Any::downcast did in Rust;
// this helper exists so call sites read the same as the original
// downcast::<T>(msg) calls.
func Downcast[T any](payload any) (T, bool) {
	v, ok := payload.(T)
	return v, ok
}

// CommonMessage is the fallback message family every service runtime
// tries after its own typed message enum fails to match. It mirrors
// heleny-service's CommonMessage{Stop, Resource(Resource)}.
type CommonMessage interface {
	commonMessage()
}

// StopCommand asks a service to terminate. Only honored from a
// Role=System sender (enforced by the runtime, not here).
type StopCommand struct{}

func (StopCommand) commonMessage() {}

// ResourceCommand delivers a Hub-forwarded resource update.
type ResourceCommand struct {
	Resource Resource
}

func (ResourceCommand) commonMessage() {}
