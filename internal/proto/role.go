package proto

// Role is the authority bound to a token at registration time.
type Role int

const (
	RoleStandard Role = iota
	RoleUser
	RoleSystem
)

func (r Role) String() string {
	switch r {
	case RoleSystem:
		return "System"
	case RoleUser:
		return "User"
	default:
		return "Standard"
	}
}

// CanAdmin reports whether the role may issue AdminCommand payloads.
func (r Role) CanAdmin() bool { return r == RoleSystem }

// CanShutdown reports whether the role may request a kernel shutdown.
func (r Role) CanShutdown() bool { return r == RoleSystem || r == RoleUser }
