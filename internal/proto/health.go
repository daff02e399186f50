package proto

import "time"

// HealthStatus is a service's lifecycle state, grounded on
// heleny-proto's HealthStatus enum.
type HealthStatus string

const (
	Starting HealthStatus = "Starting"
	Healthy  HealthStatus = "Healthy"
	Unhealthy HealthStatus = "Unhealthy"
	Stopping HealthStatus = "Stopping"
	Stopped  HealthStatus = "Stopped"
)

// StalenessWindow is how long a Healthy service may go without an Alive
// signal before KernelService demotes it to Unhealthy.
const StalenessWindow = 5 * time.Second

// ServiceHealth pairs a status with the time of its last signal.
type ServiceHealth struct {
	Status     HealthStatus
	LastSignal *time.Time
}

// KernelHealth is the aggregate health snapshot shared between Kernel
// and KernelService, and published to the Hub as the Health resource.
// Grounded on heleny-proto/src/health.rs's KernelHealth.
type KernelHealth struct {
	Kernel   HealthStatus
	Services map[string]ServiceHealth
}

// NewKernelHealth builds an aggregate with every named service Starting.
func NewKernelHealth(names []string) KernelHealth {
	services := make(map[string]ServiceHealth, len(names))
	for _, n := range names {
		services[n] = ServiceHealth{Status: Starting}
	}
	return KernelHealth{Kernel: Starting, Services: services}
}

// Update demotes any Healthy service whose last signal is older than
// StalenessWindow to Unhealthy, and any service with no signal yet to
// Starting. Mirrors KernelHealth::update in health.rs.
func (h *KernelHealth) Update(now time.Time) {
	for name, s := range h.Services {
		if s.LastSignal == nil {
			s.Status = Starting
			h.Services[name] = s
			continue
		}
		if s.Status == Healthy && now.Sub(*s.LastSignal) > StalenessWindow {
			s.Status = Unhealthy
			h.Services[name] = s
		}
	}
}

// IsSame reports whether two snapshots carry the same kernel status and
// the same per-service status for every known name, ignoring
// timestamps. Used to gate the Hub health-resource publish-on-change.
func (h KernelHealth) IsSame(other KernelHealth) bool {
	if h.Kernel != other.Kernel {
		return false
	}
	if len(h.Services) != len(other.Services) {
		return false
	}
	for name, a := range h.Services {
		b, ok := other.Services[name]
		if !ok || a.Status != b.Status {
			return false
		}
	}
	return true
}

// SetAlive marks name Healthy and refreshes its last-signal time.
func (h *KernelHealth) SetAlive(name string, now time.Time) bool {
	s, ok := h.Services[name]
	if !ok {
		return false
	}
	s.Status = Healthy
	s.LastSignal = &now
	h.Services[name] = s
	return true
}

// SetDead marks name Stopped and refreshes its last-signal time.
func (h *KernelHealth) SetDead(name string, now time.Time) bool {
	s, ok := h.Services[name]
	if !ok {
		return false
	}
	s.Status = Stopped
	s.LastSignal = &now
	h.Services[name] = s
	return true
}

// Clone returns a deep-enough copy for snapshot delivery (Services map
// is copied; ServiceHealth values are copied by value).
func (h KernelHealth) Clone() KernelHealth {
	services := make(map[string]ServiceHealth, len(h.Services))
	for k, v := range h.Services {
		services[k] = v
	}
	return KernelHealth{Kernel: h.Kernel, Services: services}
}
