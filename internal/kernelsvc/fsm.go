package kernelsvc

import (
	"context"

	"github.com/looplab/fsm"

	"github.com/hsiatein/helenium/internal/proto"
)

// FSM events driving a service's health-map state. Named after the
// ServiceSignal variants heleny-kernel's handle_status.rs switches on.
const (
	evReady     = "ready"
	evAlive     = "alive"
	evUnhealthy = "unhealthy"
	evStopping  = "stopping"
	evStopped   = "stopped"
	evFail      = "fail"
)

// newServiceFSM models one service's health-map transitions, grounded
// on tab-fuku/internal/app/ui/services/state.go's newServiceFSM, with
// states renamed to proto.HealthStatus's vocabulary.
func newServiceFSM() *fsm.FSM {
	return fsm.NewFSM(
		string(proto.Starting),
		fsm.Events{
			{Name: evReady, Src: []string{string(proto.Starting)}, Dst: string(proto.Healthy)},
			{Name: evAlive, Src: []string{string(proto.Healthy), string(proto.Unhealthy)}, Dst: string(proto.Healthy)},
			{Name: evUnhealthy, Src: []string{string(proto.Healthy)}, Dst: string(proto.Unhealthy)},
			{Name: evStopping, Src: []string{string(proto.Starting), string(proto.Healthy), string(proto.Unhealthy)}, Dst: string(proto.Stopping)},
			{Name: evStopped, Src: []string{string(proto.Stopping)}, Dst: string(proto.Stopped)},
			{Name: evFail, Src: []string{string(proto.Starting), string(proto.Healthy), string(proto.Unhealthy), string(proto.Stopping)}, Dst: string(proto.Stopped)},
		},
		fsm.Callbacks{},
	)
}

func fireFSM(f *fsm.FSM, event string) error {
	return f.Event(context.Background(), event)
}
