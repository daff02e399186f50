// Package hub implements the Hub service: the publish-on-change
// resource registry every other service reads shared state through
// instead of polling one another directly. Grounded on
// service-hub/src/lib.rs and service-hub/src/provider.rs (the publish-
// replace-if-same-name rule, pending-subscriber absorption, one
// provider-per-resource invariant). Secondary grounding for the
// channel-actor shape: tab-fuku/internal/app/logs/hub.go's
// register/unregister/broadcast select loop.
package hub

import (
	"context"
	"reflect"

	"github.com/hsiatein/helenium/internal/bus"
	"github.com/hsiatein/helenium/internal/errors"
	"github.com/hsiatein/helenium/internal/proto"
	"github.com/hsiatein/helenium/internal/runtime"
)

// PublishRequest asks the Hub to set (or replace) a resource's value.
// Only the original publisher of a name may republish it.
type PublishRequest struct {
	Resource proto.Resource
}

// UnpublishRequest removes a resource. Only the Hub itself may issue
// it; any other sender gets ErrForbiddenUnpublish.
type UnpublishRequest struct {
	Name string
}

// SubscribeRequest registers Subscriber to receive a ResourceCommand
// whenever Name changes. If Name already has a value, the subscriber
// is sent a snapshot immediately.
type SubscribeRequest struct {
	Name       string
	Subscriber string
}

// UnsubscribeRequest removes Subscriber from Name's subscriber set.
type UnsubscribeRequest struct {
	Name       string
	Subscriber string
}

// GetRequest synchronously reads a resource's current value.
type GetRequest struct {
	Name  string
	Reply chan GetResult
}

// GetResult is GetRequest's reply payload.
type GetResult struct {
	Resource proto.Resource
	Found    bool
}

type provider struct {
	owner   string
	value   proto.Resource
	hasData bool
}

// Hub implements runtime.Handler.
type Hub struct {
	bus         bus.Bus
	handle      *bus.Handle
	providers   map[string]*provider
	subscribers map[string]map[string]struct{}
}

// New builds an empty Hub bound to h.
func New(b bus.Bus, h *bus.Handle) *Hub {
	return &Hub{
		bus:         b,
		handle:      h,
		providers:   make(map[string]*provider),
		subscribers: make(map[string]map[string]struct{}),
	}
}

// Factory adapts New to runtime.Factory, for the kernel service's
// explicit registry.
func Factory() runtime.Factory {
	return runtime.Factory{
		Name: proto.HubService,
		Deps: nil,
		Role: proto.RoleSystem,
		New: func(ctx context.Context, h *bus.Handle, b bus.Bus) (runtime.Handler, error) {
			return New(b, h), nil
		},
	}
}

func (hb *Hub) HandleMessage(ctx context.Context, env proto.SignedEnvelope) (bool, error) {
	switch p := env.Payload.(type) {
	case PublishRequest:
		return true, hb.publish(env.Name, p.Resource)
	case UnpublishRequest:
		return true, hb.unpublish(env.Name, p.Name)
	case SubscribeRequest:
		hb.subscribe(p.Name, p.Subscriber)
		return true, nil
	case UnsubscribeRequest:
		hb.unsubscribe(p.Name, p.Subscriber)
		return true, nil
	case GetRequest:
		hb.get(p)
		return true, nil
	default:
		return false, nil
	}
}

func (hb *Hub) publish(sender string, res proto.Resource) error {
	pr, exists := hb.providers[res.Name]
	if exists && pr.owner != sender {
		return errors.ErrProviderMismatch
	}

	if exists && pr.hasData && reflect.DeepEqual(pr.value.Payload, res.Payload) {
		return nil // no change — publish-on-change semantics
	}

	if !exists {
		pr = &provider{owner: sender}
		hb.providers[res.Name] = pr
	}
	pr.value = res
	pr.hasData = true

	hb.broadcast(res)
	return nil
}

func (hb *Hub) unpublish(sender, name string) error {
	pr, ok := hb.providers[name]
	if !ok {
		return nil
	}
	if sender != proto.HubService {
		return errors.ErrForbiddenUnpublish
	}
	delete(hb.providers, name)
	return nil
}

func (hb *Hub) subscribe(name, subscriber string) {
	set, ok := hb.subscribers[name]
	if !ok {
		set = make(map[string]struct{})
		hb.subscribers[name] = set
	}
	set[subscriber] = struct{}{}

	if pr, ok := hb.providers[name]; ok && pr.hasData {
		_ = bus.Tell(hb.bus, hb.handle, subscriber, proto.ResourceCommand{Resource: pr.value}, false)
	}
}

func (hb *Hub) unsubscribe(name, subscriber string) {
	if set, ok := hb.subscribers[name]; ok {
		delete(set, subscriber)
	}
}

func (hb *Hub) get(req GetRequest) {
	pr, ok := hb.providers[req.Name]
	if !ok || !pr.hasData {
		req.Reply <- GetResult{Found: false}
		return
	}
	req.Reply <- GetResult{Resource: pr.value, Found: true}
}

func (hb *Hub) broadcast(res proto.Resource) {
	for subscriber := range hb.subscribers[res.Name] {
		_ = bus.Tell(hb.bus, hb.handle, subscriber, proto.ResourceCommand{Resource: res}, false)
	}
}

func (hb *Hub) HandleTick(ctx context.Context) error                     { return nil }
func (hb *Hub) HandleResource(ctx context.Context, res proto.Resource) error { return nil }
func (hb *Hub) Stop(ctx context.Context) error                           { return nil }
