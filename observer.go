// Package unitrouter drives a set of independently loaded units through
// their lifecycle as a location changes. It decides which units should be
// active, loads, bootstraps, mounts, unmounts and unloads them, and
// publishes routing events to observers as CloudEvents.
package unitrouter

import (
	"context"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// Observer is notified of router events.
type Observer interface {
	// OnEvent is called for each event the observer subscribed to. Routing
	// events are delivered synchronously, so observers should return quickly.
	OnEvent(ctx context.Context, event cloudevents.Event) error

	// ObserverID returns a unique identifier for this observer.
	ObserverID() string
}

// Subject is implemented by the Router.
type Subject interface {
	// RegisterObserver adds an observer. With no eventTypes the observer
	// receives every event. Registering the same ID again replaces the
	// filter but keeps the original delivery position.
	RegisterObserver(observer Observer, eventTypes ...string) error

	// UnregisterObserver removes an observer. It is idempotent.
	UnregisterObserver(observer Observer) error

	// NotifyObservers delivers an event to every interested observer.
	NotifyObservers(ctx context.Context, event cloudevents.Event) error

	// GetObservers lists the registered observers in delivery order.
	GetObservers() []ObserverInfo
}

// ObserverInfo describes a registered observer.
type ObserverInfo struct {
	ID           string    `json:"id"`
	EventTypes   []string  `json:"eventTypes"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// Event types emitted by the router.
const (
	// Routing pass events, in emission order.
	EventTypeBeforeNoChange     = "com.unitrouter.routing.before-no-change"
	EventTypeBeforeChange       = "com.unitrouter.routing.before-change"
	EventTypeBeforeRouting      = "com.unitrouter.routing.before-routing"
	EventTypeBeforeMountRouting = "com.unitrouter.routing.before-mount-routing"
	EventTypeNoChange           = "com.unitrouter.routing.no-change"
	EventTypeChange             = "com.unitrouter.routing.change"
	EventTypeRouting            = "com.unitrouter.routing.complete"

	// Emitted once per router.
	EventTypeBeforeFirstMount = "com.unitrouter.unit.before-first-mount"
	EventTypeFirstMount       = "com.unitrouter.unit.first-mount"

	// Unit events
	EventTypeUnitRegistered   = "com.unitrouter.unit.registered"
	EventTypeUnitUnregistered = "com.unitrouter.unit.unregistered"
	EventTypeUnitFailed       = "com.unitrouter.unit.failed"

	// Router events
	EventTypeRouterStarted = "com.unitrouter.router.started"
	EventTypeRouterClosed  = "com.unitrouter.router.closed"
)

// FunctionalObserver adapts a function to Observer.
type FunctionalObserver struct {
	id      string
	handler func(ctx context.Context, event cloudevents.Event) error
}

// NewFunctionalObserver creates an observer backed by handler.
func NewFunctionalObserver(id string, handler func(ctx context.Context, event cloudevents.Event) error) Observer {
	return &FunctionalObserver{
		id:      id,
		handler: handler,
	}
}

// OnEvent calls the handler.
func (f *FunctionalObserver) OnEvent(ctx context.Context, event cloudevents.Event) error {
	return f.handler(ctx, event)
}

// ObserverID returns the observer ID.
func (f *FunctionalObserver) ObserverID() string {
	return f.id
}
