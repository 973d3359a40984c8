package unitrouter

import (
	"context"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

type observerRegistration struct {
	observer     Observer
	eventTypes   map[string]bool
	registeredAt time.Time
}

func (reg *observerRegistration) wants(eventType string) bool {
	return len(reg.eventTypes) == 0 || reg.eventTypes[eventType]
}

// RegisterObserver adds an observer to receive notifications.
func (r *Router) RegisterObserver(observer Observer, eventTypes ...string) error {
	if observer == nil {
		return ErrNilObserver
	}
	eventTypeMap := make(map[string]bool, len(eventTypes))
	for _, eventType := range eventTypes {
		eventTypeMap[eventType] = true
	}

	r.observerMu.Lock()
	defer r.observerMu.Unlock()
	for _, reg := range r.observers {
		if reg.observer.ObserverID() == observer.ObserverID() {
			reg.observer = observer
			reg.eventTypes = eventTypeMap
			return nil
		}
	}
	r.observers = append(r.observers, &observerRegistration{
		observer:     observer,
		eventTypes:   eventTypeMap,
		registeredAt: time.Now(),
	})

	r.logger.Debug("Observer registered", "observerID", observer.ObserverID(), "eventTypes", eventTypes)
	return nil
}

// UnregisterObserver removes an observer from receiving notifications.
func (r *Router) UnregisterObserver(observer Observer) error {
	if observer == nil {
		return nil
	}
	r.observerMu.Lock()
	defer r.observerMu.Unlock()
	for i, reg := range r.observers {
		if reg.observer.ObserverID() == observer.ObserverID() {
			r.observers = append(r.observers[:i:i], r.observers[i+1:]...)
			r.logger.Debug("Observer unregistered", "observerID", observer.ObserverID())
			return nil
		}
	}
	return nil
}

// NotifyObservers sends a CloudEvent to all interested observers. Delivery is
// synchronous and in registration order when ctx asks for it, otherwise each
// observer is called on its own goroutine.
func (r *Router) NotifyObservers(ctx context.Context, event cloudevents.Event) error {
	if event.Time().IsZero() {
		event.SetTime(time.Now())
	}
	if err := ValidateCloudEvent(event); err != nil {
		r.logger.Error("Invalid CloudEvent", "eventType", event.Type(), "error", err)
		return err
	}

	r.observerMu.RLock()
	targets := make([]*observerRegistration, 0, len(r.observers))
	for _, reg := range r.observers {
		if reg.wants(event.Type()) {
			targets = append(targets, reg)
		}
	}
	r.observerMu.RUnlock()

	sync := IsSynchronousNotification(ctx)
	for _, reg := range targets {
		if sync {
			r.deliver(ctx, reg.observer, event)
			continue
		}
		go r.deliver(ctx, reg.observer, event)
	}
	return nil
}

func (r *Router) deliver(ctx context.Context, observer Observer, event cloudevents.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Observer panicked", "observerID", observer.ObserverID(), "event", event.Type(), "panic", rec)
		}
	}()
	if err := observer.OnEvent(ctx, event); err != nil {
		r.logger.Error("Observer error", "observerID", observer.ObserverID(), "event", event.Type(), "error", err)
	}
}

// GetObservers returns the registered observers in delivery order.
func (r *Router) GetObservers() []ObserverInfo {
	r.observerMu.RLock()
	defer r.observerMu.RUnlock()

	info := make([]ObserverInfo, 0, len(r.observers))
	for _, reg := range r.observers {
		eventTypes := make([]string, 0, len(reg.eventTypes))
		for eventType := range reg.eventTypes {
			eventTypes = append(eventTypes, eventType)
		}
		info = append(info, ObserverInfo{
			ID:           reg.observer.ObserverID(),
			EventTypes:   eventTypes,
			RegisteredAt: reg.registeredAt,
		})
	}
	return info
}

// emit builds and delivers a router event.
func (r *Router) emit(ctx context.Context, eventType string, data any) {
	event := NewCloudEvent(eventType, EventSource, data, nil)
	setEventSubject(&event, data)
	if err := r.NotifyObservers(ctx, event); err != nil {
		r.logger.Debug("Failed to emit event", "eventType", eventType, "error", err)
	}
}
