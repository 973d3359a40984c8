package unitrouter

import (
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// CloudEvent is an alias for the CloudEvents Event type for convenience
type CloudEvent = cloudevents.Event

// EventSource is the CloudEvents source of every router event.
const EventSource = "unitrouter"

// NewCloudEvent creates a CloudEvent with JSON data.
func NewCloudEvent(eventType, source string, data any, metadata map[string]any) cloudevents.Event {
	event := cloudevents.NewEvent()

	event.SetID(generateEventID())
	event.SetSource(source)
	event.SetType(eventType)
	event.SetTime(time.Now())
	event.SetSpecVersion(cloudevents.VersionV1)

	if data != nil {
		_ = event.SetData(cloudevents.ApplicationJSON, data)
	}

	for key, value := range metadata {
		event.SetExtension(key, value)
	}

	return event
}

// setEventSubject points unit events at the unit and tags routing events
// with their pass, so consumers can filter without decoding data.
func setEventSubject(event *cloudevents.Event, data any) {
	switch d := data.(type) {
	case UnitEventData:
		event.SetSubject(d.Unit)
	case UnitFailedData:
		event.SetSubject(d.Unit)
	case RoutingDetail:
		if d.PassID != "" {
			event.SetExtension("passid", d.PassID)
		}
	}
}

// generateEventID generates a unique identifier using UUIDv7, which keeps
// ids time ordered.
func generateEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

// ValidateCloudEvent validates that a CloudEvent conforms to the specification.
func ValidateCloudEvent(event cloudevents.Event) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("CloudEvent validation failed: %w", err)
	}
	return nil
}
