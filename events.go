package gestalt

import (
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// CloudEvent is an alias for the CloudEvents Event type for convenience.
type CloudEvent = cloudevents.Event

// Event types emitted by the engine. Observers may filter on these.
const (
	// EventTypeDefinitionRegistered fires after a definition lands in the
	// registry during emission.
	EventTypeDefinitionRegistered = "com.gestalt.definition.registered"

	// EventTypeDefinitionRemoved fires when a register-phase condition prunes
	// a previously registered definition.
	EventTypeDefinitionRemoved = "com.gestalt.definition.removed"

	// EventTypeSourceResolved fires once per component source after the graph
	// pass closes over it.
	EventTypeSourceResolved = "com.gestalt.source.resolved"

	// EventTypeComponentCreated is emitted by instantiation collaborators for
	// each constructed component. The engine listens for it to hand imported
	// components their importer metadata.
	EventTypeComponentCreated = "com.gestalt.component.created"

	// EventTypeExtensionInvoked fires around each extension callback.
	EventTypeExtensionInvoked = "com.gestalt.extension.invoked"
)

// NewCloudEvent creates a properly formatted CloudEvent for the given type
// and source, with optional JSON data and extension metadata.
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

// generateEventID returns a UUIDv7 identifier, whose timestamp component
// keeps event ids time-ordered, with a v4 fallback.
func generateEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}
