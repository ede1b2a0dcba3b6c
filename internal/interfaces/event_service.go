package interfaces

import "context"

// EventType represents different event types in the system
type EventType string

const (
	// EventFetchTriggered asks for a gofer pass (schedule or /fetch)
	EventFetchTriggered EventType = "fetch_triggered"
	// EventAnnounceTriggered asks for an announce pass over every server
	EventAnnounceTriggered EventType = "announce_triggered"
	// EventAnnounceServerTriggered asks for an announce to one guild. Payload is the guild ID.
	EventAnnounceServerTriggered EventType = "announce_server_triggered"
	// EventGoferFinished carries the gofer Report
	EventGoferFinished EventType = "gofer_finished"
	// EventAnnouncerFinished carries the number of servers announced to
	EventAnnouncerFinished EventType = "announcer_finished"
)

// Event represents a system event
type Event struct {
	Type    EventType
	Payload interface{}
}

// EventHandler is a function that handles events
type EventHandler func(ctx context.Context, event Event) error

// EventService manages pub/sub event bus
type EventService interface {
	// Subscribe to an event type
	Subscribe(eventType EventType, handler EventHandler) error

	// Publish an event to all subscribers
	Publish(ctx context.Context, event Event) error

	// PublishSync publishes event and waits for all handlers to complete
	PublishSync(ctx context.Context, event Event) error

	// Close shuts down the event service
	Close() error
}
