package events

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/decatholac/internal/interfaces"
)

// AllEventTypes lists every event the application publishes
var AllEventTypes = []interfaces.EventType{
	interfaces.EventFetchTriggered,
	interfaces.EventAnnounceTriggered,
	interfaces.EventAnnounceServerTriggered,
	interfaces.EventGoferFinished,
	interfaces.EventAnnouncerFinished,
}

// NewLoggerSubscriber creates an event handler that logs all events
func NewLoggerSubscriber(logger arbor.ILogger) interfaces.EventHandler {
	return func(ctx context.Context, event interfaces.Event) error {
		logEvent := logger.Debug().
			Str("event_type", string(event.Type))

		switch payload := event.Payload.(type) {
		case nil:
		case string:
			logEvent = logEvent.Str("guild_id", payload)
		case int:
			logEvent = logEvent.Int("count", payload)
		case fmt.Stringer:
			logEvent = logEvent.Str("summary", payload.String())
		}

		logEvent.Msg("Event published")
		return nil
	}
}

// SubscribeLoggerToAllEvents subscribes the logger to all known event types
func SubscribeLoggerToAllEvents(eventService interfaces.EventService, logger arbor.ILogger) error {
	subscriber := NewLoggerSubscriber(logger)

	for _, eventType := range AllEventTypes {
		if err := eventService.Subscribe(eventType, subscriber); err != nil {
			return fmt.Errorf("failed to subscribe logger to event type %s: %w", eventType, err)
		}
	}

	logger.Debug().
		Int("event_type_count", len(AllEventTypes)).
		Msg("Logger subscribed to all event types")

	return nil
}
