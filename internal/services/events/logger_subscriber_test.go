package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/decatholac/internal/interfaces"
)

type summary struct{}

func (summary) String() string { return "3 targets, 0 failed" }

func TestNewLoggerSubscriber(t *testing.T) {
	subscriber := NewLoggerSubscriber(arbor.NewLogger())
	ctx := context.Background()

	payloads := []interface{}{nil, "guild", 4, summary{}, struct{}{}}
	for _, payload := range payloads {
		err := subscriber(ctx, interfaces.Event{Type: interfaces.EventGoferFinished, Payload: payload})
		assert.NoError(t, err)
	}
}

func TestSubscribeLoggerToAllEvents(t *testing.T) {
	logger := arbor.NewLogger()
	service := NewService(logger)
	defer service.Close()

	require.NoError(t, SubscribeLoggerToAllEvents(service, logger))

	service.mu.RLock()
	defer service.mu.RUnlock()
	for _, eventType := range AllEventTypes {
		assert.Len(t, service.subscribers[eventType], 1, string(eventType))
	}
}

func TestSubscribeLoggerToAllEvents_Closed(t *testing.T) {
	logger := arbor.NewLogger()
	service := NewService(logger)
	require.NoError(t, service.Close())

	assert.Error(t, SubscribeLoggerToAllEvents(service, logger))
}
