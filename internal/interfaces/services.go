package interfaces

import (
	"context"
	"net/http"

	"github.com/ternarybob/decatholac/internal/models"
)

// Fetcher downloads a target's source
type Fetcher interface {
	Fetch(ctx context.Context, url string, headers http.Header) (string, error)
}

// Notifier delivers chapters to a chat channel
type Notifier interface {
	// SendChapters posts chapters in order. mentions maps a manga to the user
	// IDs to mention with its chapters.
	SendChapters(ctx context.Context, channelID string, chapters []models.Chapter, mentions map[string][]string) error
}
