package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/decatholac/internal/models"
)

// ErrServerNotFound is returned when a guild has never been configured
var ErrServerNotFound = errors.New("server not found")

// ChapterStorage persists chapters found by the gofer
type ChapterStorage interface {
	// SaveChapters stores chapters not seen before and returns how many were new.
	// New chapters are stamped with LoggedAt.
	SaveChapters(ctx context.Context, chapters []models.Chapter) (int, error)
	ListChapters(ctx context.Context, manga string, limit int) ([]models.Chapter, error)
	CountChapters(ctx context.Context) (int, error)
	// GetUnannouncedChapters returns chapters that became due after since,
	// oldest first, and the upper bound of the window. Store the bound as the
	// next since.
	GetUnannouncedChapters(ctx context.Context, since time.Time) ([]models.Chapter, time.Time, error)
}

// ServerStorage persists the Discord guilds and their announce state
type ServerStorage interface {
	GetServers(ctx context.Context) ([]models.Server, error)
	GetServer(ctx context.Context, guildID string) (*models.Server, error)
	SetFeedChannel(ctx context.Context, guildID, channelID string) error
	// TryBeginAnnouncing sets the announcing flag unless it is already set
	TryBeginAnnouncing(ctx context.Context, guildID string) (bool, error)
	EndAnnouncing(ctx context.Context, guildID string) error
	SetLastAnnouncedAt(ctx context.Context, guildID string, at time.Time) error
	// ResetAnnouncingFlags clears flags left behind by a crash
	ResetAnnouncingFlags(ctx context.Context) error
}

// SubscriptionStorage persists which users want mentions for which manga
type SubscriptionStorage interface {
	Subscribe(ctx context.Context, guildID, userID, title string) (*models.Subscription, error)
	Unsubscribe(ctx context.Context, guildID, userID, title string) (bool, error)
	ListByGuild(ctx context.Context, guildID, userID string) ([]models.Subscription, error)
	ListSubscribers(ctx context.Context, guildID, manga string) ([]string, error)
}

// StorageManager groups the storages behind one database
type StorageManager interface {
	ChapterStorage() ChapterStorage
	ServerStorage() ServerStorage
	SubscriptionStorage() SubscriptionStorage
	Close() error
}
