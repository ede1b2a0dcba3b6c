package badger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/decatholac/internal/interfaces"
	"github.com/ternarybob/decatholac/internal/models"
)

// subscriptionNamespace scopes subscription IDs so one user has at most one
// subscription per title in a guild
var subscriptionNamespace = uuid.MustParse("b4d8e2a1-3c5f-4e7a-8d9b-0f1e2a3b4c5d")

// SubscriptionStorage implements the SubscriptionStorage interface for Badger
type SubscriptionStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSubscriptionStorage creates a new SubscriptionStorage instance
func NewSubscriptionStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SubscriptionStorage {
	return &SubscriptionStorage{
		db:     db,
		logger: logger,
	}
}

func subscriptionID(guildID, userID, title string) string {
	key := guildID + "\x00" + userID + "\x00" + normalizeTitle(title)
	return uuid.NewSHA1(subscriptionNamespace, []byte(key)).String()
}

func normalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// Subscribe records the subscription. Subscribing twice returns the existing one.
func (s *SubscriptionStorage) Subscribe(ctx context.Context, guildID, userID, title string) (*models.Subscription, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}

	id := subscriptionID(guildID, userID, title)

	var existing models.Subscription
	err := s.db.Store().Get(id, &existing)
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, badgerhold.ErrNotFound) {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	subscription := &models.Subscription{
		ID:        id,
		GuildID:   guildID,
		UserID:    userID,
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.Store().Upsert(id, subscription); err != nil {
		return nil, fmt.Errorf("failed to save subscription: %w", err)
	}
	return subscription, nil
}

// Unsubscribe removes the subscription and reports whether it existed
func (s *SubscriptionStorage) Unsubscribe(ctx context.Context, guildID, userID, title string) (bool, error) {
	id := subscriptionID(guildID, userID, title)
	err := s.db.Store().Delete(id, &models.Subscription{})
	if errors.Is(err, badgerhold.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to delete subscription: %w", err)
	}
	return true, nil
}

// ListByGuild returns the guild's subscriptions, optionally only one user's
func (s *SubscriptionStorage) ListByGuild(ctx context.Context, guildID, userID string) ([]models.Subscription, error) {
	query := badgerhold.Where("GuildID").Eq(guildID).Index("GuildID")
	if userID != "" {
		query = query.And("UserID").Eq(userID)
	}

	var subscriptions []models.Subscription
	if err := s.db.Store().Find(&subscriptions, query.SortBy("Title")); err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subscriptions, nil
}

// ListSubscribers returns the IDs of users subscribed to manga in the guild.
// Titles match case-insensitively.
func (s *SubscriptionStorage) ListSubscribers(ctx context.Context, guildID, manga string) ([]string, error) {
	subscriptions, err := s.ListByGuild(ctx, guildID, "")
	if err != nil {
		return nil, err
	}

	want := normalizeTitle(manga)
	users := make([]string, 0)
	for _, subscription := range subscriptions {
		if normalizeTitle(subscription.Title) == want {
			users = append(users, subscription.UserID)
		}
	}
	return users, nil
}
