// Package announcer delivers stored chapters to each server's feed channel.
package announcer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/decatholac/internal/interfaces"
	"github.com/ternarybob/decatholac/internal/models"
)

var (
	// ErrNoFeedChannel is returned when a server has not picked a feed channel yet
	ErrNoFeedChannel = errors.New("server has no feed channel")

	// ErrAlreadyAnnouncing is returned when another announce for the server is in flight
	ErrAlreadyAnnouncing = errors.New("server is already announcing")
)

// Service implements the announce pass
type Service struct {
	servers       interfaces.ServerStorage
	chapters      interfaces.ChapterStorage
	subscriptions interfaces.SubscriptionStorage
	notifier      interfaces.Notifier
	events        interfaces.EventService
	logger        arbor.ILogger
}

// NewService creates an announcer. events may be nil.
func NewService(
	storage interfaces.StorageManager,
	notifier interfaces.Notifier,
	events interfaces.EventService,
	logger arbor.ILogger,
) *Service {
	return &Service{
		servers:       storage.ServerStorage(),
		chapters:      storage.ChapterStorage(),
		subscriptions: storage.SubscriptionStorage(),
		notifier:      notifier,
		events:        events,
		logger:        logger,
	}
}

// Dispatch announces to every server with a feed channel, concurrently, and
// returns the number of servers that were sent at least one chapter
func (s *Service) Dispatch(ctx context.Context) (int, error) {
	servers, err := s.servers.GetServers(ctx)
	if err != nil {
		return 0, err
	}

	var (
		wg        sync.WaitGroup
		announced atomic.Int32
	)
	for _, server := range servers {
		if !server.HasFeedChannel() {
			continue
		}

		wg.Add(1)
		go func(guildID string) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error().
						Str("guild_id", guildID).
						Str("panic", fmt.Sprintf("%v", r)).
						Msg("PANIC RECOVERED in announce")
				}
			}()

			sent, err := s.AnnounceServer(ctx, guildID)
			switch {
			case errors.Is(err, ErrAlreadyAnnouncing):
				s.logger.Debug().Str("guild_id", guildID).Msg("Announce skipped, already in progress")
			case err != nil:
				s.logger.Error().Str("guild_id", guildID).Err(err).Msg("Announce failed")
			case sent > 0:
				announced.Add(1)
			}
		}(server.GuildID)
	}
	wg.Wait()

	count := int(announced.Load())
	s.logger.Info().Int("servers", count).Msg("Announce pass finished")

	if s.events != nil {
		if err := s.events.Publish(ctx, interfaces.Event{
			Type:    interfaces.EventAnnouncerFinished,
			Payload: count,
		}); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to publish announcer finished event")
		}
	}

	return count, nil
}

// AnnounceServer sends the chapters that became due since the server's last
// announce and returns how many were sent. LastAnnouncedAt only moves forward
// when delivery succeeded.
func (s *Service) AnnounceServer(ctx context.Context, guildID string) (int, error) {
	server, err := s.servers.GetServer(ctx, guildID)
	if err != nil {
		return 0, err
	}
	if !server.HasFeedChannel() {
		return 0, ErrNoFeedChannel
	}

	began, err := s.servers.TryBeginAnnouncing(ctx, guildID)
	if err != nil {
		return 0, err
	}
	if !began {
		return 0, ErrAlreadyAnnouncing
	}
	defer func() {
		// Cleared even when the caller's context is gone
		if err := s.servers.EndAnnouncing(context.Background(), guildID); err != nil {
			s.logger.Error().Str("guild_id", guildID).Err(err).Msg("Failed to clear announcing flag")
		}
	}()

	chapters, upTo, err := s.chapters.GetUnannouncedChapters(ctx, server.LastAnnouncedAt)
	if err != nil {
		return 0, err
	}

	if len(chapters) > 0 {
		mentions := s.mentions(ctx, guildID, chapters)
		if err := s.notifier.SendChapters(ctx, server.FeedChannelID, chapters, mentions); err != nil {
			return 0, fmt.Errorf("failed to send chapters to %s: %w", guildID, err)
		}
	}

	if err := s.servers.SetLastAnnouncedAt(ctx, guildID, upTo); err != nil {
		return len(chapters), err
	}

	s.logger.Info().
		Str("guild_id", guildID).
		Int("chapters", len(chapters)).
		Msg("Announced chapters")
	return len(chapters), nil
}

// mentions collects the subscribers of each manga in chapters. Lookup
// failures only cost the mention.
func (s *Service) mentions(ctx context.Context, guildID string, chapters []models.Chapter) map[string][]string {
	result := make(map[string][]string)
	for _, chapter := range chapters {
		if _, done := result[chapter.Manga]; done {
			continue
		}

		users, err := s.subscriptions.ListSubscribers(ctx, guildID, chapter.Manga)
		if err != nil {
			s.logger.Warn().Str("guild_id", guildID).Str("manga", chapter.Manga).Err(err).Msg("Failed to list subscribers")
			users = nil
		}
		result[chapter.Manga] = users
	}

	for manga, users := range result {
		if len(users) == 0 {
			delete(result, manga)
		}
	}
	return result
}
