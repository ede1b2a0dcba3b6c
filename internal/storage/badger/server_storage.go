package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/decatholac/internal/interfaces"
	"github.com/ternarybob/decatholac/internal/models"
)

// ServerStorage implements the ServerStorage interface for Badger
type ServerStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	now    func() time.Time
}

// NewServerStorage creates a new ServerStorage instance
func NewServerStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ServerStorage {
	return &ServerStorage{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// GetServers returns every known guild
func (s *ServerStorage) GetServers(ctx context.Context) ([]models.Server, error) {
	var servers []models.Server
	if err := s.db.Store().Find(&servers, badgerhold.Where("GuildID").Ne("").SortBy("CreatedAt")); err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}
	return servers, nil
}

// GetServer returns a guild by ID or interfaces.ErrServerNotFound
func (s *ServerStorage) GetServer(ctx context.Context, guildID string) (*models.Server, error) {
	var server models.Server
	err := s.db.Store().Get(guildID, &server)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, interfaces.ErrServerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get server %s: %w", guildID, err)
	}
	return &server, nil
}

// SetFeedChannel sets the guild's feed channel. A guild seen for the first time
// starts with LastAnnouncedAt = now so it is not flooded with old chapters.
func (s *ServerStorage) SetFeedChannel(ctx context.Context, guildID, channelID string) error {
	now := s.now().UTC()
	return s.update(guildID, true, func(server *models.Server) {
		server.FeedChannelID = channelID
		server.UpdatedAt = now
	})
}

// TryBeginAnnouncing sets the announcing flag and reports whether this caller
// owns the announce. The check and the write share one transaction.
func (s *ServerStorage) TryBeginAnnouncing(ctx context.Context, guildID string) (bool, error) {
	began := false
	err := s.db.Store().Badger().Update(func(tx *badger.Txn) error {
		began = false
		var server models.Server
		if err := s.db.Store().TxGet(tx, guildID, &server); err != nil {
			if errors.Is(err, badgerhold.ErrNotFound) {
				return interfaces.ErrServerNotFound
			}
			return err
		}
		if server.IsAnnouncing {
			return nil
		}
		server.IsAnnouncing = true
		server.UpdatedAt = s.now().UTC()
		if err := s.db.Store().TxUpdate(tx, guildID, &server); err != nil {
			return err
		}
		began = true
		return nil
	})
	if err != nil {
		if errors.Is(err, interfaces.ErrServerNotFound) {
			return false, err
		}
		// A concurrent writer touched the same server first
		if errors.Is(err, badger.ErrConflict) {
			return false, nil
		}
		return false, fmt.Errorf("failed to set announcing flag for %s: %w", guildID, err)
	}
	return began, nil
}

// EndAnnouncing clears the announcing flag
func (s *ServerStorage) EndAnnouncing(ctx context.Context, guildID string) error {
	now := s.now().UTC()
	return s.update(guildID, false, func(server *models.Server) {
		server.IsAnnouncing = false
		server.UpdatedAt = now
	})
}

// SetLastAnnouncedAt records the end of a successful announce
func (s *ServerStorage) SetLastAnnouncedAt(ctx context.Context, guildID string, at time.Time) error {
	now := s.now().UTC()
	return s.update(guildID, false, func(server *models.Server) {
		server.LastAnnouncedAt = at.UTC()
		server.UpdatedAt = now
	})
}

// ResetAnnouncingFlags clears every announcing flag
func (s *ServerStorage) ResetAnnouncingFlags(ctx context.Context) error {
	var servers []models.Server
	if err := s.db.Store().Find(&servers, badgerhold.Where("IsAnnouncing").Eq(true)); err != nil {
		return fmt.Errorf("failed to find announcing servers: %w", err)
	}

	for _, server := range servers {
		if err := s.EndAnnouncing(ctx, server.GuildID); err != nil {
			return err
		}
		s.logger.Debug().Str("guild_id", server.GuildID).Msg("Cleared stale announcing flag")
	}
	return nil
}

// update applies fn to a server inside one transaction. When create is set a
// missing server is created first.
func (s *ServerStorage) update(guildID string, create bool, fn func(server *models.Server)) error {
	err := s.db.Store().Badger().Update(func(tx *badger.Txn) error {
		var server models.Server
		err := s.db.Store().TxGet(tx, guildID, &server)
		switch {
		case errors.Is(err, badgerhold.ErrNotFound):
			if !create {
				return interfaces.ErrServerNotFound
			}
			now := s.now().UTC()
			server = models.Server{
				GuildID:         guildID,
				LastAnnouncedAt: now,
				CreatedAt:       now,
			}
		case err != nil:
			return err
		}

		fn(&server)
		return s.db.Store().TxUpsert(tx, guildID, &server)
	})
	if err != nil {
		if errors.Is(err, interfaces.ErrServerNotFound) {
			return err
		}
		return fmt.Errorf("failed to update server %s: %w", guildID, err)
	}
	return nil
}
