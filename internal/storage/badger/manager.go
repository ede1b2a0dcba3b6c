package badger

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/decatholac/internal/common"
	"github.com/ternarybob/decatholac/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db           *BadgerDB
	chapter      interfaces.ChapterStorage
	server       interfaces.ServerStorage
	subscription interfaces.SubscriptionStorage
	logger       arbor.ILogger
}

// NewManager opens the database and clears announcing flags left behind by a
// previous run that did not shut down cleanly
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (*Manager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:           db,
		chapter:      NewChapterStorage(db, logger),
		server:       NewServerStorage(db, logger),
		subscription: NewSubscriptionStorage(db, logger),
		logger:       logger,
	}

	if err := manager.server.ResetAnnouncingFlags(context.Background()); err != nil {
		logger.Warn().Err(err).Msg("Failed to reset announcing flags")
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// ChapterStorage returns the Chapter storage interface
func (m *Manager) ChapterStorage() interfaces.ChapterStorage {
	return m.chapter
}

// ServerStorage returns the Server storage interface
func (m *Manager) ServerStorage() interfaces.ServerStorage {
	return m.server
}

// SubscriptionStorage returns the Subscription storage interface
func (m *Manager) SubscriptionStorage() interfaces.SubscriptionStorage {
	return m.subscription
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
