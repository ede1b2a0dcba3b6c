package badger

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/decatholac/internal/common"
)

// BadgerDB owns the badgerhold store that holds chapters, servers and subscriptions
type BadgerDB struct {
	store  *badgerhold.Store
	logger arbor.ILogger
}

// NewBadgerDB opens the store at config.Path, wiping it first when
// reset_on_startup is set
func NewBadgerDB(logger arbor.ILogger, config *common.BadgerConfig) (*BadgerDB, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("storage path is empty")
	}

	if config.ResetOnStartup {
		wipe(logger, config.Path)
	}

	if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	store, err := badgerhold.Open(storeOptions(config.Path))
	if err != nil {
		return nil, fmt.Errorf("failed to open chapter database at %s: %w", config.Path, err)
	}

	logger.Debug().Str("path", config.Path).Msg("Chapter database opened")
	return &BadgerDB{store: store, logger: logger}, nil
}

// storeOptions keeps keys and values under one directory. Badger's internal
// logger is silenced.
func storeOptions(path string) badgerhold.Options {
	options := badgerhold.DefaultOptions
	options.Dir = path
	options.ValueDir = path
	options.Logger = nil
	return options
}

// wipe drops every stored chapter, server and subscription
func wipe(logger arbor.ILogger, path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	logger.Warn().Str("path", path).Msg("Resetting chapter database")
	if err := os.RemoveAll(path); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("Failed to reset chapter database")
	}
}

// Store returns the underlying badgerhold store
func (b *BadgerDB) Store() *badgerhold.Store {
	return b.store
}

// Close flushes and closes the store
func (b *BadgerDB) Close() error {
	if b.store == nil {
		return nil
	}
	return b.store.Close()
}
