package badger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/decatholac/internal/interfaces"
	"github.com/ternarybob/decatholac/internal/models"
)

// saveChunkSize bounds the inserts per transaction. badgerhold rewrites the
// Manga index entry on every insert, so one transaction per listing outgrows
// badger's transaction limit for long series.
const saveChunkSize = 100

// ChapterStorage implements the ChapterStorage interface for Badger
type ChapterStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	now    func() time.Time

	// logMu orders saves against unannounced reads. A chapter is always
	// logged strictly after the upper bound of any read that could miss it.
	logMu    sync.Mutex
	readUpTo time.Time
}

// NewChapterStorage creates a new ChapterStorage instance
func NewChapterStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ChapterStorage {
	return &ChapterStorage{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// SaveChapters inserts every chapter whose ID is not stored yet, committing in
// chunks. Chapters already known keep their original LoggedAt.
func (s *ChapterStorage) SaveChapters(ctx context.Context, chapters []models.Chapter) (int, error) {
	if len(chapters) == 0 {
		return 0, nil
	}

	s.logMu.Lock()
	defer s.logMu.Unlock()

	loggedAt := s.now().UTC()
	if !loggedAt.After(s.readUpTo) {
		loggedAt = s.readUpTo.Add(time.Nanosecond)
	}

	saved := 0
	for start := 0; start < len(chapters); start += saveChunkSize {
		if err := ctx.Err(); err != nil {
			return saved, err
		}

		end := min(start+saveChunkSize, len(chapters))
		inserted := 0
		err := s.db.Store().Badger().Update(func(tx *badger.Txn) error {
			inserted = 0
			for i := start; i < end; i++ {
				chapter := chapters[i]
				chapter.LoggedAt = loggedAt

				err := s.db.Store().TxInsert(tx, chapter.ID, &chapter)
				if errors.Is(err, badgerhold.ErrKeyExists) {
					continue
				}
				if err != nil {
					return fmt.Errorf("failed to insert chapter %s: %w", chapter.ID, err)
				}
				inserted++
			}
			return nil
		})
		if err != nil {
			return saved, err
		}
		saved += inserted
	}

	return saved, nil
}

// ListChapters returns the newest chapters first. An empty manga lists every manga,
// limit <= 0 means no limit.
func (s *ChapterStorage) ListChapters(ctx context.Context, manga string, limit int) ([]models.Chapter, error) {
	query := badgerhold.Where("ID").Ne("")
	if manga != "" {
		query = badgerhold.Where("Manga").Eq(manga).Index("Manga")
	}
	query = query.SortBy("Date", "LoggedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var chapters []models.Chapter
	if err := s.db.Store().Find(&chapters, query); err != nil {
		return nil, fmt.Errorf("failed to list chapters: %w", err)
	}
	return chapters, nil
}

// CountChapters returns the number of stored chapters
func (s *ChapterStorage) CountChapters(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.Chapter{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count chapters: %w", err)
	}
	return int(count), nil
}

// GetUnannouncedChapters returns chapters whose due time falls in (since, upTo]
// and the upTo it used. Passing upTo as the next since never skips a chapter,
// even one saved while this read ran.
func (s *ChapterStorage) GetUnannouncedChapters(ctx context.Context, since time.Time) ([]models.Chapter, time.Time, error) {
	s.logMu.Lock()
	defer s.logMu.Unlock()

	upTo := s.now().UTC()
	if upTo.Before(s.readUpTo) {
		upTo = s.readUpTo
	}
	if upTo.Before(since) {
		// Clock went back since the last announce
		upTo = since
	}

	var candidates []models.Chapter
	query := badgerhold.Where("LoggedAt").Le(upTo).And("AnnounceAt").Le(upTo).SortBy("Date", "LoggedAt")
	if err := s.db.Store().Find(&candidates, query); err != nil {
		return nil, since, fmt.Errorf("failed to query unannounced chapters: %w", err)
	}
	s.readUpTo = upTo

	chapters := make([]models.Chapter, 0, len(candidates))
	for i := range candidates {
		if candidates[i].DueAt().After(since) {
			chapters = append(chapters, candidates[i])
		}
	}
	return chapters, upTo, nil
}
