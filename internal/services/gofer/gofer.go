// Package gofer runs the fetch pass: download every target, parse it and
// store the chapters that were not seen before.
package gofer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/decatholac/internal/interfaces"
	"github.com/ternarybob/decatholac/internal/models"
	"github.com/ternarybob/decatholac/internal/parsers"
	"github.com/ternarybob/decatholac/internal/services/fetcher"
)

// ErrAlreadyRunning is returned when Run is called while a pass is in flight
var ErrAlreadyRunning = errors.New("gofer is already running")

// TargetResult is the outcome of one target in a pass
type TargetResult struct {
	Target      string
	Found       int
	NewChapters int
	Duration    time.Duration
	Err         error
}

// Report summarizes a fetch pass
type Report struct {
	StartedAt   time.Time
	Duration    time.Duration
	Targets     int
	Failed      int
	NewChapters int
	Results     []TargetResult
}

func (r Report) String() string {
	return fmt.Sprintf("%d targets, %d failed, %d new chapters in %s", r.Targets, r.Failed, r.NewChapters, r.Duration.Round(time.Millisecond))
}

// Service implements the fetch pass
type Service struct {
	targets     []*models.Target
	fetcher     interfaces.Fetcher
	chapters    interfaces.ChapterStorage
	events      interfaces.EventService
	logger      arbor.ILogger
	concurrency int
	running     atomic.Bool
	now         func() time.Time
}

// NewService creates a gofer over the given targets. events may be nil.
func NewService(
	targets []*models.Target,
	fetcher interfaces.Fetcher,
	chapters interfaces.ChapterStorage,
	events interfaces.EventService,
	logger arbor.ILogger,
	concurrency int,
) *Service {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Service{
		targets:     targets,
		fetcher:     fetcher,
		chapters:    chapters,
		events:      events,
		logger:      logger,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// Run fetches every target. A failing target is recorded in the report and
// does not stop the others.
func (s *Service) Run(ctx context.Context) (Report, error) {
	if !s.running.CompareAndSwap(false, true) {
		return Report{}, ErrAlreadyRunning
	}
	defer s.running.Store(false)

	report := Report{
		StartedAt: s.now(),
		Targets:   len(s.targets),
		Results:   make([]TargetResult, len(s.targets)),
	}

	s.logger.Info().
		Int("targets", len(s.targets)).
		Int("concurrency", s.concurrency).
		Msg("Gofer pass started")

	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup

	for i, target := range s.targets {
		wg.Add(1)
		go func(i int, target *models.Target) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error().
						Str("target", target.Name).
						Str("panic", fmt.Sprintf("%v", r)).
						Msg("PANIC RECOVERED in target")
					report.Results[i] = TargetResult{Target: target.Name, Err: fmt.Errorf("panic: %v", r)}
				}
			}()

			report.Results[i] = TargetResult{Target: target.Name}

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				report.Results[i].Err = ctx.Err()
				return
			}
			defer func() { <-sem }()

			report.Results[i] = s.runTarget(ctx, target)
		}(i, target)
	}
	wg.Wait()

	for _, result := range report.Results {
		if result.Err != nil {
			report.Failed++
		}
		report.NewChapters += result.NewChapters
	}
	report.Duration = s.now().Sub(report.StartedAt)

	s.logger.Info().
		Int("targets", report.Targets).
		Int("failed", report.Failed).
		Int("new_chapters", report.NewChapters).
		Dur("duration", report.Duration).
		Msg("Gofer pass finished")

	if s.events != nil {
		// Subscribers (the announcer) finish before the pass counts as done
		if err := s.events.PublishSync(ctx, interfaces.Event{
			Type:    interfaces.EventGoferFinished,
			Payload: report,
		}); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to publish gofer finished event")
		}
	}

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (s *Service) runTarget(ctx context.Context, target *models.Target) TargetResult {
	started := time.Now()
	result := TargetResult{Target: target.Name}

	chapters, err := s.gather(ctx, target)
	if err == nil {
		result.Found = len(chapters)
		result.NewChapters, err = s.chapters.SaveChapters(ctx, chapters)
		if err != nil {
			err = fmt.Errorf("failed to save chapters: %w", err)
		}
	}
	result.Duration = time.Since(started)
	result.Err = err

	if err != nil {
		s.logger.Error().
			Str("target", target.Name).
			Str("source", target.Source).
			Err(err).
			Msg("Target failed")
		return result
	}

	s.logger.Debug().
		Str("target", target.Name).
		Int("found", result.Found).
		Int("new", result.NewChapters).
		Dur("duration", result.Duration).
		Msg("Target fetched")
	return result
}

// gather downloads and parses one target
func (s *Service) gather(ctx context.Context, target *models.Target) ([]models.Chapter, error) {
	body, err := s.fetcher.Fetch(ctx, target.Source, fetcher.HeadersFrom(target.RequestHeaders))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}

	chapters, err := parsers.Parse(target, body, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to parse: %w", err)
	}
	return chapters, nil
}
