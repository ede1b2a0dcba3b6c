package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/decatholac/internal/common"
	"github.com/ternarybob/decatholac/internal/interfaces"
	"github.com/ternarybob/decatholac/internal/models"
	"github.com/ternarybob/decatholac/internal/services/announcer"
	"github.com/ternarybob/decatholac/internal/services/discord"
	"github.com/ternarybob/decatholac/internal/services/events"
	"github.com/ternarybob/decatholac/internal/services/fetcher"
	"github.com/ternarybob/decatholac/internal/services/gofer"
	"github.com/ternarybob/decatholac/internal/services/scheduler"
	"github.com/ternarybob/decatholac/internal/storage"
)

// GoferJobName is the scheduler job that runs the fetch pass
const GoferJobName = "gofer"

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	ctx            context.Context
	cancelCtx      context.CancelFunc
	StorageManager interfaces.StorageManager
	Targets        []*models.Target

	// Event-driven services
	EventService     interfaces.EventService
	SchedulerService interfaces.SchedulerService

	Fetcher *fetcher.Client
	Gofer   *gofer.Service

	// Set by StartBot
	Bot       *discord.Bot
	Announcer *announcer.Service
}

// New initializes storage, the event bus and the fetch pass. Discord is not
// touched until StartBot, so one-shot commands run without a token.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	targets, err := cfg.LoadTargets()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		Config:    cfg,
		Logger:    logger,
		ctx:       ctx,
		cancelCtx: cancel,
		Targets:   targets,
	}

	if err := app.initDatabase(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initServices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	logger.Info().
		Int("targets", len(targets)).
		Str("storage", cfg.Storage.Badger.Path).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase initializes the storage layer (Badger)
func (a *App) initDatabase() error {
	storageManager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	return nil
}

// initServices builds the fetch pass and subscribes it to fetch triggers
func (a *App) initServices() error {
	eventService := events.NewService(a.Logger)
	a.EventService = eventService
	if err := events.SubscribeLoggerToAllEvents(eventService, a.Logger); err != nil {
		return err
	}

	fetch := a.Config.Fetch
	a.Fetcher = fetcher.NewClient(a.Logger,
		fetcher.WithTimeout(fetch.TimeoutDuration()),
		fetcher.WithUserAgent(fetch.UserAgent),
		fetcher.WithPerHostInterval(fetch.PerHostIntervalDuration()),
		fetcher.WithRetryPolicy(fetcher.NewRetryPolicy(fetch.MaxAttempts)),
	)

	a.Gofer = gofer.NewService(
		a.Targets,
		a.Fetcher,
		a.StorageManager.ChapterStorage(),
		a.EventService,
		a.Logger,
		fetch.Concurrency,
	)

	return a.EventService.Subscribe(interfaces.EventFetchTriggered, func(_ context.Context, _ interfaces.Event) error {
		return a.TriggerGofer()
	})
}

// TriggerGofer runs the gofer job now. Without a scheduler the pass runs inline.
func (a *App) TriggerGofer() error {
	if a.SchedulerService == nil {
		return a.RunGofer()
	}

	err := a.SchedulerService.TriggerJob(GoferJobName)
	if errors.Is(err, scheduler.ErrJobRunning) {
		a.Logger.Info().Msg("Gofer job already running, trigger ignored")
		return nil
	}
	return err
}

// RunGofer runs one fetch pass. A pass already in flight is not an error.
func (a *App) RunGofer() error {
	_, err := a.Gofer.Run(a.ctx)
	if errors.Is(err, gofer.ErrAlreadyRunning) {
		a.Logger.Info().Msg("Gofer already running, trigger ignored")
		return nil
	}
	return err
}

// StartBot connects to Discord, wires the announcer and starts the schedule
func (a *App) StartBot() error {
	bot, err := discord.NewBot(a.Config.DiscordToken, a.StorageManager, a.EventService, a.Logger)
	if err != nil {
		return err
	}
	a.Bot = bot

	notifier := discord.NewNotifier(bot.Session(), a.Config.Announcer.EmbedColor, a.Logger)
	a.Announcer = announcer.NewService(a.StorageManager, notifier, a.EventService, a.Logger)

	if err := a.subscribeAnnouncer(); err != nil {
		return err
	}

	if err := a.initScheduler(); err != nil {
		return err
	}

	if err := bot.Start(); err != nil {
		return err
	}

	a.Logger.Info().Msg("Bot started")
	return nil
}

func (a *App) subscribeAnnouncer() error {
	dispatch := func(_ context.Context, _ interfaces.Event) error {
		_, err := a.Announcer.Dispatch(a.ctx)
		return err
	}

	if a.Config.Announcer.Enabled {
		if err := a.EventService.Subscribe(interfaces.EventGoferFinished, dispatch); err != nil {
			return err
		}
	}
	if err := a.EventService.Subscribe(interfaces.EventAnnounceTriggered, dispatch); err != nil {
		return err
	}

	return a.EventService.Subscribe(interfaces.EventAnnounceServerTriggered, func(_ context.Context, event interfaces.Event) error {
		guildID, ok := event.Payload.(string)
		if !ok {
			return fmt.Errorf("announce payload must be a guild ID, got %T", event.Payload)
		}
		_, err := a.Announcer.AnnounceServer(a.ctx, guildID)
		if errors.Is(err, announcer.ErrAlreadyAnnouncing) {
			return nil
		}
		return err
	})
}

func (a *App) initScheduler() error {
	schedulerService := scheduler.NewService(a.Logger)

	if err := schedulerService.RegisterJob(
		GoferJobName,
		a.Config.ValidSchedule(a.Logger),
		"Fetch every target and announce new chapters",
		a.RunGofer,
	); err != nil {
		return fmt.Errorf("failed to register gofer job: %w", err)
	}

	if err := schedulerService.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	a.SchedulerService = schedulerService

	a.logJobStatuses()
	return nil
}

func (a *App) logJobStatuses() {
	for name, status := range a.SchedulerService.GetAllJobStatuses() {
		event := a.Logger.Info().Str("job_name", name).Str("schedule", status.Schedule)
		if status.NextRun != nil {
			event = event.Str("next_run", status.NextRun.Format("2006-01-02 15:04:05"))
		}
		if status.LastError != "" {
			event = event.Str("last_error", status.LastError)
		}
		event.Msg("Job status")
	}
}

// Close shuts components down in reverse order of creation
func (a *App) Close() error {
	// Abort running passes
	if a.cancelCtx != nil {
		a.cancelCtx()
	}

	if a.SchedulerService != nil && a.SchedulerService.IsRunning() {
		a.logJobStatuses()
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler service")
		}
	}

	// Waits for in-flight handlers, which may still be sending through the bot
	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.Bot != nil {
		if err := a.Bot.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close discord bot")
		}
	}

	a.Logger.Debug().Int64("goroutines_spawned", common.GetGoroutineCount()).Msg("Background work finished")

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
