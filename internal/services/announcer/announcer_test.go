package announcer

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/decatholac/internal/common"
	"github.com/ternarybob/decatholac/internal/interfaces"
	"github.com/ternarybob/decatholac/internal/models"
	"github.com/ternarybob/decatholac/internal/services/events"
	"github.com/ternarybob/decatholac/internal/storage/badger"
)

type sent struct {
	channelID string
	chapters  []models.Chapter
	mentions  map[string][]string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (n *fakeNotifier) SendChapters(ctx context.Context, channelID string, chapters []models.Chapter, mentions map[string][]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sent{channelID: channelID, chapters: chapters, mentions: mentions})
	return nil
}

func (n *fakeNotifier) calls() []sent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sent(nil), n.sent...)
}

func newManager(t *testing.T) *badger.Manager {
	t.Helper()
	manager, err := badger.NewManager(arbor.NewLogger(), &common.BadgerConfig{
		Path: filepath.Join(t.TempDir(), "db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	return manager
}

// seed registers the guilds, then stores chapters so they are logged after
// each guild's LastAnnouncedAt
func seed(t *testing.T, manager *badger.Manager, guilds map[string]string, chapters ...models.Chapter) {
	t.Helper()
	ctx := context.Background()
	for guildID, channelID := range guilds {
		require.NoError(t, manager.ServerStorage().SetFeedChannel(ctx, guildID, channelID))
	}
	time.Sleep(5 * time.Millisecond)
	_, err := manager.ChapterStorage().SaveChapters(ctx, chapters)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
}

func TestAnnounceServer_SendsDueChaptersWithMentions(t *testing.T) {
	manager := newManager(t)
	ctx := context.Background()
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	seed(t, manager, map[string]string{"guild": "feed"},
		models.NewChapter("Alpha", "1", "Chapter 1", date, "https://a.test/1", 0),
		models.NewChapter("Beta", "7", "Chapter 7", date.AddDate(0, 0, 1), "https://b.test/7", 0),
		// Delayed far past now
		models.NewChapter("Alpha", "2", "Chapter 2", time.Now().AddDate(0, 0, 5), "https://a.test/2", 3),
	)
	_, err := manager.SubscriptionStorage().Subscribe(ctx, "guild", "user-1", "alpha")
	require.NoError(t, err)

	notifier := &fakeNotifier{}
	service := NewService(manager, notifier, nil, arbor.NewLogger())

	count, err := service.AnnounceServer(ctx, "guild")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	calls := notifier.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "feed", calls[0].channelID)
	require.Len(t, calls[0].chapters, 2)
	assert.Equal(t, "Chapter 1", calls[0].chapters[0].Title)
	assert.Equal(t, "Chapter 7", calls[0].chapters[1].Title)
	assert.Equal(t, map[string][]string{"Alpha": {"user-1"}}, calls[0].mentions)

	server, err := manager.ServerStorage().GetServer(ctx, "guild")
	require.NoError(t, err)
	assert.False(t, server.IsAnnouncing)

	// Nothing new on the next pass
	count, err = service.AnnounceServer(ctx, "guild")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Len(t, notifier.calls(), 1)
}

func TestAnnounceServer_FailureKeepsChaptersPending(t *testing.T) {
	manager := newManager(t)
	ctx := context.Background()
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seed(t, manager, map[string]string{"guild": "feed"},
		models.NewChapter("Alpha", "1", "Chapter 1", date, "https://a.test/1", 0),
	)

	before, err := manager.ServerStorage().GetServer(ctx, "guild")
	require.NoError(t, err)

	notifier := &fakeNotifier{err: errors.New("discord down")}
	service := NewService(manager, notifier, nil, arbor.NewLogger())

	_, err = service.AnnounceServer(ctx, "guild")
	assert.Error(t, err)

	after, err := manager.ServerStorage().GetServer(ctx, "guild")
	require.NoError(t, err)
	assert.True(t, before.LastAnnouncedAt.Equal(after.LastAnnouncedAt))
	assert.False(t, after.IsAnnouncing)

	notifier.err = nil
	count, err := service.AnnounceServer(ctx, "guild")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAnnounceServer_Guards(t *testing.T) {
	manager := newManager(t)
	ctx := context.Background()
	service := NewService(manager, &fakeNotifier{}, nil, arbor.NewLogger())

	_, err := service.AnnounceServer(ctx, "unknown")
	assert.True(t, errors.Is(err, interfaces.ErrServerNotFound))

	require.NoError(t, manager.ServerStorage().SetFeedChannel(ctx, "quiet", ""))
	_, err = service.AnnounceServer(ctx, "quiet")
	assert.True(t, errors.Is(err, ErrNoFeedChannel))

	require.NoError(t, manager.ServerStorage().SetFeedChannel(ctx, "busy", "feed"))
	began, err := manager.ServerStorage().TryBeginAnnouncing(ctx, "busy")
	require.NoError(t, err)
	require.True(t, began)

	_, err = service.AnnounceServer(ctx, "busy")
	assert.True(t, errors.Is(err, ErrAlreadyAnnouncing))

	// The guard must not clear a flag it does not own
	server, err := manager.ServerStorage().GetServer(ctx, "busy")
	require.NoError(t, err)
	assert.True(t, server.IsAnnouncing)
}

func TestDispatch_AnnouncesEveryFeedChannel(t *testing.T) {
	manager := newManager(t)
	ctx := context.Background()
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, manager.ServerStorage().SetFeedChannel(ctx, "no-feed", ""))
	seed(t, manager, map[string]string{"guild-a": "feed-a", "guild-b": "feed-b"},
		models.NewChapter("Alpha", "1", "Chapter 1", date, "https://a.test/1", 0),
	)

	logger := arbor.NewLogger()
	bus := events.NewService(logger)
	defer bus.Close()
	finished := make(chan int, 1)
	require.NoError(t, bus.Subscribe(interfaces.EventAnnouncerFinished, func(ctx context.Context, event interfaces.Event) error {
		finished <- event.Payload.(int)
		return nil
	}))

	notifier := &fakeNotifier{}
	service := NewService(manager, notifier, bus, logger)

	count, err := service.Dispatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	channels := []string{}
	for _, call := range notifier.calls() {
		channels = append(channels, call.channelID)
	}
	assert.ElementsMatch(t, []string{"feed-a", "feed-b"}, channels)

	select {
	case published := <-finished:
		assert.Equal(t, 2, published)
	case <-time.After(2 * time.Second):
		t.Fatal("announcer finished event not published")
	}
}

func TestAnnounceServer_ConcurrentSaveIsAnnouncedLater(t *testing.T) {
	manager := newManager(t)
	ctx := context.Background()
	require.NoError(t, manager.ServerStorage().SetFeedChannel(ctx, "guild", "feed"))
	time.Sleep(5 * time.Millisecond)

	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	chapters := make([]models.Chapter, 0, 400)
	for i := 1; i <= 400; i++ {
		number := strconv.Itoa(i)
		chapters = append(chapters, models.NewChapter("Alpha", number, "Chapter "+number, date, "https://a.test/"+number, 0))
	}

	notifier := &fakeNotifier{}
	service := NewService(manager, notifier, nil, arbor.NewLogger())

	done := make(chan struct{})
	go func() {
		defer close(done)
		saved, err := manager.ChapterStorage().SaveChapters(ctx, chapters)
		assert.NoError(t, err)
		assert.Equal(t, 400, saved)
	}()

	time.Sleep(3 * time.Millisecond)
	first, err := service.AnnounceServer(ctx, "guild")
	require.NoError(t, err)

	<-done
	second, err := service.AnnounceServer(ctx, "guild")
	require.NoError(t, err)

	assert.Equal(t, 400, first+second)

	total := 0
	for _, call := range notifier.calls() {
		total += len(call.chapters)
	}
	assert.Equal(t, 400, total)
}
