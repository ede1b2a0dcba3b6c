package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/decatholac/internal/models"
)

// Discord rejects embed titles longer than this
const maxEmbedTitle = 256

// messageSender is the part of *discordgo.Session the notifier needs
type messageSender interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Notifier posts chapters as embeds
type Notifier struct {
	sender messageSender
	color  int
	logger arbor.ILogger
}

// NewNotifier creates a notifier that sends through session
func NewNotifier(session *discordgo.Session, color int, logger arbor.ILogger) *Notifier {
	return &Notifier{sender: session, color: color, logger: logger}
}

// SendChapters posts one message per chapter, in order, and stops at the
// first failure
func (n *Notifier) SendChapters(ctx context.Context, channelID string, chapters []models.Chapter, mentions map[string][]string) error {
	for i := range chapters {
		if err := ctx.Err(); err != nil {
			return err
		}

		message := chapterMessage(&chapters[i], mentions[chapters[i].Manga], n.color)
		if _, err := n.sender.ChannelMessageSendComplex(channelID, message, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("failed to send chapter %q: %w", chapters[i].Title, err)
		}

		n.logger.Debug().
			Str("channel_id", channelID).
			Str("manga", chapters[i].Manga).
			Str("title", chapters[i].Title).
			Msg("Chapter announced")
	}
	return nil
}

// chapterMessage renders a chapter and pings its subscribers
func chapterMessage(chapter *models.Chapter, users []string, color int) *discordgo.MessageSend {
	title := fmt.Sprintf("[%s] %s", chapter.Manga, chapter.Title)
	if runes := []rune(title); len(runes) > maxEmbedTitle {
		title = string(runes[:maxEmbedTitle-1]) + "…"
	}

	message := &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       title,
			URL:         chapter.URL,
			Description: chapter.Summary,
			Timestamp:   chapter.Date.UTC().Format(time.RFC3339),
			Color:       color,
		}},
		AllowedMentions: &discordgo.MessageAllowedMentions{Users: users},
	}

	if len(users) > 0 {
		pings := make([]string, len(users))
		for i, user := range users {
			pings[i] = "<@" + user + ">"
		}
		message.Content = strings.Join(pings, " ")
	}
	return message
}
