// Package discord connects the announcer to Discord: a notifier that posts
// chapters and a bot that serves the slash commands.
package discord

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/decatholac/internal/interfaces"
)

// Slash command handlers give up after this long
const commandTimeout = 10 * time.Second

// Bot owns the gateway session and the registered slash commands
type Bot struct {
	session       *discordgo.Session
	servers       interfaces.ServerStorage
	subscriptions interfaces.SubscriptionStorage
	events        interfaces.EventService
	logger        arbor.ILogger

	mu         sync.Mutex
	registered []*discordgo.ApplicationCommand
}

// NewBot creates a bot session. Nothing connects until Start.
func NewBot(token string, storage interfaces.StorageManager, events interfaces.EventService, logger arbor.ILogger) (*Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("discord token is required")
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds

	return &Bot{
		session:       session,
		servers:       storage.ServerStorage(),
		subscriptions: storage.SubscriptionStorage(),
		events:        events,
		logger:        logger,
	}, nil
}

// Session returns the gateway session, shared with the notifier
func (b *Bot) Session() *discordgo.Session {
	return b.session
}

// Start opens the gateway connection
func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onInteraction)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to connect to discord: %w", err)
	}
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.logger.Info().
		Str("user", r.User.Username).
		Int("guilds", len(r.Guilds)).
		Msg("Connected to Discord")

	b.mu.Lock()
	defer b.mu.Unlock()

	// Ready fires again after a reconnect
	if len(b.registered) > 0 {
		return
	}

	for _, command := range commandDefinitions() {
		created, err := s.ApplicationCommandCreate(r.User.ID, "", command)
		if err != nil {
			b.logger.Error().Str("command", command.Name).Err(err).Msg("Failed to register command")
			continue
		}
		b.registered = append(b.registered, created)
	}
	b.logger.Debug().Int("commands", len(b.registered)).Msg("Slash commands registered")
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Str("panic", fmt.Sprintf("%v", r)).Msg("PANIC RECOVERED in command handler")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	name := i.ApplicationCommandData().Name
	inv := invocationFrom(i)

	reply, err := b.execute(ctx, name, inv)
	if err != nil {
		b.logger.Error().
			Str("command", name).
			Str("guild_id", inv.GuildID).
			Err(err).
			Msg("Command failed")
		reply = replyFailed
	}

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: reply,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}); err != nil {
		b.logger.Warn().Str("command", name).Err(err).Msg("Failed to reply to command")
	}
}

// Close removes the registered commands and closes the session. Failing to
// remove a command is logged only.
func (b *Bot) Close() error {
	b.mu.Lock()
	registered := b.registered
	b.registered = nil
	b.mu.Unlock()

	if b.session.State != nil && b.session.State.User != nil {
		appID := b.session.State.User.ID
		for _, command := range registered {
			if err := b.session.ApplicationCommandDelete(appID, "", command.ID); err != nil {
				b.logger.Warn().Str("command", command.Name).Err(err).Msg("Failed to remove command")
			}
		}
	}

	if err := b.session.Close(); err != nil {
		return fmt.Errorf("failed to close discord session: %w", err)
	}
	b.logger.Info().Msg("Disconnected from Discord")
	return nil
}
