package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/ternarybob/decatholac/internal/interfaces"
)

const (
	CommandFetch            = "fetch"
	CommandAnnounce         = "announce"
	CommandSetFeedChannel   = "set-as-feed-channel"
	CommandSubscribe        = "subscribe"
	CommandUnsubscribe      = "unsubscribe"
	CommandSubscriptions    = "subscriptions"
	optionTitle             = "title"
	replyGuildOnly          = "This command only works inside a server."
	replyMissingPermissions = "You need the Manage Channels permission to do that."
	replyNoFeedChannel      = "This server has no feed channel yet. Run /set-as-feed-channel in the channel that should receive chapters."
	replyFailed             = "Something went wrong, please try again later."
)

// commandDefinitions returns the slash commands registered on ready
func commandDefinitions() []*discordgo.ApplicationCommand {
	manageChannels := int64(discordgo.PermissionManageChannels)
	dm := false

	titleOption := []*discordgo.ApplicationCommandOption{{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        optionTitle,
		Description: "Manga title, as the bot announces it",
		Required:    true,
	}}

	return []*discordgo.ApplicationCommand{
		{
			Name:        CommandFetch,
			Description: "Check every target for new chapters now",
		},
		{
			Name:         CommandAnnounce,
			Description:  "Announce pending chapters to this server's feed channel",
			DMPermission: &dm,
		},
		{
			Name:                     CommandSetFeedChannel,
			Description:              "Announce new chapters in this channel",
			DefaultMemberPermissions: &manageChannels,
			DMPermission:             &dm,
		},
		{
			Name:         CommandSubscribe,
			Description:  "Get mentioned when a manga has a new chapter",
			Options:      titleOption,
			DMPermission: &dm,
		},
		{
			Name:         CommandUnsubscribe,
			Description:  "Stop getting mentioned for a manga",
			Options:      titleOption,
			DMPermission: &dm,
		},
		{
			Name:         CommandSubscriptions,
			Description:  "List your subscriptions in this server",
			DMPermission: &dm,
		},
	}
}

// invocation is the part of an interaction the command handlers read
type invocation struct {
	GuildID     string
	ChannelID   string
	UserID      string
	Permissions int64
	Options     map[string]string
}

// invocationFrom flattens an interaction
func invocationFrom(i *discordgo.InteractionCreate) invocation {
	inv := invocation{
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		Options:   map[string]string{},
	}
	if i.Member != nil {
		inv.Permissions = i.Member.Permissions
		if i.Member.User != nil {
			inv.UserID = i.Member.User.ID
		}
	} else if i.User != nil {
		inv.UserID = i.User.ID
	}

	for _, option := range i.ApplicationCommandData().Options {
		if option.Type == discordgo.ApplicationCommandOptionString {
			inv.Options[option.Name] = strings.TrimSpace(option.StringValue())
		}
	}
	return inv
}

// execute runs a command and returns the reply shown to the invoking user
func (b *Bot) execute(ctx context.Context, name string, inv invocation) (string, error) {
	if name != CommandFetch && inv.GuildID == "" {
		return replyGuildOnly, nil
	}

	switch name {
	case CommandFetch:
		if err := b.events.Publish(ctx, interfaces.Event{Type: interfaces.EventFetchTriggered}); err != nil {
			return "", err
		}
		return "Checking every target for new chapters.", nil

	case CommandAnnounce:
		server, err := b.servers.GetServer(ctx, inv.GuildID)
		if errors.Is(err, interfaces.ErrServerNotFound) {
			return replyNoFeedChannel, nil
		}
		if err != nil {
			return "", err
		}
		if !server.HasFeedChannel() {
			return replyNoFeedChannel, nil
		}
		if err := b.events.Publish(ctx, interfaces.Event{
			Type:    interfaces.EventAnnounceServerTriggered,
			Payload: inv.GuildID,
		}); err != nil {
			return "", err
		}
		return fmt.Sprintf("Announcing pending chapters in <#%s>.", server.FeedChannelID), nil

	case CommandSetFeedChannel:
		if inv.Permissions&discordgo.PermissionManageChannels == 0 {
			return replyMissingPermissions, nil
		}
		if err := b.servers.SetFeedChannel(ctx, inv.GuildID, inv.ChannelID); err != nil {
			return "", err
		}
		return "New chapters will be announced in this channel.", nil

	case CommandSubscribe:
		title := inv.Options[optionTitle]
		if title == "" {
			return "Please give a manga title.", nil
		}
		if _, err := b.subscriptions.Subscribe(ctx, inv.GuildID, inv.UserID, title); err != nil {
			return "", err
		}
		return fmt.Sprintf("Subscribed to **%s**.", title), nil

	case CommandUnsubscribe:
		title := inv.Options[optionTitle]
		removed, err := b.subscriptions.Unsubscribe(ctx, inv.GuildID, inv.UserID, title)
		if err != nil {
			return "", err
		}
		if !removed {
			return fmt.Sprintf("You are not subscribed to **%s**.", title), nil
		}
		return fmt.Sprintf("Unsubscribed from **%s**.", title), nil

	case CommandSubscriptions:
		subscriptions, err := b.subscriptions.ListByGuild(ctx, inv.GuildID, inv.UserID)
		if err != nil {
			return "", err
		}
		if len(subscriptions) == 0 {
			return "You have no subscriptions in this server.", nil
		}
		var sb strings.Builder
		sb.WriteString("Your subscriptions:")
		for _, subscription := range subscriptions {
			sb.WriteString("\n- ")
			sb.WriteString(subscription.Title)
		}
		return sb.String(), nil
	}

	return "", fmt.Errorf("unknown command: %s", name)
}
