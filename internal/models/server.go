package models

import "time"

// Server is a Discord guild that receives chapter announcements
type Server struct {
	GuildID         string    `json:"guild_id" badgerhold:"key"`
	FeedChannelID   string    `json:"feed_channel_id"`
	LastAnnouncedAt time.Time `json:"last_announced_at"`
	IsAnnouncing    bool      `json:"is_announcing"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// HasFeedChannel reports whether announcements can be delivered
func (s *Server) HasFeedChannel() bool {
	return s.FeedChannelID != ""
}

// Subscription records that a user wants to be mentioned for a manga
type Subscription struct {
	ID        string    `json:"id" badgerhold:"key"`
	GuildID   string    `json:"guild_id" badgerhold:"index"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}
