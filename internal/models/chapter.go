package models

import (
	"time"

	"github.com/google/uuid"
)

// chapterNamespace scopes the deterministic chapter IDs
var chapterNamespace = uuid.MustParse("6f1c9a52-7d0e-4b8a-9c43-2d5e8f0a1b37")

// Chapter is a single release found in a target's listing
type Chapter struct {
	ID         string    `json:"id" badgerhold:"key"`
	Manga      string    `json:"manga" badgerhold:"index"`
	Number     string    `json:"number"`
	Title      string    `json:"title"`
	Date       time.Time `json:"date"`
	URL        string    `json:"url"`
	Summary    string    `json:"summary,omitempty"`
	LoggedAt   time.Time `json:"logged_at"`
	AnnounceAt time.Time `json:"announce_at"`
}

// ChapterID returns the identity used to deduplicate chapters.
// The same manga, title and number always map to the same ID.
func ChapterID(manga, title, number string) string {
	return uuid.NewSHA1(chapterNamespace, []byte(manga+"\x00"+title+"\x00"+number)).String()
}

// NewChapter builds a chapter and derives its ID and announce time
func NewChapter(manga, number, title string, date time.Time, url string, delay uint8) Chapter {
	return Chapter{
		ID:         ChapterID(manga, title, number),
		Manga:      manga,
		Number:     number,
		Title:      title,
		Date:       date,
		URL:        url,
		AnnounceAt: date.AddDate(0, 0, int(delay)),
	}
}

// DueAt is the moment the chapter becomes eligible for announcement:
// after it was logged and after its delay has passed.
func (c *Chapter) DueAt() time.Time {
	if c.AnnounceAt.After(c.LoggedAt) {
		return c.AnnounceAt
	}
	return c.LoggedAt
}
