// Package parsers turns a target's response body into chapters.
// The parsers are pure: no network access and no storage.
package parsers

import (
	"fmt"
	"net/url"
	"slices"
	"time"

	"github.com/ternarybob/decatholac/internal/models"
)

// Parse dispatches to the parser matching the target's mode.
// now is used for chapters whose source carries no date.
func Parse(target *models.Target, body string, now time.Time) ([]models.Chapter, error) {
	if target == nil {
		return nil, fmt.Errorf("target is nil")
	}

	switch target.Mode {
	case models.ParseModeRSS:
		return ParseRSS(target, body, now)
	case models.ParseModeJSON:
		return ParseJSON(target, body, now)
	case models.ParseModeHTML:
		return ParseHTML(target, body, now)
	case models.ParseModeJSONInHTML:
		return ParseJSONInHTML(target, body, now)
	}

	return nil, fmt.Errorf("unsupported parse mode: %s", target.Mode)
}

// makeLink prefixes relative links with the target's base URL
func makeLink(baseURL, link string) string {
	if baseURL == "" {
		return link
	}
	if u, err := url.Parse(link); err == nil && u.IsAbs() {
		return link
	}
	return baseURL + link
}

// newChapter applies the per-target rules shared by every parser
func newChapter(target *models.Target, number, title string, date time.Time, link string) models.Chapter {
	return models.NewChapter(target.Name, number, title, date.UTC(), makeLink(target.BaseURL, link), target.Delay)
}

// orderOldestFirst reverses descending sources so callers always get the
// oldest chapter first
func orderOldestFirst(target *models.Target, chapters []models.Chapter) []models.Chapter {
	if !target.AscendingSource {
		slices.Reverse(chapters)
	}
	return chapters
}
