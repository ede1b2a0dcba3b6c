package parsers

import (
	"fmt"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/mmcdole/gofeed"

	"github.com/ternarybob/decatholac/internal/models"
)

// maxSummaryLength keeps summaries inside a Discord embed description
const maxSummaryLength = 300

// ParseRSS reads chapters from an RSS or Atom feed
func ParseRSS(target *models.Target, source string, now time.Time) ([]models.Chapter, error) {
	feed, err := gofeed.NewParser().ParseString(source)
	if err != nil {
		return nil, fmt.Errorf("target %s: failed to parse feed: %w", target.Name, err)
	}

	converter := md.NewConverter("", true, nil)

	chapters := make([]models.Chapter, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}

		link := itemLink(item)
		number := item.GUID
		if number == "" {
			number = link
		}

		date := now
		if item.PublishedParsed != nil {
			date = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			date = *item.UpdatedParsed
		}

		chapter := newChapter(target, number, strings.TrimSpace(item.Title), date, link)
		chapter.Summary = summarize(converter, item.Description)
		chapters = append(chapters, chapter)
	}

	return orderOldestFirst(target, chapters), nil
}

func itemLink(item *gofeed.Item) string {
	if item.Link != "" {
		return item.Link
	}
	if len(item.Links) > 0 {
		return item.Links[0]
	}
	return ""
}

// summarize converts an HTML description to trimmed Markdown
func summarize(converter *md.Converter, description string) string {
	if strings.TrimSpace(description) == "" {
		return ""
	}

	markdown, err := converter.ConvertString(description)
	if err != nil {
		markdown = description
	}
	markdown = strings.TrimSpace(markdown)

	runes := []rune(markdown)
	if len(runes) > maxSummaryLength {
		markdown = strings.TrimSpace(string(runes[:maxSummaryLength])) + "…"
	}
	return markdown
}
