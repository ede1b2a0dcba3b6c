package parsers

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/decatholac/internal/models"
)

// ParseJSONInHTML extracts the JSON embedded in the first element matching the
// chapters selector (usually a script tag) and parses it with the json keys
func ParseJSONInHTML(target *models.Target, source string, now time.Time) ([]models.Chapter, error) {
	if target.Tags == nil {
		return nil, fmt.Errorf("target %s has no html tags", target.Name)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("target %s: failed to parse html: %w", target.Name, err)
	}

	found, err := safeFind(doc.Selection, target.Tags.ChaptersTag)
	if err != nil {
		return nil, err
	}
	script := found.First()
	if script.Length() == 0 {
		return nil, fmt.Errorf("target %s: could not find script tag %s", target.Name, target.Tags.ChaptersTag)
	}

	payload, err := selectValue(script, "", "")
	if err != nil {
		return nil, err
	}

	return ParseJSON(target, payload, now)
}
