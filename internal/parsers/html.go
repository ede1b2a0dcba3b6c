package parsers

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/ternarybob/decatholac/internal/models"
)

// ParseHTML reads one chapter from every element matching the chapters selector.
// Elements missing a configured sub-element or attribute are dropped.
func ParseHTML(target *models.Target, source string, now time.Time) ([]models.Chapter, error) {
	tags := target.Tags
	if tags == nil {
		return nil, fmt.Errorf("target %s has no html tags", target.Name)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("target %s: failed to parse html: %w", target.Name, err)
	}

	selection, err := safeFind(doc.Selection, tags.ChaptersTag)
	if err != nil {
		return nil, err
	}

	chapters := make([]models.Chapter, 0, selection.Length())
	selection.Each(func(_ int, element *goquery.Selection) {
		chapter, err := assembleHTMLChapter(target, element, now)
		if err != nil {
			return
		}
		chapters = append(chapters, chapter)
	})

	return orderOldestFirst(target, chapters), nil
}

func assembleHTMLChapter(target *models.Target, element *goquery.Selection, now time.Time) (models.Chapter, error) {
	tags := target.Tags

	number, err := selectValue(element, tags.NumberTag, tags.NumberAttribute)
	if err != nil {
		return models.Chapter{}, err
	}
	title, err := selectValue(element, tags.TitleTag, tags.TitleAttribute)
	if err != nil {
		return models.Chapter{}, err
	}

	date := now
	if tags.HasDate() {
		raw, err := selectValue(element, tags.DateTag, tags.DateAttribute)
		if err != nil {
			return models.Chapter{}, err
		}
		date, err = parseDateString(raw, tags.DateFormat)
		if err != nil {
			return models.Chapter{}, err
		}
	}

	link, err := selectValue(element, tags.URLTag, tags.URLAttribute)
	if err != nil {
		return models.Chapter{}, err
	}

	return newChapter(target, number, title, date, link), nil
}

// selectValue reads an attribute or the trimmed text from the first element
// matching tag below element, or from element itself when tag is empty
func selectValue(element *goquery.Selection, tag, attribute string) (string, error) {
	node := element
	if tag != "" {
		found, err := safeFind(element, tag)
		if err != nil {
			return "", err
		}
		node = found.First()
		if node.Length() == 0 {
			return "", fmt.Errorf("no element found using tag %s", tag)
		}
	}

	if attribute != "" {
		value, ok := node.Attr(attribute)
		if !ok {
			return "", fmt.Errorf("no attribute %s found in tag", attribute)
		}
		return strings.TrimSpace(value), nil
	}

	return strings.TrimSpace(node.Text()), nil
}

// safeFind compiles the selector up front so a typo in the config is reported
// instead of silently matching nothing
func safeFind(selection *goquery.Selection, selector string) (*goquery.Selection, error) {
	matcher, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("failed creating selector: %s: %w", selector, err)
	}
	return selection.FindMatcher(matcher), nil
}
