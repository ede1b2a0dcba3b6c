package parsers

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/ternarybob/decatholac/internal/models"
)

// ParseJSON reads chapters from a JSON document using the target's dot paths.
// Entries matching a skip rule or missing a required field are dropped.
func ParseJSON(target *models.Target, source string, now time.Time) ([]models.Chapter, error) {
	keys := target.Keys
	if keys == nil {
		return nil, fmt.Errorf("target %s has no json keys", target.Name)
	}
	if !gjson.Valid(source) {
		return nil, fmt.Errorf("target %s: response is not valid JSON", target.Name)
	}

	list := gjson.Parse(source).Get(keys.Chapters)
	if !list.Exists() {
		return nil, fmt.Errorf("target %s: no value at %q", target.Name, keys.Chapters)
	}
	if !list.IsArray() {
		return nil, fmt.Errorf("target %s: value at %q is not an array", target.Name, keys.Chapters)
	}

	chapters := make([]models.Chapter, 0)
	for _, entry := range list.Array() {
		if shouldSkip(entry, keys.Skip) {
			continue
		}

		chapter, err := assembleJSONChapter(target, entry)
		if err != nil {
			continue
		}
		chapters = append(chapters, chapter)
	}

	return orderOldestFirst(target, chapters), nil
}

func assembleJSONChapter(target *models.Target, entry gjson.Result) (models.Chapter, error) {
	keys := target.Keys

	number, err := mixValues(entry, keys.Number)
	if err != nil {
		return models.Chapter{}, err
	}
	title, err := mixValues(entry, keys.Title)
	if err != nil {
		return models.Chapter{}, err
	}

	rawDate := entry.Get(keys.Date)
	if !rawDate.Exists() {
		return models.Chapter{}, fmt.Errorf("missing date at %q", keys.Date)
	}
	date, err := decodeJSONDate(rawDate, keys.DateFormat)
	if err != nil {
		return models.Chapter{}, err
	}

	link := entry.Get(keys.URL)
	if !link.Exists() {
		return models.Chapter{}, fmt.Errorf("missing url at %q", keys.URL)
	}

	return newChapter(target, number, title, date, link.String()), nil
}

// mixValues joins the non-empty values found at each path with a space
func mixValues(entry gjson.Result, paths []string) (string, error) {
	parts := make([]string, 0, len(paths))
	for _, path := range paths {
		v := entry.Get(path)
		if !v.Exists() {
			return "", fmt.Errorf("missing value at %q", path)
		}
		if s := v.String(); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " "), nil
}

// shouldSkip reports whether any skip path exists in entry with the configured value
func shouldSkip(entry gjson.Result, skip map[string]any) bool {
	for path, want := range skip {
		v := entry.Get(path)
		if !v.Exists() {
			continue
		}
		if jsonEqual(v, want) {
			return true
		}
	}
	return false
}

// jsonEqual compares a JSON value with a config value after normalising the
// config value through JSON, so TOML integers compare equal to JSON numbers
func jsonEqual(v gjson.Result, want any) bool {
	encoded, err := json.Marshal(want)
	if err != nil {
		return false
	}
	return reflect.DeepEqual(v.Value(), gjson.ParseBytes(encoded).Value())
}
