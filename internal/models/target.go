package models

import (
	"fmt"
	"strings"
)

// ParseMode selects how a target's response body is turned into chapters
type ParseMode string

const (
	ParseModeRSS        ParseMode = "rss"
	ParseModeJSON       ParseMode = "json"
	ParseModeHTML       ParseMode = "html"
	ParseModeJSONInHTML ParseMode = "json-in-html"
)

// ParseParseMode converts a configured mode string into a ParseMode
func ParseParseMode(mode string) (ParseMode, error) {
	switch ParseMode(strings.ToLower(strings.TrimSpace(mode))) {
	case ParseModeRSS:
		return ParseModeRSS, nil
	case ParseModeJSON:
		return ParseModeJSON, nil
	case ParseModeHTML:
		return ParseModeHTML, nil
	case ParseModeJSONInHTML, "json_in_html", "jsoninhtml":
		return ParseModeJSONInHTML, nil
	}
	return "", fmt.Errorf("invalid mode in target: %s", mode)
}

// DateFormatKind identifies how a JSON date value is decoded
type DateFormatKind string

const (
	DateFormatRFC3339   DateFormatKind = "rfc3339"
	DateFormatRFC2822   DateFormatKind = "rfc2822"
	DateFormatUnixSec   DateFormatKind = "unixsec"
	DateFormatUnixMilli DateFormatKind = "unixmilli"
	DateFormatUnixNano  DateFormatKind = "unixnano"
	DateFormatStrftime  DateFormatKind = "strftime"
)

// DateFormat describes a date encoding. Layout is only used by DateFormatStrftime.
type DateFormat struct {
	Kind   DateFormatKind
	Layout string
}

// ParseDateFormat maps a configured dateFormat value to a DateFormat.
// Keywords are matched case-insensitively, anything containing '%' is treated as
// a strftime layout. Unknown values return ok=false so the caller can fall back
// to the default.
func ParseDateFormat(value string) (DateFormat, bool) {
	trimmed := strings.TrimSpace(value)
	switch strings.ToLower(trimmed) {
	case "":
		return DateFormat{}, false
	case "unixsec":
		return DateFormat{Kind: DateFormatUnixSec}, true
	case "unix", "unixmilli":
		return DateFormat{Kind: DateFormatUnixMilli}, true
	case "unixnano":
		return DateFormat{Kind: DateFormatUnixNano}, true
	case "rfc2822":
		return DateFormat{Kind: DateFormatRFC2822}, true
	case "rfc3339":
		return DateFormat{Kind: DateFormatRFC3339}, true
	}
	if strings.Contains(trimmed, "%") {
		return DateFormat{Kind: DateFormatStrftime, Layout: trimmed}, true
	}
	return DateFormat{}, false
}

// TargetKeys holds the dot paths used by the JSON parse modes
type TargetKeys struct {
	Chapters   string
	Number     []string
	Title      []string
	Date       string
	DateFormat *DateFormat
	URL        string
	Skip       map[string]any
}

// TargetTags holds the CSS selectors used by the HTML parse modes.
// Empty strings mean "not configured".
type TargetTags struct {
	ChaptersTag     string
	NumberTag       string
	NumberAttribute string
	TitleTag        string
	TitleAttribute  string
	DateTag         string
	DateAttribute   string
	DateFormat      string
	URLTag          string
	URLAttribute    string
}

// HasDate reports whether the tags locate a date at all
func (t *TargetTags) HasDate() bool {
	return t.DateTag != "" || t.DateAttribute != ""
}

// Target is a single chapter source to watch
type Target struct {
	Name            string
	Source          string
	AscendingSource bool // source lists items oldest first
	Mode            ParseMode
	BaseURL         string
	RequestHeaders  map[string]string
	Delay           uint8 // days between a chapter's date and its announcement
	Keys            *TargetKeys
	Tags            *TargetTags
}

// Validate checks that the mode has the key/tag sections it needs
func (t *Target) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("target name is required")
	}
	if t.Source == "" {
		return fmt.Errorf("target %s: source is required", t.Name)
	}

	switch t.Mode {
	case ParseModeRSS:
	case ParseModeJSON:
		if t.Keys == nil {
			return fmt.Errorf("target %s: json mode requires keys", t.Name)
		}
	case ParseModeHTML:
		if t.Tags == nil {
			return fmt.Errorf("target %s: html mode requires tags", t.Name)
		}
	case ParseModeJSONInHTML:
		if t.Keys == nil || t.Tags == nil {
			return fmt.Errorf("target %s: json-in-html mode requires keys and tags", t.Name)
		}
	default:
		return fmt.Errorf("target %s: invalid mode %q", t.Name, t.Mode)
	}

	return nil
}
