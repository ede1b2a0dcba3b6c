package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    ParseMode
		wantErr bool
	}{
		{"rss", ParseModeRSS, false},
		{"JSON", ParseModeJSON, false},
		{" html ", ParseModeHTML, false},
		{"json-in-html", ParseModeJSONInHTML, false},
		{"json_in_html", ParseModeJSONInHTML, false},
		{"jsoninhtml", ParseModeJSONInHTML, false},
		{"csv", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseParseMode(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDateFormat(t *testing.T) {
	tests := []struct {
		input  string
		want   DateFormat
		wantOK bool
	}{
		{"unixsec", DateFormat{Kind: DateFormatUnixSec}, true},
		{"unix", DateFormat{Kind: DateFormatUnixMilli}, true},
		{"UnixMilli", DateFormat{Kind: DateFormatUnixMilli}, true},
		{"unixnano", DateFormat{Kind: DateFormatUnixNano}, true},
		{"rfc2822", DateFormat{Kind: DateFormatRFC2822}, true},
		{"rfc3339", DateFormat{Kind: DateFormatRFC3339}, true},
		{"%Y/%m/%d", DateFormat{Kind: DateFormatStrftime, Layout: "%Y/%m/%d"}, true},
		{"iso", DateFormat{}, false},
		{"", DateFormat{}, false},
	}

	for _, tt := range tests {
		got, ok := ParseDateFormat(tt.input)
		assert.Equal(t, tt.wantOK, ok, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}
}

func TestTargetValidate(t *testing.T) {
	tests := []struct {
		name    string
		target  Target
		wantErr bool
	}{
		{"rss", Target{Name: "a", Source: "https://x.test", Mode: ParseModeRSS}, false},
		{"missing name", Target{Source: "https://x.test", Mode: ParseModeRSS}, true},
		{"missing source", Target{Name: "a", Mode: ParseModeRSS}, true},
		{"json without keys", Target{Name: "a", Source: "s", Mode: ParseModeJSON}, true},
		{"json with keys", Target{Name: "a", Source: "s", Mode: ParseModeJSON, Keys: &TargetKeys{}}, false},
		{"html without tags", Target{Name: "a", Source: "s", Mode: ParseModeHTML}, true},
		{"json-in-html without tags", Target{Name: "a", Source: "s", Mode: ParseModeJSONInHTML, Keys: &TargetKeys{}}, true},
		{"json-in-html", Target{Name: "a", Source: "s", Mode: ParseModeJSONInHTML, Keys: &TargetKeys{}, Tags: &TargetTags{}}, false},
		{"unknown mode", Target{Name: "a", Source: "s", Mode: "csv"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.target.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestChapterID(t *testing.T) {
	a := ChapterID("Manga", "Chapter 1", "1")
	b := ChapterID("Manga", "Chapter 1", "1")
	c := ChapterID("Manga", "Chapter 1", "2")
	d := ChapterID("Manga", "Chapter 11", "")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, ChapterID("Manga", "Chapter 1", "1"), d)
}

func TestNewChapterAndDueAt(t *testing.T) {
	date := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	chapter := NewChapter("Manga", "5", "Chapter 5", date, "https://x.test/5", 3)

	assert.Equal(t, ChapterID("Manga", "Chapter 5", "5"), chapter.ID)
	assert.Equal(t, date.AddDate(0, 0, 3), chapter.AnnounceAt)

	chapter.LoggedAt = date.AddDate(0, 0, 1)
	assert.Equal(t, chapter.AnnounceAt, chapter.DueAt())

	chapter.LoggedAt = date.AddDate(0, 0, 10)
	assert.Equal(t, chapter.LoggedAt, chapter.DueAt())
}
