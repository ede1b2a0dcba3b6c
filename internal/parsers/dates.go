package parsers

import (
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/itchyny/timefmt-go"
	"github.com/tidwall/gjson"

	"github.com/ternarybob/decatholac/internal/models"
)

const (
	defaultDateTimeLayout = "%Y-%m-%dT%H:%M:%S"
	defaultDateLayout     = "%Y-%m-%d"
)

// parseStrftime parses value with a strftime layout. Padding flags such as
// "%-d" are accepted; the parser already reads variable width numbers.
func parseStrftime(value, layout string) (time.Time, error) {
	layout = strings.NewReplacer("%-", "%", "%_", "%", "%0", "%").Replace(layout)
	t, err := timefmt.Parse(strings.TrimSpace(value), layout)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse date %q with %q: %w", value, layout, err)
	}
	return t.UTC(), nil
}

// parseDateString parses an HTML date. Strings containing ':' are date-times,
// others are dates at midnight UTC.
func parseDateString(value, layout string) (time.Time, error) {
	if layout == "" {
		if strings.Contains(value, ":") {
			layout = defaultDateTimeLayout
		} else {
			layout = defaultDateLayout
		}
	}
	t, err := parseStrftime(value, layout)
	if err != nil {
		return time.Time{}, err
	}
	if !strings.Contains(value, ":") {
		y, m, d := t.Date()
		t = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	return t, nil
}

func parseRFC3339(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse rfc3339 date %q: %w", value, err)
	}
	return t.UTC(), nil
}

func parseRFC2822(value string) (time.Time, error) {
	t, err := mail.ParseDate(strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse rfc2822 date %q: %w", value, err)
	}
	return t.UTC(), nil
}

// jsonInt reads an integer from a JSON number or numeric string
func jsonInt(v gjson.Result) (int64, error) {
	switch v.Type {
	case gjson.Number:
		return v.Int(), nil
	case gjson.String:
		n, err := strconv.ParseInt(strings.TrimSpace(v.Str), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("timestamp %q is not an integer", v.Str)
		}
		return n, nil
	}
	return 0, fmt.Errorf("timestamp has unexpected type %s", v.Type)
}

// decodeJSONDate decodes a JSON date value. A nil format means rfc3339.
func decodeJSONDate(v gjson.Result, format *models.DateFormat) (time.Time, error) {
	kind := models.DateFormatRFC3339
	if format != nil {
		kind = format.Kind
	}

	switch kind {
	case models.DateFormatUnixSec:
		n, err := jsonInt(v)
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(n, 0).UTC(), nil
	case models.DateFormatUnixMilli:
		n, err := jsonInt(v)
		if err != nil {
			return time.Time{}, err
		}
		return time.UnixMilli(n).UTC(), nil
	case models.DateFormatUnixNano:
		n, err := jsonInt(v)
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(0, n).UTC(), nil
	}

	if v.Type != gjson.String {
		return time.Time{}, fmt.Errorf("date is not a string")
	}

	switch kind {
	case models.DateFormatRFC2822:
		return parseRFC2822(v.Str)
	case models.DateFormatStrftime:
		return parseStrftime(v.Str, format.Layout)
	}
	return parseRFC3339(v.Str)
}
