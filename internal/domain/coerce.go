package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// ToFloat converts v to a float64. Numeric kinds convert directly. Strings
// may use either "." or "," as decimal separator. Anything else, including
// NaN and infinities, returns def.
func ToFloat(v any, def *float64) *float64 {
	var f float64
	switch n := v.(type) {
	case nil:
		return def
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return def
		}
		f = parsed
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(n), ",", ".")
		if s == "" {
			return def
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return def
		}
		f = parsed
	default:
		return def
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return &f
}

// zonedLayouts are tried in order after RFC 3339 and keep the parsed offset.
var zonedLayouts = []string{
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z0700",
}

// dateLayouts carry no zone, so results are in UTC.
var dateLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006",
}

// prefixLayouts read the leading date-time or date of a string no other
// layout accepts, e.g. one with trailing text.
var prefixLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ToTimestamp converts a native time or a date string to a point in time.
// Zero times, empty strings and unknown formats return nil.
func ToTimestamp(v any) *time.Time {
	switch x := v.(type) {
	case time.Time:
		if x.IsZero() {
			return nil
		}
		return &x
	case *time.Time:
		if x == nil || x.IsZero() {
			return nil
		}
		t := *x
		return &t
	case string:
		return parseDateString(x)
	default:
		return nil
	}
}

func parseDateString(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return &t
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return &t
		}
	}
	for _, layout := range prefixLayouts {
		if len(s) < len(layout) {
			continue
		}
		if t, err := time.ParseInLocation(layout, s[:len(layout)], time.UTC); err == nil {
			return &t
		}
	}
	return nil
}

// FormatTimestamp renders t as RFC 3339, or nil when t is nil.
func FormatTimestamp(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

// dateString stringifies a raw date for output: RFC 3339 when it parses, the
// trimmed raw text otherwise, nil when absent or blank.
func dateString(v any) *string {
	if ts := ToTimestamp(v); ts != nil {
		return FormatTimestamp(ts)
	}
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(stringify(v))
	if s == "" {
		return nil
	}
	return &s
}
