package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var nonNumeric = regexp.MustCompile(`[^0-9.,]`)

// ParseValue reads a monetary amount such as "$1,250,000.00 CAD".
// Anything unparseable is 0.
func ParseValue(raw string) float64 {
	cleaned := strings.ReplaceAll(nonNumeric.ReplaceAllString(raw, ""), ",", "")
	if cleaned == "" {
		return 0
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v
}

// dateLayouts is tried in order; day-first wins over month-first for
// ambiguous numeric dates.
var dateLayouts = []string{
	"2006-01-02",
	"2/1/2006",
	"1/2/2006",
	"2006-01-02 15:04:05",
	"2-Jan-2006",
	"2 Jan 2006",
	"January 2, 2006",
	"2 January 2006",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z",
	time.RFC3339,
	"2-1-2006",
	"2006/1/2",
	"Jan 2, 2006",
	"2 Jan 2006 3:04 PM",
}

// ParseDate reads the date formats seen on Canadian portals. Dates without
// a zone are taken as UTC. Empty or unrecognised input yields nil.
func ParseDate(raw string) *time.Time {
	raw = strings.Join(strings.Fields(raw), " ")
	if raw == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// labelValue splits "Closing Date: 2026-03-01" into its value.
func labelValue(text string) string {
	if i := strings.Index(text, ":"); i >= 0 {
		return strings.TrimSpace(text[i+1:])
	}
	return strings.TrimSpace(text)
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
