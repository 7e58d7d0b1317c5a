package cleaning

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Time-of-day suffixes accepted after a numeric date.
var clockLayouts = []string{
	"",
	" 15:04",
	" 15:04:05",
	" 3:04 PM",
	" 3:04:05 PM",
	" 3:04PM",
}

// dateLayouts are tried in order: zoned and ISO forms, then day-first
// numeric dates, then month-first numeric dates, then named months. A
// month-first layout only matches when the day-first reading is
// impossible, e.g. "1/15/2024".
var dateLayouts = buildDateLayouts()

func buildDateLayouts() []string {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-1-2T15:04",
		"2006-1-2T15:04:05",
		"20060102",
		"20060102150405",
	}

	numeric := [][]string{
		{"2006-1-2", "2006/1/2"},
		{"2/1/2006", "2-1-2006", "2.1.2006", "2/1/06", "2-1-06", "2.1.06"},
		{"1/2/2006", "1-2-2006", "1.2.2006", "1/2/06", "1-2-06", "1.2.06"},
	}
	for _, group := range numeric {
		for _, date := range group {
			for _, clock := range clockLayouts {
				layouts = append(layouts, date+clock)
			}
		}
	}

	return append(layouts,
		"2 Jan 2006",
		"2 January 2006",
		"2-Jan-2006",
		"2-Jan-06",
		"Jan 2, 2006",
		"Jan 2 2006",
		"January 2, 2006",
		"January 2 2006",
	)
}

// parsePrice keeps only digits and periods before parsing, so currency
// symbols and thousands separators are tolerated.
func parsePrice(raw string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, raw)
	if cleaned == "" {
		return 0, false
	}
	return parseFinite(cleaned)
}

func parseNumber(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	return parseFinite(raw)
}

func parseFinite(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// parseOrderDate returns the timestamp in UTC. Values without a zone are
// taken as UTC.
func parseOrderDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}
