package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// maxTimestampMillis is the largest distance from the Unix epoch a
// millisecond timestamp may have (100 million days).
const maxTimestampMillis = 8.64e15

var isoLayouts = []string{
	"2006-1-2",
	time.RFC3339,
	"2006-1-2T15:04:05",
	"2006-1-2 15:04:05",
}

// Layouts tried when no other rule applies.
var calendarLayouts = []string{
	"2 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 January 2006",
	"2006.01.02",
}

var monthAbbrevPT = [...]string{
	"jan.", "fev.", "mar.", "abr.", "mai.", "jun.",
	"jul.", "ago.", "set.", "out.", "nov.", "dez.",
}

// ParseDate normalizes a stored date into a calendar date at UTC midnight.
//
// Rules are applied in order: a hyphen means ISO year-month-day; a slash means
// day/month/year (Brazilian order) when all three parts are integers; a plain
// number is a Unix timestamp in milliseconds; anything else goes through a
// small set of calendar layouts. The boolean is false when no rule matches.
func ParseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	if strings.Contains(s, "-") {
		for _, layout := range isoLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return midnight(t.Year(), t.Month(), t.Day()), true
			}
		}
		return time.Time{}, false
	}

	if strings.Contains(s, "/") {
		if t, ok := parseDayMonthYear(s); ok {
			return t, true
		}
	}

	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return parseTimestamp(n)
	}

	for _, layout := range calendarLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return midnight(t.Year(), t.Month(), t.Day()), true
		}
	}
	return time.Time{}, false
}

// parseTimestamp reads n as Unix milliseconds. NaN, infinities and values
// beyond maxTimestampMillis are not dates.
func parseTimestamp(n float64) (time.Time, bool) {
	if math.IsNaN(n) || math.IsInf(n, 0) || math.Abs(n) > maxTimestampMillis {
		return time.Time{}, false
	}
	t := time.UnixMilli(int64(n)).UTC()
	return midnight(t.Year(), t.Month(), t.Day()), true
}

func parseDayMonthYear(s string) (time.Time, bool) {
	parts := strings.Split(s, "/")
	if len(parts) < 3 {
		return time.Time{}, false
	}
	day, errD := strconv.Atoi(strings.TrimSpace(parts[0]))
	month, errM := strconv.Atoi(strings.TrimSpace(parts[1]))
	year, errY := strconv.Atoi(strings.TrimSpace(parts[2]))
	if errD != nil || errM != nil || errY != nil {
		return time.Time{}, false
	}
	// time.Date normalizes overflowing days and months like a calendar
	// constructor would (32/01 becomes 01/02).
	return midnight(year, time.Month(month), day), true
}

func midnight(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// MonthKey returns the canonical "YYYY-MM" key for t.
func MonthKey(t time.Time) string {
	return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
}

// MonthLabel formats t as a short pt-BR month and year ("mai. de 2024").
func MonthLabel(t time.Time) string {
	return monthAbbrevPT[t.Month()-1] + " de " + strconv.Itoa(t.Year())
}

// ISODate formats t as "YYYY-MM-DD".
func ISODate(t time.Time) string {
	return t.Format("2006-01-02")
}
