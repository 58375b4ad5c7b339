// Package timeexpr turns the time phrases users type into the stored
// YYYY-MM-DD HH:MM:SS form.
package timeexpr

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hray3182/DeskPal/internal/models"
)

type relativeUnit struct {
	pattern *regexp.Regexp
	unit    time.Duration
}

// Checked in order; the first unit found wins.
var relativeUnits = []relativeUnit{
	{regexp.MustCompile(`(?i)(\d+)\s*(?:秒|seconds?\b|secs?\b|s\b)`), time.Second},
	{regexp.MustCompile(`(?i)(\d+)\s*(?:分|minutes?\b|mins?\b|m\b)`), time.Minute},
	{regexp.MustCompile(`(?i)(\d+)\s*(?:个?小时|个?钟头|hours?\b|hrs?\b|h\b)`), time.Hour},
}

var clockPattern = regexp.MustCompile(`^(\d{1,2})[:：](\d{2})(?:[:：](\d{2}))?$`)

var datetimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
}

// Normalize resolves expr against now. Accepted forms, in order:
//
//	full datetime   2030-05-01 09:00[:00]
//	clock time      09:30[:00], today or tomorrow if already past
//	relative        10秒 / 5分钟后 / 2小时 / 10 seconds / 5 min / 2h
//
// Anything else is returned unchanged with ok=false.
func Normalize(expr string, now time.Time) (string, bool) {
	s := strings.TrimSpace(expr)
	if s == "" {
		return "", false
	}

	if dt, ok := Datetime(s, now.Location()); ok {
		return dt, true
	}

	if h, m, sec, ok := parseClock(s); ok {
		t := time.Date(now.Year(), now.Month(), now.Day(), h, m, sec, 0, now.Location())
		if t.Before(now) {
			t = t.AddDate(0, 0, 1)
		}
		return t.Format(models.DatetimeLayout), true
	}

	if d, ok := Relative(s); ok {
		return now.Add(d).Format(models.DatetimeLayout), true
	}

	return s, false
}

// Datetime accepts only full datetime forms, for exact-match lookups where a
// clock or relative phrase would be meaningless.
func Datetime(expr string, loc *time.Location) (string, bool) {
	s := strings.TrimSpace(expr)
	for _, layout := range datetimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.Format(models.DatetimeLayout), true
		}
	}
	return s, false
}

// Relative extracts an offset such as "10分钟后" or "in 2 hours". Offsets too
// large for a time.Duration are rejected.
func Relative(s string) (time.Duration, bool) {
	for _, ru := range relativeUnits {
		m := ru.pattern.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil || n > math.MaxInt64/int64(ru.unit) {
			return 0, false
		}
		return time.Duration(n) * ru.unit, true
	}
	return 0, false
}

// Clock reports whether s is a bare HH:MM or HH:MM:SS and returns it as HH:MM.
func Clock(s string) (string, bool) {
	h, m, _, ok := parseClock(strings.TrimSpace(s))
	if !ok {
		return "", false
	}
	return time.Date(0, 1, 1, h, m, 0, 0, time.UTC).Format("15:04"), true
}

func parseClock(s string) (h, m, sec int, ok bool) {
	match := clockPattern.FindStringSubmatch(s)
	if match == nil {
		return 0, 0, 0, false
	}
	h, _ = strconv.Atoi(match[1])
	m, _ = strconv.Atoi(match[2])
	if match[3] != "" {
		sec, _ = strconv.Atoi(match[3])
	}
	if h > 23 || m > 59 || sec > 59 {
		return 0, 0, 0, false
	}
	return h, m, sec, true
}
