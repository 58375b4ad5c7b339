package rrule

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/hray3182/DeskPal/internal/models"
)

// Fixed offsets used when calendar-aware expansion is off. Monthly and yearly
// are approximations kept for compatibility with existing repeat chains:
// +30 days drifts against calendar months, +365 days ignores leap years.
const (
	dayOffset   = 24 * time.Hour
	weekOffset  = 7 * dayOffset
	monthOffset = 30 * dayOffset
	yearOffset  = 365 * dayOffset
)

// Expander computes the next occurrence of a completed repeating schedule.
type Expander struct {
	// CalendarAware switches monthly and yearly to RFC 5545 calendar arithmetic.
	CalendarAware bool
}

// NextOccurrence returns the next fire time after current, or ok=false for
// once (and unknown) repeat types.
func (e Expander) NextOccurrence(current time.Time, repeat models.RepeatType) (time.Time, bool, error) {
	switch repeat {
	case models.RepeatDaily:
		return current.Add(dayOffset), true, nil
	case models.RepeatWeekly:
		return current.Add(weekOffset), true, nil
	case models.RepeatMonthly:
		if e.CalendarAware {
			return calendarNext(rrule.MONTHLY, current)
		}
		return current.Add(monthOffset), true, nil
	case models.RepeatYearly:
		if e.CalendarAware {
			return calendarNext(rrule.YEARLY, current)
		}
		return current.Add(yearOffset), true, nil
	default:
		return time.Time{}, false, nil
	}
}

// NextDatetime is NextOccurrence over the stored datetime string.
func (e Expander) NextDatetime(datetime string, repeat models.RepeatType, loc *time.Location) (string, bool, error) {
	if !repeat.IsRecurring() {
		return "", false, nil
	}
	current, err := time.ParseInLocation(models.DatetimeLayout, datetime, loc)
	if err != nil {
		return "", false, fmt.Errorf("failed to parse datetime %q: %w", datetime, err)
	}
	next, ok, err := e.NextOccurrence(current, repeat)
	if err != nil || !ok {
		return "", ok, err
	}
	return next.Format(models.DatetimeLayout), true, nil
}

// calendarNext follows RFC 5545: a monthly rule anchored on the 31st skips
// months without one, a yearly rule anchored on Feb 29 fires on leap years only.
func calendarNext(freq rrule.Frequency, current time.Time) (time.Time, bool, error) {
	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:    freq,
		Dtstart: current,
		Count:   2,
	})
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to build rule: %w", err)
	}
	next := rule.After(current, false)
	if next.IsZero() {
		return time.Time{}, false, nil
	}
	return next, true, nil
}

// RuleString renders a repeat type as an RRULE, empty for once.
func RuleString(repeat models.RepeatType) string {
	switch repeat {
	case models.RepeatDaily:
		return "FREQ=DAILY"
	case models.RepeatWeekly:
		return "FREQ=WEEKLY"
	case models.RepeatMonthly:
		return "FREQ=MONTHLY"
	case models.RepeatYearly:
		return "FREQ=YEARLY"
	default:
		return ""
	}
}

// HumanReadableChinese returns a short Chinese label for a repeat type.
func HumanReadableChinese(repeat models.RepeatType) string {
	switch repeat {
	case models.RepeatDaily:
		return "每天"
	case models.RepeatWeekly:
		return "每周"
	case models.RepeatMonthly:
		return "每月"
	case models.RepeatYearly:
		return "每年"
	default:
		return "一次性"
	}
}
