package models

import (
	"strings"
	"time"
)

// DatetimeLayout is the normalized fire-time format stored in the datetime column.
const DatetimeLayout = "2006-01-02 15:04:05"

// RepeatType controls whether a completed schedule spawns a follow-up record.
type RepeatType string

const (
	RepeatOnce    RepeatType = "once"
	RepeatDaily   RepeatType = "daily"
	RepeatWeekly  RepeatType = "weekly"
	RepeatMonthly RepeatType = "monthly"
	RepeatYearly  RepeatType = "yearly"
)

// ParseRepeatType maps user input to a RepeatType. Unknown or empty input is once.
func ParseRepeatType(s string) RepeatType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily", "day", "每天", "每日":
		return RepeatDaily
	case "weekly", "week", "每周", "每週":
		return RepeatWeekly
	case "monthly", "month", "每月":
		return RepeatMonthly
	case "yearly", "year", "annually", "每年":
		return RepeatYearly
	default:
		return RepeatOnce
	}
}

// IsRecurring returns true for every repeat type except once.
func (r RepeatType) IsRecurring() bool {
	return r != "" && r != RepeatOnce
}

type Schedule struct {
	ID             int64      `json:"id"`
	Datetime       string     `json:"datetime"` // YYYY-MM-DD HH:MM:SS, or the raw input when it could not be parsed
	Task           string     `json:"task"`
	Reminded       bool       `json:"reminded"`
	NotifyExternal bool       `json:"notify_external"`
	RepeatType     RepeatType `json:"repeat_type"`
	CreatedAt      string     `json:"created_at"`
}

// Time parses Datetime in the given location. ok is false for verbatim, unparseable values.
func (s *Schedule) Time(loc *time.Location) (time.Time, bool) {
	t, err := time.ParseInLocation(DatetimeLayout, s.Datetime, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Fingerprint is the (datetime, task) pair the record currently carries.
func (s *Schedule) Fingerprint() string {
	return s.Datetime + "-" + s.Task
}
