package config

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"
)

// ReminderSettings controls how the poller fires reminders. It is injected at
// construction and may be replaced at runtime.
type ReminderSettings struct {
	RepeatCount    int
	RepeatInterval time.Duration
	TickInterval   time.Duration
	CalendarAware  bool
	Polish         bool
}

func DefaultReminderSettings() ReminderSettings {
	return ReminderSettings{
		RepeatCount:    1,
		RepeatInterval: 60 * time.Second,
		TickInterval:   time.Second,
		Polish:         true,
	}
}

// Normalize clamps out-of-range values to usable ones.
func (s ReminderSettings) Normalize() ReminderSettings {
	if s.RepeatCount < 1 {
		s.RepeatCount = 1
	}
	if s.RepeatInterval < 0 {
		s.RepeatInterval = 0
	}
	if s.TickInterval <= 0 {
		s.TickInterval = time.Second
	}
	return s
}

// reminderFile is the YAML layout. Absent keys keep the base value.
type reminderFile struct {
	RepeatCount    *int    `yaml:"repeat_count"`
	RepeatInterval *int    `yaml:"repeat_interval"` // seconds
	Tick           *string `yaml:"tick"`
	CalendarAware  *bool   `yaml:"calendar_aware"`
	Polish         *bool   `yaml:"polish"`
}

// LoadReminderFile reads a YAML settings file and overlays it on base.
func LoadReminderFile(path string, base ReminderSettings) (ReminderSettings, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("failed to read reminder config: %w", err)
	}
	return ParseReminderYAML(b, base)
}

func ParseReminderYAML(b []byte, base ReminderSettings) (ReminderSettings, error) {
	var f reminderFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return base, fmt.Errorf("failed to parse reminder config: %w", err)
	}

	out := base
	if f.RepeatCount != nil {
		if *f.RepeatCount < 1 {
			return base, fmt.Errorf("repeat_count must be at least 1, got %d", *f.RepeatCount)
		}
		out.RepeatCount = *f.RepeatCount
	}
	if f.RepeatInterval != nil {
		if *f.RepeatInterval < 0 {
			return base, fmt.Errorf("repeat_interval must not be negative, got %d", *f.RepeatInterval)
		}
		out.RepeatInterval = time.Duration(*f.RepeatInterval) * time.Second
	}
	if f.Tick != nil {
		d, err := time.ParseDuration(*f.Tick)
		if err != nil || d <= 0 {
			return base, fmt.Errorf("invalid tick %q", *f.Tick)
		}
		out.TickInterval = d
	}
	if f.CalendarAware != nil {
		out.CalendarAware = *f.CalendarAware
	}
	if f.Polish != nil {
		out.Polish = *f.Polish
	}
	return out.Normalize(), nil
}
