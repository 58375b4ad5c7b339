package rrule

import (
	"testing"
	"time"

	"github.com/hray3182/DeskPal/internal/models"
)

func TestNextDatetimeFixedOffsets(t *testing.T) {
	t.Parallel()
	e := Expander{}
	tests := []struct {
		repeat models.RepeatType
		in     string
		want   string
	}{
		{models.RepeatDaily, "2030-01-31 08:00:00", "2030-02-01 08:00:00"},
		{models.RepeatWeekly, "2030-01-31 08:00:00", "2030-02-07 08:00:00"},
		{models.RepeatMonthly, "2030-01-31 08:00:00", "2030-03-02 08:00:00"},
		{models.RepeatYearly, "2028-01-01 08:00:00", "2028-12-31 08:00:00"},
	}
	for _, tt := range tests {
		got, ok, err := e.NextDatetime(tt.in, tt.repeat, time.UTC)
		if err != nil || !ok {
			t.Fatalf("NextDatetime(%s, %s) = %v, %v", tt.in, tt.repeat, ok, err)
		}
		if got != tt.want {
			t.Fatalf("NextDatetime(%s, %s) = %s, want %s", tt.in, tt.repeat, got, tt.want)
		}
	}
}

func TestNextDatetimeOnceHasNoOccurrence(t *testing.T) {
	t.Parallel()
	got, ok, err := Expander{}.NextDatetime("2030-01-31 08:00:00", models.RepeatOnce, time.UTC)
	if err != nil || ok || got != "" {
		t.Fatalf("NextDatetime(once) = %q, %v, %v", got, ok, err)
	}
}

func TestNextDatetimeRejectsUnparseable(t *testing.T) {
	t.Parallel()
	if _, _, err := (Expander{}).NextDatetime("明天下午", models.RepeatDaily, time.UTC); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestNextOccurrenceCalendarAware(t *testing.T) {
	t.Parallel()
	e := Expander{CalendarAware: true}
	tests := []struct {
		repeat models.RepeatType
		in     time.Time
		want   time.Time
	}{
		{models.RepeatMonthly, time.Date(2030, 1, 15, 8, 0, 0, 0, time.UTC), time.Date(2030, 2, 15, 8, 0, 0, 0, time.UTC)},
		{models.RepeatYearly, time.Date(2028, 1, 1, 8, 0, 0, 0, time.UTC), time.Date(2029, 1, 1, 8, 0, 0, 0, time.UTC)},
		// Daily and weekly are unaffected by the calendar switch.
		{models.RepeatDaily, time.Date(2030, 1, 15, 8, 0, 0, 0, time.UTC), time.Date(2030, 1, 16, 8, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, ok, err := e.NextOccurrence(tt.in, tt.repeat)
		if err != nil || !ok {
			t.Fatalf("NextOccurrence(%v, %s) = %v, %v", tt.in, tt.repeat, ok, err)
		}
		if !got.Equal(tt.want) {
			t.Fatalf("NextOccurrence(%v, %s) = %v, want %v", tt.in, tt.repeat, got, tt.want)
		}
	}
}

func TestLabels(t *testing.T) {
	t.Parallel()
	if HumanReadableChinese(models.RepeatWeekly) != "每周" || HumanReadableChinese(models.RepeatOnce) != "一次性" {
		t.Fatal("unexpected labels")
	}
	if RuleString(models.RepeatMonthly) != "FREQ=MONTHLY" || RuleString(models.RepeatOnce) != "" {
		t.Fatal("unexpected rule strings")
	}
}
