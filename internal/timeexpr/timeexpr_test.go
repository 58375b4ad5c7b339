package timeexpr

import (
	"testing"
	"time"
)

func TestNormalize(t *testing.T) {
	t.Parallel()
	now := time.Date(2030, 5, 1, 23, 59, 30, 0, time.Local)

	tests := []struct {
		name   string
		in     string
		want   string
		wantOK bool
	}{
		{name: "full datetime", in: "2030-06-01 08:00:00", want: "2030-06-01 08:00:00", wantOK: true},
		{name: "datetime without seconds", in: "2030-06-01 08:00", want: "2030-06-01 08:00:00", wantOK: true},
		{name: "slash datetime", in: "2030/06/01 08:00", want: "2030-06-01 08:00:00", wantOK: true},
		{name: "clock later today", in: "23:59:50", want: "2030-05-01 23:59:50", wantOK: true},
		{name: "clock already past", in: "08:00:00", want: "2030-05-02 08:00:00", wantOK: true},
		{name: "short clock", in: "9:30", want: "2030-05-02 09:30:00", wantOK: true},
		{name: "full-width colon", in: "23：59：59", want: "2030-05-01 23:59:59", wantOK: true},
		{name: "seconds zh", in: "10秒后", want: "2030-05-01 23:59:40", wantOK: true},
		{name: "minutes zh crosses midnight", in: "5分钟后提醒我", want: "2030-05-02 00:04:30", wantOK: true},
		{name: "hours zh", in: "2小时后", want: "2030-05-02 01:59:30", wantOK: true},
		{name: "hours zh measure word", in: "1个小时后", want: "2030-05-02 00:59:30", wantOK: true},
		{name: "seconds en", in: "in 10 seconds", want: "2030-05-01 23:59:40", wantOK: true},
		{name: "minutes en short", in: "5 min", want: "2030-05-02 00:04:30", wantOK: true},
		{name: "hours en", in: "2 hours from now", want: "2030-05-02 01:59:30", wantOK: true},
		{name: "minutes win over hours", in: "1小时30分钟后", want: "2030-05-02 00:29:30", wantOK: true},
		{name: "verbatim", in: "明天下午", want: "明天下午"},
		{name: "overflowing hours verbatim", in: "9999999999 小时", want: "9999999999 小时"},
		{name: "overflowing digits verbatim", in: "99999999999999999999秒", want: "99999999999999999999秒"},
		{name: "invalid clock verbatim", in: "25:00", want: "25:00"},
		{name: "trimmed verbatim", in: "  someday ", want: "someday"},
		{name: "empty", in: "   ", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.in, now)
			if got != tt.want || ok != tt.wantOK {
				t.Fatalf("Normalize(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestClock(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"09:30", "09:30", true},
		{"9:05", "09:05", true},
		{"18:00:59", "18:00", true},
		{"24:00", "", false},
		{"喝水", "", false},
		{"2030-05-01 09:30", "", false},
	}
	for _, tt := range tests {
		got, ok := Clock(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Fatalf("Clock(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestDatetimeRejectsRelative(t *testing.T) {
	t.Parallel()
	if got, ok := Datetime(" 2030-05-01 09:30 ", time.Local); !ok || got != "2030-05-01 09:30:00" {
		t.Fatalf("Datetime = %q, %v", got, ok)
	}
	if _, ok := Datetime("10分钟后", time.Local); ok {
		t.Fatal("relative phrase accepted as datetime")
	}
}
