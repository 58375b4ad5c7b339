package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestReminderFromEnv(t *testing.T) {
	t.Setenv("REMINDER_REPEAT_COUNT", "3")
	t.Setenv("REMINDER_REPEAT_INTERVAL", "5")
	t.Setenv("REMINDER_TICK", "500ms")
	t.Setenv("REMINDER_CALENDAR_AWARE", "true")
	t.Setenv("REMINDER_POLISH", "false")

	got, err := EnvReminder()
	if err != nil {
		t.Fatalf("EnvReminder: %v", err)
	}
	want := ReminderSettings{
		RepeatCount:    3,
		RepeatInterval: 5 * time.Second,
		TickInterval:   500 * time.Millisecond,
		CalendarAware:  true,
		Polish:         false,
	}
	if got != want {
		t.Fatalf("EnvReminder() = %+v, want %+v", got, want)
	}
}

func TestReminderFromEnvRejectsGarbage(t *testing.T) {
	t.Setenv("REMINDER_REPEAT_COUNT", "three")
	if _, err := EnvReminder(); err == nil {
		t.Fatal("expected error for non-numeric repeat count")
	}
}

func TestReminderDefaults(t *testing.T) {
	for _, key := range []string{"REMINDER_REPEAT_COUNT", "REMINDER_REPEAT_INTERVAL", "REMINDER_TICK", "REMINDER_CALENDAR_AWARE", "REMINDER_POLISH"} {
		t.Setenv(key, "")
	}
	got, err := EnvReminder()
	if err != nil {
		t.Fatalf("EnvReminder: %v", err)
	}
	if got != DefaultReminderSettings() {
		t.Fatalf("EnvReminder() = %+v, want defaults", got)
	}
}

func TestParseReminderYAML(t *testing.T) {
	t.Parallel()
	base := DefaultReminderSettings()
	tests := []struct {
		name    string
		doc     string
		want    ReminderSettings
		wantErr bool
	}{
		{
			name: "partial overlay",
			doc:  "repeat_count: 3\nrepeat_interval: 5\n",
			want: ReminderSettings{RepeatCount: 3, RepeatInterval: 5 * time.Second, TickInterval: time.Second, Polish: true},
		},
		{
			name: "every key",
			doc:  "repeat_count: 2\nrepeat_interval: 0\ntick: 2s\ncalendar_aware: true\npolish: false\n",
			want: ReminderSettings{RepeatCount: 2, TickInterval: 2 * time.Second, CalendarAware: true},
		},
		{name: "empty document", doc: "", want: base},
		{name: "zero repeat count", doc: "repeat_count: 0\n", wantErr: true},
		{name: "negative interval", doc: "repeat_interval: -1\n", wantErr: true},
		{name: "bad tick", doc: "tick: soon\n", wantErr: true},
		{name: "not yaml", doc: "repeat_count: [\n", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReminderYAML([]byte(tt.doc), base)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				if got != base {
					t.Fatalf("rejected file must keep base, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseReminderYAML: %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseReminderYAML() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

type recordingApplier struct {
	mu      sync.Mutex
	current ReminderSettings
	applied []ReminderSettings
}

func newRecordingApplier(current ReminderSettings) *recordingApplier {
	return &recordingApplier{current: current}
}

func (r *recordingApplier) Settings() ReminderSettings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *recordingApplier) Apply(s ReminderSettings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = s
	r.applied = append(r.applied, s)
}

// set changes the running settings without going through the file.
func (r *recordingApplier) set(s ReminderSettings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = s
}

func (r *recordingApplier) last() (ReminderSettings, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.applied) == 0 {
		return ReminderSettings{}, 0
	}
	return r.applied[len(r.applied)-1], len(r.applied)
}

func TestReminderWatcherReload(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "reminder.yaml")
	base := DefaultReminderSettings()
	applier := newRecordingApplier(base)
	w := NewReminderWatcher(path, base, applier, zerolog.Nop())

	if err := os.WriteFile(path, []byte("repeat_count: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := w.Reload()
	if err != nil || got.RepeatCount != 3 {
		t.Fatalf("Reload = %+v, %v", got, err)
	}
	if _, n := applier.last(); n != 1 {
		t.Fatalf("applied %d times, want 1", n)
	}

	// Same content again is not re-applied.
	if _, err := w.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if _, n := applier.last(); n != 1 {
		t.Fatalf("unchanged file applied again (%d)", n)
	}

	// Broken file keeps the previous settings.
	if err := os.WriteFile(path, []byte("repeat_count: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Reload(); err == nil {
		t.Fatal("expected reload error")
	}
	if got := applier.Settings(); got.RepeatCount != 3 {
		t.Fatalf("current = %+v, want previous settings kept", got)
	}
}

func TestReminderWatcherReappliesAfterLiveEdit(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "reminder.yaml")
	base := DefaultReminderSettings()
	applier := newRecordingApplier(base)
	w := NewReminderWatcher(path, base, applier, zerolog.Nop())

	if err := os.WriteFile(path, []byte("repeat_count: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	// Changed from chat; the file still says 2.
	live := applier.Settings()
	live.RepeatCount = 5
	applier.set(live)

	got, err := w.Reload()
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if got.RepeatCount != 2 || applier.Settings().RepeatCount != 2 {
		t.Fatalf("reload = %+v, running = %+v, want the file's repeat_count 2", got, applier.Settings())
	}
	if _, n := applier.last(); n != 2 {
		t.Fatalf("applied %d times, want 2", n)
	}
}

func TestReminderWatcherWatch(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "reminder.yaml")
	if err := os.WriteFile(path, []byte("repeat_count: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	base := DefaultReminderSettings()
	applier := newRecordingApplier(base)
	w := NewReminderWatcher(path, base, applier, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// The watcher registers asynchronously; rewrite until a reload lands.
	for attempt := 0; attempt < 5; attempt++ {
		if err := os.WriteFile(path, []byte("repeat_count: 4\nrepeat_interval: 7\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		deadline := time.Now().Add(time.Second)
		for time.Now().Before(deadline) {
			if s, n := applier.last(); n > 0 && s.RepeatCount == 4 {
				if s.RepeatInterval != 7*time.Second {
					t.Fatalf("applied %+v", s)
				}
				return
			}
			time.Sleep(50 * time.Millisecond)
		}
	}
	t.Fatal("watcher never applied the updated file")
}
