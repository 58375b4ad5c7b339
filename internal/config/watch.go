package config

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const reloadDebounce = 250 * time.Millisecond

// SettingsApplier runs with the reminder settings. Settings reports what is in
// force right now, which may differ from the file after a live edit.
type SettingsApplier interface {
	Settings() ReminderSettings
	Apply(settings ReminderSettings)
}

// ReminderWatcher reloads the reminder YAML file when it changes on disk and
// hands valid settings to the applier. A file that fails to parse is logged
// and ignored; the previous settings stay in force.
type ReminderWatcher struct {
	path    string
	base    ReminderSettings
	applier SettingsApplier
	log     zerolog.Logger
}

// NewReminderWatcher watches path. base holds the env-derived values absent
// keys fall back to.
func NewReminderWatcher(path string, base ReminderSettings, applier SettingsApplier, log zerolog.Logger) *ReminderWatcher {
	return &ReminderWatcher{
		path:    path,
		base:    base,
		applier: applier,
		log:     log,
	}
}

// Reload parses the file once and applies it if it differs from the settings
// the applier runs with. Returns the settings in force afterwards.
func (w *ReminderWatcher) Reload() (ReminderSettings, error) {
	settings, err := LoadReminderFile(w.path, w.base)
	if err != nil {
		return w.applier.Settings(), err
	}

	if settings == w.applier.Settings() {
		w.log.Debug().Str("path", w.path).Msg("Reminder settings unchanged; skipping apply")
		return settings, nil
	}
	w.applier.Apply(settings)
	w.log.Info().
		Str("path", w.path).
		Int("repeat_count", settings.RepeatCount).
		Dur("repeat_interval", settings.RepeatInterval).
		Dur("tick", settings.TickInterval).
		Bool("calendar_aware", settings.CalendarAware).
		Bool("polish", settings.Polish).
		Msg("Reminder settings applied")
	return settings, nil
}

// Watch blocks until ctx is cancelled. The directory is watched rather than
// the file so editors that replace the file on save keep triggering reloads.
func (w *ReminderWatcher) Watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	file := filepath.Base(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	w.log.Debug().Str("dir", dir).Str("file", file).Msg("Reminder settings watcher started")

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(reloadDebounce, func() {
			if ctx.Err() != nil {
				return
			}
			if _, err := w.Reload(); err != nil {
				w.log.Warn().Err(err).Str("path", w.path).Msg("Reminder settings rejected")
			}
		})
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Base(ev.Name), file) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				debounce()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			if err != nil {
				w.log.Warn().Err(err).Str("dir", dir).Msg("Reminder settings watch error")
			}
		}
	}
}
