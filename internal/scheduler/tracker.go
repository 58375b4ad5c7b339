package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hray3182/DeskPal/internal/models"
)

// ReconcileStore is what the tracker needs from the store at startup.
type ReconcileStore interface {
	GetReminded(ctx context.Context) ([]*models.Schedule, error)
	RetireOverdue(ctx context.Context, now time.Time) ([]*models.Schedule, error)
}

type trackEntry struct {
	fingerprint string
	count       int
	lastFire    time.Time
	retired     bool
}

// Tracker holds the per-schedule reminder lifecycle: how many times a schedule
// fired in its current cycle, when it last fired, and whether it is retired.
// Entries are keyed by the store id. The (datetime, task) fingerprint each id
// was last seen with is kept too, so a record renamed behind our back starts a
// fresh cycle.
//
// The poller writes on every tick while command handlers forget entries, so
// every method takes the lock.
type Tracker struct {
	mu      sync.Mutex
	entries map[int64]*trackEntry
}

func NewTracker() *Tracker {
	return &Tracker{entries: make(map[int64]*trackEntry)}
}

// Load retires every schedule the store already marked as reminded, then
// retires pending schedules that went overdue while the process was down so
// they do not all fire at once on startup. Returns how many were retired as
// overdue.
func (t *Tracker) Load(ctx context.Context, store ReconcileStore, now time.Time) (int, error) {
	reminded, err := store.GetReminded(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load reminded schedules: %w", err)
	}
	overdue, err := store.RetireOverdue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to retire overdue schedules: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range append(reminded, overdue...) {
		t.entries[s.ID] = &trackEntry{fingerprint: s.Fingerprint(), retired: true}
	}
	return len(overdue), nil
}

// Observe syncs the entry for a schedule with the fingerprint it carries now.
// A changed fingerprint means a new identity: counters and retirement reset.
func (t *Tracker) Observe(s *models.Schedule) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fp := s.Fingerprint()
	e, ok := t.entries[s.ID]
	if !ok || e.fingerprint != fp {
		t.entries[s.ID] = &trackEntry{fingerprint: fp}
	}
}

func (t *Tracker) IsRetired(id int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	return ok && e.retired
}

// RecordFire counts a fire and returns the count for the current cycle.
func (t *Tracker) RecordFire(id int64, now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.entry(id)
	e.count++
	e.lastFire = now
	return e.count
}

// ShouldFireAgain reports whether a schedule may fire now. The first fire is
// always allowed; later ones wait for interval since the previous fire. A
// missing last-fire time is treated as elapsed.
func (t *Tracker) ShouldFireAgain(id int64, now time.Time, limit int, interval time.Duration) bool {
	if limit < 1 {
		limit = 1
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok {
		return true
	}
	if e.retired || e.count >= limit {
		return false
	}
	if e.count == 0 || e.lastFire.IsZero() {
		return true
	}
	return now.Sub(e.lastFire) >= interval
}

// Retire stops a schedule from firing again and clears its counters. It
// refuses when the entry was forgotten or now tracks a different fingerprint,
// which means a command changed the record while it was being handled.
func (t *Tracker) Retire(s *models.Schedule) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[s.ID]
	if !ok || e.fingerprint != s.Fingerprint() {
		return false
	}
	e.retired = true
	e.count = 0
	e.lastFire = time.Time{}
	return true
}

// Forget drops everything known about a schedule without touching the store.
func (t *Tracker) Forget(id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, id)
}

// Reset drops every entry.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[int64]*trackEntry)
}

// Count returns the fires recorded in the current cycle.
func (t *Tracker) Count(id int64) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[id]; ok {
		return e.count
	}
	return 0
}

// entry must be called with mu held.
func (t *Tracker) entry(id int64) *trackEntry {
	e, ok := t.entries[id]
	if !ok {
		e = &trackEntry{}
		t.entries[id] = e
	}
	return e
}
