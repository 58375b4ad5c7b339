package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/hray3182/DeskPal/internal/config"
	"github.com/hray3182/DeskPal/internal/models"
	"github.com/hray3182/DeskPal/internal/notify"
	"github.com/hray3182/DeskPal/internal/rrule"
)

const (
	polishTimeout = 15 * time.Second
	speakTimeout  = 30 * time.Second
	pushTimeout   = 15 * time.Second
)

// Store is the part of the schedule repository the poller uses.
type Store interface {
	ReconcileStore
	GetDue(ctx context.Context, now time.Time) ([]*models.Schedule, error)
	MarkReminded(ctx context.Context, s *models.Schedule) (bool, error)
	Create(ctx context.Context, s *models.Schedule) error
}

// Collaborators are the surfaces a firing reminder is delivered to. Any of
// them may be nil.
type Collaborators struct {
	Polisher notify.Polisher
	Notifier notify.Notifier
	Speaker  notify.Speaker
	Push     notify.PushChannel
}

// Scheduler polls the store for due schedules and fires them.
type Scheduler struct {
	store   Store
	tracker *Tracker
	collab  Collaborators
	loc     *time.Location
	now     func() time.Time
	log     zerolog.Logger

	mu       sync.RWMutex
	settings config.ReminderSettings

	reconciled atomic.Bool

	notifyCh chan struct{}
	retickCh chan time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

func New(store Store, tracker *Tracker, collab Collaborators, settings config.ReminderSettings, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		store:    store,
		tracker:  tracker,
		collab:   collab,
		loc:      time.Local,
		now:      time.Now,
		log:      log,
		settings: settings.Normalize(),
		notifyCh: make(chan struct{}, 1),
		retickCh: make(chan time.Duration, 1),
		stopCh:   make(chan struct{}),
	}
}

func (s *Scheduler) Settings() config.ReminderSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Apply swaps the reminder settings. A new tick interval takes effect on the
// running loop without a restart.
func (s *Scheduler) Apply(settings config.ReminderSettings) {
	settings = settings.Normalize()

	s.mu.Lock()
	tickChanged := settings.TickInterval != s.settings.TickInterval
	s.settings = settings
	s.mu.Unlock()

	if tickChanged {
		select {
		case <-s.retickCh:
		default:
		}
		select {
		case s.retickCh <- settings.TickInterval:
		default:
		}
	}
}

// Notify triggers an immediate check. Non-blocking if a check is already pending.
func (s *Scheduler) Notify() {
	select {
	case s.notifyCh <- struct{}{}:
	default:
		// Channel already has a pending notification, skip
	}
}

// Stop asks the loop to exit. It returns immediately; the loop exits before
// its next tick.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Reconcile aligns the tracker with the store. Tick calls it until it
// succeeds once; nothing fires before that.
func (s *Scheduler) Reconcile(ctx context.Context) error {
	retired, err := s.tracker.Load(ctx, s.store, s.now())
	if err != nil {
		return err
	}
	s.reconciled.Store(true)
	if retired > 0 {
		s.log.Info().Int("count", retired).Msg("Retired schedules that went overdue while offline")
	}
	return nil
}

// Start runs the poll loop until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.log.Info().Dur("tick", s.Settings().TickInterval).Msg("Scheduler started")

	ticker := time.NewTicker(s.Settings().TickInterval)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Scheduler stopped")
			return
		case <-s.stopCh:
			s.log.Info().Msg("Scheduler stopped")
			return
		case d := <-s.retickCh:
			ticker.Reset(d)
			s.log.Info().Dur("tick", d).Msg("Scheduler tick interval changed")
		case <-ticker.C:
			s.Tick(ctx)
		case <-s.notifyCh:
			s.log.Debug().Msg("Scheduler triggered by notification")
			s.Tick(ctx)
		}
	}
}

// Tick runs one poll pass: every due pending schedule is visited in ascending
// datetime order. A failure on one schedule never stops the others.
func (s *Scheduler) Tick(ctx context.Context) {
	if !s.reconciled.Load() {
		if err := s.Reconcile(ctx); err != nil {
			s.log.Error().Err(err).Msg("Startup reconciliation failed; retrying next tick")
			return
		}
	}

	settings := s.Settings()
	now := s.now()

	due, err := s.store.GetDue(ctx, now)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to get due schedules")
		return
	}

	for _, rec := range due {
		if ctx.Err() != nil {
			return
		}
		s.process(ctx, rec, now, settings)
	}
}

func (s *Scheduler) process(ctx context.Context, rec *models.Schedule, now time.Time, settings config.ReminderSettings) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Int64("schedule_id", rec.ID).Interface("panic", r).Msg("Recovered while processing schedule")
		}
	}()

	s.tracker.Observe(rec)

	if s.tracker.IsRetired(rec.ID) {
		// Retired here but still pending in the store: the earlier write failed.
		s.log.Warn().Int64("schedule_id", rec.ID).Msg("Retrying completion of retired schedule")
		s.complete(ctx, rec, settings)
		return
	}

	// The repeat count may have been lowered below what already fired.
	if fired := s.tracker.Count(rec.ID); fired > 0 && fired >= settings.RepeatCount {
		s.retire(ctx, rec, settings)
		return
	}

	if !s.tracker.ShouldFireAgain(rec.ID, now, settings.RepeatCount, settings.RepeatInterval) {
		return
	}

	s.fire(ctx, rec, settings)
	count := s.tracker.RecordFire(rec.ID, now)
	s.log.Info().
		Int64("schedule_id", rec.ID).
		Str("task", rec.Task).
		Int("fire", count).
		Int("of", settings.RepeatCount).
		Msg("Fired reminder")

	if count >= settings.RepeatCount {
		s.retire(ctx, rec, settings)
	}
}

// retire ends the cycle of rec. A record changed by a command while it was
// being handled is left for the next tick to pick up under its new identity.
func (s *Scheduler) retire(ctx context.Context, rec *models.Schedule, settings config.ReminderSettings) {
	if !s.tracker.Retire(rec) {
		s.log.Info().Int64("schedule_id", rec.ID).Msg("Schedule changed while firing; not retiring")
		return
	}
	s.complete(ctx, rec, settings)
}

// fire delivers the reminder to every collaborator. Collaborator failures are
// logged and never stop the fire from counting.
func (s *Scheduler) fire(ctx context.Context, rec *models.Schedule, settings config.ReminderSettings) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Int64("schedule_id", rec.ID).Interface("panic", r).Msg("Recovered from notification collaborator")
		}
	}()

	var polisher notify.Polisher
	if settings.Polish {
		polisher = s.collab.Polisher
	}

	pctx, cancel := context.WithTimeout(ctx, polishTimeout)
	text, err := notify.Compose(pctx, polisher, rec.Task)
	cancel()
	if err != nil {
		s.log.Warn().Err(err).Int64("schedule_id", rec.ID).Msg("Polish failed; using template")
	}

	if s.collab.Notifier != nil {
		s.collab.Notifier.Show(text)
	}

	if s.collab.Speaker != nil {
		sctx, cancel := context.WithTimeout(ctx, speakTimeout)
		if err := s.collab.Speaker.Speak(sctx, text); err != nil {
			s.log.Warn().Err(err).Int64("schedule_id", rec.ID).Msg("Speak failed")
		}
		cancel()
	}

	if rec.NotifyExternal && s.collab.Push != nil {
		pctx, cancel := context.WithTimeout(ctx, pushTimeout)
		if !s.collab.Push.Send(pctx, notify.PushTitle, rec.Task) {
			s.log.Warn().Int64("schedule_id", rec.ID).Msg("External push not delivered")
		}
		cancel()
	}
}

// complete persists retirement and, for repeating schedules, inserts the next
// record of the chain. If the store write fails the schedule stays pending in
// the store and is retried on the next tick.
func (s *Scheduler) complete(ctx context.Context, rec *models.Schedule, settings config.ReminderSettings) {
	ok, err := s.store.MarkReminded(ctx, rec)
	if err != nil {
		s.log.Error().Err(err).Int64("schedule_id", rec.ID).Msg("Failed to mark schedule reminded")
		return
	}
	if !ok {
		// Renamed or deleted since it was read: its new identity starts fresh.
		s.tracker.Forget(rec.ID)
		s.log.Info().Int64("schedule_id", rec.ID).Msg("Schedule changed before retirement; skipped")
		return
	}
	if !rec.RepeatType.IsRecurring() {
		return
	}

	next, err := s.expand(ctx, rec, settings)
	if err != nil {
		s.log.Error().Err(err).Int64("schedule_id", rec.ID).Msg("Failed to schedule next occurrence")
		return
	}
	if next != nil {
		s.log.Info().
			Int64("schedule_id", rec.ID).
			Int64("next_id", next.ID).
			Str("next_datetime", next.Datetime).
			Msg("Scheduled next occurrence")
	}
}

func (s *Scheduler) expand(ctx context.Context, rec *models.Schedule, settings config.ReminderSettings) (*models.Schedule, error) {
	expander := rrule.Expander{CalendarAware: settings.CalendarAware}
	datetime, ok, err := expander.NextDatetime(rec.Datetime, rec.RepeatType, s.loc)
	if err != nil || !ok {
		return nil, err
	}

	next := &models.Schedule{
		Datetime:       datetime,
		Task:           rec.Task,
		NotifyExternal: rec.NotifyExternal,
		RepeatType:     rec.RepeatType,
	}
	if err := s.store.Create(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to insert next occurrence: %w", err)
	}
	return next, nil
}
