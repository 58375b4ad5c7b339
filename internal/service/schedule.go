// Package service implements the schedule commands shared by the CLI, the
// Telegram bot and the tool dispatcher.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hray3182/DeskPal/internal/models"
	"github.com/hray3182/DeskPal/internal/repository"
	"github.com/hray3182/DeskPal/internal/timeexpr"
)

var (
	ErrNotFound  = errors.New("no matching schedule")
	ErrEmptyTask = errors.New("task must not be empty")
	ErrEmptyTime = errors.New("time must not be empty")
)

// Store is the part of the schedule repository the commands use.
type Store interface {
	Create(ctx context.Context, s *models.Schedule) error
	Query(ctx context.Context, f repository.Filter) ([]*models.Schedule, error)
	UpdateIdentity(ctx context.Context, id int64, datetime, task string) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// Tracker is the reminder state commands invalidate.
type Tracker interface {
	Forget(id int64)
	Reset()
}

// Waker is poked after a mutation so the poller rechecks right away.
type Waker interface {
	Notify()
}

type ScheduleService struct {
	store   Store
	tracker Tracker
	waker   Waker
	now     func() time.Time
	log     zerolog.Logger
}

func NewScheduleService(store Store, tracker Tracker, log zerolog.Logger) *ScheduleService {
	return &ScheduleService{store: store, tracker: tracker, now: time.Now, log: log}
}

// SetWaker registers the running poller. Commands work without one.
func (s *ScheduleService) SetWaker(w Waker) {
	s.waker = w
}

type AddRequest struct {
	Time           string
	Task           string
	NotifyExternal bool
	Repeat         models.RepeatType
}

// Add normalizes the time expression and stores a new pending schedule. An
// expression that cannot be parsed is stored as typed.
func (s *ScheduleService) Add(ctx context.Context, req AddRequest) (*models.Schedule, error) {
	task := strings.TrimSpace(req.Task)
	if task == "" {
		return nil, ErrEmptyTask
	}
	if strings.TrimSpace(req.Time) == "" {
		return nil, ErrEmptyTime
	}

	datetime, ok := timeexpr.Normalize(req.Time, s.now())
	if !ok {
		s.log.Warn().Str("time", req.Time).Msg("Unrecognized time expression; storing as typed")
	}

	rec := &models.Schedule{
		Datetime:       datetime,
		Task:           task,
		NotifyExternal: req.NotifyExternal,
		RepeatType:     req.Repeat,
	}
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to add schedule: %w", err)
	}
	s.log.Info().Int64("schedule_id", rec.ID).Str("datetime", rec.Datetime).Str("task", rec.Task).Msg("Schedule added")
	s.wake()
	return rec, nil
}

// Update renames the schedule whose task contains oldTask. When several match,
// one at oldTime wins, otherwise the earliest. Empty new values keep the old
// ones. The renamed schedule is pending again with a fresh reminder cycle.
func (s *ScheduleService) Update(ctx context.Context, oldTask, oldTime, newTask, newTime string) (*models.Schedule, error) {
	oldTask = strings.TrimSpace(oldTask)
	if oldTask == "" {
		return nil, ErrEmptyTask
	}

	rec, err := s.resolve(ctx, oldTask, oldTime)
	if err != nil {
		return nil, err
	}

	datetime := rec.Datetime
	if strings.TrimSpace(newTime) != "" {
		datetime, _ = timeexpr.Normalize(newTime, s.now())
	}
	task := rec.Task
	if t := strings.TrimSpace(newTask); t != "" {
		task = t
	}

	ok, err := s.store.UpdateIdentity(ctx, rec.ID, datetime, task)
	if err != nil {
		return nil, fmt.Errorf("failed to update schedule: %w", err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	s.forget(rec.ID)

	s.log.Info().
		Int64("schedule_id", rec.ID).
		Str("old", rec.Fingerprint()).
		Str("datetime", datetime).
		Str("task", task).
		Msg("Schedule updated")

	rec.Datetime, rec.Task, rec.Reminded = datetime, task, false
	s.wake()
	return rec, nil
}

// Delete removes one schedule. A bare HH:MM selects a pending schedule at that
// clock time today, preferring one whose task contains task; anything else
// selects the earliest schedule whose task contains task.
func (s *ScheduleService) Delete(ctx context.Context, task, timeExpr string) (*models.Schedule, error) {
	task = strings.TrimSpace(task)

	var (
		rec *models.Schedule
		err error
	)
	if clock, ok := timeexpr.Clock(timeExpr); ok {
		rec, err = s.byClock(ctx, clock, task)
	} else {
		if task == "" {
			return nil, ErrEmptyTask
		}
		rec, err = s.resolve(ctx, task, "")
	}
	if err != nil {
		return nil, err
	}

	ok, err := s.store.Delete(ctx, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete schedule: %w", err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	s.forget(rec.ID)
	s.log.Info().Int64("schedule_id", rec.ID).Str("datetime", rec.Datetime).Str("task", rec.Task).Msg("Schedule deleted")
	return rec, nil
}

// DeleteAll clears every schedule and all reminder state.
func (s *ScheduleService) DeleteAll(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete schedules: %w", err)
	}
	if s.tracker != nil {
		s.tracker.Reset()
	}
	s.log.Info().Int64("count", n).Msg("All schedules deleted")
	return n, nil
}

// Find returns pending schedules whose task contains keyword and, when given,
// whose datetime equals datetime exactly.
func (s *ScheduleService) Find(ctx context.Context, keyword, datetime string) ([]*models.Schedule, error) {
	f := repository.Filter{Keyword: strings.TrimSpace(keyword)}
	if strings.TrimSpace(datetime) != "" {
		f.Datetime, _ = timeexpr.Datetime(datetime, s.now().Location())
	}
	list, err := s.store.Query(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to find schedules: %w", err)
	}
	return list, nil
}

type ListOptions struct {
	Day    string // YYYY-MM-DD
	Future bool   // only datetime >= now
	Limit  int
}

// List returns pending schedules in ascending datetime order.
func (s *ScheduleService) List(ctx context.Context, opts ListOptions) ([]*models.Schedule, error) {
	f := repository.Filter{Day: strings.TrimSpace(opts.Day), Limit: opts.Limit}
	if opts.Future {
		f.Since = s.now().Format(models.DatetimeLayout)
	}
	list, err := s.store.Query(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	return list, nil
}

// History returns schedules already past, most recent first.
func (s *ScheduleService) History(ctx context.Context, limit int) ([]*models.Schedule, error) {
	list, err := s.store.Query(ctx, repository.Filter{
		History: true,
		Before:  s.now().Format(models.DatetimeLayout),
		Limit:   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return list, nil
}

// resolve picks the schedule a user refers to by task text. Pending schedules
// are preferred over retired ones.
func (s *ScheduleService) resolve(ctx context.Context, task, timeHint string) (*models.Schedule, error) {
	for _, includeRetired := range []bool{false, true} {
		candidates, err := s.store.Query(ctx, repository.Filter{Keyword: task, IncludeRetired: includeRetired})
		if err != nil {
			return nil, fmt.Errorf("failed to look up schedule: %w", err)
		}
		if len(candidates) == 0 {
			continue
		}
		if rec := matchTime(candidates, timeHint, s.now()); rec != nil {
			return rec, nil
		}
		return candidates[0], nil
	}
	return nil, ErrNotFound
}

// byClock finds a pending schedule at clock today, or tomorrow when today has
// none, the same rollover Normalize applies to a bare clock time.
func (s *ScheduleService) byClock(ctx context.Context, clock, task string) (*models.Schedule, error) {
	now := s.now()
	for _, day := range []time.Time{now, now.AddDate(0, 0, 1)} {
		rec, err := s.byClockOn(ctx, day.Format("2006-01-02"), clock, task)
		if err != nil || rec != nil {
			return rec, err
		}
	}
	return nil, ErrNotFound
}

func (s *ScheduleService) byClockOn(ctx context.Context, day, clock, task string) (*models.Schedule, error) {
	prefix := day + " " + clock
	pending, err := s.store.Query(ctx, repository.Filter{Day: day})
	if err != nil {
		return nil, fmt.Errorf("failed to look up schedule: %w", err)
	}

	var first *models.Schedule
	for _, rec := range pending {
		if !strings.HasPrefix(rec.Datetime, prefix) {
			continue
		}
		if task != "" && strings.Contains(rec.Task, task) {
			return rec, nil
		}
		if first == nil {
			first = rec
		}
	}
	return first, nil
}

// matchTime returns the candidate at the time the user named, if any.
func matchTime(candidates []*models.Schedule, hint string, now time.Time) *models.Schedule {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return nil
	}
	if clock, ok := timeexpr.Clock(hint); ok {
		for _, rec := range candidates {
			if len(rec.Datetime) >= 16 && rec.Datetime[11:16] == clock {
				return rec
			}
		}
		return nil
	}
	if dt, ok := timeexpr.Normalize(hint, now); ok {
		for _, rec := range candidates {
			if rec.Datetime == dt {
				return rec
			}
		}
	}
	return nil
}

func (s *ScheduleService) forget(id int64) {
	if s.tracker != nil {
		s.tracker.Forget(id)
	}
}

func (s *ScheduleService) wake() {
	if s.waker != nil {
		s.waker.Notify()
	}
}
