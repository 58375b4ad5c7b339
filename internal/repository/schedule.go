package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hray3182/DeskPal/internal/database"
	"github.com/hray3182/DeskPal/internal/models"
)

var ErrNotFound = errors.New("schedule not found")

// DefaultHistoryLimit caps history queries that do not set a limit.
const DefaultHistoryLimit = 20

// Filter selects schedules. The zero value lists every pending row.
type Filter struct {
	Day            string // YYYY-MM-DD, pending rows on that calendar day
	Keyword        string // substring of task
	Datetime       string // exact datetime
	Since          string // datetime >= Since
	Until          string // datetime <= Until
	IncludeRetired bool
	Limit          int

	// History lists rows with datetime < Before, most recent first, capped.
	History bool
	Before  string
}

type ScheduleRepository struct {
	db *database.DB
}

func NewScheduleRepository(db *database.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

const scheduleColumns = `id, datetime, task, reminded, notify_external, repeat_type, created_at`

func (r *ScheduleRepository) Create(ctx context.Context, s *models.Schedule) error {
	if s.RepeatType == "" {
		s.RepeatType = models.RepeatOnce
	}
	if s.CreatedAt == "" {
		s.CreatedAt = time.Now().Format(models.DatetimeLayout)
	}
	return r.db.SQL.QueryRowContext(ctx, r.db.Rebind(
		`INSERT INTO schedules (datetime, task, reminded, notify_external, repeat_type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 RETURNING id`),
		s.Datetime, s.Task, false, s.NotifyExternal, string(s.RepeatType), s.CreatedAt,
	).Scan(&s.ID)
}

func (r *ScheduleRepository) GetByID(ctx context.Context, id int64) (*models.Schedule, error) {
	s, err := scanSchedule(r.db.SQL.QueryRowContext(ctx, r.db.Rebind(
		`SELECT `+scheduleColumns+` FROM schedules WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// Query returns pending rows in ascending datetime order unless the filter asks
// for retired rows too, or for history (descending, capped).
func (r *ScheduleRepository) Query(ctx context.Context, f Filter) ([]*models.Schedule, error) {
	var (
		where []string
		args  []any
	)

	if f.History {
		before := f.Before
		if before == "" {
			before = time.Now().Format(models.DatetimeLayout)
		}
		limit := f.Limit
		if limit <= 0 {
			limit = DefaultHistoryLimit
		}
		return r.list(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE datetime < ? ORDER BY datetime DESC, id DESC LIMIT ?`,
			before, limit)
	}

	if !f.IncludeRetired {
		where = append(where, "reminded = ?")
		args = append(args, false)
	}
	if f.Day != "" {
		where = append(where, "datetime >= ? AND datetime <= ?")
		args = append(args, f.Day+" 00:00:00", f.Day+" 23:59:59")
	}
	if f.Keyword != "" {
		where = append(where, "task "+r.db.Like()+" ?")
		args = append(args, "%"+f.Keyword+"%")
	}
	if f.Datetime != "" {
		where = append(where, "datetime = ?")
		args = append(args, f.Datetime)
	}
	if f.Since != "" {
		where = append(where, "datetime >= ?")
		args = append(args, f.Since)
	}
	if f.Until != "" {
		where = append(where, "datetime <= ?")
		args = append(args, f.Until)
	}

	query := `SELECT ` + scheduleColumns + ` FROM schedules`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY datetime ASC, id ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	return r.list(ctx, query, args...)
}

// GetDue returns pending rows whose datetime is at or before now.
func (r *ScheduleRepository) GetDue(ctx context.Context, now time.Time) ([]*models.Schedule, error) {
	return r.Query(ctx, Filter{Until: now.Format(models.DatetimeLayout)})
}

// UpdateIdentity renames a record. The record becomes pending again, since a
// new (datetime, task) pair is a new reminder. Returns false if no row matched.
func (r *ScheduleRepository) UpdateIdentity(ctx context.Context, id int64, datetime, task string) (bool, error) {
	res, err := r.db.SQL.ExecContext(ctx, r.db.Rebind(
		`UPDATE schedules SET datetime = ?, task = ?, reminded = ? WHERE id = ?`),
		datetime, task, false, id,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *ScheduleRepository) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.SQL.ExecContext(ctx, r.db.Rebind(`DELETE FROM schedules WHERE id = ?`), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *ScheduleRepository) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.SQL.ExecContext(ctx, `DELETE FROM schedules`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkReminded retires a record, provided it still carries the datetime and
// task it was read with. Returns false when the row was deleted or renamed in
// the meantime.
func (r *ScheduleRepository) MarkReminded(ctx context.Context, s *models.Schedule) (bool, error) {
	res, err := r.db.SQL.ExecContext(ctx, r.db.Rebind(
		`UPDATE schedules SET reminded = ? WHERE id = ? AND datetime = ? AND task = ?`),
		true, s.ID, s.Datetime, s.Task,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// GetReminded returns every retired row.
func (r *ScheduleRepository) GetReminded(ctx context.Context) ([]*models.Schedule, error) {
	return r.list(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE reminded = ? ORDER BY id`, true)
}

// RetireOverdue marks every pending row with datetime before now as reminded
// and returns the rows it retired.
func (r *ScheduleRepository) RetireOverdue(ctx context.Context, now time.Time) ([]*models.Schedule, error) {
	cutoff := now.Format(models.DatetimeLayout)

	tx, err := r.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, r.db.Rebind(
		`SELECT `+scheduleColumns+` FROM schedules WHERE reminded = ? AND datetime < ? ORDER BY datetime, id`),
		false, cutoff,
	)
	if err != nil {
		return nil, err
	}
	overdue, err := collect(rows)
	if err != nil {
		return nil, err
	}

	for _, s := range overdue {
		if _, err := tx.ExecContext(ctx, r.db.Rebind(`UPDATE schedules SET reminded = ? WHERE id = ?`), true, s.ID); err != nil {
			return nil, fmt.Errorf("failed to retire schedule %d: %w", s.ID, err)
		}
		s.Reminded = true
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return overdue, nil
}

func (r *ScheduleRepository) list(ctx context.Context, query string, args ...any) ([]*models.Schedule, error) {
	rows, err := r.db.SQL.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row scanner) (*models.Schedule, error) {
	var (
		s         models.Schedule
		repeat    sql.NullString
		createdAt sql.NullString
	)
	if err := row.Scan(&s.ID, &s.Datetime, &s.Task, &s.Reminded, &s.NotifyExternal, &repeat, &createdAt); err != nil {
		return nil, err
	}
	s.RepeatType = models.ParseRepeatType(repeat.String)
	s.CreatedAt = createdAt.String
	return &s, nil
}

// collect drains and closes rows. The sqlite handle has a single connection,
// so rows must be closed before the next statement runs.
func collect(rows *sql.Rows) ([]*models.Schedule, error) {
	defer rows.Close()

	var schedules []*models.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, s)
	}
	return schedules, rows.Err()
}
