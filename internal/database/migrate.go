package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const schedulesTable = "schedules"

type column struct {
	name     string
	sqlite   string
	postgres string
}

// Additive columns, in the order older schemas gained them.
var scheduleColumns = []column{
	{name: "reminded", sqlite: "INTEGER NOT NULL DEFAULT 0", postgres: "BOOLEAN NOT NULL DEFAULT FALSE"},
	{name: "notify_external", sqlite: "INTEGER NOT NULL DEFAULT 0", postgres: "BOOLEAN NOT NULL DEFAULT FALSE"},
	{name: "repeat_type", sqlite: "TEXT NOT NULL DEFAULT 'once'", postgres: "TEXT NOT NULL DEFAULT 'once'"},
	{name: "created_at", sqlite: "TEXT NOT NULL DEFAULT ''", postgres: "TEXT NOT NULL DEFAULT ''"},
}

func (c column) definition(d Dialect) string {
	if d == Postgres {
		return c.postgres
	}
	return c.sqlite
}

func (db *DB) createTableSQL(name string) string {
	id := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if db.Dialect == Postgres {
		id = "id BIGSERIAL PRIMARY KEY"
	}
	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s,\n\tdatetime TEXT NOT NULL,\n\ttask TEXT NOT NULL", name, id)
	for _, c := range scheduleColumns {
		stmt += fmt.Sprintf(",\n\t%s %s", c.name, c.definition(db.Dialect))
	}
	return stmt + "\n)"
}

// Migrate brings the schedules table to the current schema. It is safe to run
// against an empty database, a legacy schema, or an up-to-date one, and never
// drops data: missing columns are added with defaults, and the oldest layout
// (a bare HH:MM:SS "time" column) is rebuilt with today's date.
func (db *DB) Migrate(ctx context.Context) error {
	exists, err := db.tableExists(ctx, schedulesTable)
	if err != nil {
		return fmt.Errorf("failed to inspect schema: %w", err)
	}

	if !exists {
		if _, err := db.SQL.ExecContext(ctx, db.createTableSQL(schedulesTable)); err != nil {
			return fmt.Errorf("failed to create schedules table: %w", err)
		}
		db.log.Info().Msg("Created schedules table")
		return db.ensureIndexes(ctx)
	}

	cols, err := db.columns(ctx, schedulesTable)
	if err != nil {
		return fmt.Errorf("failed to read columns: %w", err)
	}

	if !cols["datetime"] && cols["time"] {
		if err := db.rebuildLegacyTimeTable(ctx, cols); err != nil {
			return fmt.Errorf("failed to migrate legacy time column: %w", err)
		}
		if cols, err = db.columns(ctx, schedulesTable); err != nil {
			return fmt.Errorf("failed to read columns: %w", err)
		}
	}

	for _, c := range scheduleColumns {
		if cols[c.name] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", schedulesTable, c.name, c.definition(db.Dialect))
		if _, err := db.SQL.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to add column %s: %w", c.name, err)
		}
		db.log.Info().Str("column", c.name).Msg("Applied migration: added column")

		if c.name == "notify_external" && cols["pushplus_notify"] {
			copyStmt := fmt.Sprintf("UPDATE %s SET notify_external = (pushplus_notify <> 0)", schedulesTable)
			if db.Dialect == SQLite {
				copyStmt = fmt.Sprintf("UPDATE %s SET notify_external = CASE WHEN pushplus_notify <> 0 THEN 1 ELSE 0 END", schedulesTable)
			}
			if _, err := db.SQL.ExecContext(ctx, copyStmt); err != nil {
				return fmt.Errorf("failed to copy pushplus_notify: %w", err)
			}
			db.log.Info().Msg("Applied migration: copied pushplus_notify into notify_external")
		}
	}

	return db.ensureIndexes(ctx)
}

func (db *DB) ensureIndexes(ctx context.Context) error {
	stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_schedules_pending ON %s (reminded, datetime)", schedulesTable)
	if _, err := db.SQL.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

type legacyRow struct {
	clock     string
	task      string
	reminded  bool
	notify    bool
	repeat    string
	createdAt sql.NullString
}

// legacyFlag reads an integer flag column as 0/1, or 0 when the column is absent.
func legacyFlag(cols map[string]bool, names ...string) string {
	for _, name := range names {
		if cols[name] {
			return fmt.Sprintf("CASE WHEN COALESCE(%s, 0) <> 0 THEN 1 ELSE 0 END", name)
		}
	}
	return "0"
}

func (db *DB) rebuildLegacyTimeTable(ctx context.Context, cols map[string]bool) error {
	tx, err := db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	createdExpr := "''"
	if cols["created_at"] {
		createdExpr = "created_at"
	}
	repeatExpr := "'once'"
	if cols["repeat_type"] {
		repeatExpr = "COALESCE(NULLIF(repeat_type, ''), 'once')"
	}
	query := fmt.Sprintf("SELECT time, task, %s, %s, %s, %s FROM %s ORDER BY id",
		legacyFlag(cols, "reminded"),
		legacyFlag(cols, "notify_external", "pushplus_notify"),
		repeatExpr, createdExpr, schedulesTable)
	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	var legacy []legacyRow
	for rows.Next() {
		var (
			r                legacyRow
			reminded, notify int
		)
		if err := rows.Scan(&r.clock, &r.task, &reminded, &notify, &r.repeat, &r.createdAt); err != nil {
			rows.Close()
			return err
		}
		r.reminded, r.notify = reminded != 0, notify != 0
		legacy = append(legacy, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	const tmp = "schedules_new"
	if _, err := tx.ExecContext(ctx, db.createTableSQL(tmp)); err != nil {
		return err
	}

	today := time.Now().Format("2006-01-02")
	insert := db.Rebind(fmt.Sprintf(
		"INSERT INTO %s (datetime, task, reminded, notify_external, repeat_type, created_at) VALUES (?, ?, ?, ?, ?, ?)", tmp))
	for _, r := range legacy {
		if _, err := tx.ExecContext(ctx, insert, today+" "+r.clock, r.task, r.reminded, r.notify, r.repeat, r.createdAt.String); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, "DROP TABLE "+schedulesTable); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s RENAME TO %s", tmp, schedulesTable)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	db.log.Info().Int("rows", len(legacy)).Msg("Applied migration: rebuilt legacy time table")
	return nil
}

func (db *DB) tableExists(ctx context.Context, name string) (bool, error) {
	query := "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?"
	if db.Dialect == Postgres {
		query = "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?"
	}
	var n int
	if err := db.SQL.QueryRowContext(ctx, db.Rebind(query), name).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (db *DB) columns(ctx context.Context, table string) (map[string]bool, error) {
	if db.Dialect == Postgres {
		return db.scanColumnNames(ctx, db.Rebind(
			"SELECT column_name FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = ?"), table)
	}

	rows, err := db.SQL.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

func (db *DB) scanColumnNames(ctx context.Context, query string, args ...any) (map[string]bool, error) {
	rows, err := db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}
