package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hray3182/DeskPal/internal/database"
	"github.com/hray3182/DeskPal/internal/models"
)

func openTestRepo(t *testing.T) *ScheduleRepository {
	t.Helper()
	ctx := context.Background()
	db, err := database.New(ctx, "sqlite", filepath.Join(t.TempDir(), "schedules.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewScheduleRepository(db)
}

func mustCreate(t *testing.T, repo *ScheduleRepository, datetime, task string) *models.Schedule {
	t.Helper()
	s := &models.Schedule{Datetime: datetime, Task: task}
	if err := repo.Create(context.Background(), s); err != nil {
		t.Fatalf("create %q: %v", task, err)
	}
	return s
}

func tasks(list []*models.Schedule) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		out = append(out, s.Task)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCreateAssignsIDAndDefaults(t *testing.T) {
	t.Parallel()
	repo := openTestRepo(t)
	ctx := context.Background()

	s := &models.Schedule{Datetime: "2030-05-01 09:00:00", Task: "晨会", NotifyExternal: true}
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if s.ID == 0 {
		t.Fatal("expected store-assigned id")
	}

	got, err := repo.GetByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Task != "晨会" || got.Reminded || !got.NotifyExternal || got.RepeatType != models.RepeatOnce || got.CreatedAt == "" {
		t.Fatalf("unexpected record: %+v", got)
	}

	if _, err := repo.GetByID(ctx, s.ID+100); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetByID(missing) err = %v, want ErrNotFound", err)
	}
}

func TestQueryFilters(t *testing.T) {
	t.Parallel()
	repo := openTestRepo(t)
	ctx := context.Background()

	mustCreate(t, repo, "2030-05-02 10:00:00", "写周报")
	mustCreate(t, repo, "2030-05-01 18:00:00", "买菜")
	mustCreate(t, repo, "2030-05-01 08:00:00", "喝水")
	retired := mustCreate(t, repo, "2030-05-01 07:00:00", "喝水 早")
	if ok, err := repo.MarkReminded(ctx, retired); err != nil || !ok {
		t.Fatalf("MarkReminded = %v, %v", ok, err)
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{name: "pending ascending", filter: Filter{}, want: []string{"喝水", "买菜", "写周报"}},
		{name: "day", filter: Filter{Day: "2030-05-01"}, want: []string{"喝水", "买菜"}},
		{name: "keyword pending", filter: Filter{Keyword: "喝水"}, want: []string{"喝水"}},
		{name: "keyword with retired", filter: Filter{Keyword: "喝水", IncludeRetired: true}, want: []string{"喝水 早", "喝水"}},
		{name: "exact datetime", filter: Filter{Datetime: "2030-05-01 18:00:00"}, want: []string{"买菜"}},
		{name: "since", filter: Filter{Since: "2030-05-01 12:00:00"}, want: []string{"买菜", "写周报"}},
		{name: "until", filter: Filter{Until: "2030-05-01 18:00:00"}, want: []string{"喝水", "买菜"}},
		{name: "limit", filter: Filter{Limit: 1}, want: []string{"喝水"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.Query(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if !equal(tasks(got), tt.want) {
				t.Fatalf("Query(%+v) = %v, want %v", tt.filter, tasks(got), tt.want)
			}
		})
	}
}

func TestQueryHistoryDescendingAndCapped(t *testing.T) {
	t.Parallel()
	repo := openTestRepo(t)
	ctx := context.Background()

	base := time.Date(2020, 1, 1, 8, 0, 0, 0, time.Local)
	for i := 0; i < DefaultHistoryLimit+5; i++ {
		mustCreate(t, repo, base.Add(time.Duration(i)*time.Hour).Format(models.DatetimeLayout), "past")
	}
	mustCreate(t, repo, "2099-01-01 00:00:00", "future")

	got, err := repo.Query(ctx, Filter{History: true, Before: "2030-01-01 00:00:00"})
	if err != nil {
		t.Fatalf("Query history: %v", err)
	}
	if len(got) != DefaultHistoryLimit {
		t.Fatalf("history len = %d, want %d", len(got), DefaultHistoryLimit)
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Datetime < got[i].Datetime {
			t.Fatalf("history not descending at %d: %s < %s", i, got[i-1].Datetime, got[i].Datetime)
		}
	}
}

func TestMarkRemindedSkipsRenamedRow(t *testing.T) {
	t.Parallel()
	repo := openTestRepo(t)
	ctx := context.Background()

	s := mustCreate(t, repo, "2030-05-01 08:00:00", "A")
	stale := *s
	if ok, err := repo.UpdateIdentity(ctx, s.ID, "2030-05-01 09:00:00", "B"); err != nil || !ok {
		t.Fatalf("UpdateIdentity = %v, %v", ok, err)
	}

	ok, err := repo.MarkReminded(ctx, &stale)
	if err != nil || ok {
		t.Fatalf("MarkReminded(stale) = %v, %v; want false, nil", ok, err)
	}
	got, err := repo.GetByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Reminded {
		t.Fatal("renamed row must stay pending")
	}
}

func TestUpdateIdentityResetsReminded(t *testing.T) {
	t.Parallel()
	repo := openTestRepo(t)
	ctx := context.Background()

	s := mustCreate(t, repo, "2030-05-01 08:00:00", "A")
	if ok, err := repo.MarkReminded(ctx, s); err != nil || !ok {
		t.Fatalf("MarkReminded = %v, %v", ok, err)
	}

	ok, err := repo.UpdateIdentity(ctx, s.ID, "2030-05-02 09:00:00", "B")
	if err != nil || !ok {
		t.Fatalf("UpdateIdentity = %v, %v", ok, err)
	}
	got, err := repo.GetByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Datetime != "2030-05-02 09:00:00" || got.Task != "B" || got.Reminded {
		t.Fatalf("unexpected record after update: %+v", got)
	}

	ok, err = repo.UpdateIdentity(ctx, s.ID+42, "2030-05-02 09:00:00", "C")
	if err != nil || ok {
		t.Fatalf("UpdateIdentity(missing) = %v, %v; want false, nil", ok, err)
	}
}

func TestDuplicateIdentitiesDeleteByID(t *testing.T) {
	t.Parallel()
	repo := openTestRepo(t)
	ctx := context.Background()

	first := mustCreate(t, repo, "2030-05-01 08:00:00", "dup")
	second := mustCreate(t, repo, "2030-05-01 08:00:00", "dup")
	if first.ID == second.ID {
		t.Fatal("duplicate rows must get distinct ids")
	}

	ok, err := repo.Delete(ctx, first.ID)
	if err != nil || !ok {
		t.Fatalf("Delete = %v, %v", ok, err)
	}
	left, _ := repo.Query(ctx, Filter{})
	if len(left) != 1 || left[0].ID != second.ID {
		t.Fatalf("left = %+v, want only id %d", left, second.ID)
	}

	if ok, err := repo.Delete(ctx, first.ID); err != nil || ok {
		t.Fatalf("Delete(missing) = %v, %v", ok, err)
	}
}

func TestDeleteAllReturnsCount(t *testing.T) {
	t.Parallel()
	repo := openTestRepo(t)
	ctx := context.Background()

	mustCreate(t, repo, "2030-05-01 08:00:00", "a")
	mustCreate(t, repo, "2030-05-01 09:00:00", "b")
	n, err := repo.DeleteAll(ctx)
	if err != nil || n != 2 {
		t.Fatalf("DeleteAll = %d, %v; want 2", n, err)
	}
	left, _ := repo.Query(ctx, Filter{IncludeRetired: true})
	if len(left) != 0 {
		t.Fatalf("expected empty table, got %v", tasks(left))
	}
}

func TestRetireOverdue(t *testing.T) {
	t.Parallel()
	repo := openTestRepo(t)
	ctx := context.Background()

	now := time.Date(2030, 5, 1, 12, 0, 0, 0, time.Local)
	mustCreate(t, repo, "2030-05-01 11:59:59", "overdue")
	mustCreate(t, repo, "2030-05-01 12:00:00", "due now")
	mustCreate(t, repo, "2030-05-01 13:00:00", "future")

	retired, err := repo.RetireOverdue(ctx, now)
	if err != nil {
		t.Fatalf("RetireOverdue: %v", err)
	}
	if !equal(tasks(retired), []string{"overdue"}) {
		t.Fatalf("retired = %v", tasks(retired))
	}

	pending, _ := repo.Query(ctx, Filter{})
	if !equal(tasks(pending), []string{"due now", "future"}) {
		t.Fatalf("pending = %v", tasks(pending))
	}
	reminded, _ := repo.GetReminded(ctx)
	if !equal(tasks(reminded), []string{"overdue"}) {
		t.Fatalf("reminded = %v", tasks(reminded))
	}

	due, err := repo.GetDue(ctx, now)
	if err != nil {
		t.Fatalf("GetDue: %v", err)
	}
	if !equal(tasks(due), []string{"due now"}) {
		t.Fatalf("due = %v", tasks(due))
	}
}
