package tools

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hray3182/DeskPal/internal/ai"
	"github.com/hray3182/DeskPal/internal/database"
	"github.com/hray3182/DeskPal/internal/models"
	"github.com/hray3182/DeskPal/internal/repository"
	"github.com/hray3182/DeskPal/internal/scheduler"
	"github.com/hray3182/DeskPal/internal/service"
)

type stubIntents struct {
	intent *ai.Intent
	err    error
	seen   []ai.Message
}

func (s *stubIntents) ParseIntent(_ context.Context, history []ai.Message) (*ai.Intent, error) {
	s.seen = history
	return s.intent, s.err
}

func newTestDispatcher(t *testing.T, intents IntentParser) (*Dispatcher, *repository.ScheduleRepository) {
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
	repo := repository.NewScheduleRepository(db)
	svc := service.NewScheduleService(repo, scheduler.NewTracker(), zerolog.Nop())
	return New(svc, intents, zerolog.Nop()), repo
}

func TestExecuteAddAndFind(t *testing.T) {
	t.Parallel()
	d, repo := newTestDispatcher(t, nil)
	ctx := context.Background()

	got := d.Execute(ctx, AddSchedule, map[string]string{
		"time":   "2030-05-01 09:00:00",
		"task":   "微信提醒交电费",
		"repeat": "monthly",
	})
	want := "已添加日程：2030-05-01 09:00:00 微信提醒交电费（每月重复）（将发送外部通知）"
	if got != want {
		t.Fatalf("add = %q, want %q", got, want)
	}

	list, err := repo.Query(ctx, repository.Filter{Keyword: "电费"})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || !list[0].NotifyExternal || list[0].RepeatType != models.RepeatMonthly {
		t.Fatalf("stored = %+v", list)
	}

	got = d.Execute(ctx, FindSchedule, map[string]string{"task_keyword": "电费"})
	if !strings.HasPrefix(got, "找到以下日程：\n- 2030-05-01 09:00:00 微信提醒交电费") {
		t.Fatalf("find = %q", got)
	}
	if got := d.Execute(ctx, FindSchedule, map[string]string{"task_keyword": "水费"}); got != "未找到匹配的日程" {
		t.Fatalf("find missing = %q", got)
	}
}

func TestExecuteAddFailures(t *testing.T) {
	t.Parallel()
	d, _ := newTestDispatcher(t, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		args map[string]string
		want string
	}{
		{"empty task", map[string]string{"time": "10秒后"}, "添加日程失败: 任务内容不能为空"},
		{"empty time", map[string]string{"task": "喝水"}, "添加日程失败: 提醒时间不能为空"},
	}
	for _, tt := range tests {
		if got := d.Execute(ctx, AddSchedule, tt.args); got != tt.want {
			t.Fatalf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestExecuteUpdateDelete(t *testing.T) {
	t.Parallel()
	d, _ := newTestDispatcher(t, nil)
	ctx := context.Background()

	d.Execute(ctx, AddSchedule, map[string]string{"time": "2030-05-01 12:00:00", "task": "开会"})

	got := d.Execute(ctx, UpdateSchedule, map[string]string{
		"old_task": "开会",
		"new_task": "项目评审",
		"new_time": "2030-05-02 15:00:00",
	})
	if got != "已修改日程：2030-05-02 15:00:00 项目评审" {
		t.Fatalf("update = %q", got)
	}
	if got := d.Execute(ctx, UpdateSchedule, map[string]string{"old_task": "不存在"}); got != "未找到任务为'不存在'的日程" {
		t.Fatalf("update missing = %q", got)
	}

	if got := d.Execute(ctx, DeleteSchedule, map[string]string{"task": "评审"}); got != "已删除日程：2030-05-02 15:00:00 项目评审" {
		t.Fatalf("delete = %q", got)
	}
	if got := d.Execute(ctx, DeleteSchedule, map[string]string{"task": "评审"}); got != "未找到任务为'评审'的日程" {
		t.Fatalf("delete again = %q", got)
	}
	if got := d.Execute(ctx, DeleteSchedule, map[string]string{"time": "23:59"}); got != "未找到23:59的日程" {
		t.Fatalf("delete by clock = %q", got)
	}
}

func TestExecuteListAndClear(t *testing.T) {
	t.Parallel()
	d, _ := newTestDispatcher(t, nil)
	ctx := context.Background()

	if got := d.Execute(ctx, ListSchedule, nil); got != "暂无日程" {
		t.Fatalf("empty list = %q", got)
	}

	d.Execute(ctx, AddSchedule, map[string]string{"time": "2020-01-01 08:00:00", "task": "旧事"})
	d.Execute(ctx, AddSchedule, map[string]string{"time": "2030-01-01 08:00:00", "task": "新事"})

	got := d.Execute(ctx, ListSchedule, map[string]string{"future": "true"})
	if got != "日程列表：\n- 2030-01-01 08:00:00 新事\n" {
		t.Fatalf("future list = %q", got)
	}
	got = d.Execute(ctx, ListSchedule, map[string]string{"history": "true"})
	if got != "历史日程：\n- 2020-01-01 08:00:00 旧事\n" {
		t.Fatalf("history = %q", got)
	}

	if got := d.Execute(ctx, DeleteAllSchedules, nil); got != "已删除所有日程，共删除 2 个日程" {
		t.Fatalf("clear = %q", got)
	}
	if got := d.Execute(ctx, "launch_rocket", nil); got != "未知工具：launch_rocket" {
		t.Fatalf("unknown = %q", got)
	}
}

func TestCurrentTime(t *testing.T) {
	t.Parallel()
	now := time.Date(2030, 5, 1, 9, 5, 3, 0, time.Local)
	if got := CurrentTime(now); got != "当前时间：2030年05月01日 星期三 09:05:03" {
		t.Fatalf("CurrentTime = %q", got)
	}
}

func TestWantsExternalNotify(t *testing.T) {
	t.Parallel()
	tests := []struct {
		task, message string
		want          bool
	}{
		{"喝水", "", false},
		{"发微信给妈妈", "", true},
		{"standup", "ping me on Telegram", true},
		{"call", "WeChat me", true},
		{"喝水", "10分钟后提醒我喝水", false},
	}
	for _, tt := range tests {
		if got := WantsExternalNotify(tt.task, tt.message); got != tt.want {
			t.Errorf("WantsExternalNotify(%q, %q) = %v, want %v", tt.task, tt.message, got, tt.want)
		}
	}
}

func TestHandleConversation(t *testing.T) {
	t.Parallel()
	intents := &stubIntents{intent: &ai.Intent{
		Tool:      AddSchedule,
		Arguments: map[string]string{"time": "2030-05-01 09:00:00", "task": "交房租"},
		Reply:     "好的，已经帮你记下了",
	}}
	d, repo := newTestDispatcher(t, intents)
	ctx := context.Background()

	got, err := d.HandleMessage(ctx, "5月1号早上9点用微信提醒我交房租")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	want := "好的，已经帮你记下了\n\n已添加日程：2030-05-01 09:00:00 交房租（将发送外部通知）"
	if got != want {
		t.Fatalf("reply = %q, want %q", got, want)
	}
	list, _ := repo.Query(ctx, repository.Filter{Keyword: "房租"})
	if len(list) != 1 || !list[0].NotifyExternal {
		t.Fatalf("stored = %+v", list)
	}
	if len(intents.seen) != 1 || intents.seen[0].Role != "user" {
		t.Fatalf("history = %+v", intents.seen)
	}
}

func TestHandleConversationNoTool(t *testing.T) {
	t.Parallel()
	intents := &stubIntents{intent: &ai.Intent{Tool: ai.ToolNone, Reply: "你想几点提醒？"}}
	d, _ := newTestDispatcher(t, intents)

	got, err := d.HandleMessage(context.Background(), "提醒我喝水")
	if err != nil || got != "你想几点提醒？" {
		t.Fatalf("HandleMessage = %q, %v", got, err)
	}

	intents.intent = &ai.Intent{Tool: ai.ToolNone}
	got, _ = d.HandleMessage(context.Background(), "嗯")
	if got == "" {
		t.Fatal("expected a clarification prompt")
	}

	intents.err = errors.New("boom")
	if _, err := d.HandleMessage(context.Background(), "hi"); err == nil {
		t.Fatal("expected parser error")
	}

	bare, _ := newTestDispatcher(t, nil)
	if _, err := bare.HandleMessage(context.Background(), "hi"); !errors.Is(err, ErrNoAssistant) {
		t.Fatal("expected error without an assistant")
	}
}
