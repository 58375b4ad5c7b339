// Package tools exposes the schedule commands as named tools taking string
// arguments and returning a human-readable result, the surface the chat
// assistant and the bot drive.
package tools

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hray3182/DeskPal/internal/ai"
	"github.com/hray3182/DeskPal/internal/models"
	"github.com/hray3182/DeskPal/internal/rrule"
	"github.com/hray3182/DeskPal/internal/service"
)

const (
	AddSchedule        = "add_schedule"
	UpdateSchedule     = "update_schedule"
	DeleteSchedule     = "delete_schedule"
	DeleteAllSchedules = "delete_all_schedules"
	FindSchedule       = "find_schedule"
	ListSchedule       = "list_schedule"
	GetCurrentTime     = "get_current_time"
)

// Names lists every tool the dispatcher executes.
var Names = []string{
	AddSchedule, UpdateSchedule, DeleteSchedule, DeleteAllSchedules,
	FindSchedule, ListSchedule, GetCurrentTime,
}

// ErrNoAssistant is returned by conversations when no assistant is configured.
var ErrNoAssistant = errors.New("AI assistant is not configured")

// IntentParser turns a conversation into one tool call.
type IntentParser interface {
	ParseIntent(ctx context.Context, history []ai.Message) (*ai.Intent, error)
}

type Dispatcher struct {
	svc     *service.ScheduleService
	intents IntentParser
	now     func() time.Time
	log     zerolog.Logger
}

// New returns a dispatcher. intents may be nil, in which case only Execute
// is available.
func New(svc *service.ScheduleService, intents IntentParser, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{svc: svc, intents: intents, now: time.Now, log: log}
}

// HandleMessage runs a single chat message through the assistant.
func (d *Dispatcher) HandleMessage(ctx context.Context, text string) (string, error) {
	return d.HandleConversation(ctx, []ai.Message{{Role: "user", Content: text}})
}

// HandleConversation asks the assistant which tool the latest message calls
// for, runs it and returns the assistant's reply followed by the tool result.
func (d *Dispatcher) HandleConversation(ctx context.Context, history []ai.Message) (string, error) {
	if d.intents == nil {
		return "", ErrNoAssistant
	}
	intent, err := d.intents.ParseIntent(ctx, history)
	if err != nil {
		return "", err
	}
	d.log.Debug().Str("tool", intent.Tool).Interface("args", intent.Arguments).Msg("Parsed intent")

	if intent.Tool == "" || intent.Tool == ai.ToolNone {
		if intent.Reply == "" {
			return "我不太确定你想做什么，可以说得更清楚一点吗？", nil
		}
		return intent.Reply, nil
	}

	args := intent.Arguments
	if args == nil {
		args = map[string]string{}
	}
	if _, ok := args["original_message"]; !ok {
		if last := lastUserMessage(history); last != "" {
			args["original_message"] = last
		}
	}

	result := d.Execute(ctx, intent.Tool, args)
	if intent.Reply != "" {
		return intent.Reply + "\n\n" + result, nil
	}
	return result, nil
}

// Execute runs a tool by name. Every outcome, including failures, comes back
// as a descriptive string.
func (d *Dispatcher) Execute(ctx context.Context, name string, args map[string]string) string {
	d.log.Debug().Str("tool", name).Interface("args", args).Msg("Executing tool")

	switch name {
	case AddSchedule:
		return d.add(ctx, args)
	case UpdateSchedule:
		return d.update(ctx, args)
	case DeleteSchedule:
		return d.delete(ctx, args)
	case DeleteAllSchedules:
		return d.deleteAll(ctx)
	case FindSchedule:
		return d.find(ctx, args)
	case ListSchedule:
		return d.list(ctx, args)
	case GetCurrentTime:
		return CurrentTime(d.now())
	default:
		return fmt.Sprintf("未知工具：%s", name)
	}
}

func (d *Dispatcher) add(ctx context.Context, args map[string]string) string {
	task := args["task"]
	notifyExternal := WantsExternalNotify(task, args["original_message"]) || parseBool(args["notify"])

	rec, err := d.svc.Add(ctx, service.AddRequest{
		Time:           args["time"],
		Task:           task,
		NotifyExternal: notifyExternal,
		Repeat:         models.ParseRepeatType(args["repeat"]),
	})
	if err != nil {
		return "添加日程失败: " + describe(err)
	}

	result := fmt.Sprintf("已添加日程：%s %s", rec.Datetime, rec.Task)
	if rec.RepeatType.IsRecurring() {
		result += "（" + rrule.HumanReadableChinese(rec.RepeatType) + "重复）"
	}
	if rec.NotifyExternal {
		result += "（将发送外部通知）"
	}
	return result
}

func (d *Dispatcher) update(ctx context.Context, args map[string]string) string {
	oldTask := args["old_task"]
	rec, err := d.svc.Update(ctx, oldTask, args["old_time"], args["new_task"], args["new_time"])
	if errors.Is(err, service.ErrNotFound) {
		return fmt.Sprintf("未找到任务为'%s'的日程", oldTask)
	}
	if err != nil {
		return "修改日程失败: " + describe(err)
	}
	return fmt.Sprintf("已修改日程：%s %s", rec.Datetime, rec.Task)
}

func (d *Dispatcher) delete(ctx context.Context, args map[string]string) string {
	task, at := args["task"], args["time"]
	rec, err := d.svc.Delete(ctx, task, at)
	if errors.Is(err, service.ErrNotFound) {
		if at != "" && task == "" {
			return fmt.Sprintf("未找到%s的日程", at)
		}
		return fmt.Sprintf("未找到任务为'%s'的日程", task)
	}
	if err != nil {
		return "删除日程失败: " + describe(err)
	}
	return fmt.Sprintf("已删除日程：%s %s", rec.Datetime, rec.Task)
}

func (d *Dispatcher) deleteAll(ctx context.Context) string {
	n, err := d.svc.DeleteAll(ctx)
	if err != nil {
		return "删除所有日程失败: " + describe(err)
	}
	return fmt.Sprintf("已删除所有日程，共删除 %d 个日程", n)
}

func (d *Dispatcher) find(ctx context.Context, args map[string]string) string {
	list, err := d.svc.Find(ctx, args["task_keyword"], args["time"])
	if err != nil {
		return "查找日程失败: " + describe(err)
	}
	if len(list) == 0 {
		return "未找到匹配的日程"
	}
	return "找到以下日程：\n" + FormatList(list)
}

func (d *Dispatcher) list(ctx context.Context, args map[string]string) string {
	var (
		list  []*models.Schedule
		err   error
		title string
	)
	if parseBool(args["history"]) {
		list, err = d.svc.History(ctx, 0)
		title = "历史日程："
	} else {
		list, err = d.svc.List(ctx, service.ListOptions{Day: args["day"], Future: parseBool(args["future"])})
		title = "日程列表："
	}
	if err != nil {
		return "获取日程失败: " + describe(err)
	}
	if len(list) == 0 {
		return "暂无日程"
	}
	return title + "\n" + FormatList(list)
}

// FormatList renders schedules one per line.
func FormatList(list []*models.Schedule) string {
	var sb strings.Builder
	for _, s := range list {
		sb.WriteString("- ")
		sb.WriteString(s.Datetime)
		sb.WriteString(" ")
		sb.WriteString(s.Task)
		if s.RepeatType.IsRecurring() {
			sb.WriteString(" 🔄")
			sb.WriteString(rrule.HumanReadableChinese(s.RepeatType))
		}
		if s.Reminded {
			sb.WriteString(" ✓")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

var weekdays = [...]string{"星期日", "星期一", "星期二", "星期三", "星期四", "星期五", "星期六"}

// CurrentTime renders now the way the assistant reports it.
func CurrentTime(now time.Time) string {
	return fmt.Sprintf("当前时间：%s %s %s", now.Format("2006年01月02日"), weekdays[now.Weekday()], now.Format("15:04:05"))
}

// WantsExternalNotify reports whether a task or the message that created it
// asks for a push notification.
func WantsExternalNotify(task, message string) bool {
	for _, s := range []string{task, message} {
		lower := strings.ToLower(s)
		if strings.Contains(s, "微信") || strings.Contains(lower, "wechat") || strings.Contains(lower, "telegram") {
			return true
		}
	}
	return false
}

func parseBool(s string) bool {
	s = strings.TrimSpace(s)
	if s == "是" || s == "要" {
		return true
	}
	b, _ := strconv.ParseBool(s)
	return b
}

func describe(err error) string {
	switch {
	case errors.Is(err, service.ErrEmptyTask):
		return "任务内容不能为空"
	case errors.Is(err, service.ErrEmptyTime):
		return "提醒时间不能为空"
	default:
		return err.Error()
	}
}

func lastUserMessage(history []ai.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == "user" {
			return history[i].Content
		}
	}
	return ""
}
