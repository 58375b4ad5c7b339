package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/hray3182/DeskPal/internal/models"
	"github.com/hray3182/DeskPal/internal/rrule"
	"github.com/hray3182/DeskPal/internal/service"
	"github.com/hray3182/DeskPal/internal/timeexpr"
	"github.com/hray3182/DeskPal/internal/tools"
)

const clearConfirmTimeout = 2 * time.Minute

func (h *Handlers) handleRemind(ctx context.Context, msg *tgbotapi.Message) {
	args := strings.TrimSpace(msg.CommandArguments())
	at, task := splitTimeAndTask(args)
	if at == "" || task == "" {
		h.sendMessage(msg.Chat.ID, "请提供提醒时间和内容\n用法: /remind <时间> <内容>\n例如: /remind 15:30 开会")
		return
	}

	// Reminders created from the chat are pushed back to it.
	result := h.tools.Execute(ctx, tools.AddSchedule, map[string]string{
		"time":   at,
		"task":   task,
		"notify": "true",
	})
	h.sendMessage(msg.Chat.ID, "⏰ "+result)
}

// splitTimeAndTask takes the leading time expression off a command argument.
// A full datetime spans two words.
func splitTimeAndTask(args string) (string, string) {
	fields := strings.Fields(args)
	if len(fields) >= 3 {
		candidate := fields[0] + " " + fields[1]
		if _, ok := timeexpr.Datetime(candidate, time.Local); ok {
			return candidate, strings.Join(fields[2:], " ")
		}
	}
	if len(fields) < 2 {
		return "", ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}

func (h *Handlers) handleReminderList(ctx context.Context, msg *tgbotapi.Message) {
	list, err := h.svc.List(ctx, service.ListOptions{})
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list schedules")
		h.sendMessage(msg.Chat.ID, "获取日程列表失败，请稍后再试")
		return
	}
	if len(list) == 0 {
		h.sendMessage(msg.Chat.ID, "⏰ 目前没有待提醒的日程")
		return
	}
	h.sendMessage(msg.Chat.ID, "⏰ **日程列表**\n\n"+formatSchedules(list))
}

func (h *Handlers) handleHistory(ctx context.Context, msg *tgbotapi.Message) {
	list, err := h.svc.History(ctx, 0)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load history")
		h.sendMessage(msg.Chat.ID, "获取历史日程失败，请稍后再试")
		return
	}
	if len(list) == 0 {
		h.sendMessage(msg.Chat.ID, "📜 暂无历史日程")
		return
	}
	h.sendMessage(msg.Chat.ID, "📜 **历史日程**\n\n"+formatSchedules(list))
}

func (h *Handlers) handleFind(ctx context.Context, msg *tgbotapi.Message) {
	keyword := strings.TrimSpace(msg.CommandArguments())
	if keyword == "" {
		h.sendMessage(msg.Chat.ID, "请提供关键词\n用法: /find <关键词>")
		return
	}
	h.sendMessage(msg.Chat.ID, h.tools.Execute(ctx, tools.FindSchedule, map[string]string{"task_keyword": keyword}))
}

func (h *Handlers) handleDelete(ctx context.Context, msg *tgbotapi.Message) {
	arg := strings.TrimSpace(msg.CommandArguments())
	if arg == "" {
		h.sendMessage(msg.Chat.ID, "请提供要删除的日程内容或时间\n用法: /delete <内容|HH:MM>")
		return
	}

	args := map[string]string{"task": arg}
	if _, ok := timeexpr.Clock(arg); ok {
		args = map[string]string{"time": arg}
	}
	h.sendMessage(msg.Chat.ID, h.tools.Execute(ctx, tools.DeleteSchedule, args))
}

func (h *Handlers) handleClear(ctx context.Context, msg *tgbotapi.Message) {
	h.pendingMu.Lock()
	h.pending[msg.Chat.ID] = h.now().Add(clearConfirmTimeout)
	h.pendingMu.Unlock()

	reply := tgbotapi.NewMessage(msg.Chat.ID, "确定要删除所有日程吗？此操作无法撤销。")
	reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ 确认", "clear:confirm"),
			tgbotapi.NewInlineKeyboardButtonData("❌ 取消", "clear:cancel"),
		),
	)
	if _, err := h.api.Send(reply); err != nil {
		h.log.Warn().Err(err).Msg("Failed to send confirmation message")
	}
}

func (h *Handlers) handleClearCallback(ctx context.Context, callback *tgbotapi.CallbackQuery, action string) {
	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID

	h.pendingMu.Lock()
	expires, ok := h.pending[chatID]
	delete(h.pending, chatID)
	h.pendingMu.Unlock()

	if !ok || h.now().After(expires) {
		h.editMessageText(chatID, messageID, "⏰ 确认已过期")
		return
	}

	switch action {
	case "confirm":
		result := h.tools.Execute(ctx, tools.DeleteAllSchedules, nil)
		h.editMessageText(chatID, messageID, "✅ 已确认\n\n"+result)
	default:
		h.editMessageText(chatID, messageID, "❌ 已取消操作")
	}
}

func formatSchedules(list []*models.Schedule) string {
	var sb strings.Builder
	for _, s := range list {
		status := "⏳"
		if s.Reminded {
			status = "✅"
		}
		sb.WriteString(fmt.Sprintf("%s **%d.** %s\n", status, s.ID, s.Task))
		sb.WriteString(fmt.Sprintf("   📅 %s", s.Datetime))
		if s.RepeatType.IsRecurring() {
			sb.WriteString(" 🔄 " + rrule.HumanReadableChinese(s.RepeatType))
		}
		if s.NotifyExternal {
			sb.WriteString(" 📣")
		}
		sb.WriteString("\n\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
