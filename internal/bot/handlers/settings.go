package handlers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/hray3182/DeskPal/internal/config"
	"github.com/hray3182/DeskPal/internal/format"
)

const (
	maxRepeatCount    = 10
	intervalStep      = 30 * time.Second
	maxRepeatInterval = 30 * time.Minute
)

// handleSettings shows the reminder settings menu
func (h *Handlers) handleSettings(ctx context.Context, msg *tgbotapi.Message) {
	if h.settings == nil {
		h.sendMessage(msg.Chat.ID, "提醒服务未运行，无法修改设置")
		return
	}

	parsed := format.ParseMarkdown(buildSettingsText(h.settings.Settings()))
	reply := tgbotapi.NewMessage(msg.Chat.ID, parsed.Text)
	reply.Entities = parsed.Entities
	reply.ReplyMarkup = buildSettingsKeyboard()

	if _, err := h.api.Send(reply); err != nil {
		h.log.Warn().Err(err).Msg("Failed to send settings menu")
	}
}

// handleSettingsCallback applies one settings button press and redraws the menu.
func (h *Handlers) handleSettingsCallback(ctx context.Context, callback *tgbotapi.CallbackQuery, parts []string) {
	if len(parts) == 0 || h.settings == nil {
		return
	}

	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID

	if parts[0] == "close" {
		h.deleteMessage(chatID, messageID)
		return
	}

	current := h.settings.Settings()
	next, ok := applySettingsAction(current, parts)
	if !ok {
		return
	}
	if next != current {
		h.settings.Apply(next)
		h.log.Info().
			Int("repeat_count", next.RepeatCount).
			Dur("repeat_interval", next.RepeatInterval).
			Bool("polish", next.Polish).
			Bool("calendar_aware", next.CalendarAware).
			Msg("Reminder settings changed from chat")
	}

	parsed := format.ParseMarkdown(buildSettingsText(next))
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, parsed.Text, buildSettingsKeyboard())
	edit.Entities = parsed.Entities
	if _, err := h.api.Send(edit); err != nil {
		h.log.Warn().Err(err).Msg("Failed to update settings menu")
	}
}

// applySettingsAction returns s changed by one menu action, such as
// ["count", "+1"] or ["polish"].
func applySettingsAction(s config.ReminderSettings, parts []string) (config.ReminderSettings, bool) {
	switch parts[0] {
	case "count":
		if len(parts) < 2 {
			return s, false
		}
		delta, err := strconv.Atoi(parts[1])
		if err != nil {
			return s, false
		}
		s.RepeatCount = clamp(s.RepeatCount+delta, 1, maxRepeatCount)
	case "interval":
		if len(parts) < 2 {
			return s, false
		}
		steps, err := strconv.Atoi(parts[1])
		if err != nil {
			return s, false
		}
		d := s.RepeatInterval + time.Duration(steps)*intervalStep
		if d < intervalStep {
			d = intervalStep
		}
		if d > maxRepeatInterval {
			d = maxRepeatInterval
		}
		s.RepeatInterval = d
	case "polish":
		s.Polish = !s.Polish
	case "calendar":
		s.CalendarAware = !s.CalendarAware
	default:
		return s, false
	}
	return s, true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func onOff(b bool) string {
	if b {
		return "✅ 已开启"
	}
	return "❌ 已关闭"
}

func buildSettingsText(s config.ReminderSettings) string {
	return fmt.Sprintf("⚙️ **提醒设置**\n\n🔁 重复次数: %d\n⏱ 重复间隔: %s\n✨ AI 润色: %s\n📅 按日历推算月/年: %s",
		s.RepeatCount, s.RepeatInterval, onOff(s.Polish), onOff(s.CalendarAware))
}

func buildSettingsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("次数 -1", "settings:count:-1"),
			tgbotapi.NewInlineKeyboardButtonData("次数 +1", "settings:count:+1"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("间隔 -30秒", "settings:interval:-1"),
			tgbotapi.NewInlineKeyboardButtonData("间隔 +30秒", "settings:interval:+1"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✨ AI 润色", "settings:polish"),
			tgbotapi.NewInlineKeyboardButtonData("📅 日历推算", "settings:calendar"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("关闭", "settings:close"),
		),
	)
}

func (h *Handlers) deleteMessage(chatID int64, messageID int) {
	if _, err := h.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		h.log.Warn().Err(err).Msg("Failed to delete message")
	}
}
