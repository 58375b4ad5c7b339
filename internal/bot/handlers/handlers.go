package handlers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/hray3182/DeskPal/internal/ai"
	"github.com/hray3182/DeskPal/internal/config"
	"github.com/hray3182/DeskPal/internal/format"
	"github.com/hray3182/DeskPal/internal/service"
)

// API is the part of tgbotapi.BotAPI the handlers call.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Tools executes schedule tools and assistant conversations.
type Tools interface {
	Execute(ctx context.Context, name string, args map[string]string) string
	HandleConversation(ctx context.Context, history []ai.Message) (string, error)
}

// Settings reads and replaces the live reminder settings.
type Settings interface {
	Settings() config.ReminderSettings
	Apply(s config.ReminderSettings)
}

type Handlers struct {
	api      API
	svc      *service.ScheduleService
	tools    Tools
	settings Settings
	ownerID  int64
	now      func() time.Time
	log      zerolog.Logger

	sessionMu sync.Mutex
	sessions  map[int64]*conversationSession

	pendingMu sync.Mutex
	pending   map[int64]time.Time // chat id -> /clear confirmation expiry
}

// New builds the handlers for one owner chat. settings may be nil, which
// disables /settings.
func New(api API, svc *service.ScheduleService, tools Tools, settings Settings, ownerID int64, log zerolog.Logger) *Handlers {
	return &Handlers{
		api:      api,
		svc:      svc,
		tools:    tools,
		settings: settings,
		ownerID:  ownerID,
		now:      time.Now,
		log:      log,
		sessions: make(map[int64]*conversationSession),
		pending:  make(map[int64]time.Time),
	}
}

// HandleUpdate routes one update. Only the owner chat is served; without a
// configured owner, /start replies with the chat id so it can be configured.
func (h *Handlers) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		if cb.Message == nil || !h.authorized(cb.Message.Chat.ID) {
			return
		}
		h.HandleCallbackQuery(ctx, cb)
	case update.Message != nil:
		msg := update.Message
		if !h.authorized(msg.Chat.ID) {
			if h.ownerID == 0 && msg.IsCommand() && msg.Command() == "start" {
				h.sendMessage(msg.Chat.ID, fmt.Sprintf("尚未配置主人会话。请设置 TELEGRAM_CHAT_ID=%d 后重启。", msg.Chat.ID))
				return
			}
			h.log.Warn().Int64("chat_id", msg.Chat.ID).Msg("Ignoring message from unauthorized chat")
			return
		}
		if msg.IsCommand() {
			h.HandleCommand(ctx, msg)
			return
		}
		h.HandleMessage(ctx, msg)
	}
}

func (h *Handlers) authorized(chatID int64) bool {
	return h.ownerID != 0 && chatID == h.ownerID
}

func (h *Handlers) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		h.handleStart(ctx, msg)
	case "help":
		h.handleHelp(ctx, msg)
	case "remind":
		h.handleRemind(ctx, msg)
	case "reminders":
		h.handleReminderList(ctx, msg)
	case "find":
		h.handleFind(ctx, msg)
	case "delete":
		h.handleDelete(ctx, msg)
	case "clear":
		h.handleClear(ctx, msg)
	case "history":
		h.handleHistory(ctx, msg)
	case "settings":
		h.handleSettings(ctx, msg)
	default:
		h.sendMessage(msg.Chat.ID, "未知指令，请使用 /help 查看可用指令")
	}
}

func (h *Handlers) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if strings.TrimSpace(msg.Text) == "" {
		return
	}
	h.handleAIMessage(ctx, msg)
}

func (h *Handlers) HandleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	answer := tgbotapi.NewCallback(callback.ID, "")
	if _, err := h.api.Request(answer); err != nil {
		h.log.Warn().Err(err).Msg("Failed to answer callback")
	}

	parts := strings.Split(callback.Data, ":")
	switch parts[0] {
	case "clear":
		if len(parts) == 2 {
			h.handleClearCallback(ctx, callback, parts[1])
		}
	case "settings":
		h.handleSettingsCallback(ctx, callback, parts[1:])
	}
}

func (h *Handlers) editMessageText(chatID int64, messageID int, text string) {
	parsed := format.ParseMarkdown(text)
	edit := tgbotapi.NewEditMessageText(chatID, messageID, parsed.Text)
	edit.Entities = parsed.Entities
	if _, err := h.api.Send(edit); err != nil {
		h.log.Warn().Err(err).Msg("Failed to edit message")
	}
}

func (h *Handlers) sendMessage(chatID int64, text string) {
	parsed := format.ParseMarkdown(text)
	msg := tgbotapi.NewMessage(chatID, parsed.Text)
	msg.Entities = parsed.Entities
	if _, err := h.api.Send(msg); err != nil {
		h.log.Warn().Err(err).Msg("Failed to send message")
	}
}

func (h *Handlers) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	h.clearSession(msg.Chat.ID)
	name := "主人"
	if msg.From != nil && msg.From.FirstName != "" {
		name = msg.From.FirstName
	}
	text := fmt.Sprintf(`👋 你好 %s！

我是 DeskPal，你的桌面日程助手。到点我会在电脑上提醒你，需要时也会把提醒推送到这里。

你可以直接用自然语言告诉我，例如：
• "10分钟后提醒我喝水"
• "明天早上9点开会，用微信提醒我"
• "把开会改到下午3点"

使用 /help 查看所有指令`, name)
	h.sendMessage(msg.Chat.ID, text)
}

func (h *Handlers) handleHelp(ctx context.Context, msg *tgbotapi.Message) {
	text := `📖 **指令列表**

/remind <时间> <内容> - 添加提醒
/reminders - 查看待提醒日程
/find <关键词> - 查找日程
/delete <内容|HH:MM> - 删除日程
/clear - 删除所有日程
/history - 查看历史日程
/settings - 提醒设置

时间可以是 "10分钟后"、"15:30" 或 "2030-05-01 09:00:00"。

💡 你也可以直接用自然语言告诉我！`
	h.sendMessage(msg.Chat.ID, text)
}
