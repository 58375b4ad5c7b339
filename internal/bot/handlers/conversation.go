package handlers

import (
	"context"
	"errors"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/hray3182/DeskPal/internal/ai"
	"github.com/hray3182/DeskPal/internal/tools"
)

// conversationSession stores multi-turn conversation state
type conversationSession struct {
	History   []ai.Message
	ExpiresAt time.Time
}

const (
	sessionTimeout = 5 * time.Minute
	maxHistoryLen  = 10
)

func (h *Handlers) handleAIMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	h.log.Debug().Int64("chat_id", chatID).Str("text", msg.Text).Msg("Incoming message")

	history := h.appendHistory(chatID, msg)

	reply, err := h.tools.HandleConversation(ctx, history)
	if errors.Is(err, tools.ErrNoAssistant) {
		h.sendMessage(chatID, "AI 功能尚未启用，请使用 /help 查看可用指令。")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to handle conversation")
		h.sendMessage(chatID, "抱歉，我无法理解你的消息。请试着用更清楚的方式描述，或使用 /help 查看可用指令。")
		return
	}

	h.sendMessage(chatID, reply)
	h.recordReply(chatID, reply)
}

// appendHistory adds the incoming message, and the bot message it replies to,
// to the chat's session and returns a copy of the trimmed history.
func (h *Handlers) appendHistory(chatID int64, msg *tgbotapi.Message) []ai.Message {
	h.sessionMu.Lock()
	defer h.sessionMu.Unlock()

	now := h.now()
	session, ok := h.sessions[chatID]
	if !ok || now.After(session.ExpiresAt) {
		session = &conversationSession{}
		h.sessions[chatID] = session
	}
	session.ExpiresAt = now.Add(sessionTimeout)

	if r := msg.ReplyToMessage; r != nil && r.Text != "" && r.From != nil && r.From.IsBot {
		session.History = append(session.History, ai.Message{Role: "assistant", Content: r.Text})
	}
	session.History = append(session.History, ai.Message{Role: "user", Content: msg.Text})

	if len(session.History) > maxHistoryLen {
		session.History = session.History[len(session.History)-maxHistoryLen:]
	}
	return append([]ai.Message(nil), session.History...)
}

func (h *Handlers) recordReply(chatID int64, reply string) {
	h.sessionMu.Lock()
	defer h.sessionMu.Unlock()

	session, ok := h.sessions[chatID]
	if !ok {
		return
	}
	session.History = append(session.History, ai.Message{Role: "assistant", Content: reply})
	if len(session.History) > maxHistoryLen {
		session.History = session.History[len(session.History)-maxHistoryLen:]
	}
}

func (h *Handlers) clearSession(chatID int64) {
	h.sessionMu.Lock()
	defer h.sessionMu.Unlock()
	delete(h.sessions, chatID)
}
