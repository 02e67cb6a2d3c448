package alerts

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// messageSender is the part of tgbotapi.BotAPI the alerter uses
type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramAlerter posts alerts to the coaching team's Telegram chats
type TelegramAlerter struct {
	api     messageSender
	mu      sync.RWMutex
	chatIDs []int64
}

// NewTelegramAlerter creates a new Telegram-based alerter
func NewTelegramAlerter(botToken string, chatIDs []int64) (*TelegramAlerter, error) {
	if botToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	log.Info().
		Str("bot_username", api.Self.UserName).
		Int("chat_count", len(chatIDs)).
		Msg("Telegram alerter initialized")

	return newTelegramAlerter(api, chatIDs), nil
}

func newTelegramAlerter(api messageSender, chatIDs []int64) *TelegramAlerter {
	return &TelegramAlerter{
		api:     api,
		chatIDs: append([]int64(nil), chatIDs...),
	}
}

// Send posts the alert to every configured chat. It fails only when no chat
// received it.
func (t *TelegramAlerter) Send(_ context.Context, alert Alert) error {
	chatIDs := t.ChatIDs()
	if len(chatIDs) == 0 {
		log.Warn().Msg("No Telegram chat IDs configured, skipping alert")
		return nil
	}

	message := formatTelegram(alert)

	var lastErr error
	successCount := 0
	for _, chatID := range chatIDs {
		msg := tgbotapi.NewMessage(chatID, message)
		msg.ParseMode = tgbotapi.ModeMarkdown

		if _, err := t.api.Send(msg); err != nil {
			log.Error().
				Err(err).
				Int64("chat_id", chatID).
				Str("alert_title", alert.Title).
				Msg("Failed to send Telegram alert")
			lastErr = err
			continue
		}
		successCount++
	}

	if successCount == 0 && lastErr != nil {
		return fmt.Errorf("failed to send alert to any chat: %w", lastErr)
	}

	log.Debug().
		Int("success_count", successCount).
		Int("total_chats", len(chatIDs)).
		Str("alert_title", alert.Title).
		Msg("Telegram alert sent")

	return nil
}

// formatTelegram renders an alert as Telegram Markdown. Metadata keys are
// sorted so the message is stable.
func formatTelegram(alert Alert) string {
	var b strings.Builder

	label := "INFO"
	switch alert.Severity {
	case SeverityCritical:
		label = "CRITICAL"
	case SeverityWarning:
		label = "WARNING"
	}

	fmt.Fprintf(&b, "[%s] *%s*\n\n%s", label, alert.Title, alert.Message)

	if alert.UserID != "" {
		fmt.Fprintf(&b, "\n\nUser: `%s`", alert.UserID)
	}

	if len(alert.Metadata) > 0 {
		keys := make([]string, 0, len(alert.Metadata))
		for k := range alert.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteString("\n\n*Details:*")
		for _, k := range keys {
			fmt.Fprintf(&b, "\n• %s: `%v`", k, alert.Metadata[k])
		}
	}

	fmt.Fprintf(&b, "\n\n_Time: %s_", alert.Timestamp.UTC().Format("2006-01-02 15:04:05"))
	return b.String()
}

// AddChatID adds a chat, ignoring duplicates
func (t *TelegramAlerter) AddChatID(chatID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range t.chatIDs {
		if id == chatID {
			return
		}
	}
	t.chatIDs = append(t.chatIDs, chatID)
}

// RemoveChatID removes a chat
func (t *TelegramAlerter) RemoveChatID(chatID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, id := range t.chatIDs {
		if id == chatID {
			t.chatIDs = append(t.chatIDs[:i], t.chatIDs[i+1:]...)
			return
		}
	}
}

// ChatIDs returns a copy of the configured chats
func (t *TelegramAlerter) ChatIDs() []int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]int64(nil), t.chatIDs...)
}
