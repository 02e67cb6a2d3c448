package alerts

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent   []tgbotapi.MessageConfig
	failOn map[int64]bool
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg := c.(tgbotapi.MessageConfig)
	if f.failOn[msg.ChatID] {
		return tgbotapi.Message{}, errors.New("chat not found")
	}
	f.sent = append(f.sent, msg)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func TestNewTelegramAlerterRequiresToken(t *testing.T) {
	alerter, err := NewTelegramAlerter("", []int64{1})
	assert.Nil(t, alerter)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bot token is required")
}

func TestTelegramAlerter_Send(t *testing.T) {
	sender := &fakeSender{}
	alerter := newTelegramAlerter(sender, []int64{11, 22})

	err := alerter.Send(context.Background(), Alert{
		Title:     "Elevated financial risk",
		Message:   "Risk is high",
		Severity:  SeverityCritical,
		UserID:    "user-1",
		Timestamp: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
		Metadata:  map[string]any{"b": 2, "a": 1},
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 2)

	msg := sender.sent[0]
	assert.Equal(t, int64(11), msg.ChatID)
	assert.Equal(t, tgbotapi.ModeMarkdown, msg.ParseMode)
	assert.Contains(t, msg.Text, "[CRITICAL] *Elevated financial risk*")
	assert.Contains(t, msg.Text, "User: `user-1`")
	assert.Contains(t, msg.Text, "_Time: 2025-03-10 12:00:00_")
	assert.Less(t, strings.Index(msg.Text, "a: `1`"), strings.Index(msg.Text, "b: `2`"))
}

func TestTelegramAlerter_PartialFailure(t *testing.T) {
	sender := &fakeSender{failOn: map[int64]bool{11: true}}
	alerter := newTelegramAlerter(sender, []int64{11, 22})

	require.NoError(t, alerter.Send(context.Background(), Alert{Title: "t"}))
	assert.Len(t, sender.sent, 1)
}

func TestTelegramAlerter_AllChatsFail(t *testing.T) {
	sender := &fakeSender{failOn: map[int64]bool{11: true}}
	alerter := newTelegramAlerter(sender, []int64{11})

	err := alerter.Send(context.Background(), Alert{Title: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to send alert to any chat")
}

func TestTelegramAlerter_NoChats(t *testing.T) {
	sender := &fakeSender{}
	alerter := newTelegramAlerter(sender, nil)

	assert.NoError(t, alerter.Send(context.Background(), Alert{Title: "t"}))
	assert.Empty(t, sender.sent)
}

func TestTelegramAlerter_ChatIDs(t *testing.T) {
	alerter := newTelegramAlerter(&fakeSender{}, []int64{123456789})

	alerter.AddChatID(987654321)
	alerter.AddChatID(123456789)
	assert.Equal(t, []int64{123456789, 987654321}, alerter.ChatIDs())

	alerter.RemoveChatID(123456789)
	assert.Equal(t, []int64{987654321}, alerter.ChatIDs())

	alerter.RemoveChatID(1)
	assert.Len(t, alerter.ChatIDs(), 1)
}
