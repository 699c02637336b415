package ratelimiter

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu      sync.Mutex
	sent    []time.Time
	sendErr error
}

func (f *fakeSender) Send(tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sent = append(f.sent, time.Now())

	return tgbotapi.Message{MessageID: len(f.sent)}, f.sendErr
}

func (f *fakeSender) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) sentTimes() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]time.Time(nil), f.sent...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDelayFor(t *testing.T) {
	now := time.Now()
	rates := Rates{}.withDefaults()

	tests := []struct {
		name     string
		chatID   int64
		lastSent time.Time
		wantZero bool
	}{
		{
			"Private chat - no delay needed",
			123456789,
			now.Add(-2 * time.Second),
			true,
		},
		{
			"Private chat - delay needed",
			123456789,
			now.Add(-500 * time.Millisecond),
			false,
		},
		{
			"Group chat - no delay needed",
			-123456789,
			now.Add(-4 * time.Second),
			true,
		},
		{
			"Group chat - delay needed",
			-123456789,
			now.Add(-1 * time.Second),
			false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := delayFor(rates.forChat(test.chatID), test.lastSent, now)

			if test.wantZero && got > 0 {
				t.Errorf("Expected zero delay, got %v", got)
			}

			if !test.wantZero && got <= 0 {
				t.Errorf("Expected positive delay, got %v", got)
			}
		})
	}
}

func TestChatIDOf(t *testing.T) {
	tests := []struct {
		name    string
		message tgbotapi.Chattable
		want    int64
	}{
		{
			"MessageConfig",
			tgbotapi.NewMessage(12345, "test"),
			12345,
		},
		{
			"ChatActionConfig",
			tgbotapi.NewChatAction(67890, tgbotapi.ChatTyping),
			67890,
		},
		{
			"DeleteMessageConfig",
			tgbotapi.NewDeleteMessage(-42, 7),
			-42,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := chatIDOf(test.message)

			if got != test.want {
				t.Errorf("Expected %v chatID, got %v", test.want, got)
			}
		})
	}
}

func TestRatesWithDefaults(t *testing.T) {
	got := Rates{GroupChat: 5 * time.Second}.withDefaults()

	assert.Equal(t, DefaultPrivateChatRate, got.PrivateChat)
	assert.Equal(t, 5*time.Second, got.GroupChat)
	assert.Equal(t, DefaultPrivateChatRate, got.forChat(1))
	assert.Equal(t, 5*time.Second, got.forChat(-1))
}

func TestSendSpacesMessagesPerChat(t *testing.T) {
	sender := &fakeSender{}
	rate := 50 * time.Millisecond

	rl := New(sender, Rates{PrivateChat: rate, GroupChat: rate}, discardLogger())
	defer rl.Stop()

	for range 3 {
		_, err := rl.Send(t.Context(), tgbotapi.NewMessage(1, "hello"))
		require.NoError(t, err)
	}

	sent := sender.sentTimes()
	require.Len(t, sent, 3)

	for i := 1; i < len(sent); i++ {
		// Timer granularity can shave a little off the wait.
		assert.GreaterOrEqual(t, sent[i].Sub(sent[i-1]), rate-5*time.Millisecond)
	}
}

func TestSendWrapsSenderError(t *testing.T) {
	sendErr := errors.New("telegram is down")
	rl := New(&fakeSender{sendErr: sendErr}, Rates{}, discardLogger())
	defer rl.Stop()

	_, err := rl.Send(t.Context(), tgbotapi.NewMessage(1, "hello"))
	require.ErrorIs(t, err, sendErr)
}

func TestSendAfterStop(t *testing.T) {
	rl := New(&fakeSender{}, Rates{}, discardLogger())
	rl.Stop()
	rl.Stop()

	_, err := rl.Send(t.Context(), tgbotapi.NewMessage(1, "hello"))
	require.ErrorIs(t, err, ErrStopped)
}

func TestSendCanceledContext(t *testing.T) {
	sender := &fakeSender{}
	rl := New(sender, Rates{PrivateChat: time.Hour}, discardLogger())
	defer rl.Stop()

	_, err := rl.Send(t.Context(), tgbotapi.NewMessage(1, "first"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	_, err = rl.Send(ctx, tgbotapi.NewMessage(1, "second"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, sender.sentTimes(), 1)
}
