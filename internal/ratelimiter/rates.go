package ratelimiter

import (
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	DefaultPrivateChatRate = time.Second
	DefaultGroupChatRate   = 3 * time.Second

	queueSize = 1000
)

// Rates is the minimum spacing between two messages sent to the same chat.
type Rates struct {
	PrivateChat time.Duration
	GroupChat   time.Duration
}

func (r Rates) withDefaults() Rates {
	if r.PrivateChat <= 0 {
		r.PrivateChat = DefaultPrivateChatRate
	}
	if r.GroupChat <= 0 {
		r.GroupChat = DefaultGroupChatRate
	}

	return r
}

// Group and channel chat IDs are negative.
func (r Rates) forChat(chatID int64) time.Duration {
	if chatID < 0 {
		return r.GroupChat
	}

	return r.PrivateChat
}

func chatIDOf(message tgbotapi.Chattable) int64 {
	switch m := message.(type) {
	case tgbotapi.MessageConfig:
		return m.ChatID
	case tgbotapi.EditMessageTextConfig:
		return m.ChatID
	case tgbotapi.DeleteMessageConfig:
		return m.ChatID
	case tgbotapi.ChatActionConfig:
		return m.ChatID
	default:
		return 0
	}
}

func delayFor(rate time.Duration, lastSent, now time.Time) time.Duration {
	return max(rate-now.Sub(lastSent), 0)
}
