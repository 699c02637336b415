package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"linkbrief/internal/domain"
	"linkbrief/internal/ratelimiter"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	maxBackoffSeconds         = 60
	initialBackoffSeconds     = 3
	backoffGrowthFactor       = 2
	resetOffsetBackoffSeconds = 30
	// Loading a long page and waiting for the model can take a while.
	updateProcessingTimeout = 3 * time.Minute

	BotUpdateTimeout = 60
)

// Pipeline is the summarization use case the bot exposes.
type Pipeline interface {
	Run(ctx context.Context, req domain.Request) (domain.SummaryResult, error)
}

type Options struct {
	Token string
	// APIKey is the operator's completion service key, used for every chat.
	APIKey       string
	AllowedUsers []int64
	MaxWords     int
}

type Bot struct {
	api          *tgbotapi.BotAPI
	rateLimiter  *ratelimiter.RateLimiter
	pipeline     Pipeline
	apiKey       string
	allowedUsers []int64
	maxWords     int
	log          *slog.Logger
}

func New(opts Options, p Pipeline, log *slog.Logger) (*Bot, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("bot needs an API key for the completion service")
	}

	api, err := tgbotapi.NewBotAPI(strings.TrimSpace(opts.Token))
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return &Bot{
		api:          api,
		rateLimiter:  ratelimiter.New(api, ratelimiter.Rates{}, log),
		pipeline:     p,
		apiKey:       opts.APIKey,
		allowedUsers: opts.AllowedUsers,
		maxWords:     opts.MaxWords,
		log:          log,
	}, nil
}

func (b *Bot) Username() string {
	return b.api.Self.UserName
}

// Start polls for updates until ctx is done, reconnecting with backoff.
func (b *Bot) Start(ctx context.Context) {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = BotUpdateTimeout
	updateConfig.AllowedUpdates = []string{"message"}

	backoffSeconds := initialBackoffSeconds

	for {
		if ctx.Err() != nil {
			b.log.InfoContext(ctx, "Bot context is done",
				"error", ctx.Err())
			return
		}

		updates := b.api.GetUpdatesChan(updateConfig)
		updatesClosed := false

		for !updatesClosed {
			select {
			case <-ctx.Done():
				b.api.StopReceivingUpdates()
				b.log.InfoContext(ctx, "Bot context is done",
					"error", ctx.Err())
				return

			case update, ok := <-updates:
				if !ok {
					updatesClosed = true
					continue
				}
				updateConfig.Offset = update.UpdateID + 1
				backoffSeconds = initialBackoffSeconds

				b.handleUpdate(ctx, &update)
			}
		}

		b.log.WarnContext(ctx, "Update channel is closed, reconnecting...",
			"offset", updateConfig.Offset,
			"backoffSeconds", backoffSeconds)

		select {
		case <-ctx.Done():
			continue
		case <-time.After(time.Duration(backoffSeconds) * time.Second):
		}

		backoffSeconds = updateBackoffSeconds(backoffSeconds)

		if backoffSeconds >= resetOffsetBackoffSeconds {
			updateConfig.Offset = 0
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update *tgbotapi.Update) {
	message := update.Message
	if message == nil || message.From == nil || message.Chat == nil {
		return
	}

	updateCtx, cancel := context.WithTimeout(ctx, updateProcessingTimeout)
	defer cancel()

	if !b.userAllowed(message.From.ID) {
		b.log.DebugContext(updateCtx, "User is not allowed",
			"userID", message.From.ID,
			"chatID", message.Chat.ID,
			"username", message.From.UserName,
			"chatType", message.Chat.Type)

		return
	}

	if err := b.handleMessage(updateCtx, message); err != nil {
		b.log.ErrorContext(updateCtx, "Failed to handle message",
			"error", err,
			"chatID", message.Chat.ID,
			"userID", message.From.ID,
			"chatType", message.Chat.Type,
			"messageID", message.MessageID)
	}
}

func (b *Bot) userAllowed(userID int64) bool {
	return len(b.allowedUsers) == 0 || slices.Contains(b.allowedUsers, userID)
}

func (b *Bot) Stop() {
	if b.rateLimiter != nil {
		b.rateLimiter.Stop()
	}
}

func updateBackoffSeconds(backoffSeconds int) int {
	if backoffSeconds < maxBackoffSeconds {
		backoffSeconds *= backoffGrowthFactor
		if backoffSeconds > maxBackoffSeconds {
			backoffSeconds = maxBackoffSeconds
		}
	}
	return backoffSeconds
}
