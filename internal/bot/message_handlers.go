package bot

import (
	"context"
	"fmt"
	"strings"

	"linkbrief/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"mvdan.cc/xurls/v2"
)

//nolint:gochecknoglobals // Compiled once, safe for concurrent use.
var linkPattern = xurls.Strict()

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) error {
	text := strings.TrimSpace(message.Text)
	if text == "" {
		text = strings.TrimSpace(message.Caption)
	}

	if strings.HasPrefix(text, "/start") || strings.HasPrefix(text, "/help") {
		return b.sendReplies(ctx, message.Chat.ID, []reply{helpReply(b.maxWords)})
	}

	link := firstLink(text)
	if link == "" {
		return b.sendReplies(ctx, message.Chat.ID, []reply{noLinkReply()})
	}

	return b.withSpinner(ctx, message.Chat.ID, func() error {
		return b.handleLink(ctx, message.Chat.ID, link)
	})
}

func (b *Bot) handleLink(ctx context.Context, chatID int64, link string) error {
	result, err := b.pipeline.Run(ctx, domain.Request{URL: link, APIKey: b.apiKey})
	if err != nil {
		b.log.InfoContext(ctx, "Summary failed for chat",
			"chatID", chatID,
			"url", link,
			"code", domain.ErrorCode(err))

		if sendErr := b.sendReplies(ctx, chatID, []reply{errorReply(err)}); sendErr != nil {
			return fmt.Errorf("send error reply: %w", sendErr)
		}

		return nil
	}

	if err = b.sendReplies(ctx, chatID, summaryReplies(result)); err != nil {
		return fmt.Errorf("send summary: %w", err)
	}

	return nil
}

// firstLink returns the first http(s) URL in text, or "" when there is none.
func firstLink(text string) string {
	for _, link := range linkPattern.FindAllString(text, -1) {
		lower := strings.ToLower(link)
		if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
			return link
		}
	}

	return ""
}
