package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"linkbrief/internal/domain"
	"linkbrief/internal/markdown"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type reply struct {
	text     string
	markdown bool
}

func helpReply(maxWords int) reply {
	text := fmt.Sprintf(
		"Send me a link to a YouTube video or a website and I will reply with a summary of about %d words.",
		maxWords)

	return reply{text: "👋 " + markdown.EscapeV2(text), markdown: true}
}

func noLinkReply() reply {
	return reply{
		text:     markdown.EscapeV2("✖️ " + domain.UserMessage(domain.ErrInvalidURL)),
		markdown: true,
	}
}

func errorReply(err error) reply {
	return reply{text: "❌ " + markdown.EscapeV2(domain.UserMessage(err)), markdown: true}
}

// summaryReplies formats result as one MarkdownV2 message, or as plain
// chunks when the escaped text would not fit into a single message.
func summaryReplies(result domain.SummaryResult) []reply {
	var b strings.Builder
	if title := strings.TrimSpace(result.Title); title != "" {
		b.WriteString(markdown.Bold(title))
		b.WriteString("\n\n")
	}
	b.WriteString(markdown.EscapeV2(result.Text))

	if utf8.RuneCountInString(b.String()) <= markdown.MaxMessageRunes {
		return []reply{{text: b.String(), markdown: true}}
	}

	var plain strings.Builder
	if title := strings.TrimSpace(result.Title); title != "" {
		plain.WriteString(title)
		plain.WriteString("\n\n")
	}
	plain.WriteString(result.Text)

	chunks := markdown.Split(plain.String(), markdown.MaxMessageRunes)
	replies := make([]reply, 0, len(chunks))
	for _, chunk := range chunks {
		replies = append(replies, reply{text: chunk})
	}

	return replies
}

func (b *Bot) sendReplies(ctx context.Context, chatID int64, replies []reply) error {
	var errs []error

	for _, r := range replies {
		if err := b.sendReply(ctx, chatID, r); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (b *Bot) sendReply(ctx context.Context, chatID int64, r reply) error {
	normalizedText := strings.ToValidUTF8(r.text, "?")
	if normalizedText != r.text {
		b.log.WarnContext(ctx, "Message text had invalid UTF-8 and was normalized",
			"chatID", chatID,
			"originalLen", len(r.text),
			"normalizedLen", len(normalizedText))
	}

	message := tgbotapi.NewMessage(chatID, normalizedText)
	if r.markdown {
		// See https://core.telegram.org/bots/api#markdownv2-style.
		message.ParseMode = tgbotapi.ModeMarkdownV2
	}
	message.DisableWebPagePreview = true

	if _, err := b.rateLimiter.Send(ctx, message); err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	return nil
}
