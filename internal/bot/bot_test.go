package bot

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"linkbrief/internal/domain"
	"linkbrief/internal/markdown"
	"linkbrief/internal/ratelimiter"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu       sync.Mutex
	messages []tgbotapi.MessageConfig
}

func (s *recordingSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := c.(tgbotapi.MessageConfig); ok {
		s.messages = append(s.messages, m)
	}

	return tgbotapi.Message{}, nil
}

func (s *recordingSender) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (s *recordingSender) sent() []tgbotapi.MessageConfig {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]tgbotapi.MessageConfig(nil), s.messages...)
}

type fakePipeline struct {
	result domain.SummaryResult
	err    error
	calls  []domain.Request
}

func (p *fakePipeline) Run(_ context.Context, req domain.Request) (domain.SummaryResult, error) {
	p.calls = append(p.calls, req)

	return p.result, p.err
}

func newTestBot(t *testing.T, p Pipeline) (*Bot, *recordingSender) {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sender := &recordingSender{}
	rl := ratelimiter.New(sender, ratelimiter.Rates{}, log)
	t.Cleanup(rl.Stop)

	return &Bot{
		rateLimiter: rl,
		pipeline:    p,
		apiKey:      "operator-key",
		maxWords:    300,
		log:         log,
	}, sender
}

func textMessage(text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: 7},
		Chat:      &tgbotapi.Chat{ID: 7, Type: "private"},
		Text:      text,
	}
}

func TestFirstLink(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"bare link", "https://youtu.be/dQw4w9WgXcQ", "https://youtu.be/dQw4w9WgXcQ"},
		{"link in sentence", "please summarize https://example.com/a?b=1 thanks", "https://example.com/a?b=1"},
		{"first of two", "http://a.example.org and https://b.example.org", "http://a.example.org"},
		{"no scheme", "example.com", ""},
		{"other schemes skipped", "ftp://files.example.org or mailto:me@example.org then https://c.example.org", "https://c.example.org"},
		{"only other schemes", "ftp://files.example.org", ""},
		{"no link", "hello there", ""},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, firstLink(test.text))
		})
	}
}

func TestUpdateBackoffSeconds(t *testing.T) {
	assert.Equal(t, 6, updateBackoffSeconds(3))
	assert.Equal(t, 60, updateBackoffSeconds(48))
	assert.Equal(t, 60, updateBackoffSeconds(60))
}

func TestUserAllowed(t *testing.T) {
	open := &Bot{}
	assert.True(t, open.userAllowed(1))

	closed := &Bot{allowedUsers: []int64{1, 2}}
	assert.True(t, closed.userAllowed(2))
	assert.False(t, closed.userAllowed(3))
}

func TestSummaryRepliesSingleMessage(t *testing.T) {
	replies := summaryReplies(domain.SummaryResult{Title: "Go 1.26", Text: "It is fast. Really!"})

	require.Len(t, replies, 1)
	assert.True(t, replies[0].markdown)
	assert.Equal(t, "*Go 1\\.26*\n\nIt is fast\\. Really\\!", replies[0].text)
}

func TestSummaryRepliesLongTextIsSplitPlain(t *testing.T) {
	text := strings.Repeat("A sentence with dots. ", 400)
	replies := summaryReplies(domain.SummaryResult{Text: text})

	require.Greater(t, len(replies), 1)

	var rebuilt []string
	for _, r := range replies {
		assert.False(t, r.markdown)
		assert.LessOrEqual(t, utf8.RuneCountInString(r.text), markdown.MaxMessageRunes)
		rebuilt = append(rebuilt, r.text)
	}
	assert.Equal(t, strings.Fields(text), strings.Fields(strings.Join(rebuilt, " ")))
}

func TestHandleMessageHelp(t *testing.T) {
	p := &fakePipeline{}
	b, sender := newTestBot(t, p)

	require.NoError(t, b.handleMessage(t.Context(), textMessage("/start")))

	sent := sender.sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, "300 words")
	assert.Empty(t, p.calls)
}

func TestHandleMessageWithoutLink(t *testing.T) {
	p := &fakePipeline{}
	b, sender := newTestBot(t, p)

	require.NoError(t, b.handleMessage(t.Context(), textMessage("what is this")))

	sent := sender.sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, "valid URL")
	assert.Empty(t, p.calls)
}

func TestHandleMessageSummarizesLink(t *testing.T) {
	p := &fakePipeline{result: domain.NewSummaryResult("Short summary.", "gemma-7b-it", "Title")}
	b, sender := newTestBot(t, p)

	require.NoError(t, b.handleMessage(t.Context(), textMessage("look https://example.com/post")))

	require.Len(t, p.calls, 1)
	assert.Equal(t, "https://example.com/post", p.calls[0].URL)
	assert.Equal(t, "operator-key", p.calls[0].APIKey)

	sent := sender.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, tgbotapi.ModeMarkdownV2, sent[0].ParseMode)
	assert.Equal(t, "*Title*\n\nShort summary\\.", sent[0].Text)
}

func TestHandleMessageReportsFailure(t *testing.T) {
	p := &fakePipeline{err: domain.NewContentLoadError(domain.ReasonNoTranscript, "https://youtu.be/dQw4w9WgXcQ", nil)}
	b, sender := newTestBot(t, p)

	require.NoError(t, b.handleMessage(t.Context(), textMessage("https://youtu.be/dQw4w9WgXcQ")))

	sent := sender.sent()
	require.Len(t, sent, 1)
	assert.True(t, strings.HasPrefix(sent[0].Text, "❌ "))
	assert.NotContains(t, sent[0].Text, "operator-key")
}
