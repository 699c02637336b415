package domain

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceKindString(t *testing.T) {
	assert.Equal(t, "video", SourceVideo.String())
	assert.Equal(t, "website", SourceWebsite.String())
	assert.Equal(t, "unknown", SourceKind(42).String())
}

func TestExtractedContentText(t *testing.T) {
	tests := []struct {
		name      string
		segments  []Segment
		want      string
		wantBlank bool
	}{
		{"no segments", nil, "", true},
		{"only whitespace", []Segment{{" "}, {"\n\t"}}, "", true},
		{"skips blanks", []Segment{{" first "}, {""}, {"second"}}, "first\n\nsecond", false},
		{"single", []Segment{{"only one"}}, "only one", false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			content := ExtractedContent{Segments: test.segments}

			assert.Equal(t, test.want, content.Text())
			assert.Equal(t, test.wantBlank, content.IsBlank())
		})
	}
}

func TestNewSummaryResultCountsWords(t *testing.T) {
	result := NewSummaryResult("  one two\nthree  ", "model", "title")

	assert.Equal(t, "  one two\nthree  ", result.Text)
	assert.Equal(t, 3, result.WordCount)
	assert.Equal(t, "model", result.Model)
	assert.Equal(t, "title", result.Title)
}

func TestRequestLogValueHidesKey(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	log.Info("test", "request", Request{URL: "https://example.com", APIKey: "gsk_secret"})

	assert.NotContains(t, buf.String(), "gsk_secret")
	assert.Contains(t, buf.String(), `"apiKeySet":true`)
	assert.Contains(t, buf.String(), `"url":"https://example.com"`)
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "ok"},
		{"invalid url", fmt.Errorf("%w: empty", ErrInvalidURL), "invalid_url"},
		{"missing credential", ErrMissingCredential, "missing_credential"},
		{"empty content", fmt.Errorf("summarize: %w", ErrEmptyContent), "empty_content"},
		{"authentication", fmt.Errorf("%w: %w", ErrAuthentication, errors.New("401")), "authentication"},
		{"content load", fmt.Errorf("load: %w", NewContentLoadError(ReasonBlocked, "u", nil)), "content_load"},
		{"upstream", &UpstreamError{Status: 500, Err: errors.New("boom")}, "upstream"},
		{"other", errors.New("boom"), "internal"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, ErrorCode(test.err))
		})
	}
}

func TestUserMessagesAreDistinct(t *testing.T) {
	errs := []error{
		ErrInvalidURL,
		ErrMissingCredential,
		ErrEmptyContent,
		ErrAuthentication,
		NewContentLoadError(ReasonNetwork, "u", nil),
		NewContentLoadError(ReasonBlocked, "u", nil),
		NewContentLoadError(ReasonNoTranscript, "u", nil),
		&UpstreamError{Status: 502, Err: errors.New("bad gateway")},
	}

	seen := make(map[string]error)
	for _, err := range errs {
		msg := UserMessage(err)
		require.NotEmpty(t, msg)

		if prev, ok := seen[msg]; ok {
			t.Errorf("%v and %v share the message %q", prev, err, msg)
		}
		seen[msg] = err
	}
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "Please provide a valid API key.", UserMessage(ErrMissingCredential))
	assert.Equal(t,
		"Please enter a valid URL. It can be a YouTube URL or a website URL.",
		UserMessage(fmt.Errorf("%w: bad", ErrInvalidURL)))
	assert.Equal(t,
		"Failed to load content: this video has no transcript available.",
		UserMessage(NewContentLoadError(ReasonNoTranscript, "u", nil)))
	assert.Equal(t,
		"Failed to load content: the source could not be reached (dial tcp: refused).",
		UserMessage(NewContentLoadError(ReasonNetwork, "u", errors.New("dial tcp: refused"))))
	assert.Empty(t, UserMessage(nil))
}

func TestContentLoadErrorUnwrap(t *testing.T) {
	cause := errors.New("reset")
	err := fmt.Errorf("load video: %w", NewContentLoadError(ReasonNetwork, "https://youtu.be/x", cause))

	var loadErr *ContentLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, ReasonNetwork, loadErr.Reason)
	assert.ErrorIs(t, err, cause)
}
