package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"testing"

	"linkbrief/internal/domain"
	"linkbrief/internal/loader"
	"linkbrief/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLoader struct {
	content domain.ExtractedContent
	err     error
	calls   []string
}

func (l *fakeLoader) Load(_ context.Context, u *url.URL) (domain.ExtractedContent, error) {
	l.calls = append(l.calls, u.String())

	return l.content, l.err
}

type fakeSummarizer struct {
	result domain.SummaryResult
	err    error
	calls  int
}

func (s *fakeSummarizer) Summarize(
	_ context.Context,
	_ domain.ExtractedContent,
	_ string,
) (domain.SummaryResult, error) {
	s.calls++
	if s.err != nil {
		return domain.SummaryResult{}, s.err
	}

	return s.result, nil
}

type fixture struct {
	video      *fakeLoader
	website    *fakeLoader
	summarizer *fakeSummarizer
	metrics    *metrics.Metrics
	logs       *bytes.Buffer
	pipeline   *Pipeline
}

func newFixture() *fixture {
	f := &fixture{
		video: &fakeLoader{content: domain.ExtractedContent{
			Kind:     domain.SourceVideo,
			Segments: []domain.Segment{{Text: "transcript line"}},
			Metadata: domain.Metadata{Title: "Video title"},
		}},
		website: &fakeLoader{content: domain.ExtractedContent{
			Kind:     domain.SourceWebsite,
			Segments: []domain.Segment{{Text: "article text"}},
		}},
		summarizer: &fakeSummarizer{result: domain.NewSummaryResult("A summary.", "gemma-7b-it", "")},
		metrics:    metrics.New(),
		logs:       &bytes.Buffer{},
	}

	log := slog.New(slog.NewJSONHandler(f.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	registry := loader.NewRegistry(map[domain.SourceKind]loader.Loader{
		domain.SourceVideo:   f.video,
		domain.SourceWebsite: f.website,
	})
	f.pipeline = New(registry, f.summarizer, f.metrics, log)

	return f
}

func TestRunVideo(t *testing.T) {
	f := newFixture()

	result, err := f.pipeline.Run(t.Context(), domain.Request{
		URL:    "https://youtu.be/dQw4w9WgXcQ",
		APIKey: "gsk_secret",
	})
	require.NoError(t, err)

	assert.Equal(t, "A summary.", result.Text)
	assert.Equal(t, "Video title", result.Title)
	assert.Equal(t, []string{"https://youtu.be/dQw4w9WgXcQ"}, f.video.calls)
	assert.Empty(t, f.website.calls)
	assert.Equal(t, 1, f.summarizer.calls)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.Requests.WithLabelValues("video", "ok")), 0)
}

func TestRunWebsite(t *testing.T) {
	f := newFixture()

	_, err := f.pipeline.Run(t.Context(), domain.Request{URL: "https://example.com/a", APIKey: "key"})
	require.NoError(t, err)

	assert.Empty(t, f.video.calls)
	assert.Equal(t, []string{"https://example.com/a"}, f.website.calls)
}

func TestRunMissingCredentialMakesNoCalls(t *testing.T) {
	f := newFixture()

	_, err := f.pipeline.Run(t.Context(), domain.Request{URL: "not a url", APIKey: "  "})

	require.ErrorIs(t, err, domain.ErrMissingCredential)
	assert.Empty(t, f.video.calls)
	assert.Empty(t, f.website.calls)
	assert.Zero(t, f.summarizer.calls)
}

func TestRunInvalidURLMakesNoCalls(t *testing.T) {
	f := newFixture()

	_, err := f.pipeline.Run(t.Context(), domain.Request{URL: "youtube", APIKey: "key"})

	require.ErrorIs(t, err, domain.ErrInvalidURL)
	assert.Empty(t, f.video.calls)
	assert.Empty(t, f.website.calls)
	assert.Zero(t, f.summarizer.calls)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.Requests.WithLabelValues("unknown", "invalid_url")), 0)
}

func TestRunBlankContentSkipsSummarizer(t *testing.T) {
	f := newFixture()
	f.website.content = domain.ExtractedContent{Segments: []domain.Segment{{Text: " \n "}}}

	_, err := f.pipeline.Run(t.Context(), domain.Request{URL: "https://example.com", APIKey: "key"})

	require.ErrorIs(t, err, domain.ErrEmptyContent)
	assert.Zero(t, f.summarizer.calls)
}

func TestRunLoadErrorIsPreserved(t *testing.T) {
	f := newFixture()
	f.video.err = domain.NewContentLoadError(domain.ReasonNoTranscript, "https://youtu.be/dQw4w9WgXcQ", nil)

	_, err := f.pipeline.Run(t.Context(), domain.Request{URL: "https://youtu.be/dQw4w9WgXcQ", APIKey: "key"})

	var loadErr *domain.ContentLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, domain.ReasonNoTranscript, loadErr.Reason)
	assert.Zero(t, f.summarizer.calls)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.Requests.WithLabelValues("video", "content_load")), 0)
}

func TestRunSummarizerErrorIsPreserved(t *testing.T) {
	f := newFixture()
	f.summarizer.err = errors.Join(domain.ErrAuthentication, errors.New("401"))

	_, err := f.pipeline.Run(t.Context(), domain.Request{URL: "https://example.com", APIKey: "key"})

	require.ErrorIs(t, err, domain.ErrAuthentication)
}

func TestRunNeverLogsAPIKey(t *testing.T) {
	f := newFixture()
	f.summarizer.err = &domain.UpstreamError{Status: 500, Err: errors.New("boom")}

	_, _ = f.pipeline.Run(t.Context(), domain.Request{URL: "https://example.com", APIKey: "gsk_very_secret"})
	_, _ = f.pipeline.Run(t.Context(), domain.Request{URL: "https://youtu.be/dQw4w9WgXcQ", APIKey: "gsk_very_secret"})

	require.NotEmpty(t, f.logs.String())
	assert.False(t, strings.Contains(f.logs.String(), "gsk_very_secret"))
}
