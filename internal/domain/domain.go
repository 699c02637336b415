package domain

import (
	"log/slog"
	"strings"
	"time"
)

type SourceKind int

const (
	SourceWebsite SourceKind = iota
	SourceVideo
)

func (k SourceKind) String() string {
	switch k {
	case SourceVideo:
		return "video"
	case SourceWebsite:
		return "website"
	default:
		return "unknown"
	}
}

// Request is a single summarization ask coming from a front.
type Request struct {
	URL string
	// APIKey authenticates against the completion API. It is never logged.
	APIKey string
}

// LogValue keeps the credential out of structured logs.
func (r Request) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("url", r.URL),
		slog.Bool("apiKeySet", strings.TrimSpace(r.APIKey) != ""),
	)
}

type Segment struct {
	Text string
}

type Metadata struct {
	Title  string
	Author string
	// Length is the playback length for videos, zero otherwise.
	Length time.Duration
}

// ExtractedContent is what a loader pulls out of a URL.
type ExtractedContent struct {
	Kind      SourceKind
	SourceURL string
	Segments  []Segment
	Metadata  Metadata
}

// Text joins non-blank segments with a blank line between them.
func (c ExtractedContent) Text() string {
	var b strings.Builder

	for _, segment := range c.Segments {
		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}

		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
	}

	return b.String()
}

func (c ExtractedContent) IsBlank() bool {
	return c.Text() == ""
}

type SummaryResult struct {
	Text      string
	WordCount int
	Model     string
	Title     string
}

func NewSummaryResult(text, model, title string) SummaryResult {
	return SummaryResult{
		Text:      text,
		WordCount: len(strings.Fields(text)),
		Model:     model,
		Title:     title,
	}
}
