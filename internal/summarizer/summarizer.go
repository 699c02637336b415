package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"unicode/utf8"

	"linkbrief/internal/domain"
)

const (
	ProviderGroq      = "groq"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	GroqBaseURL = "https://api.groq.com/openai/v1/"

	DefaultModel           = "gemma-7b-it"
	DefaultOpenAIModel     = "gpt-4o-mini"
	DefaultAnthropicModel  = "claude-3-5-haiku-latest"
	DefaultMaxWords        = 300
	DefaultMaxContentChars = 24000
	DefaultPromptTemplate  = `Provide a summary of the following content in {{.MaxWords}} words: Content:{{.Text}}`

	truncationMarker = "..."
)

// Config is fixed at process start and shared read-only by every request.
type Config struct {
	Provider        string
	Model           string
	BaseURL         string
	MaxWords        int
	PromptTemplate  string
	MaxContentChars int
}

// Summarizer sends extracted content to a completion API and returns its summary.
type Summarizer interface {
	Summarize(ctx context.Context, content domain.ExtractedContent, apiKey string) (domain.SummaryResult, error)
}

// New picks the provider named in cfg.
func New(cfg Config) (Summarizer, error) {
	prompt, err := NewPrompt(cfg)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderGroq:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = GroqBaseURL
		}
		return NewOpenAISummarizer(modelOrDefault(cfg.Model, DefaultModel), baseURL, prompt), nil
	case ProviderOpenAI:
		return NewOpenAISummarizer(modelOrDefault(cfg.Model, DefaultOpenAIModel), cfg.BaseURL, prompt), nil
	case ProviderAnthropic:
		return NewAnthropicSummarizer(modelOrDefault(cfg.Model, DefaultAnthropicModel), cfg.BaseURL, prompt), nil
	default:
		return nil, fmt.Errorf("provider %q is not supported", cfg.Provider)
	}
}

func modelOrDefault(model, fallback string) string {
	if model = strings.TrimSpace(model); model != "" {
		return model
	}

	return fallback
}

// Prompt renders the instruction template around extracted text.
type Prompt struct {
	tmpl            *template.Template
	maxWords        int
	maxContentChars int
}

type promptData struct {
	MaxWords  int
	Text      string
	Title     string
	SourceURL string
}

func NewPrompt(cfg Config) (*Prompt, error) {
	if cfg.MaxWords <= 0 {
		return nil, fmt.Errorf("max words must be positive (got %d)", cfg.MaxWords)
	}

	if cfg.MaxContentChars <= 0 {
		return nil, fmt.Errorf("max content chars must be positive (got %d)", cfg.MaxContentChars)
	}

	raw := cfg.PromptTemplate
	if strings.TrimSpace(raw) == "" {
		raw = DefaultPromptTemplate
	}

	if !strings.Contains(raw, ".Text") {
		return nil, errors.New("prompt template must reference .Text")
	}

	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template: %w", err)
	}

	return &Prompt{
		tmpl:            tmpl,
		maxWords:        cfg.MaxWords,
		maxContentChars: cfg.MaxContentChars,
	}, nil
}

// Build fails with domain.ErrEmptyContent when there is nothing to summarize.
func (p *Prompt) Build(content domain.ExtractedContent) (string, error) {
	text := content.Text()
	if strings.TrimSpace(text) == "" {
		return "", domain.ErrEmptyContent
	}

	var b strings.Builder

	err := p.tmpl.Execute(&b, promptData{
		MaxWords:  p.maxWords,
		Text:      truncateRunes(text, p.maxContentChars),
		Title:     content.Metadata.Title,
		SourceURL: content.SourceURL,
	})
	if err != nil {
		return "", fmt.Errorf("execute prompt template: %w", err)
	}

	return b.String(), nil
}

// MaxOutputTokens leaves room for roughly two tokens per requested word.
func (p *Prompt) MaxOutputTokens() int64 {
	return int64(p.maxWords)*2 + 256
}

func truncateRunes(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}

	runes := []rune(text)

	return strings.TrimSpace(string(runes[:limit])) + truncationMarker
}

// checkInput runs the checks that must pass before any network call.
func checkInput(content domain.ExtractedContent, apiKey string) error {
	if content.IsBlank() {
		return domain.ErrEmptyContent
	}

	if strings.TrimSpace(apiKey) == "" {
		return domain.ErrMissingCredential
	}

	return nil
}

// classifyStatus maps an API status code onto the error taxonomy.
func classifyStatus(status int, err error) error {
	switch status {
	case 401, 403:
		return fmt.Errorf("%w: %w", domain.ErrAuthentication, err)
	default:
		return &domain.UpstreamError{Status: status, Err: err}
	}
}
