package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"linkbrief/internal/domain"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicSummarizer calls the Anthropic Messages API.
type AnthropicSummarizer struct {
	model   string
	baseURL string
	prompt  *Prompt
}

func NewAnthropicSummarizer(model, baseURL string, prompt *Prompt) *AnthropicSummarizer {
	return &AnthropicSummarizer{
		model:   model,
		baseURL: baseURL,
		prompt:  prompt,
	}
}

func (s *AnthropicSummarizer) Summarize(
	ctx context.Context,
	content domain.ExtractedContent,
	apiKey string,
) (domain.SummaryResult, error) {
	if err := checkInput(content, apiKey); err != nil {
		return domain.SummaryResult{}, err
	}

	userPrompt, err := s.prompt.Build(content)
	if err != nil {
		return domain.SummaryResult{}, err
	}

	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(apiKey)),
		option.WithMaxRetries(0),
	}
	if s.baseURL != "" {
		opts = append(opts, option.WithBaseURL(s.baseURL))
	}

	client := anthropic.NewClient(opts...)

	msg, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: s.prompt.MaxOutputTokens(),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return domain.SummaryResult{}, classifyStatus(apiErr.StatusCode, err)
		}

		return domain.SummaryResult{}, &domain.UpstreamError{Err: err}
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}

	text := b.String()
	if strings.TrimSpace(text) == "" {
		return domain.SummaryResult{}, &domain.UpstreamError{
			Err: fmt.Errorf("response text is empty (stop reason = %s)", msg.StopReason),
		}
	}

	model := string(msg.Model)
	if model == "" {
		model = s.model
	}

	return domain.NewSummaryResult(text, model, content.Metadata.Title), nil
}
