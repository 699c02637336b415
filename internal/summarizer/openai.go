package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"linkbrief/internal/domain"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAISummarizer talks to any OpenAI-compatible chat completions endpoint (Groq, OpenAI).
type OpenAISummarizer struct {
	model   string
	baseURL string
	prompt  *Prompt
}

func NewOpenAISummarizer(model, baseURL string, prompt *Prompt) *OpenAISummarizer {
	return &OpenAISummarizer{
		model:   model,
		baseURL: baseURL,
		prompt:  prompt,
	}
}

// Summarize issues exactly one chat completion request authenticated with apiKey.
func (s *OpenAISummarizer) Summarize(
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

	// The key belongs to the caller, so the client lives only for this request.
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(apiKey)),
		option.WithMaxRetries(0),
	}
	if s.baseURL != "" {
		opts = append(opts, option.WithBaseURL(s.baseURL))
	}

	client := openai.NewClient(opts...)

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(userPrompt),
		},
		MaxCompletionTokens: openai.Int(s.prompt.MaxOutputTokens()),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return domain.SummaryResult{}, classifyStatus(apiErr.StatusCode, err)
		}

		return domain.SummaryResult{}, &domain.UpstreamError{Err: err}
	}

	if len(resp.Choices) == 0 {
		return domain.SummaryResult{}, &domain.UpstreamError{Err: errors.New("response has no choices")}
	}

	text := resp.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return domain.SummaryResult{}, &domain.UpstreamError{
			Err: fmt.Errorf("response text is empty (finish reason = %s)", resp.Choices[0].FinishReason),
		}
	}

	model := resp.Model
	if model == "" {
		model = s.model
	}

	return domain.NewSummaryResult(text, model, content.Metadata.Title), nil
}
