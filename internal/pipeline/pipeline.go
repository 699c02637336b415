package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"linkbrief/internal/domain"
	"linkbrief/internal/loader"
	"linkbrief/internal/metrics"
	"linkbrief/internal/source"
	"linkbrief/internal/summarizer"
)

type Stage string

const (
	StageIdle        Stage = "idle"
	StageValidating  Stage = "validating"
	StageLoading     Stage = "loading"
	StageSummarizing Stage = "summarizing"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
)

// Pipeline runs one request from validation to summary. It holds no per-request state,
// so a single instance serves concurrent callers.
type Pipeline struct {
	loaders    *loader.Registry
	summarizer summarizer.Summarizer
	metrics    *metrics.Metrics
	log        *slog.Logger
}

func New(
	loaders *loader.Registry,
	s summarizer.Summarizer,
	m *metrics.Metrics,
	log *slog.Logger,
) *Pipeline {
	return &Pipeline{
		loaders:    loaders,
		summarizer: s,
		metrics:    m,
		log:        log,
	}
}

// Run validates req, loads the content behind its URL and summarizes it.
func (p *Pipeline) Run(ctx context.Context, req domain.Request) (domain.SummaryResult, error) {
	start := time.Now()
	kind := "unknown"

	result, err := p.run(ctx, req, &kind)

	outcome := domain.ErrorCode(err)
	p.metrics.CountRequest(kind, outcome)

	if err != nil {
		p.transition(ctx, StageFailed, "request", req, "outcome", outcome)
		p.log.WarnContext(ctx, "Failed to summarize",
			"error", err,
			"request", req,
			"kind", kind,
			"outcome", outcome,
			"elapsedSeconds", time.Since(start).Seconds())

		return domain.SummaryResult{}, err
	}

	p.transition(ctx, StageDone, "request", req)
	p.log.InfoContext(ctx, "Summary is ready",
		"request", req,
		"kind", kind,
		"model", result.Model,
		"wordCount", result.WordCount,
		"elapsedSeconds", time.Since(start).Seconds())

	return result, nil
}

func (p *Pipeline) run(ctx context.Context, req domain.Request, kind *string) (domain.SummaryResult, error) {
	p.transition(ctx, StageValidating, "request", req)
	stageStart := time.Now()

	if strings.TrimSpace(req.APIKey) == "" {
		return domain.SummaryResult{}, domain.ErrMissingCredential
	}

	sourceKind, u, err := source.Classify(req.URL)
	if err != nil {
		return domain.SummaryResult{}, err
	}
	*kind = sourceKind.String()
	p.metrics.ObserveStage(string(StageValidating), time.Since(stageStart))

	p.transition(ctx, StageLoading, "kind", *kind)
	stageStart = time.Now()

	l, err := p.loaders.For(sourceKind)
	if err != nil {
		return domain.SummaryResult{}, err
	}

	content, err := l.Load(ctx, u)
	if err != nil {
		return domain.SummaryResult{}, fmt.Errorf("load %s: %w", *kind, err)
	}
	p.metrics.ObserveStage(string(StageLoading), time.Since(stageStart))

	if content.IsBlank() {
		return domain.SummaryResult{}, domain.ErrEmptyContent
	}

	p.transition(ctx, StageSummarizing,
		"kind", *kind,
		"title", content.Metadata.Title,
		"segmentCount", len(content.Segments))
	stageStart = time.Now()

	result, err := p.summarizer.Summarize(ctx, content, req.APIKey)
	if err != nil {
		return domain.SummaryResult{}, fmt.Errorf("summarize: %w", err)
	}
	p.metrics.ObserveStage(string(StageSummarizing), time.Since(stageStart))

	if result.Title == "" {
		result.Title = content.Metadata.Title
	}

	return result, nil
}

func (p *Pipeline) transition(ctx context.Context, stage Stage, args ...any) {
	p.log.DebugContext(ctx, "Pipeline stage", append([]any{"stage", string(stage)}, args...)...)
}
