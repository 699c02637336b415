package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"linkbrief/internal/domain"
	"linkbrief/internal/metrics"

	"github.com/gin-gonic/gin"
)

const (
	readHeaderTimeout = 10 * time.Second
	// The whole fetch-and-summarize round trip happens inside one request.
	writeTimeout = 3 * time.Minute
	idleTimeout  = 2 * time.Minute

	indexTemplate = "index.html"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Pipeline is the summarization use case the server exposes.
type Pipeline interface {
	Run(ctx context.Context, req domain.Request) (domain.SummaryResult, error)
}

type Options struct {
	Addr     string
	MaxWords int
}

type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	pipeline   Pipeline
	metrics    *metrics.Metrics
	maxWords   int
	log        *slog.Logger
}

func New(opts Options, p Pipeline, m *metrics.Metrics, log *slog.Logger) (*Server, error) {
	if p == nil {
		return nil, errors.New("pipeline is required")
	}

	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	engine := gin.New()
	engine.SetHTMLTemplate(tmpl)

	s := &Server{
		engine:   engine,
		pipeline: p,
		metrics:  m,
		maxWords: opts.MaxWords,
		log:      log,
	}

	engine.Use(s.recoveryMiddleware(), requestIDMiddleware(), s.loggerMiddleware())
	s.routes()

	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           engine,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	return s, nil
}

func (s *Server) routes() {
	s.engine.GET("/", s.handleIndex)
	s.engine.POST("/", s.handleSummarizeForm)
	s.engine.POST("/api/summaries", s.handleSummarizeJSON)
	s.engine.GET("/healthz", s.handleHealth)

	if s.metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start blocks until the server stops. A graceful shutdown is not an error.
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}
