package web

import (
	"context"
	"net/http"
	"strings"

	"linkbrief/internal/domain"
	"linkbrief/internal/source"

	"github.com/gin-gonic/gin"
)

type pageData struct {
	URL       string
	MaxWords  int
	Summary   string
	Title     string
	Model     string
	WordCount int
	Error     string
}

type summarizeRequest struct {
	URL    string `json:"url"`
	APIKey string `json:"api_key"` //nolint:gosec // Request payload, never echoed back.
}

type summarizeResponse struct {
	Summary   string `json:"summary"`
	WordCount int    `json:"word_count"`
	Model     string `json:"model"`
	Title     string `json:"title,omitempty"`
	HTML      string `json:"html"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (s *Server) handleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, indexTemplate, pageData{MaxWords: s.maxWords})
}

func (s *Server) handleSummarizeForm(c *gin.Context) {
	req := domain.Request{
		URL:    strings.TrimSpace(c.PostForm("url")),
		APIKey: c.PostForm("api_key"),
	}

	// The key is deliberately left out of the page data so it is never rendered back.
	data := pageData{URL: req.URL, MaxWords: s.maxWords}

	result, err := s.summarize(c.Request.Context(), req)
	if err != nil {
		data.Error = domain.UserMessage(err)
		c.HTML(statusFor(err), indexTemplate, data)

		return
	}

	data.Summary = result.Text
	data.Title = result.Title
	data.Model = result.Model
	data.WordCount = result.WordCount

	c.HTML(http.StatusOK, indexTemplate, data)
}

func (s *Server) handleSummarizeJSON(c *gin.Context) {
	var body summarizeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error: "Request body must be a JSON object with url and api_key.",
			Code:  "bad_request",
		})

		return
	}

	result, err := s.summarize(c.Request.Context(), domain.Request{
		URL:    strings.TrimSpace(body.URL),
		APIKey: body.APIKey,
	})
	if err != nil {
		c.JSON(statusFor(err), errorResponse{
			Error: domain.UserMessage(err),
			Code:  domain.ErrorCode(err),
		})

		return
	}

	rendered, err := renderMarkdown(result.Text)
	if err != nil {
		s.log.WarnContext(c.Request.Context(), "Failed to render summary markdown",
			"error", err,
			"requestID", requestID(c))
	}

	c.JSON(http.StatusOK, summarizeResponse{
		Summary:   result.Text,
		WordCount: result.WordCount,
		Model:     result.Model,
		Title:     result.Title,
		HTML:      rendered,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// summarize checks both inputs locally before handing the request to the pipeline.
func (s *Server) summarize(ctx context.Context, req domain.Request) (domain.SummaryResult, error) {
	if strings.TrimSpace(req.APIKey) == "" {
		return domain.SummaryResult{}, domain.ErrMissingCredential
	}

	if _, err := source.Validate(req.URL); err != nil {
		return domain.SummaryResult{}, err
	}

	return s.pipeline.Run(ctx, req)
}

func statusFor(err error) int {
	switch domain.ErrorCode(err) {
	case "invalid_url", "missing_credential":
		return http.StatusBadRequest
	case "empty_content":
		return http.StatusUnprocessableEntity
	case "authentication":
		return http.StatusUnauthorized
	case "content_load", "upstream":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
