package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidURL        = errors.New("invalid URL")
	ErrMissingCredential = errors.New("missing API credential")
	ErrAuthentication    = errors.New("API credential rejected")
	ErrEmptyContent      = errors.New("extracted content is empty")
)

type LoadReason string

const (
	ReasonNetwork      LoadReason = "network"
	ReasonBlocked      LoadReason = "blocked"
	ReasonNoTranscript LoadReason = "no-transcript"
	ReasonUnsupported  LoadReason = "unsupported"
)

func (r LoadReason) describe() string {
	switch r {
	case ReasonNetwork:
		return "the source could not be reached"
	case ReasonBlocked:
		return "the source refused automated access"
	case ReasonNoTranscript:
		return "this video has no transcript available"
	case ReasonUnsupported:
		return "no readable text was found at this URL"
	default:
		return string(r)
	}
}

// ContentLoadError is returned by loaders when a URL cannot be turned into text.
type ContentLoadError struct {
	Reason LoadReason
	URL    string
	Err    error
}

func NewContentLoadError(reason LoadReason, rawURL string, err error) *ContentLoadError {
	return &ContentLoadError{Reason: reason, URL: rawURL, Err: err}
}

func (e *ContentLoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("load content (reason = %s, URL = %s)", e.Reason, e.URL)
	}

	return fmt.Sprintf("load content (reason = %s, URL = %s): %v", e.Reason, e.URL, e.Err)
}

func (e *ContentLoadError) Unwrap() error {
	return e.Err
}

// UpstreamError covers every completion API failure other than a rejected credential.
type UpstreamError struct {
	// Status is the HTTP status of the API response, zero when none was received.
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("completion API (status = %d): %v", e.Status, e.Err)
	}

	return fmt.Sprintf("completion API: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// ErrorCode gives a stable machine-readable name for err.
func ErrorCode(err error) string {
	var loadErr *ContentLoadError
	var upstreamErr *UpstreamError

	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidURL):
		return "invalid_url"
	case errors.Is(err, ErrMissingCredential):
		return "missing_credential"
	case errors.Is(err, ErrEmptyContent):
		return "empty_content"
	case errors.Is(err, ErrAuthentication):
		return "authentication"
	case errors.As(err, &loadErr):
		return "content_load"
	case errors.As(err, &upstreamErr):
		return "upstream"
	default:
		return "internal"
	}
}

// UserMessage turns err into the text shown to the person who asked for the summary.
func UserMessage(err error) string {
	var loadErr *ContentLoadError
	var upstreamErr *UpstreamError

	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingCredential):
		return "Please provide a valid API key."
	case errors.Is(err, ErrInvalidURL):
		return "Please enter a valid URL. It can be a YouTube URL or a website URL."
	case errors.Is(err, ErrEmptyContent):
		return "The source contains no text to summarize."
	case errors.Is(err, ErrAuthentication):
		return "The API key was rejected by the completion service. Check the key and try again."
	case errors.As(err, &loadErr):
		if loadErr.Err != nil {
			return fmt.Sprintf("Failed to load content: %s (%v).", loadErr.Reason.describe(), loadErr.Err)
		}
		return fmt.Sprintf("Failed to load content: %s.", loadErr.Reason.describe())
	case errors.As(err, &upstreamErr):
		return fmt.Sprintf("Failed to generate summary: %v.", upstreamErr.Err)
	default:
		return fmt.Sprintf("Something went wrong: %v.", err)
	}
}
