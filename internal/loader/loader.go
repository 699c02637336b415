package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"linkbrief/internal/domain"
)

const (
	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 13_5_1) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/116.0.0.0 Safari/537.36"

	acceptHTML     = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptLanguage = "en-US,en;q=0.9"

	DefaultClientTimeout = 20 * time.Second
)

// Loader turns a classified URL into plain text.
type Loader interface {
	Load(ctx context.Context, u *url.URL) (domain.ExtractedContent, error)
}

// Registry dispatches a source kind to its loader.
type Registry struct {
	loaders map[domain.SourceKind]Loader
}

func NewRegistry(loaders map[domain.SourceKind]Loader) *Registry {
	copied := make(map[domain.SourceKind]Loader, len(loaders))
	for kind, l := range loaders {
		copied[kind] = l
	}

	return &Registry{loaders: copied}
}

// NewDefaultRegistry wires the YouTube and website loaders over one HTTP client.
func NewDefaultRegistry(client *http.Client, log *slog.Logger) *Registry {
	if client == nil {
		client = &http.Client{Timeout: DefaultClientTimeout}
	}

	return NewRegistry(map[domain.SourceKind]Loader{
		domain.SourceVideo:   NewYouTubeLoader(client, log),
		domain.SourceWebsite: NewWebsiteLoader(client, log),
	})
}

func (r *Registry) For(kind domain.SourceKind) (Loader, error) {
	l, ok := r.loaders[kind]
	if !ok || l == nil {
		return nil, domain.NewContentLoadError(
			domain.ReasonUnsupported,
			"",
			fmt.Errorf("no loader for source kind %s", kind),
		)
	}

	return l, nil
}

func newGetRequest(ctx context.Context, rawURL string, accept string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", acceptLanguage)

	return req, nil
}

// statusError classifies a non-2xx response.
func statusError(rawURL string, statusCode int) error {
	err := fmt.Errorf("unexpected status: %d", statusCode)

	switch statusCode {
	case http.StatusUnauthorized,
		http.StatusForbidden,
		http.StatusTooManyRequests,
		http.StatusUnavailableForLegalReasons:
		return domain.NewContentLoadError(domain.ReasonBlocked, rawURL, err)
	default:
		return domain.NewContentLoadError(domain.ReasonNetwork, rawURL, err)
	}
}

// transportError wraps a failed round trip unless it is already classified.
func transportError(rawURL string, err error) error {
	var loadErr *domain.ContentLoadError
	if errors.As(err, &loadErr) {
		return err
	}

	return domain.NewContentLoadError(domain.ReasonNetwork, rawURL, fmt.Errorf("do request: %w", err))
}
