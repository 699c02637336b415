package source

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"linkbrief/internal/domain"

	"mvdan.cc/xurls/v2"
)

const youtubeVideoIDLength = 11

var (
	//nolint:gochecknoglobals // Compiled once, read-only.
	strictURLRe = xurls.Strict()

	youtubeIDRe = regexp.MustCompile(`^[\w-]{11}$`)

	//nolint:gochecknoglobals // Lookup table meant to be immutable.
	videoHosts = map[string]struct{}{
		"youtube.com":          {},
		"youtu.be":             {},
		"youtube-nocookie.com": {},
	}
)

// Validate checks that raw is a syntactically valid http(s) URL without touching the network.
func Validate(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: URL is empty", domain.ErrInvalidURL)
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidURL, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", domain.ErrInvalidURL, u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("%w: host is missing", domain.ErrInvalidURL)
	}

	if host != "localhost" && !strings.Contains(host, ".") {
		return nil, fmt.Errorf("%w: host %q is not a domain", domain.ErrInvalidURL, host)
	}

	if strings.ContainsFunc(trimmed, unicode.IsSpace) {
		return nil, fmt.Errorf("%w: URL contains whitespace", domain.ErrInvalidURL)
	}

	// xurls drops trailing punctuation it would treat as prose, so only the start is anchored.
	if loc := strictURLRe.FindStringIndex(trimmed); loc == nil || loc[0] != 0 {
		return nil, fmt.Errorf("%w: malformed URL", domain.ErrInvalidURL)
	}

	return u, nil
}

// Classify validates raw and decides which loader should handle it.
func Classify(raw string) (domain.SourceKind, *url.URL, error) {
	u, err := Validate(raw)
	if err != nil {
		return domain.SourceWebsite, nil, err
	}

	if isVideoHost(u.Hostname()) {
		return domain.SourceVideo, u, nil
	}

	return domain.SourceWebsite, u, nil
}

// VideoID extracts the YouTube video id from the supported URL shapes.
func VideoID(u *url.URL) (string, bool) {
	if u == nil || !isVideoHost(u.Hostname()) {
		return "", false
	}

	host := normalizeHost(u.Hostname())
	path := strings.Trim(u.Path, "/")
	parts := strings.Split(path, "/")

	var id string

	switch {
	case host == "youtu.be":
		id = parts[0]
	case path == "watch":
		id = u.Query().Get("v")
	case len(parts) >= 2 && isEmbedPrefix(parts[0]):
		id = parts[1]
	}

	id = strings.TrimSpace(id)
	if len(id) != youtubeVideoIDLength || !youtubeIDRe.MatchString(id) {
		return "", false
	}

	return id, true
}

func isEmbedPrefix(part string) bool {
	switch part {
	case "shorts", "embed", "live", "v":
		return true
	default:
		return false
	}
}

func isVideoHost(host string) bool {
	_, ok := videoHosts[normalizeHost(host)]
	return ok
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))

	for _, prefix := range []string{"www.", "m.", "music."} {
		if trimmed, ok := strings.CutPrefix(host, prefix); ok {
			return trimmed
		}
	}

	return host
}
