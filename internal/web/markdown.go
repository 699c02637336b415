package web

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
)

// renderMarkdown produces HTML for API clients that want formatted output.
// Raw HTML inside the summary is dropped by goldmark's default renderer.
func renderMarkdown(text string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}

	return buf.String(), nil
}
