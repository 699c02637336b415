package loader

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"linkbrief/internal/domain"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html/charset"
)

const (
	websiteMaxBytes = 5 << 20
	acceptWebsite   = acceptHTML + ",application/rss+xml,application/atom+xml,application/feed+json"

	noiseSelectors = "script, style, noscript, iframe, svg, template, " +
		"header, footer, nav, aside, form, " +
		"[role=navigation], [role=banner], [role=contentinfo]"
	contentSelectors = "article, main, [role=main], .content, .post-content, .article-content, #content"
)

var (
	blankLinesRe = regexp.MustCompile(`\n{2,}`)
	spacesRe     = regexp.MustCompile(`[ \t\f\r]+`)

	markdownEscapeRe = regexp.MustCompile(`\\([\\` + "`" + `*_{}\[\]()#+\-.!|<>~=])`)
)

// WebsiteLoader fetches a page and extracts its readable text. Feed documents are
// recognised and flattened item by item.
type WebsiteLoader struct {
	client     *http.Client
	feedParser *gofeed.Parser
	log        *slog.Logger
}

func NewWebsiteLoader(client *http.Client, log *slog.Logger) *WebsiteLoader {
	return &WebsiteLoader{
		client:     client,
		feedParser: gofeed.NewParser(),
		log:        log,
	}
}

func (l *WebsiteLoader) Load(ctx context.Context, u *url.URL) (domain.ExtractedContent, error) {
	rawURL := u.String()

	body, contentType, err := l.fetch(ctx, rawURL)
	if err != nil {
		return domain.ExtractedContent{}, err
	}

	var content domain.ExtractedContent

	if feedType := gofeed.DetectFeedType(bytes.NewReader(body)); feedType != gofeed.FeedTypeUnknown {
		content, err = l.extractFeed(body)
		if err != nil {
			l.log.WarnContext(ctx, "Failed to parse feed, falling back to HTML extraction",
				"error", err,
				"url", rawURL,
				"contentType", contentType)
		}
	}

	if len(content.Segments) == 0 {
		content = l.extractPage(ctx, body, u)
	}

	content.Kind = domain.SourceWebsite
	content.SourceURL = rawURL

	if content.IsBlank() {
		return domain.ExtractedContent{}, domain.NewContentLoadError(
			domain.ReasonUnsupported,
			rawURL,
			fmt.Errorf("no text extracted (content type = %s)", contentType),
		)
	}

	l.log.DebugContext(ctx, "Page is loaded",
		"url", rawURL,
		"contentType", contentType,
		"title", content.Metadata.Title,
		"segmentCount", len(content.Segments))

	return content, nil
}

func (l *WebsiteLoader) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := newGetRequest(ctx, rawURL, acceptWebsite)
	if err != nil {
		return nil, "", domain.NewContentLoadError(domain.ReasonNetwork, rawURL, err)
	}

	resp, err := l.client.Do(req) //nolint:gosec // User-supplied URL is the whole point
	if err != nil {
		return nil, "", transportError(rawURL, err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			l.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"operation", "fetch",
				"url", rawURL)
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, "", statusError(rawURL, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, websiteMaxBytes))
	if err != nil {
		return nil, "", domain.NewContentLoadError(domain.ReasonNetwork, rawURL, fmt.Errorf("read body: %w", err))
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.TrimSpace(contentType) == "" {
		contentType = http.DetectContentType(raw)
	}

	if !isTextMediaType(contentType) {
		return nil, "", domain.NewContentLoadError(
			domain.ReasonUnsupported,
			rawURL,
			fmt.Errorf("content type %q is not a web page", contentType),
		)
	}

	reader, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return nil, "", domain.NewContentLoadError(domain.ReasonUnsupported, rawURL, fmt.Errorf("detect charset: %w", err))
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", domain.NewContentLoadError(domain.ReasonUnsupported, rawURL, fmt.Errorf("decode body: %w", err))
	}

	return body, contentType, nil
}

// isTextMediaType reports whether contentType names HTML, XML, a feed or plain text.
// An unparsable header is let through and left to extraction.
func isTextMediaType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return true
	}

	switch {
	case strings.HasPrefix(mediaType, "text/"),
		strings.HasSuffix(mediaType, "+xml"),
		strings.HasSuffix(mediaType, "+json"),
		mediaType == "application/xml",
		mediaType == "application/json":
		return true
	default:
		return false
	}
}

func (l *WebsiteLoader) extractFeed(body []byte) (domain.ExtractedContent, error) {
	parsed, err := l.feedParser.Parse(bytes.NewReader(body))
	if err != nil {
		return domain.ExtractedContent{}, fmt.Errorf("parse feed: %w", err)
	}

	segments := make([]domain.Segment, 0, len(parsed.Items))

	for _, item := range parsed.Items {
		if item == nil {
			continue
		}

		itemBody := item.Content
		if strings.TrimSpace(itemBody) == "" {
			itemBody = item.Description
		}

		var b strings.Builder
		if title := strings.TrimSpace(item.Title); title != "" {
			b.WriteString(title)
		}

		if text := htmlToText(itemBody); text != "" {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(text)
		}

		if b.Len() > 0 {
			segments = append(segments, domain.Segment{Text: b.String()})
		}
	}

	var author string
	if len(parsed.Authors) > 0 && parsed.Authors[0] != nil {
		author = strings.TrimSpace(parsed.Authors[0].Name)
	}

	return domain.ExtractedContent{
		Segments: segments,
		Metadata: domain.Metadata{
			Title:  strings.TrimSpace(parsed.Title),
			Author: author,
		},
	}, nil
}

// extractPage runs readability first and falls back to selector-based extraction.
func (l *WebsiteLoader) extractPage(ctx context.Context, body []byte, u *url.URL) domain.ExtractedContent {
	doc, docErr := goquery.NewDocumentFromReader(bytes.NewReader(body))

	var title string
	if docErr == nil {
		title = documentTitle(doc)
	}

	article, err := readability.FromReader(bytes.NewReader(body), u)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		if t := strings.TrimSpace(article.Title); t != "" {
			title = t
		}

		text, convertErr := htmltomarkdown.ConvertString(article.Content)
		if convertErr != nil || strings.TrimSpace(text) == "" {
			text = article.TextContent
		} else {
			text = unescapeMarkdown(text)
		}

		return domain.ExtractedContent{
			Segments: splitParagraphs(text),
			Metadata: domain.Metadata{
				Title:  title,
				Author: strings.TrimSpace(article.Byline),
			},
		}
	}

	if err != nil {
		l.log.DebugContext(ctx, "Readability failed, using selector extraction",
			"error", err,
			"url", u.String())
	}

	if docErr != nil {
		return domain.ExtractedContent{}
	}

	return domain.ExtractedContent{
		Segments: splitParagraphs(selectorText(doc)),
		Metadata: domain.Metadata{Title: title},
	}
}

func documentTitle(doc *goquery.Document) string {
	if content, ok := doc.Find("meta[property='og:title']").Attr("content"); ok {
		if title := strings.TrimSpace(content); title != "" {
			return title
		}
	}

	return strings.TrimSpace(doc.Find("title").First().Text())
}

func selectorText(doc *goquery.Document) string {
	doc.Find(noiseSelectors).Remove()

	selection := doc.Find(contentSelectors).First()
	if selection.Length() == 0 {
		selection = doc.Find("body")
	}

	selection.Find("br").Each(func(_ int, br *goquery.Selection) {
		br.ReplaceWithHtml("\n")
	})
	selection.Find("p, div, li, h1, h2, h3, h4, h5, h6, tr").Each(func(_ int, block *goquery.Selection) {
		block.AppendHtml("\n\n")
	})

	return selection.Text()
}

func htmlToText(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}

	return strings.Join(strings.Fields(doc.Text()), " ")
}

// unescapeMarkdown drops the escaping html-to-markdown adds so the prompt sees the page's own characters.
func unescapeMarkdown(text string) string {
	return html.UnescapeString(markdownEscapeRe.ReplaceAllString(text, "$1"))
}

// splitParagraphs normalises whitespace and turns blank-line separated blocks into segments.
func splitParagraphs(text string) []domain.Segment {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spacesRe.ReplaceAllString(line, " "))
	}

	text = blankLinesRe.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")

	var segments []domain.Segment
	for _, block := range strings.Split(text, "\n\n") {
		if block = strings.TrimSpace(block); block != "" {
			segments = append(segments, domain.Segment{Text: block})
		}
	}

	return segments
}
