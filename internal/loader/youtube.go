package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"linkbrief/internal/domain"
	"linkbrief/internal/source"
)

const (
	youtubeBaseURL      = "https://www.youtube.com"
	innertubePlayerPath = "/youtubei/v1/player"

	ytAndroidVersion = "20.10.38"
	ytAndroidUA      = "com.google.android.youtube/" + ytAndroidVersion + " (Linux; U; Android 11) gzip"

	ytInitialPlayerResponseMarker = "ytInitialPlayerResponse = "

	watchPageMaxBytes = 6 << 20
	timedTextMaxBytes = 1 << 20
)

// YouTubeLoader pulls the caption track of a video and exposes it as transcript text.
type YouTubeLoader struct {
	client  *http.Client
	baseURL string
	langs   []string
	log     *slog.Logger
}

func NewYouTubeLoader(client *http.Client, log *slog.Logger) *YouTubeLoader {
	return &YouTubeLoader{
		client:  client,
		baseURL: youtubeBaseURL,
		langs:   []string{"en"},
		log:     log,
	}
}

type playerResponse struct {
	VideoDetails *struct {
		VideoID       string `json:"videoId"`
		Title         string `json:"title"`
		Author        string `json:"author"`
		LengthSeconds string `json:"lengthSeconds"`
	} `json:"videoDetails"`
	Captions *struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	// Kind is "asr" for auto-generated tracks.
	Kind string `json:"kind"`
}

func (p *playerResponse) captionTracks() []captionTrack {
	if p == nil || p.Captions == nil {
		return nil
	}

	return p.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
}

func (p *playerResponse) playabilityReason() string {
	if p == nil || p.PlayabilityStatus == nil {
		return ""
	}

	return strings.TrimSpace(p.PlayabilityStatus.Reason)
}

func (p *playerResponse) metadata() domain.Metadata {
	if p == nil || p.VideoDetails == nil {
		return domain.Metadata{}
	}

	var length time.Duration
	if seconds, err := strconv.ParseInt(p.VideoDetails.LengthSeconds, 10, 64); err == nil {
		length = time.Duration(seconds) * time.Second
	}

	return domain.Metadata{
		Title:  strings.TrimSpace(p.VideoDetails.Title),
		Author: strings.TrimSpace(p.VideoDetails.Author),
		Length: length,
	}
}

type innertubeRequest struct {
	VideoID        string           `json:"videoId"`
	Context        innertubeContext `json:"context"`
	RacyCheckOk    bool             `json:"racyCheckOk"`
	ContentCheckOk bool             `json:"contentCheckOk"`
}

type innertubeContext struct {
	Client innertubeClient `json:"client"`
}

type innertubeClient struct {
	ClientName        string `json:"clientName"`
	ClientVersion     string `json:"clientVersion"`
	AndroidSdkVersion int    `json:"androidSdkVersion,omitempty"`
	Hl                string `json:"hl,omitempty"`
	Gl                string `json:"gl,omitempty"`
}

// timedText accepts both the legacy <transcript><text> and the srv3 <timedtext><body><p> layouts.
type timedText struct {
	Lines      []timedTextLine      `xml:"text"`
	Paragraphs []timedTextParagraph `xml:"body>p"`
}

type timedTextLine struct {
	Text string `xml:",chardata"`
}

type timedTextParagraph struct {
	Text  string   `xml:",chardata"`
	Spans []string `xml:"s"`
}

func (l *YouTubeLoader) Load(ctx context.Context, u *url.URL) (domain.ExtractedContent, error) {
	rawURL := u.String()

	videoID, ok := source.VideoID(u)
	if !ok {
		return domain.ExtractedContent{}, domain.NewContentLoadError(
			domain.ReasonUnsupported,
			rawURL,
			errors.New("video id is missing"),
		)
	}

	player, err := l.fetchWatchPagePlayer(ctx, videoID)
	if err != nil {
		return domain.ExtractedContent{}, err
	}

	tracks := player.captionTracks()
	if len(tracks) == 0 {
		l.log.WarnContext(ctx, "No captions on watch page, trying player endpoint",
			"videoID", videoID,
			"playabilityReason", player.playabilityReason())

		androidPlayer, playerErr := l.fetchAndroidPlayer(ctx, videoID)
		if playerErr != nil {
			l.log.WarnContext(ctx, "Failed to fetch player endpoint",
				"error", playerErr,
				"videoID", videoID)
		} else {
			tracks = androidPlayer.captionTracks()
			if player.VideoDetails == nil {
				player.VideoDetails = androidPlayer.VideoDetails
			}
		}
	}

	if len(tracks) == 0 {
		reason := player.playabilityReason()
		if reason == "" {
			reason = "no caption tracks"
		}

		return domain.ExtractedContent{}, domain.NewContentLoadError(
			domain.ReasonNoTranscript,
			rawURL,
			errors.New(reason),
		)
	}

	track, ok := pickBestTrack(tracks, l.langs)
	if !ok {
		return domain.ExtractedContent{}, domain.NewContentLoadError(
			domain.ReasonNoTranscript,
			rawURL,
			errors.New("all caption tracks require a PoToken"),
		)
	}

	segments, err := l.fetchTimedText(ctx, track.BaseURL)
	if err != nil {
		return domain.ExtractedContent{}, err
	}

	if len(segments) == 0 {
		return domain.ExtractedContent{}, domain.NewContentLoadError(
			domain.ReasonNoTranscript,
			rawURL,
			errors.New("transcript is empty"),
		)
	}

	l.log.DebugContext(ctx, "Transcript is loaded",
		"videoID", videoID,
		"language", track.LanguageCode,
		"kind", track.Kind,
		"segmentCount", len(segments))

	return domain.ExtractedContent{
		Kind:      domain.SourceVideo,
		SourceURL: rawURL,
		Segments:  segments,
		Metadata:  player.metadata(),
	}, nil
}

func (l *YouTubeLoader) fetchWatchPagePlayer(ctx context.Context, videoID string) (*playerResponse, error) {
	watchURL := l.baseURL + "/watch?v=" + url.QueryEscape(videoID)

	req, err := newGetRequest(ctx, watchURL, acceptHTML)
	if err != nil {
		return nil, domain.NewContentLoadError(domain.ReasonNetwork, watchURL, err)
	}

	resp, err := l.client.Do(req) //nolint:gosec // YouTube URL
	if err != nil {
		return nil, transportError(watchURL, err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			l.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"operation", "fetchWatchPagePlayer",
				"videoID", videoID)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(watchURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, watchPageMaxBytes))
	if err != nil {
		return nil, domain.NewContentLoadError(domain.ReasonNetwork, watchURL, fmt.Errorf("read body: %w", err))
	}

	player, err := parseWatchPagePlayer(body)
	if err != nil {
		// Consent and bot-check interstitials carry no player, the player endpoint may still answer.
		l.log.WarnContext(ctx, "Failed to parse watch page player",
			"error", err,
			"videoID", videoID)

		return &playerResponse{}, nil
	}

	return player, nil
}

// parseWatchPagePlayer decodes the ytInitialPlayerResponse object embedded in a watch page.
func parseWatchPagePlayer(body []byte) (*playerResponse, error) {
	idx := bytes.Index(body, []byte(ytInitialPlayerResponseMarker))
	if idx < 0 {
		return nil, errors.New("ytInitialPlayerResponse is not found in watch page")
	}

	var player playerResponse

	// Decoder stops after the first JSON value, so the trailing script is ignored.
	dec := json.NewDecoder(bytes.NewReader(body[idx+len(ytInitialPlayerResponseMarker):]))
	if err := dec.Decode(&player); err != nil {
		return nil, fmt.Errorf("decode ytInitialPlayerResponse: %w", err)
	}

	return &player, nil
}

func (l *YouTubeLoader) fetchAndroidPlayer(ctx context.Context, videoID string) (*playerResponse, error) {
	reqBody, err := json.Marshal(innertubeRequest{
		VideoID: videoID,
		Context: innertubeContext{
			Client: innertubeClient{
				ClientName:        "ANDROID",
				ClientVersion:     ytAndroidVersion,
				AndroidSdkVersion: 30,
				Hl:                "en",
				Gl:                "US",
			},
		},
		RacyCheckOk:    true,
		ContentCheckOk: true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	playerURL := l.baseURL + innertubePlayerPath + "?prettyPrint=false"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, playerURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", ytAndroidUA)
	req.Header.Set("X-Youtube-Client-Name", "3")
	req.Header.Set("X-Youtube-Client-Version", ytAndroidVersion)

	resp, err := l.client.Do(req) //nolint:gosec // YouTube URL
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			l.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"operation", "fetchAndroidPlayer",
				"videoID", videoID)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("do request: unexpected status: %d", resp.StatusCode)
	}

	var player playerResponse
	if err = json.NewDecoder(resp.Body).Decode(&player); err != nil {
		return nil, fmt.Errorf("decode player response: %w", err)
	}

	return &player, nil
}

func (l *YouTubeLoader) fetchTimedText(ctx context.Context, baseURL string) ([]domain.Segment, error) {
	req, err := newGetRequest(ctx, baseURL, "*/*")
	if err != nil {
		return nil, domain.NewContentLoadError(domain.ReasonNetwork, baseURL, err)
	}

	resp, err := l.client.Do(req) //nolint:gosec // Caption URL comes from YouTube
	if err != nil {
		return nil, transportError(baseURL, err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			l.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"operation", "fetchTimedText")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(baseURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, timedTextMaxBytes))
	if err != nil {
		return nil, domain.NewContentLoadError(domain.ReasonNetwork, baseURL, fmt.Errorf("read body: %w", err))
	}

	segments, err := parseTimedText(body)
	if err != nil {
		return nil, domain.NewContentLoadError(domain.ReasonNoTranscript, baseURL, err)
	}

	return segments, nil
}

func parseTimedText(body []byte) ([]domain.Segment, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return nil, fmt.Errorf("parse timedtext XML: %w", err)
	}

	segments := make([]domain.Segment, 0, len(tt.Lines)+len(tt.Paragraphs))

	for _, line := range tt.Lines {
		if text := cleanCaption(line.Text); text != "" {
			segments = append(segments, domain.Segment{Text: text})
		}
	}

	for _, p := range tt.Paragraphs {
		raw := p.Text
		if len(p.Spans) > 0 {
			raw = strings.Join(p.Spans, "")
		}

		if text := cleanCaption(raw); text != "" {
			segments = append(segments, domain.Segment{Text: text})
		}
	}

	return segments, nil
}

// cleanCaption undoes the double entity encoding of caption text and collapses whitespace.
func cleanCaption(raw string) string {
	return strings.Join(strings.Fields(html.UnescapeString(raw)), " ")
}

// needsPoToken reports whether a caption track can only be fetched from a browser.
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

// pickBestTrack prefers a manual track in a preferred language, then an auto-generated
// one, then any English track, then whatever is usable.
func pickBestTrack(tracks []captionTrack, langs []string) (captionTrack, bool) {
	usable := make([]captionTrack, 0, len(tracks))
	for _, t := range tracks {
		if t.BaseURL != "" && !needsPoToken(t.BaseURL) {
			usable = append(usable, t)
		}
	}

	if len(usable) == 0 {
		return captionTrack{}, false
	}

	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang && t.Kind != "asr" {
				return t, true
			}
		}
	}

	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang {
				return t, true
			}
		}
	}

	for _, t := range usable {
		if strings.HasPrefix(t.LanguageCode, "en") {
			return t, true
		}
	}

	return usable[0], true
}
