// Package transcript retrieves the spoken text of a video, from YouTube
// caption tracks or from a local directory of text files.
package transcript

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kkdai/youtube/v2"
)

// ErrUnavailable is returned when no usable transcript exists for a video.
var ErrUnavailable = errors.New("transcript unavailable")

// Fetcher returns the transcript of a video.
type Fetcher interface {
	Fetch(ctx context.Context, videoID string) (string, error)
}

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidateVideoID rejects identifiers that cannot name a video.
func ValidateVideoID(videoID string) error {
	if !videoIDPattern.MatchString(videoID) {
		return fmt.Errorf("%w: invalid video id %q", ErrUnavailable, videoID)
	}
	return nil
}

// Dir reads <Path>/<videoID>.txt.
type Dir struct {
	Path string
}

var _ Fetcher = Dir{}

func (d Dir) Fetch(ctx context.Context, videoID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := ValidateVideoID(videoID); err != nil {
		return "", err
	}
	data, err := os.ReadFile(filepath.Join(d.Path, videoID+".txt"))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrUnavailable, videoID, err)
	}
	text := normalize(string(data))
	if text == "" {
		return "", fmt.Errorf("%w: %s: empty transcript", ErrUnavailable, videoID)
	}
	return text, nil
}

// videoClient is the part of youtube.Client the fetcher needs.
type videoClient interface {
	GetVideoContext(ctx context.Context, id string) (*youtube.Video, error)
	GetTranscriptCtx(ctx context.Context, video *youtube.Video, lang string) (youtube.VideoTranscript, error)
}

// YouTube reads the caption track of a video in the preferred language.
type YouTube struct {
	client   videoClient
	language string
}

// NewYouTube creates a YouTube fetcher. language selects the caption track,
// falling back to the first one listed; it defaults to "en".
func NewYouTube(httpClient *http.Client, language string) *YouTube {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if language == "" {
		language = "en"
	}
	return &YouTube{client: &youtube.Client{HTTPClient: httpClient}, language: language}
}

var _ Fetcher = (*YouTube)(nil)

func (y *YouTube) Fetch(ctx context.Context, videoID string) (string, error) {
	if err := ValidateVideoID(videoID); err != nil {
		return "", err
	}

	video, err := y.client.GetVideoContext(ctx, videoID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: %s: %w", ErrUnavailable, videoID, err)
	}
	if len(video.CaptionTracks) == 0 {
		return "", fmt.Errorf("%w: %s: no caption tracks", ErrUnavailable, videoID)
	}

	segments, err := y.client.GetTranscriptCtx(ctx, video, y.pick(video.CaptionTracks))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: %s: captions: %w", ErrUnavailable, videoID, err)
	}
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if s := strings.TrimSpace(html.UnescapeString(seg.Text)); s != "" {
			parts = append(parts, s)
		}
	}
	text := normalize(strings.Join(parts, " "))
	if text == "" {
		return "", fmt.Errorf("%w: %s: empty transcript", ErrUnavailable, videoID)
	}
	return text, nil
}

// pick returns the language of a manual track in the configured language,
// then of an auto-generated one, then of the first track.
func (y *YouTube) pick(tracks []youtube.CaptionTrack) string {
	auto := ""
	for _, t := range tracks {
		if !strings.EqualFold(t.LanguageCode, y.language) {
			continue
		}
		if t.Kind != "asr" {
			return t.LanguageCode
		}
		if auto == "" {
			auto = t.LanguageCode
		}
	}
	if auto != "" {
		return auto
	}
	return tracks[0].LanguageCode
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
