package transcript

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/voxmill/transcript-mcp/pkg/subtitle"
)

// Track describes one caption track available for a video.
type Track struct {
	// LanguageCode is the BCP-47 tag of the track, e.g. "en" or "pt-BR".
	LanguageCode string `json:"language_code"`

	// LanguageName is the human-readable track label.
	LanguageName string `json:"language_name,omitempty"`

	// AutoGenerated marks speech-recognition tracks as opposed to uploaded
	// captions.
	AutoGenerated bool `json:"auto_generated,omitempty"`
}

// VideoInfo holds the metadata the captions API exposes for a video.
type VideoInfo struct {
	VideoID         string `json:"video_id"`
	Title           string `json:"title"`
	Channel         string `json:"channel,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	PublishedAt     string `json:"published_at,omitempty"`
	ViewCount       int64  `json:"view_count,omitempty"`
}

// Transcript is a fetched caption track with its timed segments.
type Transcript struct {
	VideoID  string             `json:"video_id"`
	Language string             `json:"language"`
	Segments []subtitle.Segment `json:"segments"`
}

// Transcript fetches the caption track for a video. An empty language asks
// the API to pick its default track.
func (c *Client) Transcript(ctx context.Context, videoID, language string) (*Transcript, error) {
	query := url.Values{}
	if language != "" {
		query.Set("lang", language)
	}

	var result Transcript
	if err := c.Call(ctx, http.MethodGet, fmt.Sprintf("/v1/videos/%s/transcript", url.PathEscape(videoID)), query, nil, &result); err != nil {
		return nil, err
	}
	if result.VideoID == "" {
		result.VideoID = videoID
	}
	return &result, nil
}

// Tracks lists the caption tracks available for a video.
func (c *Client) Tracks(ctx context.Context, videoID string) ([]Track, error) {
	var result struct {
		Tracks []Track `json:"tracks"`
	}
	if err := c.Call(ctx, http.MethodGet, fmt.Sprintf("/v1/videos/%s/tracks", url.PathEscape(videoID)), nil, nil, &result); err != nil {
		return nil, err
	}
	return result.Tracks, nil
}

// Metadata fetches a video's descriptive metadata.
func (c *Client) Metadata(ctx context.Context, videoID string) (*VideoInfo, error) {
	var result VideoInfo
	if err := c.Call(ctx, http.MethodGet, fmt.Sprintf("/v1/videos/%s", url.PathEscape(videoID)), nil, nil, &result); err != nil {
		return nil, err
	}
	if result.VideoID == "" {
		result.VideoID = videoID
	}
	return &result, nil
}
