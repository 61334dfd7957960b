package transcript

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	mcperrors "github.com/voxmill/transcript-mcp/pkg/errors"
)

// videoIDPattern matches the 11-character id YouTube assigns to videos.
var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ParseVideoID extracts the video id from a bare id or any of the common URL
// forms:
//
//	dQw4w9WgXcQ
//	https://www.youtube.com/watch?v=dQw4w9WgXcQ
//	https://youtu.be/dQw4w9WgXcQ
//	https://www.youtube.com/shorts/dQw4w9WgXcQ
//	https://www.youtube.com/embed/dQw4w9WgXcQ
func ParseVideoID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if videoIDPattern.MatchString(raw) {
		return raw, nil
	}

	if id := parseVideoURL(raw); id != "" {
		return id, nil
	}

	return "", mcperrors.NewError(
		mcperrors.CodeInvalidArguments,
		fmt.Sprintf("not a recognizable video URL or id: %q", raw),
		mcperrors.CategoryValidation,
		mcperrors.SeverityError,
	)
}

func parseVideoURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	host := strings.ToLower(parsed.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if host == "m.youtube.com" {
		host = "youtube.com"
	}

	if host == "youtu.be" {
		return matchID(strings.TrimPrefix(parsed.Path, "/"))
	}
	switch host {
	case "youtube.com", "youtube-nocookie.com", "music.youtube.com":
	default:
		return ""
	}

	if parsed.Path == "/watch" {
		return matchID(parsed.Query().Get("v"))
	}
	for _, prefix := range []string{"/shorts/", "/embed/", "/live/", "/v/"} {
		if strings.HasPrefix(parsed.Path, prefix) {
			rest := strings.TrimPrefix(parsed.Path, prefix)
			if i := strings.IndexByte(rest, '/'); i >= 0 {
				rest = rest[:i]
			}
			return matchID(rest)
		}
	}
	return ""
}

func matchID(candidate string) string {
	if videoIDPattern.MatchString(candidate) {
		return candidate
	}
	return ""
}

// WatchURL returns the canonical watch URL for a video id.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
