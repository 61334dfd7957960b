// Package subtitle renders caption segments as plain text, SRT, WebVTT, or
// JSON. It is pure text shaping: no I/O, no protocol awareness.
package subtitle

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	mcperrors "github.com/voxmill/transcript-mcp/pkg/errors"
)

// Segment is one timed caption line. Start and Duration are in seconds.
type Segment struct {
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
}

// End returns the segment's end offset in seconds.
func (s Segment) End() float64 {
	return s.Start + s.Duration
}

// Format selects an output rendering for a transcript.
type Format string

const (
	FormatText Format = "text"
	FormatSRT  Format = "srt"
	FormatVTT  Format = "vtt"
	FormatJSON Format = "json"
)

// Render shapes segments in the requested format. FormatText honors
// includeTimestamps; the file formats always carry timing.
func Render(format Format, segments []Segment, includeTimestamps bool) (string, error) {
	switch format {
	case FormatText, "":
		return RenderPlain(segments, includeTimestamps), nil
	case FormatSRT:
		return RenderSRT(segments), nil
	case FormatVTT:
		return RenderVTT(segments), nil
	case FormatJSON:
		return renderJSON(segments)
	default:
		return "", mcperrors.NewError(
			mcperrors.CodeInvalidArguments,
			fmt.Sprintf("unsupported transcript format %q", format),
			mcperrors.CategoryValidation,
			mcperrors.SeverityError,
		)
	}
}

// RenderPlain joins segment texts line by line, optionally prefixed with a
// bracketed offset.
func RenderPlain(segments []Segment, includeTimestamps bool) string {
	var b strings.Builder
	for _, segment := range segments {
		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}
		if includeTimestamps {
			b.WriteString("[")
			b.WriteString(PlainTimestamp(segment.Start))
			b.WriteString("] ")
		}
		b.WriteString(text)
		b.WriteByte('\n')
	}
	return b.String()
}

// RenderSRT emits numbered SubRip cues.
func RenderSRT(segments []Segment) string {
	var b strings.Builder
	cue := 1
	for _, segment := range segments {
		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			cue, SRTTimestamp(segment.Start), SRTTimestamp(segment.End()), text)
		cue++
	}
	return b.String()
}

// RenderVTT emits a WebVTT document.
func RenderVTT(segments []Segment) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for _, segment := range segments {
		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "%s --> %s\n%s\n\n",
			VTTTimestamp(segment.Start), VTTTimestamp(segment.End()), text)
	}
	return b.String()
}

func renderJSON(segments []Segment) (string, error) {
	if segments == nil {
		segments = []Segment{}
	}
	data, err := json.MarshalIndent(segments, "", "  ")
	if err != nil {
		return "", mcperrors.Internal("render transcript json", err)
	}
	return string(data), nil
}

// SRTTimestamp renders seconds as HH:MM:SS,mmm.
func SRTTimestamp(seconds float64) string {
	h, m, s, ms := splitTimestamp(seconds)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// VTTTimestamp renders seconds as HH:MM:SS.mmm.
func VTTTimestamp(seconds float64) string {
	h, m, s, ms := splitTimestamp(seconds)
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

// PlainTimestamp renders MM:SS, widening to HH:MM:SS past the first hour.
func PlainTimestamp(seconds float64) string {
	h, m, s, _ := splitTimestamp(seconds)
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// splitTimestamp rounds to whole milliseconds first so float artifacts
// (1.9999999) never leak into the rendered fields.
func splitTimestamp(seconds float64) (h, m, s, ms int) {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int64(math.Round(seconds * 1000))
	ms = int(total % 1000)
	totalSeconds := total / 1000
	s = int(totalSeconds % 60)
	totalMinutes := totalSeconds / 60
	m = int(totalMinutes % 60)
	h = int(totalMinutes / 60)
	return h, m, s, ms
}
