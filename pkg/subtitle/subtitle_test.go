package subtitle

import (
	"encoding/json"
	"strings"
	"testing"

	mcperrors "github.com/voxmill/transcript-mcp/pkg/errors"
)

var sampleSegments = []Segment{
	{Start: 0, Duration: 1.5, Text: "Hello and welcome"},
	{Start: 1.5, Duration: 2.25, Text: "to the show"},
	{Start: 3661.5, Duration: 0.5, Text: "one hour later"},
}

func TestSRTTimestamp(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00,000"},
		{1.5, "00:00:01,500"},
		{59.999, "00:00:59,999"},
		{60, "00:01:00,000"},
		{61.042, "00:01:01,042"},
		{3599.5, "00:59:59,500"},
		{3600, "01:00:00,000"},
		{3661.5, "01:01:01,500"},
		{1.9999999, "00:00:02,000"},
		{-5, "00:00:00,000"},
		{36000.007, "10:00:00,007"},
	}

	for _, tt := range tests {
		if got := SRTTimestamp(tt.seconds); got != tt.want {
			t.Errorf("SRTTimestamp(%v) = %s, want %s", tt.seconds, got, tt.want)
		}
	}
}

func TestVTTTimestamp(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00.000"},
		{1.5, "00:00:01.500"},
		{3661.5, "01:01:01.500"},
		{0.001, "00:00:00.001"},
	}

	for _, tt := range tests {
		if got := VTTTimestamp(tt.seconds); got != tt.want {
			t.Errorf("VTTTimestamp(%v) = %s, want %s", tt.seconds, got, tt.want)
		}
	}
}

func TestPlainTimestamp(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00"},
		{75, "01:15"},
		{3599, "59:59"},
		{3600, "01:00:00"},
		{3661, "01:01:01"},
	}

	for _, tt := range tests {
		if got := PlainTimestamp(tt.seconds); got != tt.want {
			t.Errorf("PlainTimestamp(%v) = %s, want %s", tt.seconds, got, tt.want)
		}
	}
}

func TestRenderSRT(t *testing.T) {
	got := RenderSRT(sampleSegments)
	want := "1\n" +
		"00:00:00,000 --> 00:00:01,500\n" +
		"Hello and welcome\n" +
		"\n" +
		"2\n" +
		"00:00:01,500 --> 00:00:03,750\n" +
		"to the show\n" +
		"\n" +
		"3\n" +
		"01:01:01,500 --> 01:01:02,000\n" +
		"one hour later\n" +
		"\n"

	if got != want {
		t.Errorf("RenderSRT mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestRenderVTT(t *testing.T) {
	got := RenderVTT(sampleSegments[:2])
	want := "WEBVTT\n\n" +
		"00:00:00.000 --> 00:00:01.500\n" +
		"Hello and welcome\n" +
		"\n" +
		"00:00:01.500 --> 00:00:03.750\n" +
		"to the show\n" +
		"\n"

	if got != want {
		t.Errorf("RenderVTT mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestRenderPlain(t *testing.T) {
	t.Run("without timestamps", func(t *testing.T) {
		got := RenderPlain(sampleSegments[:2], false)
		want := "Hello and welcome\nto the show\n"
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("with timestamps", func(t *testing.T) {
		got := RenderPlain(sampleSegments, true)
		want := "[00:00] Hello and welcome\n[00:01] to the show\n[01:01:01] one hour later\n"
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("skips empty segments", func(t *testing.T) {
		segments := []Segment{
			{Start: 0, Duration: 1, Text: "   "},
			{Start: 1, Duration: 1, Text: "kept"},
		}
		got := RenderPlain(segments, false)
		if got != "kept\n" {
			t.Errorf("got %q, want %q", got, "kept\n")
		}
	})
}

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		format   Format
		contains string
	}{
		{"text", FormatText, "Hello and welcome"},
		{"default is text", Format(""), "Hello and welcome"},
		{"srt", FormatSRT, "00:00:00,000 --> 00:00:01,500"},
		{"vtt", FormatVTT, "WEBVTT"},
		{"json", FormatJSON, `"start": 0`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.format, sampleSegments, false)
			if err != nil {
				t.Fatalf("Render(%s) failed: %v", tt.format, err)
			}
			if !strings.Contains(got, tt.contains) {
				t.Errorf("Render(%s) missing %q:\n%s", tt.format, tt.contains, got)
			}
		})
	}
}

func TestRenderJSONRoundTrip(t *testing.T) {
	got, err := Render(FormatJSON, sampleSegments, false)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	var decoded []Segment
	if err := json.Unmarshal([]byte(got), &decoded); err != nil {
		t.Fatalf("rendered JSON does not parse: %v", err)
	}
	if len(decoded) != len(sampleSegments) {
		t.Errorf("expected %d segments, got %d", len(sampleSegments), len(decoded))
	}
	if decoded[2].Text != "one hour later" {
		t.Errorf("segment text lost: %+v", decoded[2])
	}
}

func TestRenderJSONEmpty(t *testing.T) {
	got, err := Render(FormatJSON, nil, false)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if strings.TrimSpace(got) != "[]" {
		t.Errorf("nil segments should render as [], got %q", got)
	}
}

func TestRenderUnsupportedFormat(t *testing.T) {
	_, err := Render(Format("ass"), sampleSegments, false)
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
	if !mcperrors.IsInvalidArguments(err) {
		t.Errorf("expected InvalidArguments, got %v", err)
	}
}

func TestSegmentEnd(t *testing.T) {
	segment := Segment{Start: 10.5, Duration: 2.5}
	if got := segment.End(); got != 13.0 {
		t.Errorf("End() = %v, want 13.0", got)
	}
}
