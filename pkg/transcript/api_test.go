package transcript

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTranscriptFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/videos/dQw4w9WgXcQ/transcript" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("lang"); got != "en" {
			t.Errorf("lang = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"video_id": "dQw4w9WgXcQ",
			"language": "en",
			"segments": [
				{"start": 0, "duration": 1.5, "text": "Hello and welcome"},
				{"start": 1.5, "duration": 2.25, "text": "to the show"}
			]
		}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	transcript, err := client.Transcript(context.Background(), "dQw4w9WgXcQ", "en")
	if err != nil {
		t.Fatalf("Transcript failed: %v", err)
	}
	if transcript.VideoID != "dQw4w9WgXcQ" {
		t.Errorf("video id = %q", transcript.VideoID)
	}
	if transcript.Language != "en" {
		t.Errorf("language = %q", transcript.Language)
	}
	if len(transcript.Segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(transcript.Segments))
	}
	if transcript.Segments[1].Text != "to the show" || transcript.Segments[1].Start != 1.5 {
		t.Errorf("segment[1] = %+v", transcript.Segments[1])
	}
}

func TestTranscriptDefaultLanguage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("lang") {
			t.Errorf("lang sent for default-language request: %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"language":"en","segments":[]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	transcript, err := client.Transcript(context.Background(), "dQw4w9WgXcQ", "")
	if err != nil {
		t.Fatalf("Transcript failed: %v", err)
	}
	// The id is backfilled when the response omits it.
	if transcript.VideoID != "dQw4w9WgXcQ" {
		t.Errorf("video id = %q", transcript.VideoID)
	}
}

func TestTracksFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/videos/dQw4w9WgXcQ/tracks" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"tracks": [
			{"language_code": "en", "language_name": "English"},
			{"language_code": "pt-BR", "language_name": "Portuguese (Brazil)", "auto_generated": true}
		]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	tracks, err := client.Tracks(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Tracks failed: %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("tracks = %d, want 2", len(tracks))
	}
	if tracks[0].LanguageCode != "en" || tracks[0].AutoGenerated {
		t.Errorf("tracks[0] = %+v", tracks[0])
	}
	if tracks[1].LanguageCode != "pt-BR" || !tracks[1].AutoGenerated {
		t.Errorf("tracks[1] = %+v", tracks[1])
	}
}

func TestMetadataFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/videos/dQw4w9WgXcQ" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{
			"video_id": "dQw4w9WgXcQ",
			"title": "Never Gonna Give You Up",
			"channel": "Rick Astley",
			"duration_seconds": 212,
			"published_at": "2009-10-25",
			"view_count": 1500000000
		}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	info, err := client.Metadata(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Metadata failed: %v", err)
	}
	if info.Title != "Never Gonna Give You Up" {
		t.Errorf("title = %q", info.Title)
	}
	if info.Channel != "Rick Astley" {
		t.Errorf("channel = %q", info.Channel)
	}
	if info.DurationSeconds != 212 {
		t.Errorf("duration = %d", info.DurationSeconds)
	}
	if info.ViewCount != 1500000000 {
		t.Errorf("view count = %d", info.ViewCount)
	}
}
