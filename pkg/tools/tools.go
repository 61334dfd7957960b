package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/voxmill/transcript-mcp/pkg/auth"
	mcperrors "github.com/voxmill/transcript-mcp/pkg/errors"
	"github.com/voxmill/transcript-mcp/pkg/pagination"
	"github.com/voxmill/transcript-mcp/pkg/protocol"
	"github.com/voxmill/transcript-mcp/pkg/store"
	"github.com/voxmill/transcript-mcp/pkg/subtitle"
	"github.com/voxmill/transcript-mcp/pkg/transcript"
)

// CaptionsAPI is the downstream surface the tools consume.
// *transcript.Client satisfies it.
type CaptionsAPI interface {
	Transcript(ctx context.Context, videoID, language string) (*transcript.Transcript, error)
	Tracks(ctx context.Context, videoID string) ([]transcript.Track, error)
	Metadata(ctx context.Context, videoID string) (*transcript.VideoInfo, error)
}

// TranscriptStore is the persistence surface for the subject's saved
// transcripts. *store.Store satisfies it.
type TranscriptStore interface {
	Save(ctx context.Context, params store.SaveParams) (*store.SavedTranscript, error)
	List(ctx context.Context, subject string, limit, offset int) ([]store.SavedTranscript, error)
	Get(ctx context.Context, subject string, id int64) (*store.SavedTranscript, error)
	Delete(ctx context.Context, subject string, id int64) error
	Count(ctx context.Context, subject string) (int, error)
}

// Dependencies carries the collaborators bound into the tool handlers at
// registration. Handlers never resolve collaborators per call.
type Dependencies struct {
	Captions CaptionsAPI
	Store    TranscriptStore
}

// RegisterAll registers the full transcript tool set on r, in the order the
// tools are listed to clients.
func RegisterAll(r *Registry, deps Dependencies) error {
	if deps.Captions == nil {
		return mcperrors.ServerInitError("tools require a captions client", nil)
	}
	if deps.Store == nil {
		return mcperrors.ServerInitError("tools require a saved-transcript store", nil)
	}

	if err := RegisterTyped(r, getTranscriptTool, deps.getTranscript); err != nil {
		return err
	}
	if err := RegisterTyped(r, listLanguagesTool, deps.listLanguages); err != nil {
		return err
	}
	if err := RegisterTyped(r, getVideoInfoTool, deps.getVideoInfo); err != nil {
		return err
	}
	if err := RegisterTyped(r, saveTranscriptTool, deps.saveTranscript); err != nil {
		return err
	}
	if err := RegisterTyped(r, listSavedTranscriptsTool, deps.listSavedTranscripts); err != nil {
		return err
	}
	if err := RegisterTyped(r, getSavedTranscriptTool, deps.getSavedTranscript); err != nil {
		return err
	}
	return RegisterTyped(r, deleteSavedTranscriptTool, deps.deleteSavedTranscript)
}

// subjectFrom pulls the authenticated subject off the context. Store-backed
// tools refuse to run without one.
func subjectFrom(ctx context.Context) (string, error) {
	subject, ok := auth.SubjectFromContext(ctx)
	if !ok || subject == "" {
		return "", mcperrors.Unauthenticated("no subject on request context")
	}
	return subject, nil
}

// get_transcript

// GetTranscriptArgs are the arguments for the get_transcript tool.
type GetTranscriptArgs struct {
	VideoURL          string `json:"video_url" validate:"required"`
	Language          string `json:"language"`
	Format            string `json:"format" validate:"omitempty,oneof=text srt vtt json"`
	IncludeTimestamps bool   `json:"include_timestamps"`
}

var getTranscriptTool = protocol.Tool{
	Name:        "get_transcript",
	Description: "Fetch the transcript of a video and render it as plain text, SRT, WebVTT, or JSON segments.",
	InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"video_url": {"type": "string", "description": "Video URL or bare 11-character video id"},
			"language": {"type": "string", "description": "Preferred caption language code, e.g. \"en\""},
			"format": {"type": "string", "enum": ["text", "srt", "vtt", "json"], "default": "text"},
			"include_timestamps": {"type": "boolean", "description": "Prefix each plain-text line with its start offset", "default": false}
		},
		"required": ["video_url"]
	}`),
}

func (d Dependencies) getTranscript(ctx context.Context, args GetTranscriptArgs) (interface{}, error) {
	videoID, err := transcript.ParseVideoID(args.VideoURL)
	if err != nil {
		return nil, err
	}

	tr, err := d.Captions.Transcript(ctx, videoID, args.Language)
	if err != nil {
		return nil, err
	}

	return subtitle.Render(subtitle.Format(args.Format), tr.Segments, args.IncludeTimestamps)
}

// list_languages

// ListLanguagesArgs are the arguments for the list_languages tool.
type ListLanguagesArgs struct {
	VideoURL string `json:"video_url" validate:"required"`
}

// TrackList is the list_languages result.
type TrackList struct {
	VideoID string             `json:"video_id"`
	Tracks  []transcript.Track `json:"tracks"`
}

var listLanguagesTool = protocol.Tool{
	Name:        "list_languages",
	Description: "List the caption tracks available for a video.",
	InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"video_url": {"type": "string", "description": "Video URL or bare 11-character video id"}
		},
		"required": ["video_url"]
	}`),
}

func (d Dependencies) listLanguages(ctx context.Context, args ListLanguagesArgs) (interface{}, error) {
	videoID, err := transcript.ParseVideoID(args.VideoURL)
	if err != nil {
		return nil, err
	}

	tracks, err := d.Captions.Tracks(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if tracks == nil {
		tracks = []transcript.Track{}
	}

	return TrackList{VideoID: videoID, Tracks: tracks}, nil
}

// get_video_info

// GetVideoInfoArgs are the arguments for the get_video_info tool.
type GetVideoInfoArgs struct {
	VideoURL string `json:"video_url" validate:"required"`
}

var getVideoInfoTool = protocol.Tool{
	Name:        "get_video_info",
	Description: "Fetch title, channel, duration, and view metadata for a video.",
	InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"video_url": {"type": "string", "description": "Video URL or bare 11-character video id"}
		},
		"required": ["video_url"]
	}`),
}

func (d Dependencies) getVideoInfo(ctx context.Context, args GetVideoInfoArgs) (interface{}, error) {
	videoID, err := transcript.ParseVideoID(args.VideoURL)
	if err != nil {
		return nil, err
	}

	return d.Captions.Metadata(ctx, videoID)
}

// save_transcript

// SaveTranscriptArgs are the arguments for the save_transcript tool.
type SaveTranscriptArgs struct {
	VideoURL string `json:"video_url" validate:"required"`
	Language string `json:"language"`
	Title    string `json:"title"`
}

// SavedSummary is a saved transcript row without its content.
type SavedSummary struct {
	ID          int64  `json:"id"`
	VideoID     string `json:"video_id"`
	VideoURL    string `json:"video_url"`
	Title       string `json:"title"`
	Language    string `json:"language"`
	Format      string `json:"format"`
	ContentSize int    `json:"content_size"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

func newSavedSummary(row *store.SavedTranscript) SavedSummary {
	return SavedSummary{
		ID:          row.ID,
		VideoID:     row.VideoID,
		VideoURL:    row.VideoURL,
		Title:       row.Title,
		Language:    row.Language,
		Format:      row.Format,
		ContentSize: len(row.Content),
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

var saveTranscriptTool = protocol.Tool{
	Name:        "save_transcript",
	Description: "Fetch the transcript of a video and save it to your library. Saving the same video and language again replaces the stored copy.",
	InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"video_url": {"type": "string", "description": "Video URL or bare 11-character video id"},
			"language": {"type": "string", "description": "Preferred caption language code, e.g. \"en\""},
			"title": {"type": "string", "description": "Library title; defaults to the video title"}
		},
		"required": ["video_url"]
	}`),
}

func (d Dependencies) saveTranscript(ctx context.Context, args SaveTranscriptArgs) (interface{}, error) {
	subject, err := subjectFrom(ctx)
	if err != nil {
		return nil, err
	}

	videoID, err := transcript.ParseVideoID(args.VideoURL)
	if err != nil {
		return nil, err
	}

	tr, err := d.Captions.Transcript(ctx, videoID, args.Language)
	if err != nil {
		return nil, err
	}

	language := tr.Language
	if language == "" {
		language = args.Language
	}

	title := args.Title
	if title == "" {
		// The video title is a nicety; fall back to the id rather than
		// failing the save when metadata is unavailable.
		if info, infoErr := d.Captions.Metadata(ctx, videoID); infoErr == nil && info.Title != "" {
			title = info.Title
		} else {
			title = videoID
		}
	}

	row, err := d.Store.Save(ctx, store.SaveParams{
		Subject:  subject,
		VideoID:  videoID,
		VideoURL: transcript.WatchURL(videoID),
		Title:    title,
		Language: language,
		Format:   string(subtitle.FormatText),
		Content:  subtitle.RenderPlain(tr.Segments, false),
	})
	if err != nil {
		return nil, err
	}

	return newSavedSummary(row), nil
}

// list_saved_transcripts

// ListSavedTranscriptsArgs are the arguments for the list_saved_transcripts
// tool.
type ListSavedTranscriptsArgs struct {
	Limit  int    `json:"limit" validate:"omitempty,min=1,max=100"`
	Cursor string `json:"cursor"`
}

// SavedPage is one page of the subject's library, newest first.
type SavedPage struct {
	Transcripts []SavedSummary `json:"transcripts"`
	Total       int            `json:"total"`
	NextCursor  string         `json:"next_cursor,omitempty"`
}

var listSavedTranscriptsTool = protocol.Tool{
	Name:        "list_saved_transcripts",
	Description: "Page through your saved transcripts, newest first.",
	InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"limit": {"type": "integer", "minimum": 1, "maximum": 100, "default": 20},
			"cursor": {"type": "string", "description": "Opaque cursor from a previous page"}
		}
	}`),
}

func (d Dependencies) listSavedTranscripts(ctx context.Context, args ListSavedTranscriptsArgs) (interface{}, error) {
	subject, err := subjectFrom(ctx)
	if err != nil {
		return nil, err
	}

	limit := args.Limit
	if limit <= 0 {
		limit = store.DefaultListLimit
	}

	offset := 0
	if args.Cursor != "" {
		offset, err = pagination.DecodeCursor(args.Cursor)
		if err != nil {
			return nil, err
		}
	}

	rows, err := d.Store.List(ctx, subject, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := d.Store.Count(ctx, subject)
	if err != nil {
		return nil, err
	}

	page := SavedPage{
		Transcripts: make([]SavedSummary, 0, len(rows)),
		Total:       total,
	}
	for i := range rows {
		page.Transcripts = append(page.Transcripts, newSavedSummary(&rows[i]))
	}
	if offset+len(rows) < total {
		page.NextCursor = pagination.EncodeCursor(offset + len(rows))
	}

	return page, nil
}

// get_saved_transcript

// GetSavedTranscriptArgs are the arguments for the get_saved_transcript tool.
type GetSavedTranscriptArgs struct {
	ID int64 `json:"id" validate:"required"`
}

var getSavedTranscriptTool = protocol.Tool{
	Name:        "get_saved_transcript",
	Description: "Load one saved transcript from your library, content included.",
	InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"id": {"type": "integer", "description": "Saved transcript id from save_transcript or list_saved_transcripts"}
		},
		"required": ["id"]
	}`),
}

func (d Dependencies) getSavedTranscript(ctx context.Context, args GetSavedTranscriptArgs) (interface{}, error) {
	subject, err := subjectFrom(ctx)
	if err != nil {
		return nil, err
	}

	return d.Store.Get(ctx, subject, args.ID)
}

// delete_saved_transcript

// DeleteSavedTranscriptArgs are the arguments for the
// delete_saved_transcript tool.
type DeleteSavedTranscriptArgs struct {
	ID int64 `json:"id" validate:"required"`
}

var deleteSavedTranscriptTool = protocol.Tool{
	Name:        "delete_saved_transcript",
	Description: "Delete one saved transcript from your library.",
	InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"id": {"type": "integer", "description": "Saved transcript id"}
		},
		"required": ["id"]
	}`),
}

func (d Dependencies) deleteSavedTranscript(ctx context.Context, args DeleteSavedTranscriptArgs) (interface{}, error) {
	subject, err := subjectFrom(ctx)
	if err != nil {
		return nil, err
	}

	if err := d.Store.Delete(ctx, subject, args.ID); err != nil {
		return nil, err
	}

	return fmt.Sprintf("Deleted saved transcript %d", args.ID), nil
}
