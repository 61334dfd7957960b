package pagination

import (
	"testing"

	mcperrors "github.com/voxmill/transcript-mcp/pkg/errors"
)

func TestCursorRoundTrip(t *testing.T) {
	for _, offset := range []int{0, 1, 50, 12345} {
		cursor := EncodeCursor(offset)
		if cursor == "" {
			t.Fatalf("EncodeCursor(%d) returned empty cursor", offset)
		}

		decoded, err := DecodeCursor(cursor)
		if err != nil {
			t.Fatalf("DecodeCursor(%q) error: %v", cursor, err)
		}
		if decoded != offset {
			t.Errorf("DecodeCursor(EncodeCursor(%d)) = %d", offset, decoded)
		}
	}
}

func TestDecodeCursor(t *testing.T) {
	tests := []struct {
		name    string
		cursor  string
		want    int
		wantErr bool
	}{
		{name: "empty means first page", cursor: "", want: 0},
		{name: "not base64", cursor: "!!!not-base64!!!", wantErr: true},
		{name: "not a number", cursor: "aGVsbG8=", wantErr: true}, // "hello"
		{name: "negative offset", cursor: "LTU=", wantErr: true}, // "-5"
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeCursor(tt.cursor)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !mcperrors.IsCode(err, mcperrors.CodeInvalidCursor) {
					t.Errorf("expected InvalidCursor, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("DecodeCursor(%q) = %d, want %d", tt.cursor, got, tt.want)
			}
		})
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		limit int
		want  int
	}{
		{0, DefaultLimit},
		{-3, DefaultLimit},
		{25, 25},
		{MaxLimit, MaxLimit},
		{MaxLimit + 1, MaxLimit},
	}

	for _, tt := range tests {
		if got := ClampLimit(tt.limit); got != tt.want {
			t.Errorf("ClampLimit(%d) = %d, want %d", tt.limit, got, tt.want)
		}
	}
}

func TestPage(t *testing.T) {
	items := make([]int, 0, 120)
	for i := 0; i < 120; i++ {
		items = append(items, i)
	}

	// First page
	page, next, err := Page(items, "", 50)
	if err != nil {
		t.Fatalf("Page() error: %v", err)
	}
	if len(page) != 50 || page[0] != 0 || page[49] != 49 {
		t.Errorf("first page = %d items starting %d", len(page), page[0])
	}
	if next == "" {
		t.Fatal("expected next cursor after first page")
	}

	// Second page
	page, next, err = Page(items, next, 50)
	if err != nil {
		t.Fatalf("Page() error: %v", err)
	}
	if len(page) != 50 || page[0] != 50 {
		t.Errorf("second page = %d items starting %d", len(page), page[0])
	}
	if next == "" {
		t.Fatal("expected next cursor after second page")
	}

	// Final partial page
	page, next, err = Page(items, next, 50)
	if err != nil {
		t.Fatalf("Page() error: %v", err)
	}
	if len(page) != 20 || page[0] != 100 {
		t.Errorf("final page = %d items starting %d", len(page), page[0])
	}
	if next != "" {
		t.Errorf("expected no cursor after final page, got %q", next)
	}

	// Offset past the end
	page, next, err = Page(items, EncodeCursor(500), 50)
	if err != nil {
		t.Fatalf("Page() error: %v", err)
	}
	if len(page) != 0 || next != "" {
		t.Errorf("past-the-end page = %d items, cursor %q", len(page), next)
	}

	// Invalid cursor propagates
	if _, _, err := Page(items, "garbage!!", 50); err == nil {
		t.Error("expected error for invalid cursor")
	}
}

func TestPageSingle(t *testing.T) {
	items := []string{"only"}

	page, next, err := Page(items, "", 0)
	if err != nil {
		t.Fatalf("Page() error: %v", err)
	}
	if len(page) != 1 || page[0] != "only" {
		t.Errorf("page = %v", page)
	}
	if next != "" {
		t.Errorf("expected no cursor, got %q", next)
	}
}
