package pagination

import (
	"encoding/base64"
	"fmt"
	"strconv"

	mcperrors "github.com/voxmill/transcript-mcp/pkg/errors"
)

const (
	// DefaultLimit is the default page size for paginated results
	DefaultLimit = 50

	// MaxLimit is the maximum allowed page size for paginated results
	MaxLimit = 200
)

// EncodeCursor produces the opaque cursor for a result offset.
func EncodeCursor(offset int) string {
	return base64.StdEncoding.EncodeToString([]byte(strconv.Itoa(offset)))
}

// DecodeCursor parses an opaque cursor back into an offset. An empty cursor
// means the first page.
func DecodeCursor(cursor string) (int, error) {
	if cursor == "" {
		return 0, nil
	}

	raw, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return 0, mcperrors.InvalidCursor("not base64")
	}

	offset, err := strconv.Atoi(string(raw))
	if err != nil || offset < 0 {
		return 0, mcperrors.InvalidCursor(fmt.Sprintf("bad offset %q", raw))
	}

	return offset, nil
}

// ClampLimit applies the default page size when limit is unset and caps it at
// MaxLimit.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Page slices one page out of items. It returns the page, plus the cursor for
// the next page, or an empty cursor when items are exhausted.
func Page[T any](items []T, cursor string, limit int) ([]T, string, error) {
	offset, err := DecodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}

	limit = ClampLimit(limit)

	if offset >= len(items) {
		return nil, "", nil
	}

	end := offset + limit
	if end > len(items) {
		end = len(items)
	}

	next := ""
	if end < len(items) {
		next = EncodeCursor(end)
	}

	return items[offset:end], next, nil
}
