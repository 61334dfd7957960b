package client

import (
	"context"
	"fmt"

	"github.com/voxmill/transcript-mcp/pkg/protocol"
)

// maxToolPages caps cursor-following so a server bug cannot loop a caller
// forever.
const maxToolPages = 64

// ListAllTools walks every page of the tool listing and returns the
// concatenation in server order.
func (c *Client) ListAllTools(ctx context.Context) ([]protocol.Tool, error) {
	var all []protocol.Tool
	cursor := ""

	for page := 0; page < maxToolPages; page++ {
		result, err := c.ListTools(ctx, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, result.Tools...)

		if result.NextCursor == "" {
			return all, nil
		}
		if result.NextCursor == cursor {
			return nil, fmt.Errorf("tool listing repeated cursor %q", cursor)
		}
		cursor = result.NextCursor
	}
	return nil, fmt.Errorf("tool listing exceeded %d pages", maxToolPages)
}
