// Package pagination provides opaque cursor pagination for list surfaces.
//
// Cursors encode a result offset as base64 and are treated as opaque by
// clients: a consumer passes back exactly the cursor it received. The package
// serves both the protocol's tools/list operation and the saved-transcript
// listing.
//
// To page through an in-memory slice:
//
//	page, next, err := pagination.Page(tools, params.Cursor, pagination.DefaultLimit)
//	if err != nil {
//	    return nil, err // invalid cursor
//	}
//	result := protocol.ListToolsResult{Tools: page, NextCursor: next}
//
// For store-backed listings, DecodeCursor and EncodeCursor translate between
// the wire cursor and the SQL offset:
//
//	offset, err := pagination.DecodeCursor(cursor)
//	rows, err := store.List(ctx, subject, pagination.ClampLimit(limit), offset)
package pagination
