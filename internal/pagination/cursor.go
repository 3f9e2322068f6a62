// Package pagination provides opaque keyset cursors for the order feed.
//
// Feed pages are ordered by (created_at, id) descending; a cursor names
// the last row of the previous page so the next query resumes below it.
package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidCursor is returned for cursors this process did not mint.
var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor is the decoded position: the (created_at, id) key of the last
// row the client has seen.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// Encode returns an opaque cursor token for a row key.
func Encode(createdAt time.Time, id string) string {
	raw := fmt.Sprintf("%d|%s", createdAt.UnixNano(), id)
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

// Decode parses an opaque cursor token. Returns nil for empty input so
// callers can pass the raw query parameter through.
func Decode(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 || parts[1] == "" {
		return nil, ErrInvalidCursor
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	return &Cursor{
		CreatedAt: time.Unix(0, nanos).UTC(),
		ID:        parts[1],
	}, nil
}

// Next returns the cursor for the page after items, or "" when the page
// came back short and there is nothing further. The feed fetches exactly
// limit rows, so a full page means more may follow.
func Next[T any](items []T, limit int, key func(T) (time.Time, string)) string {
	if limit <= 0 || len(items) < limit {
		return ""
	}
	createdAt, id := key(items[len(items)-1])
	return Encode(createdAt, id)
}
