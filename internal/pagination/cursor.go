// Package pagination implements opaque forward-only cursors over the
// composite (created_at, id) sort key shared by all list queries.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidCursor = errors.New("invalid cursor")

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Page is the caller's request for one slice of a result set.
type Page struct {
	Limit  int
	Cursor string
	Order  SortOrder
}

// Normalize clamps the limit and defaults the sort order so adapters never
// see out-of-range values.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Order != SortDesc {
		p.Order = SortAsc
	}
	return p
}

// Result is one page of items plus the cursors needed to continue.
type Result[T any] struct {
	Items      []T
	HasMore    bool
	NextCursor string
	PrevCursor string
}

type cursorToken struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// EncodeCursor packs the sort-key values of a boundary row into an opaque
// token.
func EncodeCursor(id uuid.UUID, createdAt time.Time) string {
	raw, _ := json.Marshal(cursorToken{ID: id, CreatedAt: createdAt})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor reverses EncodeCursor. Beyond a successful decode the token is
// not validated; a stale cursor simply shifts the window.
func DecodeCursor(s string) (uuid.UUID, time.Time, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return uuid.Nil, time.Time{}, fmt.Errorf("DecodeCursor: %w: %w", err, ErrInvalidCursor)
	}
	var tok cursorToken
	if err := json.Unmarshal(raw, &tok); err != nil {
		return uuid.Nil, time.Time{}, fmt.Errorf("DecodeCursor: %w: %w", err, ErrInvalidCursor)
	}
	return tok.ID, tok.CreatedAt, nil
}
