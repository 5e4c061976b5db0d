package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	id := uuid.New()
	createdAt := time.Date(2026, 8, 31, 12, 34, 56, 789000000, time.UTC)

	token := EncodeCursor(id, createdAt)
	require.NotEmpty(t, token)

	gotID, gotCreatedAt, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, id, gotID)
	assert.True(t, createdAt.Equal(gotCreatedAt))
}

func TestDecodeCursor_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{name: "not base64", token: "%%%not-base64%%%"},
		{name: "base64 but not json", token: "bm90LWpzb24"},
		{name: "truncated token", token: EncodeCursor(uuid.New(), time.Now())[:10]},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := DecodeCursor(tc.token)
			assert.ErrorIs(t, err, ErrInvalidCursor)
		})
	}
}

func TestPageNormalize(t *testing.T) {
	tests := []struct {
		name      string
		in        Page
		wantLimit int
		wantOrder SortOrder
	}{
		{name: "zero limit defaults", in: Page{}, wantLimit: DefaultLimit, wantOrder: SortAsc},
		{name: "negative limit defaults", in: Page{Limit: -3}, wantLimit: DefaultLimit, wantOrder: SortAsc},
		{name: "over max clamps", in: Page{Limit: 5000}, wantLimit: MaxLimit, wantOrder: SortAsc},
		{name: "in range kept", in: Page{Limit: 25, Order: SortDesc}, wantLimit: 25, wantOrder: SortDesc},
		{name: "unknown order defaults asc", in: Page{Limit: 10, Order: "sideways"}, wantLimit: 10, wantOrder: SortAsc},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.in.Normalize()
			assert.Equal(t, tc.wantLimit, got.Limit)
			assert.Equal(t, tc.wantOrder, got.Order)
		})
	}
}
