package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	ts := time.Date(2026, 2, 15, 10, 30, 0, 0, time.UTC)
	id := "ord_abc123"

	encoded := Encode(ts, id)
	assert.NotEmpty(t, encoded)

	cursor, err := Decode(encoded)
	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.Equal(t, ts, cursor.CreatedAt)
	assert.Equal(t, id, cursor.ID)
}

func TestDecode_Empty(t *testing.T) {
	cursor, err := Decode("")
	assert.NoError(t, err)
	assert.Nil(t, cursor)
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode("not-base64!!!")
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestDecode_MalformedPayload(t *testing.T) {
	// Valid base64 but no | separator
	_, err := Decode("bm9waXBl") // "nopipe"
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestNext_ShortPage(t *testing.T) {
	items := []string{"ord_a", "ord_b", "ord_c"}
	cursor := Next(items, 5, func(s string) (time.Time, string) {
		return time.Now(), s
	})
	assert.Empty(t, cursor)
}

func TestNext_FullPage(t *testing.T) {
	items := []string{"ord_a", "ord_b", "ord_c"}
	cursor := Next(items, 3, func(s string) (time.Time, string) {
		return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), s
	})
	require.NotEmpty(t, cursor)

	// The cursor points at the last row of the page.
	c, err := Decode(cursor)
	require.NoError(t, err)
	assert.Equal(t, "ord_c", c.ID)
}

func TestNext_EmptyPage(t *testing.T) {
	cursor := Next(nil, 3, func(s string) (time.Time, string) {
		return time.Now(), s
	})
	assert.Empty(t, cursor)
}
