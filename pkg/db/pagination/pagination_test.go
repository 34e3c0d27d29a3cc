package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 123, time.UTC)
	token := EncodeCursor("42", at)

	cursor, createdAt, err := DecodeCursor(token)
	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.Equal(t, "42", cursor.ID)
	assert.True(t, createdAt.Equal(at))
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	_, _, err := DecodeCursor("not-a-token!")
	assert.ErrorIs(t, err, ErrInvalidPageToken)
}

func TestTrimReportsMore(t *testing.T) {
	items, info := Trim([]int{1, 2, 3}, 2, func(v int) string { return "x" })
	assert.Equal(t, []int{1, 2}, items)
	assert.True(t, info.HasMore)
	assert.Equal(t, "x", info.NextPageToken)

	items, info = Trim([]int{1}, 2, func(v int) string { return "x" })
	assert.Len(t, items, 1)
	assert.False(t, info.HasMore)
}

func TestSizeClamps(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Pagination{}.Size())
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 10000}.Size())
	assert.Equal(t, 7, Pagination{PageSize: 7}.Size())
}
