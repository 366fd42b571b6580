package pagination

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type row struct{ id string }

func TestCursorRoundTrip(t *testing.T) {
	enc, err := EncodeCursor(Cursor{CreatedAt: "2024-01-01T00:00:00Z", ID: "42"})
	require.NoError(t, err)

	cur, err := DecodeCursor(enc)
	require.NoError(t, err)
	require.Equal(t, "42", cur.ID)

	_, err = DecodeCursor("%%%")
	require.Error(t, err)
}

func TestBuildCursorPageInfo(t *testing.T) {
	rows := []*row{{"a"}, {"b"}, {"c"}}

	page, info := BuildCursorPageInfo(rows, 2, func(r *row) string { return r.id })
	require.Len(t, page, 2)
	require.True(t, info.HasMore)
	require.Equal(t, "b", info.NextCursor)

	page, info = BuildCursorPageInfo(rows, 5, func(r *row) string { return r.id })
	require.Len(t, page, 3)
	require.False(t, info.HasMore)
	require.Empty(t, info.NextCursor)
}

func TestNormalized(t *testing.T) {
	require.Equal(t, DefaultLimit, Pagination{}.Normalized().Limit)
	require.Equal(t, MaxLimit, Pagination{Limit: 1000}.Normalized().Limit)
	require.Equal(t, 5, Pagination{Limit: 5}.Normalized().Limit)
}
