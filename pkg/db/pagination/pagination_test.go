package pagination

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type row struct{ ID string }

func TestPage(t *testing.T) {
	rows := []*row{{ID: "1"}, {ID: "2"}, {ID: "3"}}

	data, info := Page(rows, 2, func(r *row) string { return r.ID })
	require.Len(t, data, 2)
	require.True(t, info.HasMore)
	require.Equal(t, "2", info.NextCursor)

	data, info = Page(rows, 5, func(r *row) string { return r.ID })
	require.Len(t, data, 3)
	require.False(t, info.HasMore)
	require.Empty(t, info.NextCursor)
}

func TestCursorRoundTrip(t *testing.T) {
	encoded, err := EncodeCursor(Cursor{ID: "1790000000000000000"})
	require.NoError(t, err)

	cursor, err := DecodeCursor(encoded)
	require.NoError(t, err)
	require.Equal(t, "1790000000000000000", cursor.ID)

	_, err = DecodeCursor("%%%")
	require.Error(t, err)
}

func TestNormalize(t *testing.T) {
	require.Equal(t, DefaultLimit, Pagination{}.Normalize().Limit)
	require.Equal(t, MaxLimit, Pagination{Limit: 1000}.Normalize().Limit)
	require.Equal(t, 5, Pagination{Limit: 5}.Normalize().Limit)
}
