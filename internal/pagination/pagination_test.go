package pagination

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPaginateEmpty(t *testing.T) {
	p := Paginate(1, 0, DefaultPerPage)
	require.Equal(t, 0, p.TotalPages)
	require.False(t, p.HasNextPage)
	require.False(t, p.HasPrevPage)
	require.Equal(t, 0, p.Offset)
	require.Equal(t, 20, p.Limit)
}

func TestPaginateLastPage(t *testing.T) {
	p := Paginate(2, 25, 20)
	require.Equal(t, 2, p.TotalPages)
	require.False(t, p.HasNextPage)
	require.True(t, p.HasPrevPage)
	require.Equal(t, 20, p.Offset)
}

func TestPaginateMiddlePage(t *testing.T) {
	p := Paginate(2, 100, 20)
	require.Equal(t, 5, p.TotalPages)
	require.True(t, p.HasNextPage)
	require.True(t, p.HasPrevPage)
	require.Equal(t, 20, p.Offset)
}

func TestPaginateExactMultiple(t *testing.T) {
	p := Paginate(2, 40, 20)
	require.Equal(t, 2, p.TotalPages)
	require.False(t, p.HasNextPage)
}
