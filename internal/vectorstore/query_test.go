package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildSearchQueryNoFilter(t *testing.T) {
	query, args := buildSearchQuery("", 5)
	require.NotContains(t, query, "WHERE")
	require.Contains(t, query, "LIMIT $2")
	require.Equal(t, []any{5}, args)
}

func TestBuildSearchQueryWithFilter(t *testing.T) {
	query, args := buildSearchQuery(".pdf", 10)
	require.Contains(t, query, "WHERE d.filename ILIKE $2")
	require.Contains(t, query, "LIMIT $3")
	require.Equal(t, []any{"%pdf", 10}, args)
}
