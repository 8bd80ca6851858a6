package dbutil

import (
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestFinalize(t *testing.T) {
	query, args := Finalize("postgres", "SELECT id FROM chunks WHERE parent_id = ? LIMIT ?,?", []interface{}{int64(7), 10, 20})
	require.Equal(t, "SELECT id FROM chunks WHERE parent_id = $1 LIMIT $2 OFFSET $3", query)
	require.Equal(t, []interface{}{int64(7), 20, 10}, args)

	query, _ = Finalize("sqlite", "SELECT id FROM chunks WHERE parent_id = ?", []interface{}{int64(7)})
	require.Equal(t, "SELECT id FROM chunks WHERE parent_id = ?", query)
}

func TestIsUndefinedTable(t *testing.T) {
	require.True(t, IsUndefinedTable(&pq.Error{Code: "42P01"}))
	require.True(t, IsUndefinedTable(errors.New("SQL logic error: no such table: chunks (1)")))
	require.False(t, IsUndefinedTable(errors.New("boom")))
	require.False(t, IsUndefinedTable(nil))
}
