package repo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/tierdoc/internal/config"
	"github.com/xxxsen/tierdoc/internal/db"
	"github.com/xxxsen/tierdoc/internal/model"
	"github.com/xxxsen/tierdoc/internal/repo"
)

func openSQLite(t *testing.T) *repo.EmbeddingCacheRepo {
	t.Helper()
	conn, err := db.Open(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, db.ApplyMigrations(conn, "sqlite"))
	return repo.NewEmbeddingCacheRepo(conn, "sqlite")
}

func TestEmbeddingCacheRepoRoundTrip(t *testing.T) {
	cache := openSQLite(t)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "m", "RETRIEVAL_DOCUMENT", "hash-1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, cache.Save(ctx, &model.CachedEmbedding{
		Model: "m", TaskType: "RETRIEVAL_DOCUMENT", TextHash: "hash-1",
		Vector: []float32{0.5, 0.25}, CreatedAt: 100,
	}))
	require.NoError(t, cache.Save(ctx, &model.CachedEmbedding{
		Model: "m", TaskType: "RETRIEVAL_DOCUMENT", TextHash: "hash-1",
		Vector: []float32{1, 2}, CreatedAt: 200,
	}))

	values, ok, err := cache.Get(ctx, "m", "RETRIEVAL_DOCUMENT", "hash-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []float32{1, 2}, values)

	_, ok, err = cache.Get(ctx, "m", "RETRIEVAL_QUERY", "hash-1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEmbeddingCacheRepoDeleteBefore(t *testing.T) {
	cache := openSQLite(t)
	ctx := context.Background()
	require.NoError(t, cache.Save(ctx, &model.CachedEmbedding{Model: "m", TaskType: "t", TextHash: "old", Vector: []float32{1}, CreatedAt: 10}))
	require.NoError(t, cache.Save(ctx, &model.CachedEmbedding{Model: "m", TaskType: "t", TextHash: "new", Vector: []float32{1}, CreatedAt: 50}))

	removed, err := cache.DeleteBefore(ctx, 20)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	_, ok, err := cache.Get(ctx, "m", "t", "new")
	require.NoError(t, err)
	require.True(t, ok)
}
