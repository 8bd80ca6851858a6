package embedcache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/tierdoc/internal/model"
)

type countingEmbedder struct {
	calls int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	c.calls++
	return []float32{float32(len(text)), 1}, nil
}

func (c *countingEmbedder) ModelName() string {
	return "fake"
}

type memoryRepo struct {
	items   map[string][]float32
	failGet bool
}

func (m *memoryRepo) Get(ctx context.Context, modelName, taskType, contentHash string) ([]float32, bool, error) {
	if m.failGet {
		return nil, false, errors.New("db down")
	}
	v, ok := m.items[modelName+taskType+contentHash]
	return v, ok, nil
}

func (m *memoryRepo) Save(ctx context.Context, item *model.CachedEmbedding) error {
	m.items[item.Model+item.TaskType+item.TextHash] = item.Vector
	return nil
}

func TestLruEmbedderCachesByTaskType(t *testing.T) {
	next := &countingEmbedder{}
	emb := WrapLruCacheToEmbedder(next, 10, time.Minute)
	ctx := context.Background()

	first, err := emb.Embed(ctx, "hello", "RETRIEVAL_QUERY")
	require.NoError(t, err)
	first[0] = 99

	second, err := emb.Embed(ctx, "hello", "RETRIEVAL_QUERY")
	require.NoError(t, err)
	require.Equal(t, []float32{5, 1}, second)
	require.Equal(t, 1, next.calls)

	_, err = emb.Embed(ctx, "hello", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	require.Equal(t, 2, next.calls)
}

func TestLruDisabledReturnsInner(t *testing.T) {
	next := &countingEmbedder{}
	require.Same(t, next, WrapLruCacheToEmbedder(next, 0, time.Minute))
}

func TestDBEmbedderPersistsAndReuses(t *testing.T) {
	next := &countingEmbedder{}
	repo := &memoryRepo{items: map[string][]float32{}}
	emb := WrapDBCacheToEmbedder(next, repo)
	ctx := context.Background()

	_, err := emb.Embed(ctx, "chunk text", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	_, err = emb.Embed(ctx, "chunk text", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	require.Equal(t, 1, next.calls)
	require.Len(t, repo.items, 1)
}

func TestDBEmbedderFallsThroughOnLookupError(t *testing.T) {
	next := &countingEmbedder{}
	emb := WrapDBCacheToEmbedder(next, &memoryRepo{items: map[string][]float32{}, failGet: true})
	vec, err := emb.Embed(context.Background(), "abc", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	require.Equal(t, []float32{3, 1}, vec)
	require.Equal(t, 1, next.calls)
}

// gatedEmbedder blocks until release is closed and then fails if its own
// context has been canceled meanwhile.
type gatedEmbedder struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (g *gatedEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if g.calls.Add(1) == 1 {
		close(g.started)
	}
	<-g.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []float32{1, 2}, nil
}

func (g *gatedEmbedder) ModelName() string {
	return "gated"
}

func TestLruSharedCallSurvivesFirstCallerCancel(t *testing.T) {
	next := &gatedEmbedder{started: make(chan struct{}), release: make(chan struct{})}
	emb := WrapLruCacheToEmbedder(next, 10, time.Minute)

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := emb.Embed(firstCtx, "same query", "RETRIEVAL_QUERY")
		firstErr <- err
	}()
	<-next.started
	cancel()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	type result struct {
		vec []float32
		err error
	}
	second := make(chan result, 1)
	go func() {
		vec, err := emb.Embed(context.Background(), "same query", "RETRIEVAL_QUERY")
		second <- result{vec: vec, err: err}
	}()
	time.Sleep(50 * time.Millisecond)
	close(next.release)

	res := <-second
	require.NoError(t, res.err)
	require.Equal(t, []float32{1, 2}, res.vec)
	require.Equal(t, int32(1), next.calls.Load())

	_, err := emb.Embed(context.Background(), "same query", "RETRIEVAL_QUERY")
	require.NoError(t, err)
	require.Equal(t, int32(1), next.calls.Load())
}
