package embedcache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xxxsen/tierdoc/internal/ai"
)

// WrapLruCacheToEmbedder keeps recent vectors in memory. Concurrent ingest
// workers asking for the same text share one call to the inner embedder.
func WrapLruCacheToEmbedder(e ai.IEmbedder, size int, ttl time.Duration) ai.IEmbedder {
	if e == nil || size <= 0 || ttl <= 0 {
		return e
	}
	return &lruEmbedder{
		next:  e,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

type lruEmbedder struct {
	next   ai.IEmbedder
	cache  *expirable.LRU[string, []float32]
	flight singleflight.Group
}

// Embed hands every caller its own copy; callers may modify the slice.
// The shared call runs detached from any single caller, so one caller
// giving up does not fail the others waiting on the same text.
func (l *lruEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	key := newEmbedKey(l.next.ModelName(), taskType, text).String()
	if cached, ok := l.cache.Get(key); ok {
		logutil.GetLogger(ctx).Debug("embedding cache hit (lru)", zap.String("task_type", taskType))
		return cloneVector(cached), nil
	}
	flightCtx := context.WithoutCancel(ctx)
	ch := l.flight.DoChan(key, func() (interface{}, error) {
		res, err := l.next.Embed(flightCtx, text, taskType)
		if err != nil {
			return nil, err
		}
		stored := cloneVector(res)
		l.cache.Add(key, stored)
		return stored, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		if r.Shared {
			logutil.GetLogger(ctx).Debug("embedding call shared", zap.String("task_type", taskType))
		}
		return cloneVector(r.Val.([]float32)), nil
	}
}

func (l *lruEmbedder) ModelName() string {
	return l.next.ModelName()
}

func cloneVector(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	out := make([]float32, len(values))
	copy(out, values)
	return out
}
