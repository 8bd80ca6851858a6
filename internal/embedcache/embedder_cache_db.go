package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/tierdoc/internal/ai"
	"github.com/xxxsen/tierdoc/internal/model"
)

type CacheRepo interface {
	Get(ctx context.Context, modelName, taskType, textHash string) ([]float32, bool, error)
	Save(ctx context.Context, item *model.CachedEmbedding) error
}

// WrapDBCacheToEmbedder persists vectors so a re-ingest after reset does not
// pay for embeddings again. Cache failures are logged and never returned.
func WrapDBCacheToEmbedder(e ai.IEmbedder, repo CacheRepo) ai.IEmbedder {
	if e == nil || repo == nil {
		return e
	}
	return &dbEmbedder{next: e, repo: repo, now: time.Now}
}

type dbEmbedder struct {
	next ai.IEmbedder
	repo CacheRepo
	now  func() time.Time
}

func (d *dbEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	key := newEmbedKey(d.next.ModelName(), taskType, text)
	logger := logutil.GetLogger(ctx).With(zap.String("model", key.model), zap.String("task_type", taskType))
	values, ok, err := d.repo.Get(ctx, key.model, taskType, key.textHash)
	switch {
	case err != nil:
		logger.Warn("embedding cache lookup failed", zap.Error(err))
	case ok:
		logger.Debug("embedding cache hit (db)")
		return values, nil
	}
	res, err := d.next.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	item := &model.CachedEmbedding{
		Model:     key.model,
		TaskType:  taskType,
		TextHash:  key.textHash,
		Vector:    res,
		CreatedAt: d.now().Unix(),
	}
	if err := d.repo.Save(ctx, item); err != nil {
		logger.Warn("save embedding cache failed", zap.Error(err))
	}
	return res, nil
}

func (d *dbEmbedder) ModelName() string {
	return d.next.ModelName()
}

type embedKey struct {
	model    string
	taskType string
	textHash string
}

func newEmbedKey(modelName, taskType, text string) embedKey {
	modelName = strings.TrimSpace(modelName)
	if modelName == "" {
		modelName = "unknown"
	}
	sum := sha256.Sum256([]byte(text))
	return embedKey{model: modelName, taskType: taskType, textHash: hex.EncodeToString(sum[:])}
}

func (k embedKey) String() string {
	return k.model + "|" + k.taskType + "|" + k.textHash
}
