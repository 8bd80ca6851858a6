package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/tierdoc/internal/model"
	"github.com/xxxsen/tierdoc/internal/pkg/dbutil"
)

type EmbeddingCacheRepo struct {
	db     *sql.DB
	driver string
}

func NewEmbeddingCacheRepo(db *sql.DB, driver string) *EmbeddingCacheRepo {
	return &EmbeddingCacheRepo{db: db, driver: driver}
}

func (r *EmbeddingCacheRepo) Get(ctx context.Context, modelName, taskType, contentHash string) ([]float32, bool, error) {
	where := map[string]interface{}{
		"model_name":   modelName,
		"task_type":    taskType,
		"content_hash": contentHash,
	}
	sqlStr, args, err := builder.BuildSelect("embedding_cache", where, []string{"embedding"})
	if err != nil {
		return nil, false, err
	}
	sqlStr, args = dbutil.Finalize(r.driver, sqlStr, args)
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	var blob string
	if err := row.Scan(&blob); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	var embedding []float32
	if err := json.Unmarshal([]byte(blob), &embedding); err != nil {
		return nil, false, err
	}
	return embedding, true, nil
}

func (r *EmbeddingCacheRepo) Save(ctx context.Context, item *model.CachedEmbedding) error {
	blob, err := json.Marshal(item.Vector)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO embedding_cache (model_name, task_type, content_hash, embedding, ctime)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (model_name, task_type, content_hash) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			ctime = EXCLUDED.ctime
	`
	sqlStr, args := dbutil.Finalize(r.driver, query, []interface{}{
		item.Model,
		item.TaskType,
		item.TextHash,
		string(blob),
		item.CreatedAt,
	})
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *EmbeddingCacheRepo) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	sqlStr, args := dbutil.Finalize(r.driver, `DELETE FROM embedding_cache WHERE ctime < ?`, []interface{}{cutoff})
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
