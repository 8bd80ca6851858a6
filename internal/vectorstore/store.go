package vectorstore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/xxxsen/tierdoc/internal/config"
	"github.com/xxxsen/tierdoc/internal/pkg/dbutil"
	appErr "github.com/xxxsen/tierdoc/internal/pkg/errors"
)

// Record is one stored document. ParentID is zero for records without a parent.
type Record struct {
	Text      string
	Embedding []float32
	ParentID  int64
	Document  string
	Position  int
}

type Hit struct {
	ID       int64
	Score    float32
	Text     string
	ParentID int64
	Document string
	Position int
}

// ParentFilter restricts a search to records whose ParentID is in IDs.
type ParentFilter struct {
	IDs []int64
}

type KNNQuery struct {
	Vector        []float32
	K             int
	NumCandidates int
	Parents       *ParentFilter
}

// VectorStore keeps named collections of embedded records. Hits are ordered
// by score descending, ties broken by ascending id.
type VectorStore interface {
	CreateIndex(ctx context.Context, name string, dim int) error
	// DeleteIndex is a no-op when the collection does not exist.
	DeleteIndex(ctx context.Context, name string) error
	Index(ctx context.Context, name string, rec Record) (int64, error)
	KNNSearch(ctx context.Context, name string, q KNNQuery) ([]Hit, error)
}

type Factory func(db *sql.DB, cfg config.VectorStoreConfig) (VectorStore, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func New(db *sql.DB, cfg config.VectorStoreConfig) (VectorStore, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Type))
	if key == "" {
		return nil, fmt.Errorf("vector_store.type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported vector store type: %s", cfg.Type)
	}
	return factory(db, cfg)
}

func checkName(name string) error {
	if !config.ValidIndexName(name) {
		return fmt.Errorf("invalid index name %q: %w", name, appErr.ErrInvalid)
	}
	return nil
}

// indexFailed wraps err with ErrIndexOperationFailed. A missing collection
// table also matches ErrNotFound.
func indexFailed(op, name string, err error) error {
	if dbutil.IsUndefinedTable(err) {
		return fmt.Errorf("%s %s: %w: %w: %w", op, name, appErr.ErrIndexOperationFailed, appErr.ErrNotFound, err)
	}
	return fmt.Errorf("%s %s: %w: %w", op, name, appErr.ErrIndexOperationFailed, err)
}

// CheckDim fails for an empty vector, and for a vector whose length is not
// dim when dim is set.
func CheckDim(name string, dim int, vec []float32) error {
	if len(vec) == 0 {
		return indexFailed("check dimension", name, fmt.Errorf("empty vector"))
	}
	if dim > 0 && len(vec) != dim {
		return indexFailed("check dimension", name, fmt.Errorf("vector has %d dimensions, index has %d", len(vec), dim))
	}
	return nil
}

func candidates(q KNNQuery) int {
	if q.NumCandidates < q.K {
		return q.K
	}
	return q.NumCandidates
}

func parentIDs(f *ParentFilter) []interface{} {
	ids := make([]interface{}, 0, len(f.IDs))
	for _, id := range f.IDs {
		ids = append(ids, id)
	}
	return ids
}

func sortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
}
