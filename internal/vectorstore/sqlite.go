package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/tierdoc/internal/config"
	"github.com/xxxsen/tierdoc/internal/pkg/dbutil"
)

// collectionsTable records the vector dimension of each sqlite collection.
// Zero means not yet known; the first indexed vector fixes it.
const collectionsTable = "vector_collections"

// sqliteStore scores every candidate row exactly. It suits local runs and
// tests where collections are small.
type sqliteStore struct {
	db  *sql.DB
	dim int
}

func init() {
	Register("sqlite", createSQLiteStore)
}

func createSQLiteStore(db *sql.DB, cfg config.VectorStoreConfig) (VectorStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite store requires a database")
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS ` + collectionsTable + ` (
		name TEXT PRIMARY KEY,
		dim INTEGER NOT NULL DEFAULT 0
	)`); err != nil {
		return nil, fmt.Errorf("create %s: %w", collectionsTable, err)
	}
	return &sqliteStore{db: db, dim: cfg.EmbeddingDim}, nil
}

func (s *sqliteStore) CreateIndex(ctx context.Context, name string, dim int) error {
	if err := checkName(name); err != nil {
		return err
	}
	if dim <= 0 {
		dim = s.dim
	}
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			text TEXT NOT NULL,
			embedding TEXT NOT NULL,
			parent_id INTEGER NOT NULL DEFAULT 0,
			document TEXT NOT NULL DEFAULT '',
			position INTEGER NOT NULL DEFAULT 0
		)`, name),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_parent_idx ON %s (parent_id)`, name, name),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return indexFailed("create index", name, err)
		}
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO `+collectionsTable+` (name, dim) VALUES (?, ?) ON CONFLICT (name) DO NOTHING`, name, dim)
	if err != nil {
		return indexFailed("create index", name, err)
	}
	return nil
}

func (s *sqliteStore) DeleteIndex(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, name)); err != nil {
		return indexFailed("delete index", name, err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM `+collectionsTable+` WHERE name = ?`, name); err != nil {
		return indexFailed("delete index", name, err)
	}
	return nil
}

func (s *sqliteStore) collectionDim(ctx context.Context, name string) (int, error) {
	var dim int
	err := s.db.QueryRowContext(ctx, `SELECT dim FROM `+collectionsTable+` WHERE name = ?`, name).Scan(&dim)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return dim, err
}

func (s *sqliteStore) Index(ctx context.Context, name string, rec Record) (int64, error) {
	if err := checkName(name); err != nil {
		return 0, err
	}
	dim, err := s.collectionDim(ctx, name)
	if err != nil {
		return 0, indexFailed("index", name, err)
	}
	if err := CheckDim(name, dim, rec.Embedding); err != nil {
		return 0, err
	}
	if dim == 0 {
		_, err := s.db.ExecContext(ctx, `UPDATE `+collectionsTable+` SET dim = ? WHERE name = ? AND dim = 0`, len(rec.Embedding), name)
		if err != nil {
			return 0, indexFailed("index", name, err)
		}
	}
	blob, err := json.Marshal(rec.Embedding)
	if err != nil {
		return 0, indexFailed("index", name, err)
	}
	data := map[string]interface{}{
		"text":      rec.Text,
		"embedding": string(blob),
		"parent_id": rec.ParentID,
		"document":  rec.Document,
		"position":  rec.Position,
	}
	sqlStr, args, err := builder.BuildInsert(name, []map[string]interface{}{data})
	if err != nil {
		return 0, indexFailed("index", name, err)
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, indexFailed("index", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, indexFailed("index", name, err)
	}
	return id, nil
}

func (s *sqliteStore) KNNSearch(ctx context.Context, name string, q KNNQuery) ([]Hit, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	if q.K <= 0 || (q.Parents != nil && len(q.Parents.IDs) == 0) {
		return nil, nil
	}
	dim, err := s.collectionDim(ctx, name)
	if err != nil {
		return nil, indexFailed("search", name, err)
	}
	if err := CheckDim(name, dim, q.Vector); err != nil {
		return nil, err
	}
	where := map[string]interface{}{}
	if q.Parents != nil {
		where["parent_id in"] = parentIDs(q.Parents)
	}
	sqlStr, args, err := builder.BuildSelect(name, where, []string{"id", "text", "embedding", "parent_id", "document", "position"})
	if err != nil {
		return nil, indexFailed("search", name, err)
	}
	sqlStr, args = dbutil.Finalize("sqlite", sqlStr, args)
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, indexFailed("search", name, err)
	}
	defer rows.Close()
	var hits []Hit
	for rows.Next() {
		var hit Hit
		var blob string
		if err := rows.Scan(&hit.ID, &hit.Text, &blob, &hit.ParentID, &hit.Document, &hit.Position); err != nil {
			return nil, indexFailed("search", name, err)
		}
		var embedding []float32
		if err := json.Unmarshal([]byte(blob), &embedding); err != nil {
			return nil, indexFailed("search", name, err)
		}
		if len(embedding) != len(q.Vector) {
			return nil, indexFailed("search", name, fmt.Errorf("record %d has %d dimensions, query has %d", hit.ID, len(embedding), len(q.Vector)))
		}
		hit.Score = cosine(q.Vector, embedding)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, indexFailed("search", name, err)
	}
	sortHits(hits)
	if len(hits) > q.K {
		hits = hits[:q.K]
	}
	return hits, nil
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
