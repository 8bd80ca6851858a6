package vectorstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/tierdoc/internal/config"
)

// pgvector caps hnsw.ef_search at 1000.
const maxEFSearch = 1000

type pgStore struct {
	db             *sql.DB
	dim            int
	hnswM          int
	efConstruction int
}

func init() {
	Register("pgvector", createPGStore)
}

func createPGStore(db *sql.DB, cfg config.VectorStoreConfig) (VectorStore, error) {
	if db == nil {
		return nil, fmt.Errorf("pgvector store requires a database")
	}
	return &pgStore{
		db:             db,
		dim:            cfg.EmbeddingDim,
		hnswM:          cfg.HNSWM,
		efConstruction: cfg.EFConstruction,
	}, nil
}

func (s *pgStore) hnswWithClause() string {
	var parts []string
	if s.hnswM > 0 {
		parts = append(parts, fmt.Sprintf("m = %d", s.hnswM))
	}
	if s.efConstruction > 0 {
		parts = append(parts, fmt.Sprintf("ef_construction = %d", s.efConstruction))
	}
	if len(parts) == 0 {
		return ""
	}
	return " WITH (" + strings.Join(parts, ", ") + ")"
}

func (s *pgStore) CreateIndex(ctx context.Context, name string, dim int) error {
	if err := checkName(name); err != nil {
		return err
	}
	if dim <= 0 {
		dim = s.dim
	}
	vectorType := "vector"
	if dim > 0 {
		vectorType = fmt.Sprintf("vector(%d)", dim)
	}
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			text TEXT NOT NULL,
			embedding %s NOT NULL,
			parent_id BIGINT NOT NULL DEFAULT 0,
			document TEXT NOT NULL DEFAULT '',
			position INTEGER NOT NULL DEFAULT 0
		)`, name, vectorType),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_parent_idx ON %s (parent_id)`, name, name),
	}
	// hnsw needs a typed column
	if dim > 0 {
		stmts = append(stmts, fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding vector_cosine_ops)%s`,
			name, name, s.hnswWithClause()))
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return indexFailed("create index", name, err)
		}
	}
	return nil
}

func (s *pgStore) DeleteIndex(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, name)); err != nil {
		return indexFailed("delete index", name, err)
	}
	return nil
}

func (s *pgStore) Index(ctx context.Context, name string, rec Record) (int64, error) {
	if err := checkName(name); err != nil {
		return 0, err
	}
	data := map[string]interface{}{
		"text":      rec.Text,
		"embedding": pgvector.NewVector(rec.Embedding),
		"parent_id": rec.ParentID,
		"document":  rec.Document,
		"position":  rec.Position,
	}
	sqlStr, args, err := builder.BuildInsert(name, []map[string]interface{}{data})
	if err != nil {
		return 0, indexFailed("index", name, err)
	}
	sqlStr = sqlx.Rebind(sqlx.DOLLAR, sqlStr+" RETURNING id")
	var id int64
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&id); err != nil {
		return 0, indexFailed("index", name, err)
	}
	return id, nil
}

func (s *pgStore) KNNSearch(ctx context.Context, name string, q KNNQuery) ([]Hit, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	if q.K <= 0 || (q.Parents != nil && len(q.Parents.IDs) == 0) {
		return nil, nil
	}
	vec := pgvector.NewVector(q.Vector)
	query := fmt.Sprintf(`SELECT id, text, parent_id, document, position, 1 - (embedding <=> ?::vector) AS score FROM %s`, name)
	args := []interface{}{vec}
	if q.Parents != nil {
		query += ` WHERE parent_id IN (?)`
		args = append(args, parentIDs(q.Parents))
	}
	query += ` ORDER BY embedding <=> ?::vector, id LIMIT ?`
	args = append(args, vec, q.K)
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, indexFailed("search", name, err)
	}
	query = sqlx.Rebind(sqlx.DOLLAR, query)

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, indexFailed("search", name, err)
	}
	defer func() { _ = tx.Rollback() }()
	ef := candidates(q)
	if ef > maxEFSearch {
		ef = maxEFSearch
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`SET LOCAL hnsw.ef_search = %d`, ef)); err != nil {
		return nil, indexFailed("search", name, err)
	}
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, indexFailed("search", name, err)
	}
	defer rows.Close()
	var hits []Hit
	for rows.Next() {
		var hit Hit
		var score float64
		if err := rows.Scan(&hit.ID, &hit.Text, &hit.ParentID, &hit.Document, &hit.Position, &score); err != nil {
			return nil, indexFailed("search", name, err)
		}
		hit.Score = float32(score)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, indexFailed("search", name, err)
	}
	return hits, nil
}
