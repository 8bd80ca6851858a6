package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/tierdoc/internal/ai"
	"github.com/xxxsen/tierdoc/internal/config"
	"github.com/xxxsen/tierdoc/internal/db"
	"github.com/xxxsen/tierdoc/internal/embedcache"
	"github.com/xxxsen/tierdoc/internal/index"
	"github.com/xxxsen/tierdoc/internal/repo"
	"github.com/xxxsen/tierdoc/internal/service"
	"github.com/xxxsen/tierdoc/internal/source"
	"github.com/xxxsen/tierdoc/internal/vectorstore"
)

type runtime struct {
	db        *sql.DB
	app       *service.App
	cacheRepo *repo.EmbeddingCacheRepo
}

func (r *runtime) Close() {
	if r.db != nil {
		_ = r.db.Close()
	}
}

func buildRuntime(cfg *config.Config) (*runtime, error) {
	logger := logutil.GetLogger(context.Background())
	conn, err := db.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	rt := &runtime{db: conn}
	if err := db.ApplyMigrations(conn, cfg.Database.Driver); err != nil {
		rt.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	rt.cacheRepo = repo.NewEmbeddingCacheRepo(conn, cfg.Database.Driver)

	embedder, err := ai.BuildEmbedder(cfg.AI)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("init embedder: %w", err)
	}
	if cfg.AI.EmbedDBCache {
		embedder = embedcache.WrapDBCacheToEmbedder(embedder, rt.cacheRepo)
	}
	embedder = embedcache.WrapLruCacheToEmbedder(embedder, cfg.AI.EmbedCacheSize,
		time.Duration(cfg.AI.EmbedCacheTTLMinutes)*time.Minute)

	summarizer, err := ai.BuildSummarizer(cfg.AI)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("init summarizer: %w", err)
	}
	vs, err := vectorstore.New(conn, cfg.VectorStore)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("init vector store: %w", err)
	}
	src, err := source.New(cfg.Source)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("init source: %w", err)
	}
	store := index.NewTwoLevelStore(vs, embedder, index.Options{
		SummaryIndex:  cfg.VectorStore.SummaryIndex,
		ChunkIndex:    cfg.VectorStore.ChunkIndex,
		Dim:           cfg.VectorStore.EmbeddingDim,
		NumCandidates: cfg.VectorStore.NumCandidates,
	})
	rt.app = service.NewApp(
		store,
		service.NewIngestService(store, summarizer, service.IngestOptions{
			Threshold: cfg.Ingest.Threshold,
			Workers:   cfg.Ingest.Workers,
		}),
		service.NewRetrievalService(embedder, store),
		src,
		service.FindDefaults{TopSummary: cfg.Server.TopSummary, TopChunks: cfg.Server.TopChunks},
	)
	logger.Info("runtime ready",
		zap.String("driver", cfg.Database.Driver),
		zap.String("vector_store", cfg.VectorStore.Type),
		zap.String("source", cfg.Source.Type),
		zap.String("embedder", embedder.ModelName()),
	)
	return rt, nil
}
