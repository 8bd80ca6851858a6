package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/tierdoc/internal/pkg/errors"
	"github.com/xxxsen/tierdoc/internal/source"
)

type Collections interface {
	Reset(ctx context.Context) error
	Ensure(ctx context.Context) error
}

type FindDefaults struct {
	TopSummary int
	TopChunks  int
}

// App is the externally callable surface: reset, ingest and find. Reset and
// ingest exclude each other; find runs freely alongside both.
type App struct {
	mu          sync.Mutex
	collections Collections
	ingest      *IngestService
	retrieval   *RetrievalService
	src         source.Source
	defaults    FindDefaults
}

func NewApp(collections Collections, ingest *IngestService, retrieval *RetrievalService, src source.Source, defaults FindDefaults) *App {
	return &App{
		collections: collections,
		ingest:      ingest,
		retrieval:   retrieval,
		src:         src,
		defaults:    defaults,
	}
}

// Reset drops and recreates both collections. Missing collections are fine.
func (a *App) Reset(ctx context.Context) error {
	if !a.mu.TryLock() {
		return fmt.Errorf("reset: %w", appErr.ErrBusy)
	}
	defer a.mu.Unlock()
	return a.collections.Reset(ctx)
}

// Ingest reads every document under root and indexes it. A failure leaves
// whatever was written before it; callers reset and ingest again.
func (a *App) Ingest(ctx context.Context, root string) (*IngestStats, error) {
	if !a.mu.TryLock() {
		return nil, fmt.Errorf("ingest: %w", appErr.ErrBusy)
	}
	defer a.mu.Unlock()
	if err := a.collections.Ensure(ctx); err != nil {
		return nil, err
	}
	return a.ingest.Ingest(ctx, a.src, root)
}

// IngestUnder ingests a root named by a remote caller. The root is confined
// to the configured source location first.
func (a *App) IngestUnder(ctx context.Context, root string) (*IngestStats, error) {
	confined, err := a.src.Confine(root)
	if err != nil {
		return nil, err
	}
	return a.Ingest(ctx, confined)
}

// Reindex resets and ingests root under one lock.
func (a *App) Reindex(ctx context.Context, root string) (*IngestStats, error) {
	if !a.mu.TryLock() {
		return nil, fmt.Errorf("reindex: %w", appErr.ErrBusy)
	}
	defer a.mu.Unlock()
	if err := a.collections.Reset(ctx); err != nil {
		return nil, err
	}
	stats, err := a.ingest.Ingest(ctx, a.src, root)
	if err != nil {
		logutil.GetLogger(ctx).Error("reindex failed", zap.Error(err))
	}
	return stats, err
}

// Find fills zero limits from the configured defaults.
func (a *App) Find(ctx context.Context, req FindRequest) (*FindResult, error) {
	if req.TopSummary == 0 {
		req.TopSummary = a.defaults.TopSummary
	}
	if req.TopChunks == 0 {
		req.TopChunks = a.defaults.TopChunks
	}
	return a.retrieval.Find(ctx, req)
}
