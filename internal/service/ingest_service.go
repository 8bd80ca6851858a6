package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/tierdoc/internal/index"
	"github.com/xxxsen/tierdoc/internal/ingest"
	"github.com/xxxsen/tierdoc/internal/model"
	"github.com/xxxsen/tierdoc/internal/source"
)

type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

type SummaryStore interface {
	InsertSummary(ctx context.Context, text string) (int64, error)
	InsertChunk(ctx context.Context, in index.ChunkInput) (int64, error)
}

type IngestOptions struct {
	Threshold int
	Workers   int
}

type IngestStats struct {
	RunID     string        `json:"run_id"`
	Documents int64         `json:"documents"`
	Blocks    int64         `json:"blocks"`
	Chunks    int64         `json:"chunks"`
	Duration  time.Duration `json:"duration"`
}

type IngestService struct {
	store      SummaryStore
	summarizer Summarizer
	opts       IngestOptions
}

func NewIngestService(store SummaryStore, summarizer Summarizer, opts IngestOptions) *IngestService {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &IngestService{store: store, summarizer: summarizer, opts: opts}
}

// ProcessBlock summarizes one block, stores the summary, then stores every
// chunk of the block unmodified with the summary as parent.
func (s *IngestService) ProcessBlock(ctx context.Context, block model.Block) (int64, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("document", block.Document), zap.Int("block", block.Index))
	start := time.Now()
	summary, err := s.summarizer.Summarize(ctx, ingest.BlockText(block))
	if err != nil {
		return 0, fmt.Errorf("summarize %s block %d: %w", block.Document, block.Index, err)
	}
	summaryID, err := s.store.InsertSummary(ctx, summary)
	if err != nil {
		return 0, fmt.Errorf("store summary for %s block %d: %w", block.Document, block.Index, err)
	}
	for _, c := range block.Chunks {
		if _, err := s.store.InsertChunk(ctx, index.ChunkInput{
			Text:     c.Text,
			ParentID: summaryID,
			Document: block.Document,
			Position: c.Position,
		}); err != nil {
			return 0, fmt.Errorf("store chunk %d of %s: %w", c.Position, block.Document, err)
		}
	}
	logger.Info("block ingested",
		zap.Int64("summary_id", summaryID),
		zap.Int("chunks", len(block.Chunks)),
		zap.Int("words", block.WordCount),
		zap.Duration("duration", time.Since(start)),
	)
	return summaryID, nil
}

// Ingest groups each document from src in turn and processes its blocks on a
// bounded worker pool. The first failure cancels the remaining work.
func (s *IngestService) Ingest(ctx context.Context, src source.Source, root string) (*IngestStats, error) {
	stats := &IngestStats{RunID: uuid.NewString()}
	logger := logutil.GetLogger(ctx).With(zap.String("run_id", stats.RunID), zap.String("root", root))
	start := time.Now()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var blocks, chunks atomic.Int64
	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(s.opts.Workers)
	walkErr := src.Walk(gctx, root, func(ctx context.Context, doc model.Document) error {
		grouped := ingest.GroupDocument(doc, s.opts.Threshold)
		stats.Documents++
		logger.Info("document grouped",
			zap.String("document", doc.Name),
			zap.Int("chunks", len(doc.Chunks)),
			zap.Int("blocks", len(grouped)),
		)
		for _, b := range grouped {
			if err := ctx.Err(); err != nil {
				return err
			}
			g.Go(func() error {
				// a block queued behind a failed one must not start
				if err := gctx.Err(); err != nil {
					return err
				}
				if _, err := s.ProcessBlock(gctx, b); err != nil {
					return err
				}
				blocks.Add(1)
				chunks.Add(int64(len(b.Chunks)))
				return nil
			})
		}
		return nil
	})
	if walkErr != nil {
		cancel()
	}
	poolErr := g.Wait()
	stats.Blocks = blocks.Load()
	stats.Chunks = chunks.Load()
	stats.Duration = time.Since(start)
	if err := firstCause(poolErr, walkErr); err != nil {
		logger.Error("ingest aborted", zap.Error(err),
			zap.Int64("blocks", stats.Blocks), zap.Int64("chunks", stats.Chunks))
		return stats, err
	}
	logger.Info("ingest finished",
		zap.Int64("documents", stats.Documents),
		zap.Int64("blocks", stats.Blocks),
		zap.Int64("chunks", stats.Chunks),
		zap.Duration("duration", stats.Duration),
	)
	return stats, nil
}

// firstCause prefers the error that caused cancellation over the
// cancellation it triggered elsewhere.
func firstCause(poolErr, walkErr error) error {
	switch {
	case poolErr == nil:
		return walkErr
	case walkErr == nil:
		return poolErr
	case errors.Is(walkErr, context.Canceled) && !errors.Is(poolErr, context.Canceled):
		return poolErr
	default:
		return walkErr
	}
}
