package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/tierdoc/internal/ai"
	"github.com/xxxsen/tierdoc/internal/model"
	appErr "github.com/xxxsen/tierdoc/internal/pkg/errors"
	"github.com/xxxsen/tierdoc/internal/vectorstore"
)

type Searcher interface {
	SearchSummaries(ctx context.Context, embedding []float32, k int) ([]model.SummaryHit, error)
	SearchChunks(ctx context.Context, embedding []float32, k int, filter *vectorstore.ParentFilter) ([]model.ChunkHit, error)
}

type FindRequest struct {
	Query      string `json:"query"`
	TopSummary int    `json:"top_summary"`
	TopChunks  int    `json:"top_chunks"`
	Debug      bool   `json:"debug"`
}

// Trace records what both search stages saw. Only filled in debug mode.
type Trace struct {
	Parents []model.SummaryHit `json:"parents"`
	Chunks  []model.ChunkHit   `json:"chunks"`
}

type FindResult struct {
	Chunks []string `json:"chunks"`
	Trace  *Trace   `json:"trace,omitempty"`
}

type RetrievalService struct {
	embedder ai.IEmbedder
	searcher Searcher
	logger   func(ctx context.Context) *zap.Logger
}

func NewRetrievalService(embedder ai.IEmbedder, searcher Searcher) *RetrievalService {
	return &RetrievalService{embedder: embedder, searcher: searcher, logger: logutil.GetLogger}
}

// Find narrows on the best summaries first and then ranks only the chunks
// owned by them. No summary match means no chunks.
func (s *RetrievalService) Find(ctx context.Context, req FindRequest) (*FindResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("query is required: %w", appErr.ErrInvalid)
	}
	if req.TopSummary <= 0 || req.TopChunks <= 0 {
		return nil, fmt.Errorf("top_summary and top_chunks must be positive: %w", appErr.ErrInvalid)
	}
	logger := s.logger(ctx).With(zap.Int("top_summary", req.TopSummary), zap.Int("top_chunks", req.TopChunks))
	start := time.Now()

	vec, err := s.embedder.Embed(ctx, req.Query, ai.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	parents, err := s.searcher.SearchSummaries(ctx, vec, req.TopSummary)
	if err != nil {
		return nil, fmt.Errorf("search summaries: %w", err)
	}
	if len(parents) > req.TopSummary {
		parents = parents[:req.TopSummary]
	}
	res := &FindResult{Chunks: []string{}}
	if req.Debug {
		res.Trace = &Trace{Parents: parents, Chunks: []model.ChunkHit{}}
	}
	if len(parents) == 0 {
		logger.Debug("no summary matched")
		if req.Debug {
			logTrace(logger, res.Trace)
		}
		return res, nil
	}
	filter := &vectorstore.ParentFilter{IDs: make([]int64, 0, len(parents))}
	for _, p := range parents {
		filter.IDs = append(filter.IDs, p.ID)
	}
	chunks, err := s.searcher.SearchChunks(ctx, vec, req.TopChunks, filter)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	if len(chunks) > req.TopChunks {
		chunks = chunks[:req.TopChunks]
	}
	for _, c := range chunks {
		res.Chunks = append(res.Chunks, c.Text)
	}
	if req.Debug {
		res.Trace.Chunks = chunks
		logTrace(logger, res.Trace)
	}
	logger.Info("find finished",
		zap.Int("parents", len(parents)),
		zap.Int("chunks", len(chunks)),
		zap.Duration("duration", time.Since(start)),
	)
	return res, nil
}

// logTrace always emits the summary line so an empty trace is still visible.
func logTrace(logger *zap.Logger, trace *Trace) {
	logger.Info("find trace", zap.Int("parents", len(trace.Parents)), zap.Int("chunks", len(trace.Chunks)))
	for _, p := range trace.Parents {
		logger.Info("find parent", zap.Int64("id", p.ID), zap.Float32("score", p.Score), zap.String("text", p.Text))
	}
	for _, c := range trace.Chunks {
		logger.Info("find chunk",
			zap.Int64("id", c.ID),
			zap.Int64("parent_id", c.ParentID),
			zap.Float32("score", c.Score),
			zap.String("document", c.Document),
			zap.String("text", c.Text),
		)
	}
}
