package index

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/tierdoc/internal/ai"
	"github.com/xxxsen/tierdoc/internal/model"
	"github.com/xxxsen/tierdoc/internal/vectorstore"
)

type ChunkInput struct {
	Text     string
	ParentID int64
	Document string
	Position int
}

type Options struct {
	SummaryIndex string
	ChunkIndex   string
	Dim          int
	// NumCandidates is the candidate pool per search. Zero means k.
	NumCandidates int
}

// TwoLevelStore holds block summaries and the raw chunks they own in two
// collections. Chunks point at their summary through ParentID; the link is
// not validated. With Options.Dim set, every stored or searched vector must
// have that length.
type TwoLevelStore struct {
	store    vectorstore.VectorStore
	embedder ai.IEmbedder
	opts     Options
}

func NewTwoLevelStore(store vectorstore.VectorStore, embedder ai.IEmbedder, opts Options) *TwoLevelStore {
	return &TwoLevelStore{store: store, embedder: embedder, opts: opts}
}

func (s *TwoLevelStore) SummaryIndex() string {
	return s.opts.SummaryIndex
}

func (s *TwoLevelStore) ChunkIndex() string {
	return s.opts.ChunkIndex
}

// Ensure creates both collections when missing.
func (s *TwoLevelStore) Ensure(ctx context.Context) error {
	for _, name := range []string{s.opts.SummaryIndex, s.opts.ChunkIndex} {
		if err := s.store.CreateIndex(ctx, name, s.opts.Dim); err != nil {
			return err
		}
	}
	return nil
}

// Reset drops both collections if present and recreates them empty.
func (s *TwoLevelStore) Reset(ctx context.Context) error {
	for _, name := range []string{s.opts.SummaryIndex, s.opts.ChunkIndex} {
		if err := s.store.DeleteIndex(ctx, name); err != nil {
			return err
		}
	}
	if err := s.Ensure(ctx); err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("collections reset",
		zap.String("summary_index", s.opts.SummaryIndex),
		zap.String("chunk_index", s.opts.ChunkIndex))
	return nil
}

func (s *TwoLevelStore) InsertSummary(ctx context.Context, text string) (int64, error) {
	vec, err := s.embedder.Embed(ctx, text, ai.TaskRetrievalDocument)
	if err != nil {
		return 0, fmt.Errorf("embed summary: %w", err)
	}
	if err := vectorstore.CheckDim(s.opts.SummaryIndex, s.opts.Dim, vec); err != nil {
		return 0, err
	}
	return s.store.Index(ctx, s.opts.SummaryIndex, vectorstore.Record{Text: text, Embedding: vec})
}

func (s *TwoLevelStore) InsertChunk(ctx context.Context, in ChunkInput) (int64, error) {
	vec, err := s.embedder.Embed(ctx, in.Text, ai.TaskRetrievalDocument)
	if err != nil {
		return 0, fmt.Errorf("embed chunk: %w", err)
	}
	if err := vectorstore.CheckDim(s.opts.ChunkIndex, s.opts.Dim, vec); err != nil {
		return 0, err
	}
	return s.store.Index(ctx, s.opts.ChunkIndex, vectorstore.Record{
		Text:      in.Text,
		Embedding: vec,
		ParentID:  in.ParentID,
		Document:  in.Document,
		Position:  in.Position,
	})
}

func (s *TwoLevelStore) SearchSummaries(ctx context.Context, embedding []float32, k int) ([]model.SummaryHit, error) {
	if err := vectorstore.CheckDim(s.opts.SummaryIndex, s.opts.Dim, embedding); err != nil {
		return nil, err
	}
	hits, err := s.store.KNNSearch(ctx, s.opts.SummaryIndex, s.query(embedding, k, nil))
	if err != nil {
		return nil, err
	}
	res := make([]model.SummaryHit, 0, len(hits))
	for _, h := range hits {
		res = append(res, model.SummaryHit{ID: h.ID, Score: h.Score, Text: h.Text})
	}
	return res, nil
}

// SearchChunks returns chunks nearest to embedding. A nil filter searches all
// chunks; a filter with no ids matches nothing.
func (s *TwoLevelStore) SearchChunks(ctx context.Context, embedding []float32, k int, filter *vectorstore.ParentFilter) ([]model.ChunkHit, error) {
	if filter != nil && len(filter.IDs) == 0 {
		return nil, nil
	}
	if err := vectorstore.CheckDim(s.opts.ChunkIndex, s.opts.Dim, embedding); err != nil {
		return nil, err
	}
	hits, err := s.store.KNNSearch(ctx, s.opts.ChunkIndex, s.query(embedding, k, filter))
	if err != nil {
		return nil, err
	}
	res := make([]model.ChunkHit, 0, len(hits))
	for _, h := range hits {
		res = append(res, model.ChunkHit{
			ID:       h.ID,
			ParentID: h.ParentID,
			Score:    h.Score,
			Text:     h.Text,
			Document: h.Document,
			Position: h.Position,
		})
	}
	return res, nil
}

func (s *TwoLevelStore) query(embedding []float32, k int, filter *vectorstore.ParentFilter) vectorstore.KNNQuery {
	candidates := s.opts.NumCandidates
	if candidates < k {
		candidates = k
	}
	return vectorstore.KNNQuery{Vector: embedding, K: k, NumCandidates: candidates, Parents: filter}
}
