package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type GeneratorEntry struct {
	Name      string
	Generator IGenerator
}

type EmbedderEntry struct {
	Name     string
	Embedder IEmbedder
}

type groupGenerator struct {
	names []string
	items []IGenerator
}

// NewGroupGenerator tries the entries in order and returns the first success.
func NewGroupGenerator(entries []GeneratorEntry) IGenerator {
	g := &groupGenerator{}
	for _, e := range entries {
		if e.Generator != nil {
			g.names = append(g.names, e.Name)
			g.items = append(g.items, e.Generator)
		}
	}
	switch len(g.items) {
	case 0:
		return nil
	case 1:
		return g.items[0]
	}
	return g
}

func (g *groupGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return fallback(ctx, "generator", g.names, func(i int) (string, error) {
		return g.items[i].Generate(ctx, prompt)
	})
}

// groupEmbedder falls back like groupGenerator. All entries must produce
// vectors of the same dimension or the index rejects them.
type groupEmbedder struct {
	names []string
	items []IEmbedder
}

func NewGroupEmbedder(entries []EmbedderEntry) IEmbedder {
	g := &groupEmbedder{}
	for _, e := range entries {
		if e.Embedder != nil {
			g.names = append(g.names, e.Name)
			g.items = append(g.items, e.Embedder)
		}
	}
	switch len(g.items) {
	case 0:
		return nil
	case 1:
		return g.items[0]
	}
	return g
}

func (g *groupEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return fallback(ctx, "embedder", g.names, func(i int) ([]float32, error) {
		return g.items[i].Embed(ctx, text, taskType)
	})
}

func (g *groupEmbedder) ModelName() string {
	names := make([]string, 0, len(g.names))
	for _, name := range g.names {
		if name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, "|")
}

func fallback[T any](ctx context.Context, kind string, names []string, call func(i int) (T, error)) (T, error) {
	var zero T
	errs := make([]error, 0, len(names))
	for i, name := range names {
		res, err := call(i)
		if err == nil {
			if i > 0 {
				logutil.GetLogger(ctx).Info(kind+" fallback served", zap.String("name", name))
			}
			return res, nil
		}
		if ctx.Err() != nil {
			return zero, err
		}
		errs = append(errs, fmt.Errorf("%s: %w", name, err))
		logutil.GetLogger(ctx).Warn(kind+" failed, trying next", zap.Int("index", i), zap.String("name", name), zap.Error(err))
	}
	if len(errs) == 0 {
		return zero, ErrNotConfigured
	}
	return zero, errors.Join(errs...)
}
