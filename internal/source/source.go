package source

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/xxxsen/tierdoc/internal/config"
	"github.com/xxxsen/tierdoc/internal/model"
)

// WalkFunc receives one parsed document at a time. Returning an error stops
// the walk.
type WalkFunc func(ctx context.Context, doc model.Document) error

// Source yields the documents found under root in a stable order. An empty
// root means the configured location. Files with unsupported extensions are
// skipped; files that fail to parse stop the walk with ErrMalformedDocument.
type Source interface {
	Walk(ctx context.Context, root string, fn WalkFunc) error
	// Confine maps a root supplied by a remote caller onto the configured
	// location. Roots that leave it fail with ErrInvalid.
	Confine(root string) (string, error)
}

type Factory func(cfg config.SourceConfig) (Source, error)

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

func New(cfg config.SourceConfig) (Source, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Type))
	if key == "" {
		return nil, fmt.Errorf("source.type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported source type: %s", cfg.Type)
	}
	return factory(cfg)
}
