package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/tierdoc/internal/pkg/errcode"
	"github.com/xxxsen/tierdoc/internal/pkg/response"
	"github.com/xxxsen/tierdoc/internal/service"
)

type Indexer interface {
	Reset(ctx context.Context) error
	// IngestUnder rejects roots outside the configured source location.
	IngestUnder(ctx context.Context, root string) (*service.IngestStats, error)
}

type AdminHandler struct {
	indexer Indexer
}

func NewAdminHandler(indexer Indexer) *AdminHandler {
	return &AdminHandler{indexer: indexer}
}

type ingestRequest struct {
	Root string `json:"root"`
}

func (h *AdminHandler) Reset(c *gin.Context) {
	if err := h.indexer.Reset(c.Request.Context()); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"reset": true})
}

// Ingest runs synchronously and the response carries the run statistics.
// The run is detached from the request: a client that disconnects does not
// stop it, and it still holds the reset/ingest lock until it finishes.
func (h *AdminHandler) Ingest(c *gin.Context) {
	var req ingestRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Fail(c, errcode.ErrInvalid, "")
			return
		}
	}
	stats, err := h.indexer.IngestUnder(context.WithoutCancel(c.Request.Context()), req.Root)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, stats)
}
