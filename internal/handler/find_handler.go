package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/tierdoc/internal/pkg/errcode"
	"github.com/xxxsen/tierdoc/internal/pkg/response"
	"github.com/xxxsen/tierdoc/internal/service"
)

type Finder interface {
	Find(ctx context.Context, req service.FindRequest) (*service.FindResult, error)
}

type FindHandler struct {
	finder Finder
}

func NewFindHandler(finder Finder) *FindHandler {
	return &FindHandler{finder: finder}
}

func (h *FindHandler) Find(c *gin.Context) {
	var req service.FindRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, errcode.ErrInvalid, "")
		return
	}
	res, err := h.finder.Find(c.Request.Context(), req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, res)
}
