package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/tierdoc/internal/middleware"
)

type RouterDeps struct {
	Find           *FindHandler
	Admin          *AdminHandler
	JWTSecret      []byte
	AdminRateLimit time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/find", deps.Find.Find)

	admin := api.Group("/admin")
	admin.Use(middleware.AdminAuth(deps.JWTSecret), middleware.RateLimit(deps.AdminRateLimit))
	admin.POST("/reset", deps.Admin.Reset)
	admin.POST("/ingest", deps.Admin.Ingest)
}
