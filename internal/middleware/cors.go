package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	corsMethods = "POST, OPTIONS"
	corsHeaders = "Authorization, Content-Type"
)

// CORS answers browsers calling /find and the admin routes. With an empty
// allowlist every origin is accepted; otherwise unknown origins get no
// CORS headers and their preflight is refused.
func CORS(allowlist []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(allowlist))
	for _, origin := range allowlist {
		if origin = strings.TrimRight(strings.TrimSpace(origin), "/"); origin != "" {
			allowed[origin] = true
		}
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		preflight := c.Request.Method == http.MethodOptions
		switch {
		case len(allowed) == 0:
			setCORSHeaders(c, "*")
		case origin != "" && allowed[origin]:
			setCORSHeaders(c, origin)
			c.Header("Vary", "Origin")
		case preflight:
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		if preflight {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func setCORSHeaders(c *gin.Context, origin string) {
	c.Header("Access-Control-Allow-Origin", origin)
	c.Header("Access-Control-Allow-Methods", corsMethods)
	c.Header("Access-Control-Allow-Headers", corsHeaders)
}
