package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/tierdoc/internal/pkg/errcode"
	"github.com/xxxsen/tierdoc/internal/pkg/jwt"
	"github.com/xxxsen/tierdoc/internal/pkg/response"
)

const ContextSubjectKey = "subject"

// AdminAuth guards reset and ingest. Only tokens signed with secret and
// carrying the admin role pass.
func AdminAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.Fail(c, errcode.ErrUnauthorized, "missing bearer token")
			return
		}
		claims, err := jwt.ParseToken(token, secret)
		if err != nil {
			logutil.GetLogger(c.Request.Context()).Debug("reject admin token", zap.Error(err))
			response.Fail(c, errcode.ErrUnauthorized, "invalid token")
			return
		}
		if claims.Role != jwt.RoleAdmin {
			response.Fail(c, errcode.ErrUnauthorized, "admin role required")
			return
		}
		c.Set(ContextSubjectKey, claims.Subject)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
