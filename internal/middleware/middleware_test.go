package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newLimiter(window time.Duration, clock *time.Time) *rateLimiter {
	return &rateLimiter{
		window:        window,
		last:          make(map[string]time.Time),
		sweepInterval: window,
		now:           func() time.Time { return *clock },
	}
}

func limitedRequest(l *rateLimiter, path, subject string) bool {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, path, nil)
	if subject != "" {
		c.Set(ContextSubjectKey, subject)
	}
	l.handle(c)
	return c.IsAborted()
}

func TestRateLimiterWindowPerRouteAndSubject(t *testing.T) {
	gin.SetMode(gin.TestMode)
	clock := time.Unix(1000, 0)
	limiter := newLimiter(10*time.Second, &clock)

	require.False(t, limitedRequest(limiter, "/api/v1/admin/ingest", "ops"))
	require.True(t, limitedRequest(limiter, "/api/v1/admin/ingest", "ops"))
	require.False(t, limitedRequest(limiter, "/api/v1/admin/reset", "ops"))
	require.False(t, limitedRequest(limiter, "/api/v1/admin/ingest", "ci"))

	clock = clock.Add(11 * time.Second)
	require.False(t, limitedRequest(limiter, "/api/v1/admin/ingest", "ops"))
}

func TestRateLimiterDisabledWindow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	clock := time.Unix(1000, 0)
	limiter := newLimiter(0, &clock)
	for i := 0; i < 3; i++ {
		require.False(t, limitedRequest(limiter, "/api/v1/admin/reset", ""))
	}
}

func TestRateLimiterSweepDropsExpiredKeys(t *testing.T) {
	base := time.Unix(5000, 0)
	limiter := newLimiter(10*time.Second, &base)
	limiter.last["stale"] = base.Add(-20 * time.Second)
	limiter.last["fresh"] = base.Add(-2 * time.Second)

	limiter.mu.Lock()
	limiter.cleanupExpiredLocked(base)
	limiter.mu.Unlock()

	require.NotContains(t, limiter.last, "stale")
	require.Contains(t, limiter.last, "fresh")
	require.Equal(t, base, limiter.lastSweep)
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name      string
		allowlist []string
		method    string
		origin    string
		status    int
		allowed   string
	}{
		{name: "open preflight", method: http.MethodOptions, origin: "http://a.example", status: http.StatusNoContent, allowed: "*"},
		{name: "listed origin", allowlist: []string{"http://a.example/"}, method: http.MethodPost, origin: "http://a.example", status: http.StatusOK, allowed: "http://a.example"},
		{name: "unlisted post", allowlist: []string{"http://a.example"}, method: http.MethodPost, origin: "http://b.example", status: http.StatusOK},
		{name: "unlisted preflight", allowlist: []string{"http://a.example"}, method: http.MethodOptions, origin: "http://b.example", status: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := gin.New()
			engine.Use(CORS(tt.allowlist))
			engine.POST("/find", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(tt.method, "/find", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			engine.ServeHTTP(rec, req)

			require.Equal(t, tt.status, rec.Code)
			require.Equal(t, tt.allowed, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{header: "Bearer abc", token: "abc", ok: true},
		{header: "bearer  abc ", token: "abc", ok: true},
		{header: "Basic abc"},
		{header: "Bearer"},
		{header: "Bearer   "},
		{header: ""},
	}
	for _, tt := range tests {
		token, ok := bearerToken(tt.header)
		require.Equal(t, tt.ok, ok, tt.header)
		require.Equal(t, tt.token, token, tt.header)
	}
}
