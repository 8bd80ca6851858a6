package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/xxxsen/tierdoc/internal/handler"
	"github.com/xxxsen/tierdoc/internal/middleware"
	"github.com/xxxsen/tierdoc/internal/pkg/errcode"
	appErr "github.com/xxxsen/tierdoc/internal/pkg/errors"
	"github.com/xxxsen/tierdoc/internal/pkg/jwt"
	"github.com/xxxsen/tierdoc/internal/service"
)

var testSecret = []byte("test-secret")

type fakeApp struct {
	lastFind    service.FindRequest
	findErr     error
	resets      int
	ingestRoot  string
	ingestErr   error
	ingestCtxOK bool
}

func (f *fakeApp) Find(ctx context.Context, req service.FindRequest) (*service.FindResult, error) {
	f.lastFind = req
	if f.findErr != nil {
		return nil, f.findErr
	}
	return &service.FindResult{Chunks: []string{"chunk one", "chunk two"}}, nil
}

func (f *fakeApp) Reset(ctx context.Context) error {
	f.resets++
	return nil
}

func (f *fakeApp) IngestUnder(ctx context.Context, root string) (*service.IngestStats, error) {
	f.ingestRoot = root
	f.ingestCtxOK = ctx.Err() == nil
	if f.ingestErr != nil {
		return nil, f.ingestErr
	}
	return &service.IngestStats{RunID: "run", Documents: 1, Blocks: 2, Chunks: 3}, nil
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func setupRouter(t *testing.T, app *fakeApp) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	deps := handler.RouterDeps{
		Find:      handler.NewFindHandler(app),
		Admin:     handler.NewAdminHandler(app),
		JWTSecret: testSecret,
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(middleware.CORS(nil)),
	)
	require.NoError(t, err)
	return engine
}

func do(t *testing.T, router http.Handler, path, body, token string) envelope {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env))
	return env
}

func adminToken(t *testing.T) string {
	t.Helper()
	token, err := jwt.GenerateToken("ops", jwt.RoleAdmin, testSecret, time.Hour)
	require.NoError(t, err)
	return token
}

func TestFindHandler(t *testing.T) {
	app := &fakeApp{}
	router := setupRouter(t, app)

	env := do(t, router, "/api/v1/find", `{"query":"what","top_summary":2,"top_chunks":4,"debug":true}`, "")
	require.Equal(t, 0, env.Code)
	var res service.FindResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	require.Equal(t, []string{"chunk one", "chunk two"}, res.Chunks)
	require.Equal(t, service.FindRequest{Query: "what", TopSummary: 2, TopChunks: 4, Debug: true}, app.lastFind)

	env = do(t, router, "/api/v1/find", `not json`, "")
	require.Equal(t, errcode.ErrInvalid, env.Code)
}

func TestFindHandlerMapsErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{name: "invalid", err: fmt.Errorf("k: %w", appErr.ErrInvalid), code: errcode.ErrInvalid},
		{name: "service", err: fmt.Errorf("embed: %w", appErr.ErrExternalServiceUnavailable), code: errcode.ErrServiceUnavailable},
		{name: "index", err: fmt.Errorf("search: %w", appErr.ErrIndexOperationFailed), code: errcode.ErrIndexFailed},
		{name: "other", err: fmt.Errorf("boom"), code: errcode.ErrInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupRouter(t, &fakeApp{findErr: tt.err})
			env := do(t, router, "/api/v1/find", `{"query":"q"}`, "")
			require.Equal(t, tt.code, env.Code)
		})
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	app := &fakeApp{}
	router := setupRouter(t, app)

	env := do(t, router, "/api/v1/admin/reset", "", "")
	require.Equal(t, errcode.ErrUnauthorized, env.Code)

	other, err := jwt.GenerateToken("ops", "reader", testSecret, time.Hour)
	require.NoError(t, err)
	env = do(t, router, "/api/v1/admin/reset", "", other)
	require.Equal(t, errcode.ErrUnauthorized, env.Code)
	require.Equal(t, 0, app.resets)

	env = do(t, router, "/api/v1/admin/reset", "", adminToken(t))
	require.Equal(t, 0, env.Code)
	require.Equal(t, 1, app.resets)
}

func TestAdminIngest(t *testing.T) {
	app := &fakeApp{}
	router := setupRouter(t, app)

	env := do(t, router, "/api/v1/admin/ingest", `{"root":"papers"}`, adminToken(t))
	require.Equal(t, 0, env.Code)
	require.Equal(t, "papers", app.ingestRoot)
	var stats service.IngestStats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	require.Equal(t, int64(3), stats.Chunks)

	app.ingestErr = fmt.Errorf("ingest: %w", appErr.ErrBusy)
	env = do(t, router, "/api/v1/admin/ingest", "", adminToken(t))
	require.Equal(t, errcode.ErrBusy, env.Code)
}

func TestAdminIngestOutlivesClient(t *testing.T) {
	app := &fakeApp{}
	router := setupRouter(t, app)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/ingest", bytes.NewReader([]byte(`{"root":"papers"}`))).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	router.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, "papers", app.ingestRoot)
	require.True(t, app.ingestCtxOK)
}

func TestAdminIngestRejectsEscapingRoot(t *testing.T) {
	app := &fakeApp{ingestErr: fmt.Errorf("root %q is outside the source directory: %w", "../etc", appErr.ErrInvalid)}
	router := setupRouter(t, app)

	env := do(t, router, "/api/v1/admin/ingest", `{"root":"../etc"}`, adminToken(t))
	require.Equal(t, errcode.ErrInvalid, env.Code)
}
