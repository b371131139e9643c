package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Methodus-dev/methodus-shorts-planner/domain/model"
	"github.com/Methodus-dev/methodus-shorts-planner/domain/repository"
	"github.com/Methodus-dev/methodus-shorts-planner/infrastructure/configuration"
	"github.com/Methodus-dev/methodus-shorts-planner/infrastructure/metrics"
	"github.com/Methodus-dev/methodus-shorts-planner/infrastructure/persistence"
	"github.com/Methodus-dev/methodus-shorts-planner/infrastructure/realtime"
	"github.com/Methodus-dev/methodus-shorts-planner/infrastructure/utils"
	httpHandler "github.com/Methodus-dev/methodus-shorts-planner/interfaces/http"
	"github.com/Methodus-dev/methodus-shorts-planner/usecase"
)

type staticAdapter struct{}

func (staticAdapter) Name() string { return "static" }

func (staticAdapter) Fetch(_ context.Context, _ int, _ model.FetchParams) ([]model.RawItem, model.FetchOutcome) {
	views := int64(250000)
	return []model.RawItem{
		{ID: "k1", Title: "월급 외 부업 추천", ViewCount: &views, Duration: "PT40S"},
		{ID: "e1", Title: "Best AI tools for productivity", ViewCount: &views, Duration: "PT8M"},
	}, model.Success()
}

func newTestServer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := persistence.NewFileSnapshotStore(filepath.Join(t.TempDir(), "trends.json"))
	m := metrics.NewRefreshMetrics()
	hub := realtime.NewRefreshHub()
	scheduler := usecase.NewRefreshScheduler(store, []repository.ISourceAdapter{staticAdapter{}}, usecase.SchedulerConfig{TargetCount: 10}).
		WithObserver(m).
		WithNotifier(hub)
	history := persistence.NewMemoryRefreshHistory(5)
	scheduler.WithHistory(history)
	uc := usecase.NewTrendUseCaseWithHistory(scheduler, history)
	t.Cleanup(scheduler.Wait)

	return InitiateRouter(
		RouterConfig{SecretKey: "router-secret", AllowOrigins: []string{"https://planner.example"}},
		httpHandler.NewTrendHandler(uc),
		httpHandler.NewHealthHandler(uc),
		hub.Serve,
		m.Handler(),
	)
}

func do(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_AdminRefreshRequiresToken(t *testing.T) {
	r := newTestServer(t)

	w := do(r, httptest.NewRequest(http.MethodPost, "/api/admin/refresh?wait=true", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := utils.GenerateAdminToken("ops", "router-secret", time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/admin/refresh?wait=true&force=true", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = do(r, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"completed"`)

	w = do(r, httptest.NewRequest(http.MethodGet, "/api/trends?region=domestic", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"k1"`)
	assert.NotContains(t, w.Body.String(), `"id":"e1"`)
	assert.Contains(t, w.Body.String(), `"source":"live"`)

	w = do(r, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `shorts_planner_refresh_runs_total{result="completed",trigger="force"} 1`)
}

func TestRouter_CORSPreflight(t *testing.T) {
	r := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/trends", nil)
	req.Header.Set("Origin", "https://planner.example")
	req.Header.Set("Access-Control-Request-Method", "GET")

	w := do(r, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://planner.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_Health(t *testing.T) {
	r := newTestServer(t)
	assert.Equal(t, http.StatusOK, do(r, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(r, httptest.NewRequest(http.MethodGet, "/readyz", nil)).Code)
}

func TestRouter_YouTubeConsentRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth, err := httpHandler.NewYouTubeAuthHandler(&configuration.YouTubeConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:10001/auth/youtube/callback",
	}, filepath.Join(t.TempDir(), "token.json"))
	require.NoError(t, err)
	uc := usecase.NewTrendUseCase(usecase.NewRefreshScheduler(
		persistence.NewFileSnapshotStore(filepath.Join(t.TempDir(), "trends.json")), nil, usecase.SchedulerConfig{}))
	r := InitiateRouter(RouterConfig{SecretKey: "router-secret", YouTubeAuth: auth},
		httpHandler.NewTrendHandler(uc), httpHandler.NewHealthHandler(uc), nil, nil)

	w := do(r, httptest.NewRequest(http.MethodGet, "/api/admin/youtube/auth", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := utils.GenerateAdminToken("ops", "router-secret", time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/admin/youtube/auth", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = do(r, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "auth_url")

	w = do(r, httptest.NewRequest(http.MethodGet, "/auth/youtube/callback?state=x&code=y", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
