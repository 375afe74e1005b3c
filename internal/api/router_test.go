package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	iauth "github.com/okarlsson/waitgate/internal/auth"
	"github.com/okarlsson/waitgate/internal/cache"
	"github.com/okarlsson/waitgate/internal/database/testutil"
	"github.com/okarlsson/waitgate/internal/models"
	"github.com/okarlsson/waitgate/internal/ratelimit"
)

func newTestRouter(t *testing.T) (*gin.Engine, *Deps) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	store := cache.NewDatabaseStore(db)

	jwt, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "router-test-secret", Issuer: "waitgate"})
	require.NoError(t, err)
	limiter, err := ratelimit.NewLimiter(ratelimit.NewDatabaseWindowStore(db))
	require.NoError(t, err)

	deps := Deps{DB: db, Cache: store, JWT: jwt, Limiter: limiter}
	router, err := NewRouter(deps)
	require.NoError(t, err)
	return router, &deps
}

func TestRouterHealthAndMetrics(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "ok")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRouterUnknownRouteIsJSON(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "NOT_FOUND")
}

func TestRouterSubscribeAgainstSeededProject(t *testing.T) {
	router, deps := newTestRouter(t)

	var project models.Project
	require.NoError(t, deps.DB.Take(&project, "slug = ?", "demo-waitlist").Error)

	payload, err := json.Marshal(map[string]string{
		"api_key": project.APIKey,
		"email":   "router@example.com",
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/subscribe", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	require.Contains(t, w.Body.String(), "referral_code")
}

func TestRouterPublicLookupAgainstSeededProject(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/public/project/demo-waitlist", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.NotContains(t, w.Body.String(), "wg_live_", "public payloads must not leak credentials")
}

func TestRouterDashboardRequiresAuth(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, path := range []string{"/api/projects", "/api/auth/me"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusUnauthorized, w.Code, "path %s", path)
	}
}
