package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/okarlsson/waitgate/internal/models"
	"github.com/okarlsson/waitgate/internal/services"
	"github.com/okarlsson/waitgate/internal/waitlist"
)

func mountDashboard(t *testing.T, env *handlerEnv) {
	t.Helper()

	projectService, err := services.NewProjectService(env.db)
	require.NoError(t, err)
	statsService, err := services.NewStatsService(env.db)
	require.NoError(t, err)
	exportService, err := services.NewExportService(env.db)
	require.NoError(t, err)
	ledger, err := waitlist.NewLedger(env.db)
	require.NoError(t, err)

	projectHandler, err := NewProjectHandler(projectService)
	require.NoError(t, err)
	entryHandler, err := NewEntryHandler(projectService, ledger, exportService)
	require.NoError(t, err)
	statsHandler, err := NewStatsHandler(projectService, statsService)
	require.NoError(t, err)

	api := env.authGroup()
	projects := api.Group("/projects")
	projects.GET("", projectHandler.List)
	projects.POST("", projectHandler.Create)
	projects.GET("/:id", projectHandler.Get)
	projects.PATCH("/:id", projectHandler.Update)
	projects.DELETE("/:id", projectHandler.Delete)
	projects.POST("/:id/rotate-key", projectHandler.RotateKey)
	projects.GET("/:id/entries", entryHandler.List)
	projects.DELETE("/:id/entries", entryHandler.Purge)
	projects.DELETE("/:id/entries/:entryId", entryHandler.Delete)
	projects.GET("/:id/export", entryHandler.Export)
	projects.GET("/:id/stats", statsHandler.Get)
}

func TestProjectsRequireAuth(t *testing.T) {
	env := newHandlerEnv(t)
	mountDashboard(t, env)

	w := env.do(t, http.MethodGet, "/api/projects", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProjectsCreateAndList(t *testing.T) {
	env := newHandlerEnv(t)
	mountDashboard(t, env)
	_, token := env.seedUser(t)

	w := env.do(t, http.MethodPost, "/api/projects", token, map[string]any{
		"name": "Beta Launch",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decodeData[models.Project](t, w)
	require.Equal(t, "beta-launch", created.Slug)
	require.NotEmpty(t, created.APIKey)

	w = env.do(t, http.MethodGet, "/api/projects", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	listed := decodeData[[]models.Project](t, w)
	require.Len(t, listed, 1)
	require.Equal(t, created.ID, listed[0].ID)
}

func TestProjectsFreezeViaPatch(t *testing.T) {
	env := newHandlerEnv(t)
	mountDashboard(t, env)
	owner, token := env.seedUser(t)
	project := env.seedProject(t, owner.ID)

	w := env.do(t, http.MethodPatch, "/api/projects/"+project.ID, token, map[string]any{
		"is_frozen": true,
	})
	require.Equal(t, http.StatusOK, w.Code)
	updated := decodeData[models.Project](t, w)
	require.True(t, updated.IsFrozen)
}

func TestProjectsRotateKey(t *testing.T) {
	env := newHandlerEnv(t)
	mountDashboard(t, env)
	owner, token := env.seedUser(t)
	project := env.seedProject(t, owner.ID)

	w := env.do(t, http.MethodPost, "/api/projects/"+project.ID+"/rotate-key", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	rotated := decodeData[models.Project](t, w)
	require.NotEqual(t, project.APIKey, rotated.APIKey)
}

func TestProjectsOwnershipIsEnforced(t *testing.T) {
	env := newHandlerEnv(t)
	mountDashboard(t, env)
	owner, _ := env.seedUser(t)
	_, strangerToken := env.seedUser(t)
	project := env.seedProject(t, owner.ID)

	w := env.do(t, http.MethodGet, "/api/projects/"+project.ID, strangerToken, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodDelete, "/api/projects/"+project.ID, strangerToken, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestEntriesListAndDelete(t *testing.T) {
	env := newHandlerEnv(t)
	mountDashboard(t, env)
	mountSubscribe(t, env)
	owner, token := env.seedUser(t)
	project := env.seedProject(t, owner.ID)

	for _, email := range []string{"a@example.com", "b@example.com"} {
		w := env.do(t, http.MethodPost, "/api/subscribe", "", map[string]string{
			"api_key": project.APIKey,
			"email":   email,
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := env.do(t, http.MethodGet, "/api/projects/"+project.ID+"/entries", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	entries := decodeData[[]models.WaitlistEntry](t, w)
	require.Len(t, entries, 2)

	w = env.do(t, http.MethodDelete, "/api/projects/"+project.ID+"/entries/"+entries[0].ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodDelete, "/api/projects/"+project.ID+"/entries", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/projects/"+project.ID+"/entries", token, nil)
	entries = decodeData[[]models.WaitlistEntry](t, w)
	require.Empty(t, entries)
}

func TestStatsEndpoint(t *testing.T) {
	env := newHandlerEnv(t)
	mountDashboard(t, env)
	mountSubscribe(t, env)
	owner, token := env.seedUser(t)
	project := env.seedProject(t, owner.ID)

	w := env.do(t, http.MethodPost, "/api/subscribe", "", map[string]string{
		"api_key": project.APIKey,
		"email":   "today@example.com",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodGet, "/api/projects/"+project.ID+"/stats", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decodeData[services.ProjectStats](t, w)
	require.EqualValues(t, 1, stats.TotalEntries)
	require.EqualValues(t, 1, stats.JoinedToday)
}

func TestExportEndpoint(t *testing.T) {
	env := newHandlerEnv(t)
	mountDashboard(t, env)
	mountSubscribe(t, env)
	owner, token := env.seedUser(t)
	project := env.seedProject(t, owner.ID)

	w := env.do(t, http.MethodPost, "/api/subscribe", "", map[string]string{
		"api_key": project.APIKey,
		"email":   "export@example.com",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodGet, "/api/projects/"+project.ID+"/export?format=csv", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	require.Contains(t, w.Header().Get("Content-Disposition"), project.Slug)
	require.Contains(t, w.Body.String(), "export@example.com")

	w = env.do(t, http.MethodGet, "/api/projects/"+project.ID+"/export?format=xml", token, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
