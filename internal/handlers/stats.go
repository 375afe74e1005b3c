package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/okarlsson/waitgate/internal/services"
	appErrors "github.com/okarlsson/waitgate/pkg/errors"
	"github.com/okarlsson/waitgate/pkg/response"
)

// StatsHandler exposes per-project dashboard counters.
type StatsHandler struct {
	projects *services.ProjectService
	stats    *services.StatsService
}

// NewStatsHandler constructs the stats handler.
func NewStatsHandler(projects *services.ProjectService, stats *services.StatsService) (*StatsHandler, error) {
	if projects == nil || stats == nil {
		return nil, errors.New("handlers: project and stats services are required")
	}
	return &StatsHandler{projects: projects, stats: stats}, nil
}

// Get handles GET /api/projects/:id/stats.
func (h *StatsHandler) Get(c *gin.Context) {
	project, err := h.projects.Get(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, mapProjectError(err))
		return
	}

	stats, err := h.stats.ForProject(requestContext(c), project.ID)
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}
	response.Success(c, http.StatusOK, stats)
}
