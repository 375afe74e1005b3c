package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/okarlsson/waitgate/internal/services"
	"github.com/okarlsson/waitgate/pkg/response"
)

// PublicHandler serves the unauthenticated project lookup used by the embed widget.
type PublicHandler struct {
	projects *services.ProjectService
}

// NewPublicHandler constructs the public handler.
func NewPublicHandler(projects *services.ProjectService) (*PublicHandler, error) {
	if projects == nil {
		return nil, errors.New("handlers: project service is required")
	}
	return &PublicHandler{projects: projects}, nil
}

// publicProject is the widget-safe view of a project. The API key and owner
// are deliberately absent.
type publicProject struct {
	Name           string      `json:"name"`
	Slug           string      `json:"slug"`
	IsFrozen       bool        `json:"is_frozen"`
	ShowPosition   bool        `json:"show_position"`
	WidgetSettings interface{} `json:"widget_settings,omitempty"`
}

// GetProject handles GET /api/public/project/:slug.
func (h *PublicHandler) GetProject(c *gin.Context) {
	project, err := h.projects.GetBySlug(requestContext(c), c.Param("slug"))
	if err != nil {
		response.Error(c, mapProjectError(err))
		return
	}

	view := publicProject{
		Name:         project.Name,
		Slug:         project.Slug,
		IsFrozen:     project.IsFrozen,
		ShowPosition: project.ShowPosition,
	}
	if len(project.WidgetSettings) > 0 {
		view.WidgetSettings = project.WidgetSettings
	}
	response.Success(c, http.StatusOK, view)
}
