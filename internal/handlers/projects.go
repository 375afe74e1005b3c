package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/okarlsson/waitgate/internal/services"
	appErrors "github.com/okarlsson/waitgate/pkg/errors"
	"github.com/okarlsson/waitgate/pkg/response"
)

// ProjectHandler exposes dashboard project management.
type ProjectHandler struct {
	projects *services.ProjectService
}

// NewProjectHandler constructs the project handler.
func NewProjectHandler(projects *services.ProjectService) (*ProjectHandler, error) {
	if projects == nil {
		return nil, errors.New("handlers: project service is required")
	}
	return &ProjectHandler{projects: projects}, nil
}

type createProjectRequest struct {
	Name         string `json:"name" validate:"required,max=120"`
	Slug         string `json:"slug" validate:"max=120"`
	Mode         string `json:"mode" validate:"omitempty,oneof=fifo random score_based manual"`
	ShowPosition *bool  `json:"show_position"`
}

type updateProjectRequest struct {
	Name           *string        `json:"name" validate:"omitempty,min=1,max=120"`
	Slug           *string        `json:"slug" validate:"omitempty,min=1,max=120"`
	Mode           *string        `json:"mode" validate:"omitempty,oneof=fifo random score_based manual"`
	IsFrozen       *bool          `json:"is_frozen"`
	ShowPosition   *bool          `json:"show_position"`
	WidgetSettings datatypes.JSON `json:"widget_settings"`
}

// List handles GET /api/projects.
func (h *ProjectHandler) List(c *gin.Context) {
	projects, err := h.projects.ListByUser(requestContext(c), currentUserID(c))
	if err != nil {
		response.Error(c, mapProjectError(err))
		return
	}
	response.Success(c, http.StatusOK, projects)
}

// Create handles POST /api/projects.
func (h *ProjectHandler) Create(c *gin.Context) {
	var req createProjectRequest
	if !bindAndValidate(c, &req) {
		return
	}

	project, err := h.projects.Create(requestContext(c), currentUserID(c), services.CreateProjectInput{
		Name:         req.Name,
		Slug:         req.Slug,
		Mode:         req.Mode,
		ShowPosition: req.ShowPosition,
	})
	if err != nil {
		response.Error(c, mapProjectError(err))
		return
	}
	response.Success(c, http.StatusCreated, project)
}

// Get handles GET /api/projects/:id.
func (h *ProjectHandler) Get(c *gin.Context) {
	project, err := h.projects.Get(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, mapProjectError(err))
		return
	}
	response.Success(c, http.StatusOK, project)
}

// Update handles PATCH /api/projects/:id, including freeze and thaw.
func (h *ProjectHandler) Update(c *gin.Context) {
	var req updateProjectRequest
	if !bindAndValidate(c, &req) {
		return
	}

	project, err := h.projects.Update(requestContext(c), currentUserID(c), c.Param("id"), services.UpdateProjectInput{
		Name:           req.Name,
		Slug:           req.Slug,
		Mode:           req.Mode,
		IsFrozen:       req.IsFrozen,
		ShowPosition:   req.ShowPosition,
		WidgetSettings: req.WidgetSettings,
	})
	if err != nil {
		response.Error(c, mapProjectError(err))
		return
	}
	response.Success(c, http.StatusOK, project)
}

// RotateKey handles POST /api/projects/:id/rotate-key.
func (h *ProjectHandler) RotateKey(c *gin.Context) {
	project, err := h.projects.RotateKey(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, mapProjectError(err))
		return
	}
	response.Success(c, http.StatusOK, project)
}

// Delete handles DELETE /api/projects/:id.
func (h *ProjectHandler) Delete(c *gin.Context) {
	if err := h.projects.Delete(requestContext(c), currentUserID(c), c.Param("id")); err != nil {
		response.Error(c, mapProjectError(err))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

func mapProjectError(err error) error {
	switch {
	case errors.Is(err, services.ErrProjectNotFound):
		return appErrors.ErrNotFound
	case errors.Is(err, services.ErrSlugTaken):
		return appErrors.NewBadRequest("slug already in use")
	case errors.Is(err, services.ErrInvalidMode):
		return appErrors.NewBadRequest("invalid ranking mode")
	default:
		return appErrors.ErrInternalServer.WithInternal(err)
	}
}
