package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/okarlsson/waitgate/internal/services"
	"github.com/okarlsson/waitgate/internal/waitlist"
	appErrors "github.com/okarlsson/waitgate/pkg/errors"
	"github.com/okarlsson/waitgate/pkg/response"
)

// EntryHandler exposes dashboard entry management and export for owned projects.
type EntryHandler struct {
	projects *services.ProjectService
	ledger   *waitlist.Ledger
	export   *services.ExportService
}

// NewEntryHandler constructs the entry handler.
func NewEntryHandler(projects *services.ProjectService, ledger *waitlist.Ledger, export *services.ExportService) (*EntryHandler, error) {
	if projects == nil || ledger == nil || export == nil {
		return nil, errors.New("handlers: project service, ledger and export service are required")
	}
	return &EntryHandler{projects: projects, ledger: ledger, export: export}, nil
}

// List handles GET /api/projects/:id/entries.
func (h *EntryHandler) List(c *gin.Context) {
	project, err := h.projects.Get(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, mapProjectError(err))
		return
	}

	entries, err := h.ledger.ListByProject(requestContext(c), project.ID)
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}
	response.Success(c, http.StatusOK, entries)
}

// Delete handles DELETE /api/projects/:id/entries/:entryId.
func (h *EntryHandler) Delete(c *gin.Context) {
	project, err := h.projects.Get(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, mapProjectError(err))
		return
	}

	if err := h.ledger.Delete(requestContext(c), project.ID, c.Param("entryId")); err != nil {
		if errors.Is(err, waitlist.ErrEntryNotFound) {
			response.Error(c, appErrors.ErrNotFound)
			return
		}
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// Purge handles DELETE /api/projects/:id/entries.
func (h *EntryHandler) Purge(c *gin.Context) {
	project, err := h.projects.Get(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, mapProjectError(err))
		return
	}

	purged, err := h.ledger.Purge(requestContext(c), project.ID)
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"purged": purged})
}

// Export handles GET /api/projects/:id/export?format=csv|json. The payload is
// written raw, not wrapped in the JSON envelope, so it can be saved as a file.
func (h *EntryHandler) Export(c *gin.Context) {
	project, err := h.projects.Get(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, mapProjectError(err))
		return
	}

	format := c.DefaultQuery("format", services.FormatCSV)
	contentType, err := h.export.ContentType(format)
	if err != nil {
		response.Error(c, appErrors.NewBadRequest("format must be csv or json"))
		return
	}

	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s-entries.%s", project.Slug, format))
	c.Status(http.StatusOK)

	if err := h.export.Write(requestContext(c), c.Writer, project.ID, format); err != nil {
		// Headers are already out; all that is left is the log.
		_ = c.Error(err)
	}
}
