package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/college-timetable-api/internal/models"
	"github.com/noah-isme/college-timetable-api/pkg/response"
)

type versionManager interface {
	List(ctx context.Context) ([]models.VersionSummary, error)
	Activate(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type versionCacheInvalidator interface {
	InvalidateTimetable(ctx context.Context)
}

// VersionHandler exposes the version lifecycle endpoints.
type VersionHandler struct {
	versions versionManager
	cache    versionCacheInvalidator
}

// NewVersionHandler constructs the handler.
func NewVersionHandler(versions versionManager, cache versionCacheInvalidator) *VersionHandler {
	return &VersionHandler{versions: versions, cache: cache}
}

// List godoc
// @Summary List timetable versions with entry counts
// @Tags Versions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /versions [get]
func (h *VersionHandler) List(c *gin.Context) {
	versions, err := h.versions.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, versions, nil)
}

// Activate godoc
// @Summary Make a version the active one
// @Tags Versions
// @Param id path string true "Version ID"
// @Success 204
// @Router /versions/{id}/activate [post]
func (h *VersionHandler) Activate(c *gin.Context) {
	if err := h.versions.Activate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	if h.cache != nil {
		h.cache.InvalidateTimetable(c.Request.Context())
	}
	response.NoContent(c)
}

// Delete godoc
// @Summary Delete a version and its entries
// @Tags Versions
// @Param id path string true "Version ID"
// @Success 204
// @Router /versions/{id} [delete]
func (h *VersionHandler) Delete(c *gin.Context) {
	if err := h.versions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	if h.cache != nil {
		h.cache.InvalidateTimetable(c.Request.Context())
	}
	response.NoContent(c)
}
