package handler

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/college-timetable-api/internal/dto"
	appErrors "github.com/noah-isme/college-timetable-api/pkg/errors"
	"github.com/noah-isme/college-timetable-api/pkg/response"
)

type timetableExporter interface {
	Enqueue(ctx context.Context, req dto.ExportRequest) (*dto.ExportJobStatus, error)
	Status(jobID string) (*dto.ExportJobStatus, error)
	Open(token string) (*os.File, string, error)
}

// ExportHandler exposes the asynchronous export pipeline.
type ExportHandler struct {
	exporter timetableExporter
}

// NewExportHandler constructs the handler.
func NewExportHandler(exporter timetableExporter) *ExportHandler {
	return &ExportHandler{exporter: exporter}
}

// Create godoc
// @Summary Queue a CSV or PDF render of the active timetable
// @Tags Export
// @Accept json
// @Produce json
// @Param payload body dto.ExportRequest true "Export payload"
// @Success 202 {object} response.Envelope
// @Router /export [post]
func (h *ExportHandler) Create(c *gin.Context) {
	var req dto.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export payload"))
		return
	}
	status, err := h.exporter.Enqueue(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, status, nil)
}

// Status godoc
// @Summary Report the state of an export job
// @Tags Export
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /export/status/{id} [get]
func (h *ExportHandler) Status(c *gin.Context) {
	status, err := h.exporter.Status(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Download godoc
// @Summary Stream a finished export artifact
// @Tags Export
// @Param token path string true "Signed download token"
// @Success 200
// @Router /export/download/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	file, relPath, err := h.exporter.Open(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	contentType := "text/csv"
	if strings.EqualFold(filepath.Ext(relPath), ".pdf") {
		contentType = "application/pdf"
	}
	c.Header("Content-Disposition", "attachment; filename="+filepath.Base(relPath))
	c.DataFromReader(http.StatusOK, -1, contentType, file, nil)
}
