package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/college-timetable-api/internal/models"
	"github.com/noah-isme/college-timetable-api/pkg/response"
)

type catalogReader interface {
	ListBranches(ctx context.Context) ([]models.Branch, error)
	ListFaculty(ctx context.Context) ([]models.Faculty, error)
	ListClassrooms(ctx context.Context) ([]models.Classroom, error)
	ListLabRooms(ctx context.Context) ([]models.LabRoom, error)
	ListSubjects(ctx context.Context) ([]models.Subject, error)
}

// CatalogHandler exposes read-only catalogue listings for the UI.
type CatalogHandler struct {
	catalog catalogReader
}

// NewCatalogHandler constructs the handler.
func NewCatalogHandler(catalog catalogReader) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// Branches lists branches.
func (h *CatalogHandler) Branches(c *gin.Context) {
	branches, err := h.catalog.ListBranches(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, branches, nil)
}

// Faculty lists active faculty members.
func (h *CatalogHandler) Faculty(c *gin.Context) {
	faculty, err := h.catalog.ListFaculty(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, faculty, nil)
}

// Classrooms lists active classrooms.
func (h *CatalogHandler) Classrooms(c *gin.Context) {
	rooms, err := h.catalog.ListClassrooms(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rooms, nil)
}

// LabRooms lists active lab rooms.
func (h *CatalogHandler) LabRooms(c *gin.Context) {
	rooms, err := h.catalog.ListLabRooms(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rooms, nil)
}

// Subjects lists active subjects.
func (h *CatalogHandler) Subjects(c *gin.Context) {
	subjects, err := h.catalog.ListSubjects(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subjects, nil)
}
