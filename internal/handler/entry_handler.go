package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/college-timetable-api/internal/dto"
	"github.com/noah-isme/college-timetable-api/internal/models"
	appErrors "github.com/noah-isme/college-timetable-api/pkg/errors"
	"github.com/noah-isme/college-timetable-api/pkg/response"
)

type entryEditor interface {
	Lock(ctx context.Context, req dto.LockEntryRequest) (*models.TimetableEntry, error)
	Move(ctx context.Context, req dto.MoveEntryRequest) (*models.TimetableEntry, error)
	Swap(ctx context.Context, req dto.SwapEntriesRequest) error
	Assign(ctx context.Context, req dto.AssignEntryRequest) ([]models.TimetableEntry, error)
}

// EntryHandler exposes the incremental edit operations.
type EntryHandler struct {
	editor entryEditor
}

// NewEntryHandler constructs the handler.
func NewEntryHandler(editor entryEditor) *EntryHandler {
	return &EntryHandler{editor: editor}
}

// Lock godoc
// @Summary Lock or unlock a timetable entry
// @Tags Entries
// @Accept json
// @Produce json
// @Param payload body dto.LockEntryRequest true "Lock payload"
// @Success 200 {object} response.Envelope
// @Router /entries/lock [post]
func (h *EntryHandler) Lock(c *gin.Context) {
	var req dto.LockEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid lock payload"))
		return
	}
	entry, err := h.editor.Lock(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Move godoc
// @Summary Move a non-lab entry to another slot
// @Tags Entries
// @Accept json
// @Produce json
// @Param payload body dto.MoveEntryRequest true "Move payload"
// @Success 200 {object} response.Envelope
// @Router /entries/move [post]
func (h *EntryHandler) Move(c *gin.Context) {
	var req dto.MoveEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid move payload"))
		return
	}
	entry, err := h.editor.Move(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Swap godoc
// @Summary Exchange the slots of two non-lab entries
// @Tags Entries
// @Accept json
// @Param payload body dto.SwapEntriesRequest true "Swap payload"
// @Success 204
// @Router /entries/swap [post]
func (h *EntryHandler) Swap(c *gin.Context) {
	var req dto.SwapEntriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid swap payload"))
		return
	}
	if err := h.editor.Swap(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Assign godoc
// @Summary Create a new entry (lab blocks create both periods)
// @Tags Entries
// @Accept json
// @Produce json
// @Param payload body dto.AssignEntryRequest true "Assign payload"
// @Success 201 {object} response.Envelope
// @Router /entries/assign [post]
func (h *EntryHandler) Assign(c *gin.Context) {
	var req dto.AssignEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assign payload"))
		return
	}
	entries, err := h.editor.Assign(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entries)
}
