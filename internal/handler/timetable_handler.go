package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/college-timetable-api/internal/dto"
	appErrors "github.com/noah-isme/college-timetable-api/pkg/errors"
	"github.com/noah-isme/college-timetable-api/pkg/response"
)

type timetableGenerator interface {
	Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error)
	Reshuffle(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error)
}

type timetableReader interface {
	GetActive(ctx context.Context) (*dto.TimetableResponse, error)
	GetCohort(ctx context.Context, branch string, year int, section string) (*dto.CohortTimetableResponse, error)
	InvalidateTimetable(ctx context.Context)
}

type timetableReporter interface {
	Validate(ctx context.Context) (*dto.ValidationReport, error)
	Statistics(ctx context.Context) (*dto.StatisticsResponse, error)
}

type timetableCleaner interface {
	Clear(ctx context.Context) error
}

// TimetableHandler exposes generation, read and report endpoints.
type TimetableHandler struct {
	generator timetableGenerator
	reader    timetableReader
	reporter  timetableReporter
	cleaner   timetableCleaner
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(generator timetableGenerator, reader timetableReader, reporter timetableReporter, cleaner timetableCleaner) *TimetableHandler {
	return &TimetableHandler{generator: generator, reader: reader, reporter: reporter, cleaner: cleaner}
}

// Generate godoc
// @Summary Generate a fresh timetable version
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Generation options"
// @Success 201 {object} response.Envelope
// @Router /timetable/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}
	result, err := h.generator.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.reader.InvalidateTimetable(c.Request.Context())
	response.Created(c, result)
}

// Reshuffle godoc
// @Summary Clear unlocked entries and re-run the placer
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Generation options"
// @Success 200 {object} response.Envelope
// @Router /timetable/reshuffle [post]
func (h *TimetableHandler) Reshuffle(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reshuffle payload"))
		return
	}
	result, err := h.generator.Reshuffle(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.reader.InvalidateTimetable(c.Request.Context())
	response.JSON(c, http.StatusOK, result, nil)
}

// Get godoc
// @Summary Active timetable grouped by day
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetable [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	result, err := h.reader.GetActive(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// GetCohort godoc
// @Summary One cohort's week ordered by day and period
// @Tags Timetable
// @Produce json
// @Param branch path string true "Branch code"
// @Param year path int true "Year (1-4)"
// @Param section path string true "Section"
// @Success 200 {object} response.Envelope
// @Router /timetable/{branch}/{year}/{section} [get]
func (h *TimetableHandler) GetCohort(c *gin.Context) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil || year < 1 || year > 4 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "year must be an integer between 1 and 4"))
		return
	}
	result, err := h.reader.GetCohort(c.Request.Context(), c.Param("branch"), year, c.Param("section"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Validate godoc
// @Summary Validation report for the active version
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetable/validate [post]
func (h *TimetableHandler) Validate(c *gin.Context) {
	report, err := h.reporter.Validate(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Statistics godoc
// @Summary Entry counts and resource utilization
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetable/statistics [get]
func (h *TimetableHandler) Statistics(c *gin.Context) {
	stats, err := h.reporter.Statistics(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Clear godoc
// @Summary Remove every version and entry
// @Tags Timetable
// @Success 204
// @Router /timetable/clear [delete]
func (h *TimetableHandler) Clear(c *gin.Context) {
	if err := h.cleaner.Clear(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	h.reader.InvalidateTimetable(c.Request.Context())
	response.NoContent(c)
}
