package handler

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/college-timetable-api/internal/dto"
	appErrors "github.com/noah-isme/college-timetable-api/pkg/errors"
	"github.com/noah-isme/college-timetable-api/pkg/response"
)

const maxUploadBytes = 5 * 1024 * 1024

type catalogIngester interface {
	IngestMaster(ctx context.Context, rows []dto.MasterRow) (*dto.UploadReport, error)
	IngestAssignment(ctx context.Context, rows []dto.AssignmentRow) (*dto.UploadReport, error)
}

// UploadHandler ingests tabular CSV uploads into the entity catalogue.
type UploadHandler struct {
	ingester catalogIngester
}

// NewUploadHandler constructs the handler.
func NewUploadHandler(ingester catalogIngester) *UploadHandler {
	return &UploadHandler{ingester: ingester}
}

// Master godoc
// @Summary Upload master rows (Teacher, Subject, Year, Branch, Classroom [, Section])
// @Tags Upload
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV upload"
// @Success 201 {object} response.Envelope
// @Router /upload/master [post]
func (h *UploadHandler) Master(c *gin.Context) {
	records, header, err := readCSVUpload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	required := []string{"Teacher", "Subject", "Year", "Branch", "Classroom"}
	columns, err := mapColumns(header, required)
	if err != nil {
		response.Error(c, err)
		return
	}

	rows := make([]dto.MasterRow, 0, len(records))
	for _, record := range records {
		rows = append(rows, dto.MasterRow{
			Teacher:   field(record, columns, "Teacher"),
			Subject:   field(record, columns, "Subject"),
			Year:      field(record, columns, "Year"),
			Branch:    field(record, columns, "Branch"),
			Classroom: field(record, columns, "Classroom"),
			Section:   field(record, columns, "Section"),
		})
	}

	report, err := h.ingester.IngestMaster(c.Request.Context(), rows)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, report)
}

// Assignment godoc
// @Summary Upload assignment rows (Teacher, Subject, Year, Branch, LecturesPerWeek [, Section])
// @Tags Upload
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV upload"
// @Success 201 {object} response.Envelope
// @Router /upload/assignment [post]
func (h *UploadHandler) Assignment(c *gin.Context) {
	records, header, err := readCSVUpload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	required := []string{"Teacher", "Subject", "Year", "Branch", "LecturesPerWeek"}
	columns, err := mapColumns(header, required)
	if err != nil {
		response.Error(c, err)
		return
	}

	rows := make([]dto.AssignmentRow, 0, len(records))
	for idx, record := range records {
		count, convErr := strconv.Atoi(strings.TrimSpace(field(record, columns, "LecturesPerWeek")))
		if convErr != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("row %d: LecturesPerWeek must be an integer", idx+2)))
			return
		}
		rows = append(rows, dto.AssignmentRow{
			Teacher:         field(record, columns, "Teacher"),
			Subject:         field(record, columns, "Subject"),
			Year:            field(record, columns, "Year"),
			Branch:          field(record, columns, "Branch"),
			LecturesPerWeek: count,
			Section:         field(record, columns, "Section"),
		})
	}

	report, err := h.ingester.IngestAssignment(c.Request.Context(), rows)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, report)
}

func readCSVUpload(c *gin.Context) ([][]string, []string, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "multipart field 'file' is required")
	}
	if fileHeader.Size > maxUploadBytes {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "file too large (max 5MB)")
	}
	if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".csv") {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "only .csv uploads are accepted")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to open upload")
	}
	defer closeUpload(file)

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "upload is empty or not valid CSV")
	}
	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "upload contains malformed CSV rows")
		}
		records = append(records, record)
	}
	if len(records) == 0 {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "upload contains no data rows")
	}
	return records, header, nil
}

func mapColumns(header []string, required []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for idx, name := range header {
		columns[strings.TrimSpace(name)] = idx
	}
	missing := make([]string, 0)
	for _, name := range required {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")))
	}
	return columns, nil
}

func field(record []string, columns map[string]int, name string) string {
	idx, ok := columns[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func closeUpload(file multipart.File) {
	_ = file.Close()
}
