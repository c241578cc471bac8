package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/college-timetable-api/internal/dto"
	"github.com/noah-isme/college-timetable-api/internal/models"
	appErrors "github.com/noah-isme/college-timetable-api/pkg/errors"
	"github.com/noah-isme/college-timetable-api/pkg/export"
	"github.com/noah-isme/college-timetable-api/pkg/jobs"
	"github.com/noah-isme/college-timetable-api/pkg/storage"
)

type exportBranchCatalog interface {
	List(ctx context.Context) ([]models.Branch, error)
}

type exportFacultyCatalog interface {
	List(ctx context.Context) ([]models.Faculty, error)
}

type exportClassroomCatalog interface {
	List(ctx context.Context) ([]models.Classroom, error)
}

type exportLabRoomCatalog interface {
	List(ctx context.Context) ([]models.LabRoom, error)
}

// ExportConfig tunes the export pipeline.
type ExportConfig struct {
	APIPrefix string
}

const (
	exportStatusQueued = "QUEUED"
	exportStatusDone   = "DONE"
	exportStatusFailed = "FAILED"
)

type exportJob struct {
	ID          string
	Format      dto.ExportFormat
	Status      string
	Token       string
	Error       string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// ExportService renders the active timetable into downloadable artifacts
// through the background job queue.
type ExportService struct {
	versions   reportVersionStore
	entries    reportEntryStore
	subjects   reportSubjectCatalog
	sections   generatorSectionCatalog
	branches   exportBranchCatalog
	faculty    exportFacultyCatalog
	classrooms exportClassroomCatalog
	labrooms   exportLabRoomCatalog

	store  *storage.LocalStorage
	signer *storage.SignedURLSigner
	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	cfg    ExportConfig
	logger *zap.Logger

	queue *jobs.Queue

	mu      sync.RWMutex
	pending map[string]*exportJob
}

// NewExportService wires the export pipeline.
func NewExportService(
	versions reportVersionStore,
	entries reportEntryStore,
	subjects reportSubjectCatalog,
	sections generatorSectionCatalog,
	branches exportBranchCatalog,
	faculty exportFacultyCatalog,
	classrooms exportClassroomCatalog,
	labrooms exportLabRoomCatalog,
	store *storage.LocalStorage,
	signer *storage.SignedURLSigner,
	cfg ExportConfig,
	logger *zap.Logger,
) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		versions:   versions,
		entries:    entries,
		subjects:   subjects,
		sections:   sections,
		branches:   branches,
		faculty:    faculty,
		classrooms: classrooms,
		labrooms:   labrooms,
		store:      store,
		signer:     signer,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		cfg:        cfg,
		logger:     logger,
		pending:    make(map[string]*exportJob),
	}
}

// AttachQueue binds the worker queue the service enqueues into.
func (s *ExportService) AttachQueue(queue *jobs.Queue) {
	s.queue = queue
}

// Enqueue schedules a render of the active timetable.
func (s *ExportService) Enqueue(ctx context.Context, req dto.ExportRequest) (*dto.ExportJobStatus, error) {
	switch req.Format {
	case dto.ExportFormatCSV, dto.ExportFormatPDF:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", req.Format))
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "export queue unavailable")
	}
	if _, err := s.versions.FindActive(ctx); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active version")
	}

	job := &exportJob{
		ID:        uuid.NewString(),
		Format:    req.Format,
		Status:    exportStatusQueued,
		CreatedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.pending[job.ID] = job
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "timetable-export", Payload: string(req.Format)}); err != nil {
		s.mu.Lock()
		delete(s.pending, job.ID)
		s.mu.Unlock()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export")
	}
	return s.statusDTO(job), nil
}

// Status reports a queued or finished export job.
func (s *ExportService) Status(jobID string) (*dto.ExportJobStatus, error) {
	s.mu.RLock()
	job, ok := s.pending[jobID]
	s.mu.RUnlock()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	return s.statusDTO(job), nil
}

// Open resolves a signed download token to a readable file.
func (s *ExportService) Open(token string) (*os.File, string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "download link is invalid or expired")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export artifact no longer exists")
	}
	return file, relPath, nil
}

// Handle is the queue worker: it renders, stores and signs one export.
func (s *ExportService) Handle(ctx context.Context, job jobs.Job) error {
	format := dto.ExportFormat(fmt.Sprint(job.Payload))

	err := s.render(ctx, job.ID, format)
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.pending[job.ID]
	if !ok {
		return nil
	}
	record.CompletedAt = &now
	if err != nil {
		record.Status = exportStatusFailed
		record.Error = err.Error()
		s.logger.Error("timetable export failed", zap.String("job_id", job.ID), zap.Error(err))
		return nil // terminal; not worth retrying a deterministic render
	}
	record.Status = exportStatusDone
	return nil
}

func (s *ExportService) render(ctx context.Context, jobID string, format dto.ExportFormat) error {
	version, err := s.versions.FindActive(ctx)
	if err != nil {
		return fmt.Errorf("load active version: %w", err)
	}
	if version == nil {
		return fmt.Errorf("no active version")
	}
	entries, err := s.entries.ListByVersion(ctx, version.ID)
	if err != nil {
		return fmt.Errorf("load entries: %w", err)
	}
	dataset, err := s.buildDataset(ctx, entries)
	if err != nil {
		return err
	}

	var payload []byte
	var filename string
	switch format {
	case dto.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, version.Name)
		filename = fmt.Sprintf("timetables/%s.pdf", jobID)
	default:
		payload, err = s.csv.Render(dataset)
		filename = fmt.Sprintf("timetables/%s.csv", jobID)
	}
	if err != nil {
		return fmt.Errorf("render %s: %w", format, err)
	}

	relPath, err := s.store.Save(filename, payload)
	if err != nil {
		return err
	}
	token, _, err := s.signer.Generate(jobID, relPath)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if record, ok := s.pending[jobID]; ok {
		record.Token = token
	}
	s.mu.Unlock()
	return nil
}

var exportHeaders = []string{"Day", "Period", "Branch", "Year", "Section", "Subject", "Faculty", "Room", "Type"}

func (s *ExportService) buildDataset(ctx context.Context, entries []models.TimetableEntry) (export.Dataset, error) {
	lookups, err := s.loadLookups(ctx)
	if err != nil {
		return export.Dataset{}, err
	}

	rows := make([]map[string]string, 0, len(entries))
	for _, entry := range entries {
		row := map[string]string{
			"Day":    string(entry.DayOfWeek),
			"Period": strconv.Itoa(entry.Period),
			"Type":   string(entry.SessionType),
		}
		if section, ok := lookups.sections[entry.YearSectionID]; ok {
			row["Branch"] = lookups.branches[section.BranchID]
			row["Year"] = strconv.Itoa(section.Year)
			row["Section"] = section.Section
		}
		if entry.SubjectID != nil {
			row["Subject"] = lookups.subjects[*entry.SubjectID]
		}
		if entry.FacultyID != nil {
			row["Faculty"] = lookups.faculty[*entry.FacultyID]
		}
		switch {
		case entry.LabRoomID != nil:
			row["Room"] = lookups.labrooms[*entry.LabRoomID]
		case entry.ClassroomID != nil:
			row["Room"] = lookups.classrooms[*entry.ClassroomID]
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: exportHeaders, Rows: rows}, nil
}

type exportLookups struct {
	branches   map[string]string
	sections   map[string]models.YearSection
	subjects   map[string]string
	faculty    map[string]string
	classrooms map[string]string
	labrooms   map[string]string
}

func (s *ExportService) loadLookups(ctx context.Context) (exportLookups, error) {
	lookups := exportLookups{
		branches:   make(map[string]string),
		sections:   make(map[string]models.YearSection),
		subjects:   make(map[string]string),
		faculty:    make(map[string]string),
		classrooms: make(map[string]string),
		labrooms:   make(map[string]string),
	}

	branches, err := s.branches.List(ctx)
	if err != nil {
		return lookups, fmt.Errorf("load branches: %w", err)
	}
	for _, branch := range branches {
		lookups.branches[branch.ID] = branch.Code
	}
	sections, err := s.sections.List(ctx)
	if err != nil {
		return lookups, fmt.Errorf("load sections: %w", err)
	}
	for _, section := range sections {
		lookups.sections[section.ID] = section
	}
	subjects, err := s.subjects.ListActive(ctx)
	if err != nil {
		return lookups, fmt.Errorf("load subjects: %w", err)
	}
	for _, subject := range subjects {
		lookups.subjects[subject.ID] = subject.Name
	}
	faculty, err := s.faculty.List(ctx)
	if err != nil {
		return lookups, fmt.Errorf("load faculty: %w", err)
	}
	for _, member := range faculty {
		lookups.faculty[member.ID] = member.FullName
	}
	classrooms, err := s.classrooms.List(ctx)
	if err != nil {
		return lookups, fmt.Errorf("load classrooms: %w", err)
	}
	for _, room := range classrooms {
		lookups.classrooms[room.ID] = room.RoomNumber
	}
	labrooms, err := s.labrooms.List(ctx)
	if err != nil {
		return lookups, fmt.Errorf("load lab rooms: %w", err)
	}
	for _, room := range labrooms {
		lookups.labrooms[room.ID] = room.RoomNumber
	}
	return lookups, nil
}

func (s *ExportService) statusDTO(job *exportJob) *dto.ExportJobStatus {
	status := &dto.ExportJobStatus{
		JobID:       job.ID,
		Format:      job.Format,
		Status:      job.Status,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		CompletedAt: job.CompletedAt,
	}
	if job.Status == exportStatusDone && job.Token != "" {
		status.DownloadURL = fmt.Sprintf("%s/export/download/%s", s.cfg.APIPrefix, job.Token)
	}
	return status
}
