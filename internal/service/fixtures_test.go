package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"

	"github.com/noah-isme/college-timetable-api/internal/models"
)

// In-memory doubles for the storage interfaces so the scheduling core can
// be exercised without a live backend.

type versionStoreStub struct {
	mu       sync.Mutex
	versions map[string]models.TimetableVersion
}

func newVersionStoreStub() *versionStoreStub {
	return &versionStoreStub{versions: make(map[string]models.TimetableVersion)}
}

func (s *versionStoreStub) CreateActive(ctx context.Context, version *models.TimetableVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, v := range s.versions {
		v.Active = false
		s.versions[id] = v
	}
	version.Active = true
	s.versions[version.ID] = *version
	return nil
}

func (s *versionStoreStub) FindActive(ctx context.Context) (*models.TimetableVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.versions {
		if v.Active {
			active := v
			return &active, nil
		}
	}
	return nil, nil
}

func (s *versionStoreStub) FindByID(ctx context.Context, id string) (*models.TimetableVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.versions[id]; ok {
		found := v
		return &found, nil
	}
	return nil, sql.ErrNoRows
}

func (s *versionStoreStub) Activate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.versions[id]; !ok {
		return sql.ErrNoRows
	}
	for vid, v := range s.versions {
		v.Active = vid == id
		s.versions[vid] = v
	}
	return nil
}

func (s *versionStoreStub) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.versions, id)
	return nil
}

func (s *versionStoreStub) ListWithCounts(ctx context.Context) ([]models.VersionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]models.VersionSummary, 0, len(s.versions))
	for _, v := range s.versions {
		result = append(result, models.VersionSummary{TimetableVersion: v})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *versionStoreStub) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions = make(map[string]models.TimetableVersion)
	return nil
}

type entryStoreStub struct {
	mu      sync.Mutex
	entries map[string]models.TimetableEntry
}

func newEntryStoreStub() *entryStoreStub {
	return &entryStoreStub{entries: make(map[string]models.TimetableEntry)}
}

func (s *entryStoreStub) seed(entries ...models.TimetableEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range entries {
		s.entries[entry.ID] = entry
	}
}

func (s *entryStoreStub) ListByVersion(ctx context.Context, versionID string) ([]models.TimetableEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]models.TimetableEntry, 0)
	for _, entry := range s.entries {
		if entry.VersionID == versionID {
			result = append(result, entry)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *entryStoreStub) ListByCohort(ctx context.Context, versionID, yearSectionID string) ([]models.TimetableEntry, error) {
	all, _ := s.ListByVersion(ctx, versionID)
	result := make([]models.TimetableEntry, 0)
	for _, entry := range all {
		if entry.YearSectionID == yearSectionID {
			result = append(result, entry)
		}
	}
	return result, nil
}

func (s *entryStoreStub) FindByID(ctx context.Context, id string) (*models.TimetableEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.entries[id]; ok {
		found := entry
		return &found, nil
	}
	return nil, sql.ErrNoRows
}

func (s *entryStoreStub) Insert(ctx context.Context, entries []models.TimetableEntry) error {
	s.seed(entries...)
	return nil
}

func (s *entryStoreStub) BulkInsert(ctx context.Context, entries []models.TimetableEntry) error {
	s.seed(entries...)
	return nil
}

func (s *entryStoreStub) UpdateSlots(ctx context.Context, updates []models.EntrySlotUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, update := range updates {
		entry, ok := s.entries[update.EntryID]
		if !ok {
			return sql.ErrNoRows
		}
		entry.DayOfWeek = update.Day
		entry.Period = update.Period
		s.entries[update.EntryID] = entry
	}
	return nil
}

func (s *entryStoreStub) SetLocked(ctx context.Context, id string, locked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return sql.ErrNoRows
	}
	entry.Locked = locked
	s.entries[id] = entry
	return nil
}

func (s *entryStoreStub) DeleteUnlocked(ctx context.Context, versionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.entries {
		if entry.VersionID == versionID && !entry.Locked {
			delete(s.entries, id)
		}
	}
	return nil
}

type subjectCatalogStub struct {
	subjects []models.Subject
}

func (s subjectCatalogStub) ListActive(ctx context.Context) ([]models.Subject, error) {
	active := make([]models.Subject, 0, len(s.subjects))
	for _, subject := range s.subjects {
		if subject.Active {
			active = append(active, subject)
		}
	}
	return active, nil
}

func (s subjectCatalogStub) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	for _, subject := range s.subjects {
		if subject.ID == id {
			found := subject
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

type sectionCatalogStub struct {
	sections []models.YearSection
	branches map[string]models.Branch // by id
}

func (s sectionCatalogStub) List(ctx context.Context) ([]models.YearSection, error) {
	return s.sections, nil
}

func (s sectionCatalogStub) FindByCohort(ctx context.Context, branchCode string, year int, section string) (*models.YearSection, error) {
	for _, ys := range s.sections {
		branch, ok := s.branches[ys.BranchID]
		if !ok {
			continue
		}
		if branch.Code == branchCode && ys.Year == year && ys.Section == section {
			found := ys
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

type catalogCounterStub struct {
	counts models.CatalogCounts
}

func (s catalogCounterStub) ActiveCounts(ctx context.Context) (models.CatalogCounts, error) {
	return s.counts, nil
}

// strPtr returns a pointer for optional string fields.
func strPtr(v string) *string {
	return &v
}
