package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/college-timetable-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func entryRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "version_id", "day_of_week", "period_number", "branch_id", "year_section_id",
		"subject_id", "faculty_id", "classroom_id", "labroom_id", "session_type", "locked", "created_at",
	})
}

func TestEntryRepositoryListByVersion(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEntryRepository(db)

	rows := entryRows().
		AddRow("e1", "v1", "MONDAY", 3, "b1", "sec-1", "s1", "f1", "r1", nil, "LECTURE", false, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, version_id, day_of_week, period_number")).
		WithArgs("v1").
		WillReturnRows(rows)

	entries, err := repo.ListByVersion(context.Background(), "v1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.Monday, entries[0].DayOfWeek)
	assert.Equal(t, models.SessionLecture, entries[0].SessionType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepositoryInsertRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEntryRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_entries")).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := repo.Insert(context.Background(), []models.TimetableEntry{
		{VersionID: "v1", DayOfWeek: models.Monday, Period: 3, BranchID: "b1", YearSectionID: "sec-1", SessionType: models.SessionLecture},
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepositoryInsertCommitsBatch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEntryRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_entries")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_entries")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	entries := []models.TimetableEntry{
		{VersionID: "v1", DayOfWeek: models.Monday, Period: 3, BranchID: "b1", YearSectionID: "sec-1", SessionType: models.SessionLab},
		{VersionID: "v1", DayOfWeek: models.Monday, Period: 4, BranchID: "b1", YearSectionID: "sec-1", SessionType: models.SessionLab},
	}
	require.NoError(t, repo.Insert(context.Background(), entries))
	assert.NotEmpty(t, entries[0].ID, "ids are assigned on insert")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepositoryUpdateSlotsMissingEntry(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEntryRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE timetable_entries SET day_of_week")).
		WithArgs("TUESDAY", 5, "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.UpdateSlots(context.Background(), []models.EntrySlotUpdate{
		{EntryID: "missing", Day: models.Tuesday, Period: 5},
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepositorySetLocked(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEntryRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE timetable_entries SET locked")).
		WithArgs(true, "e1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetLocked(context.Background(), "e1", true))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepositoryDeleteUnlocked(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEntryRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_entries WHERE version_id = $1 AND locked = FALSE")).
		WithArgs("v1").
		WillReturnResult(sqlmock.NewResult(0, 7))

	require.NoError(t, repo.DeleteUnlocked(context.Background(), "v1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
