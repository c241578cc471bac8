package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/college-timetable-api/internal/models"
)

// ClassroomRepository provides persistence for lecture rooms.
type ClassroomRepository struct {
	db *sqlx.DB
}

// NewClassroomRepository creates a new classroom repository.
func NewClassroomRepository(db *sqlx.DB) *ClassroomRepository {
	return &ClassroomRepository{db: db}
}

// List returns active classrooms ordered by room number.
func (r *ClassroomRepository) List(ctx context.Context) ([]models.Classroom, error) {
	const query = `SELECT id, room_number, capacity, building, active, created_at FROM classrooms WHERE active = TRUE ORDER BY room_number ASC`
	var rooms []models.Classroom
	if err := r.db.SelectContext(ctx, &rooms, query); err != nil {
		return nil, fmt.Errorf("list classrooms: %w", err)
	}
	return rooms, nil
}

// FindByRoomNumber loads a classroom by its room number.
func (r *ClassroomRepository) FindByRoomNumber(ctx context.Context, roomNumber string) (*models.Classroom, error) {
	const query = `SELECT id, room_number, capacity, building, active, created_at FROM classrooms WHERE room_number = $1`
	var room models.Classroom
	if err := r.db.GetContext(ctx, &room, query, roomNumber); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find classroom: %w", err)
	}
	return &room, nil
}

// Create stores a new classroom.
func (r *ClassroomRepository) Create(ctx context.Context, room *models.Classroom) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	const query = `INSERT INTO classrooms (id, room_number, capacity, building, active, created_at) VALUES (:id, :room_number, :capacity, :building, :active, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, room); err != nil {
		return fmt.Errorf("create classroom: %w", err)
	}
	return nil
}
