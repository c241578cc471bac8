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

// LabRoomRepository provides persistence for laboratory rooms.
type LabRoomRepository struct {
	db *sqlx.DB
}

// NewLabRoomRepository creates a new lab room repository.
func NewLabRoomRepository(db *sqlx.DB) *LabRoomRepository {
	return &LabRoomRepository{db: db}
}

// List returns active lab rooms ordered by room number.
func (r *LabRoomRepository) List(ctx context.Context) ([]models.LabRoom, error) {
	const query = `SELECT id, room_number, lab_type, capacity, building, active, created_at FROM lab_rooms WHERE active = TRUE ORDER BY room_number ASC`
	var rooms []models.LabRoom
	if err := r.db.SelectContext(ctx, &rooms, query); err != nil {
		return nil, fmt.Errorf("list lab rooms: %w", err)
	}
	return rooms, nil
}

// FindByRoomNumber loads a lab room by its room number.
func (r *LabRoomRepository) FindByRoomNumber(ctx context.Context, roomNumber string) (*models.LabRoom, error) {
	const query = `SELECT id, room_number, lab_type, capacity, building, active, created_at FROM lab_rooms WHERE room_number = $1`
	var room models.LabRoom
	if err := r.db.GetContext(ctx, &room, query, roomNumber); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find lab room: %w", err)
	}
	return &room, nil
}

// Create stores a new lab room.
func (r *LabRoomRepository) Create(ctx context.Context, room *models.LabRoom) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	const query = `INSERT INTO lab_rooms (id, room_number, lab_type, capacity, building, active, created_at) VALUES (:id, :room_number, :lab_type, :capacity, :building, :active, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, room); err != nil {
		return fmt.Errorf("create lab room: %w", err)
	}
	return nil
}
