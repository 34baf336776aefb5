package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/travel-desk/internal/application/port"
	"github.com/garyjia/travel-desk/internal/domain"
	"github.com/garyjia/travel-desk/internal/domain/entity"
	"github.com/garyjia/travel-desk/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// SegmentRepository implements port.SegmentRepository
type SegmentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSegmentRepository creates a new itinerary segment repository
func NewSegmentRepository(db *sql.DB, logger *zap.Logger) port.SegmentRepository {
	return &SegmentRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts an itinerary segment
func (r *SegmentRepository) Create(ctx context.Context, segment *entity.Segment) error {
	details, err := encodeJSON(segment.Details)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO itinerary_segments (trip_id, type, details, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		segment.TripID,
		segment.Type,
		details,
		segment.CreatedAt,
		segment.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create segment", zap.Int64("trip_id", segment.TripID), zap.Error(err))
		return fmt.Errorf("failed to create segment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	segment.ID = id
	return nil
}

// ListByTripID returns the itinerary of a trip in insertion order
func (r *SegmentRepository) ListByTripID(ctx context.Context, tripID int64) ([]*entity.Segment, error) {
	query := `
		SELECT id, trip_id, type, details, created_at, updated_at
		FROM itinerary_segments WHERE trip_id = ? ORDER BY id
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, tripID)
	if err != nil {
		r.logger.Error("Failed to list segments", zap.Int64("trip_id", tripID), zap.Error(err))
		return nil, fmt.Errorf("failed to list segments: %w", err)
	}
	defer rows.Close()

	var segments []*entity.Segment
	for rows.Next() {
		var (
			segment entity.Segment
			details string
		)
		if err := rows.Scan(
			&segment.ID,
			&segment.TripID,
			&segment.Type,
			&details,
			&segment.CreatedAt,
			&segment.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan segment: %w", err)
		}

		segment.Details, err = decodeJSON(details)
		if err != nil {
			return nil, err
		}
		segments = append(segments, &segment)
	}

	return segments, rows.Err()
}

// UpdateDetails replaces the details document of a segment
func (r *SegmentRepository) UpdateDetails(ctx context.Context, id int64, details map[string]interface{}) error {
	encoded, err := encodeJSON(details)
	if err != nil {
		return err
	}

	query := `UPDATE itinerary_segments SET details = ?, updated_at = ? WHERE id = ?`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, encoded, time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to update segment", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update segment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("segment %d: %w", id, domain.ErrNotFound)
	}

	return nil
}
