package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/travel-desk/internal/application/port"
	"github.com/garyjia/travel-desk/internal/domain"
	"github.com/garyjia/travel-desk/internal/domain/entity"
	"github.com/garyjia/travel-desk/internal/domain/workflow"
	"github.com/garyjia/travel-desk/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const tripColumns = `id, reference_code, requester_id, name, travel_type, destination_country,
	visa_required, business_purpose, status, option_selected, total_cost, booking_payload,
	cancellation_reason, cancellation_cost, is_visa_request, expected_journey_date,
	created_at, submitted_at, booked_at, closed_at, updated_at`

// TripRepository implements port.TripRepository
type TripRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTripRepository creates a new trip repository
func NewTripRepository(db *sql.DB, logger *zap.Logger) port.TripRepository {
	return &TripRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a trip and assigns its ID. A duplicate reference code
// returns domain.ErrConflict so the caller can regenerate it.
func (r *TripRepository) Create(ctx context.Context, trip *entity.Trip) error {
	payload, err := encodeJSON(trip.BookingPayload)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO trips (
			reference_code, requester_id, name, travel_type, destination_country,
			visa_required, business_purpose, status, option_selected, total_cost,
			booking_payload, cancellation_reason, cancellation_cost, is_visa_request,
			expected_journey_date, created_at, submitted_at, booked_at, closed_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		trip.ReferenceCode,
		trip.RequesterID,
		trip.Name,
		trip.TravelType,
		trip.DestinationCountry,
		trip.VisaRequired,
		trip.BusinessPurpose,
		string(trip.Status),
		trip.OptionSelected,
		trip.TotalCost,
		payload,
		trip.CancellationReason,
		trip.CancellationCost,
		trip.IsVisaRequest,
		trip.ExpectedJourneyDate,
		trip.CreatedAt,
		trip.SubmittedAt,
		trip.BookedAt,
		trip.ClosedAt,
		trip.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: reference code %s", domain.ErrConflict, trip.ReferenceCode)
		}
		r.logger.Error("Failed to create trip", zap.Error(err))
		return fmt.Errorf("failed to create trip: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	trip.ID = id
	return nil
}

// GetByID retrieves a trip by ID
func (r *TripRepository) GetByID(ctx context.Context, id int64) (*entity.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = ?`

	trip, err := scanTrip(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("trip %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get trip by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}
	return trip, nil
}

// GetByReference retrieves a trip by its reference code
func (r *TripRepository) GetByReference(ctx context.Context, referenceCode string) (*entity.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE reference_code = ?`

	trip, err := scanTrip(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, referenceCode))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("trip %s: %w", referenceCode, domain.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get trip by reference",
			zap.String("reference_code", referenceCode),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}
	return trip, nil
}

// Update writes the mutable columns of trip guarded by the expected status
func (r *TripRepository) Update(ctx context.Context, trip *entity.Trip, expected workflow.State) error {
	payload, err := encodeJSON(trip.BookingPayload)
	if err != nil {
		return err
	}

	trip.UpdatedAt = time.Now()

	query := `
		UPDATE trips SET
			status = ?, option_selected = ?, total_cost = ?, booking_payload = ?,
			cancellation_reason = ?, cancellation_cost = ?, booked_at = ?, closed_at = ?,
			updated_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		string(trip.Status),
		trip.OptionSelected,
		trip.TotalCost,
		payload,
		trip.CancellationReason,
		trip.CancellationCost,
		trip.BookedAt,
		trip.ClosedAt,
		trip.UpdatedAt,
		trip.ID,
		string(expected),
	)
	if err != nil {
		r.logger.Error("Failed to update trip", zap.Int64("id", trip.ID), zap.Error(err))
		return fmt.Errorf("failed to update trip: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("trip %d expected %s: %w", trip.ID, expected, domain.ErrStaleState)
	}

	return nil
}

// ListByStatus retrieves trips in the given status ordered by ID
func (r *TripRepository) ListByStatus(ctx context.Context, status workflow.State, limit, offset int) ([]*entity.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE status = ? ORDER BY id LIMIT ? OFFSET ?`
	return r.list(ctx, query, string(status), limit, offset)
}

// ListByRequester retrieves a requester's trips, newest first
func (r *TripRepository) ListByRequester(ctx context.Context, requesterID int64, limit, offset int) ([]*entity.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE requester_id = ? ORDER BY id DESC LIMIT ? OFFSET ?`
	return r.list(ctx, query, requesterID, limit, offset)
}

func (r *TripRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.Trip, error) {
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list trips", zap.Error(err))
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}
	defer rows.Close()

	var trips []*entity.Trip
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trip: %w", err)
		}
		trips = append(trips, trip)
	}

	return trips, rows.Err()
}

func scanTrip(row rowScanner) (*entity.Trip, error) {
	var (
		trip             entity.Trip
		status           string
		totalCost        sql.NullInt64
		payload          string
		cancellationCost sql.NullInt64
		journeyDate      sql.NullTime
		bookedAt         sql.NullTime
		closedAt         sql.NullTime
	)

	err := row.Scan(
		&trip.ID,
		&trip.ReferenceCode,
		&trip.RequesterID,
		&trip.Name,
		&trip.TravelType,
		&trip.DestinationCountry,
		&trip.VisaRequired,
		&trip.BusinessPurpose,
		&status,
		&trip.OptionSelected,
		&totalCost,
		&payload,
		&trip.CancellationReason,
		&cancellationCost,
		&trip.IsVisaRequest,
		&journeyDate,
		&trip.CreatedAt,
		&trip.SubmittedAt,
		&bookedAt,
		&closedAt,
		&trip.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	trip.Status, err = workflow.ParseState(status)
	if err != nil {
		return nil, fmt.Errorf("trip %d has status %q: %w", trip.ID, status, err)
	}

	decoded, err := decodeJSON(payload)
	if err != nil {
		return nil, err
	}
	trip.BookingPayload = entity.Payload(decoded)
	trip.TotalCost = nullInt64Ptr(totalCost)
	trip.CancellationCost = nullInt64Ptr(cancellationCost)
	trip.ExpectedJourneyDate = nullTimePtr(journeyDate)
	trip.BookedAt = nullTimePtr(bookedAt)
	trip.ClosedAt = nullTimePtr(closedAt)

	return &trip, nil
}
