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
	"github.com/garyjia/travel-desk/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const approvalColumns = `id, trip_id, approver_id, role, decision, comments, decided_at, created_at`

// ApprovalRepository implements port.ApprovalRepository
type ApprovalRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewApprovalRepository creates a new approval repository
func NewApprovalRepository(db *sql.DB, logger *zap.Logger) port.ApprovalRepository {
	return &ApprovalRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts an open approval record
func (r *ApprovalRepository) Create(ctx context.Context, approval *entity.Approval) error {
	query := `
		INSERT INTO approvals (trip_id, approver_id, role, decision, comments, decided_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	var decision interface{}
	if approval.Decision != nil {
		decision = string(*approval.Decision)
	}

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		approval.TripID,
		approval.ApproverID,
		approval.Role,
		decision,
		approval.Comments,
		approval.DecidedAt,
		approval.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("trip %d: %w", approval.TripID, domain.ErrApprovalAlreadyOpen)
		}
		r.logger.Error("Failed to create approval", zap.Int64("trip_id", approval.TripID), zap.Error(err))
		return fmt.Errorf("failed to create approval: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	approval.ID = id
	return nil
}

// GetByID retrieves an approval by ID
func (r *ApprovalRepository) GetByID(ctx context.Context, id int64) (*entity.Approval, error) {
	query := `SELECT ` + approvalColumns + ` FROM approvals WHERE id = ?`

	approval, err := scanApproval(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("approval %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get approval by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get approval: %w", err)
	}
	return approval, nil
}

// GetOpenByTripID returns the undecided approval of a trip, nil if none
func (r *ApprovalRepository) GetOpenByTripID(ctx context.Context, tripID int64) (*entity.Approval, error) {
	query := `SELECT ` + approvalColumns + ` FROM approvals WHERE trip_id = ? AND decision IS NULL`

	approval, err := scanApproval(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, tripID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get open approval", zap.Int64("trip_id", tripID), zap.Error(err))
		return nil, fmt.Errorf("failed to get open approval: %w", err)
	}
	return approval, nil
}

// ListByTripID returns the approval history of a trip in creation order
func (r *ApprovalRepository) ListByTripID(ctx context.Context, tripID int64) ([]*entity.Approval, error) {
	query := `SELECT ` + approvalColumns + ` FROM approvals WHERE trip_id = ? ORDER BY id`
	return r.list(ctx, query, tripID)
}

// ListOpenByApprover returns the undecided approvals assigned to approverID
func (r *ApprovalRepository) ListOpenByApprover(ctx context.Context, approverID int64) ([]*entity.Approval, error) {
	query := `SELECT ` + approvalColumns + ` FROM approvals WHERE approver_id = ? AND decision IS NULL ORDER BY id`
	return r.list(ctx, query, approverID)
}

// Decide closes an open approval. Only one caller can win the race.
func (r *ApprovalRepository) Decide(ctx context.Context, id int64, decision entity.Decision, comments string, at time.Time) error {
	query := `
		UPDATE approvals SET decision = ?, comments = ?, decided_at = ?
		WHERE id = ? AND decision IS NULL
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, string(decision), comments, at, id)
	if err != nil {
		r.logger.Error("Failed to decide approval", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to decide approval: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("approval %d: %w", id, domain.ErrApprovalClosed)
	}

	return nil
}

func (r *ApprovalRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.Approval, error) {
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list approvals", zap.Error(err))
		return nil, fmt.Errorf("failed to list approvals: %w", err)
	}
	defer rows.Close()

	var approvals []*entity.Approval
	for rows.Next() {
		approval, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval: %w", err)
		}
		approvals = append(approvals, approval)
	}

	return approvals, rows.Err()
}

func scanApproval(row rowScanner) (*entity.Approval, error) {
	var (
		approval  entity.Approval
		decision  sql.NullString
		decidedAt sql.NullTime
	)

	err := row.Scan(
		&approval.ID,
		&approval.TripID,
		&approval.ApproverID,
		&approval.Role,
		&decision,
		&approval.Comments,
		&decidedAt,
		&approval.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if decision.Valid {
		d := entity.Decision(decision.String)
		approval.Decision = &d
	}
	approval.DecidedAt = nullTimePtr(decidedAt)

	return &approval, nil
}
