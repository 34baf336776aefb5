package port

import (
	"context"
	"time"

	"github.com/garyjia/travel-desk/internal/domain/entity"
	"github.com/garyjia/travel-desk/internal/domain/workflow"
)

// TripRepository defines persistence operations for Trip
type TripRepository interface {
	Create(ctx context.Context, trip *entity.Trip) error
	// GetByID returns domain.ErrNotFound when the trip does not exist
	GetByID(ctx context.Context, id int64) (*entity.Trip, error)
	GetByReference(ctx context.Context, referenceCode string) (*entity.Trip, error)
	// Update writes every mutable column only if the stored status still
	// equals expected, returning domain.ErrStaleState otherwise
	Update(ctx context.Context, trip *entity.Trip, expected workflow.State) error
	ListByStatus(ctx context.Context, status workflow.State, limit, offset int) ([]*entity.Trip, error)
	ListByRequester(ctx context.Context, requesterID int64, limit, offset int) ([]*entity.Trip, error)
}

// ApprovalRepository defines persistence operations for Approval
type ApprovalRepository interface {
	Create(ctx context.Context, approval *entity.Approval) error
	GetByID(ctx context.Context, id int64) (*entity.Approval, error)
	// GetOpenByTripID returns nil, nil when the trip has no undecided record
	GetOpenByTripID(ctx context.Context, tripID int64) (*entity.Approval, error)
	ListByTripID(ctx context.Context, tripID int64) ([]*entity.Approval, error)
	ListOpenByApprover(ctx context.Context, approverID int64) ([]*entity.Approval, error)
	// Decide closes an open record, returning domain.ErrApprovalClosed if
	// it already carries a decision
	Decide(ctx context.Context, id int64, decision entity.Decision, comments string, at time.Time) error
}

// SegmentRepository defines persistence operations for itinerary Segment
type SegmentRepository interface {
	Create(ctx context.Context, segment *entity.Segment) error
	ListByTripID(ctx context.Context, tripID int64) ([]*entity.Segment, error)
	UpdateDetails(ctx context.Context, id int64, details map[string]interface{}) error
}

// FileRepository defines persistence operations for TripFile
type FileRepository interface {
	Create(ctx context.Context, file *entity.TripFile) error
	// ListByTripID returns files of the given kinds, or all files when kinds is empty
	ListByTripID(ctx context.Context, tripID int64, kinds ...string) ([]*entity.TripFile, error)
	Delete(ctx context.Context, id int64) error
}

// Directory is the read-only identity lookup used for approver routing
type Directory interface {
	// GetByID returns domain.ErrNotFound when the identity does not exist
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	// FirstByRole returns the lowest-id identity holding role, nil if none
	FirstByRole(ctx context.Context, role string) (*entity.User, error)
	ListByRole(ctx context.Context, role string) ([]*entity.User, error)
}

// UserRepository extends Directory with provisioning
type UserRepository interface {
	Directory
	Create(ctx context.Context, user *entity.User) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
