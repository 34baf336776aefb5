package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/garyjia/travel-desk/internal/application/port"
	"github.com/garyjia/travel-desk/internal/domain"
	"github.com/garyjia/travel-desk/internal/domain/entity"
	"github.com/garyjia/travel-desk/internal/domain/workflow"
)

// Resolution is the routing decision for a requester: the status the trip
// should enter and who, if anyone, must approve it.
type Resolution struct {
	Status   workflow.State
	Approver *entity.User
}

// ApproverResolver computes the next approver for a requester. It looks one
// hop ahead only; escalation happens when the manager accepts.
type ApproverResolver struct {
	directory port.Directory
	logger    Logger
}

// NewApproverResolver creates a new ApproverResolver
func NewApproverResolver(directory port.Directory, logger Logger) *ApproverResolver {
	return &ApproverResolver{
		directory: directory,
		logger:    logger,
	}
}

// Resolve returns the routing for requester:
// travel admins approve themselves, requesters with a known manager go to
// that manager, everyone else goes to the first travel admin.
func (r *ApproverResolver) Resolve(ctx context.Context, requester *entity.User) (Resolution, error) {
	if requester.IsTravelAdmin() {
		return Resolution{Status: workflow.StateApproved}, nil
	}

	if requester.ApproverID != nil {
		manager, err := r.directory.GetByID(ctx, *requester.ApproverID)
		switch {
		case err == nil:
			return Resolution{Status: workflow.StateRMPending, Approver: manager}, nil
		case errors.Is(err, domain.ErrNotFound):
			r.logger.Warn("Approver reference is dangling, routing to travel admin",
				"requester_id", requester.ID,
				"approver_id", *requester.ApproverID)
		default:
			return Resolution{}, fmt.Errorf("get manager: %w", err)
		}
	}

	admin, err := r.FirstTravelAdmin(ctx)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Status: workflow.StateTravelAdminPending, Approver: admin}, nil
}

// FirstTravelAdmin returns the lowest-id travel admin, nil if there is none
func (r *ApproverResolver) FirstTravelAdmin(ctx context.Context) (*entity.User, error) {
	admin, err := r.directory.FirstByRole(ctx, entity.RoleTravelAdmin)
	if err != nil {
		return nil, fmt.Errorf("get first travel admin: %w", err)
	}
	return admin, nil
}
