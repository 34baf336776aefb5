package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/garyjia/travel-desk/internal/application/port"
	"github.com/garyjia/travel-desk/internal/domain"
	"github.com/garyjia/travel-desk/internal/domain/entity"
	"github.com/garyjia/travel-desk/internal/domain/event"
	"github.com/garyjia/travel-desk/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// EventPublisher hands committed events to the async dispatcher
type EventPublisher interface {
	DispatchAsync(ctx context.Context, evt *event.Event)
}

// publishAll dispatches events in order. Nil entries are skipped so callers
// can build the list conditionally.
func publishAll(ctx context.Context, publisher EventPublisher, events ...*event.Event) {
	if publisher == nil {
		return
	}
	for _, evt := range events {
		if evt != nil {
			publisher.DispatchAsync(ctx, evt)
		}
	}
}

// advance computes the status reached by firing trigger on trip. An illegal
// transition is reported as a PreconditionError naming op and the current status.
func advance(op string, trip *entity.Trip, trigger workflow.Trigger, facts workflow.Facts) (workflow.State, error) {
	to, err := workflow.Next(trip.Status, trigger, facts)
	if err != nil {
		return "", domain.NewPreconditionError(op, string(trip.Status), err)
	}
	if !to.IsValid() {
		return "", fmt.Errorf("%s produced unknown status %q: %w", op, to, workflow.ErrInvalidState)
	}
	return to, nil
}

// requireOwner fails with ErrForbidden unless actorID requested the trip
func requireOwner(trip *entity.Trip, actorID int64) error {
	if trip.RequesterID != actorID {
		return fmt.Errorf("%w: only the requester may modify trip %s", domain.ErrForbidden, trip.ReferenceCode)
	}
	return nil
}

// requireAdmin loads actorID and fails with ErrForbidden unless they hold a
// travel-desk role. Unknown actors are forbidden rather than not found.
func requireAdmin(ctx context.Context, directory port.Directory, actorID int64) (*entity.User, error) {
	actor, err := directory.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown actor %d", domain.ErrForbidden, actorID)
		}
		return nil, fmt.Errorf("get actor: %w", err)
	}
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: user %d is not a travel admin", domain.ErrForbidden, actorID)
	}
	return actor, nil
}

// requireOwnerOrAdmin passes for the requester or any travel-desk admin
func requireOwnerOrAdmin(ctx context.Context, directory port.Directory, trip *entity.Trip, actorID int64) error {
	if trip.RequesterID == actorID {
		return nil
	}
	_, err := requireAdmin(ctx, directory, actorID)
	return err
}

// approverRoleFor maps a pending status to the approval role that owns it
func approverRoleFor(status workflow.State) string {
	if status == workflow.StateRMPending {
		return entity.ApproverRoleReportingManager
	}
	return entity.ApproverRoleTravelAdmin
}

// pendingStatusFor maps an approval role to the trip status it decides
func pendingStatusFor(role string) workflow.State {
	if role == entity.ApproverRoleReportingManager {
		return workflow.StateRMPending
	}
	return workflow.StateTravelAdminPending
}
