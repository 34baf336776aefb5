package service

import (
	"github.com/garyjia/travel-desk/internal/domain/entity"
	"github.com/garyjia/travel-desk/internal/domain/event"
	"github.com/garyjia/travel-desk/internal/domain/workflow"
)

func tripCreatedEvent(trip *entity.Trip) *event.Event {
	return event.NewEvent(event.TypeTripCreated, trip.ID, trip.ReferenceCode, map[string]interface{}{
		event.KeyToStatus: string(trip.Status),
	})
}

func statusChangedEvent(trip *entity.Trip, from workflow.State, reason string) *event.Event {
	payload := map[string]interface{}{
		event.KeyFromStatus: string(from),
		event.KeyToStatus:   string(trip.Status),
	}
	if reason != "" {
		payload[event.KeyReason] = reason
	}
	return event.NewEvent(event.TypeStatusChanged, trip.ID, trip.ReferenceCode, payload)
}

func approvalRequestedEvent(trip *entity.Trip, approval *entity.Approval) *event.Event {
	if approval == nil {
		return nil
	}
	return event.NewEvent(event.TypeApprovalRequested, trip.ID, trip.ReferenceCode, map[string]interface{}{
		event.KeyApprovalID: approval.ID,
		event.KeyApproverID: approval.ApproverID,
		event.KeyRole:       approval.Role,
		event.KeyToStatus:   string(trip.Status),
	})
}

func approvalDecidedEvent(trip *entity.Trip, approval *entity.Approval, decision entity.Decision, comments string, from workflow.State) *event.Event {
	return event.NewEvent(event.TypeApprovalDecided, trip.ID, trip.ReferenceCode, map[string]interface{}{
		event.KeyApprovalID: approval.ID,
		event.KeyApproverID: approval.ApproverID,
		event.KeyRole:       approval.Role,
		event.KeyDecision:   string(decision),
		event.KeyComments:   comments,
		event.KeyFromStatus: string(from),
		event.KeyToStatus:   string(trip.Status),
	})
}

func cancellationRequestedEvent(trip *entity.Trip, from workflow.State) *event.Event {
	return event.NewEvent(event.TypeCancellationRequested, trip.ID, trip.ReferenceCode, map[string]interface{}{
		event.KeyFromStatus: string(from),
		event.KeyToStatus:   string(trip.Status),
		event.KeyReason:     trip.CancellationReason,
	})
}

// finalizeRequestedEvent snapshots the booking so the partner call does not
// depend on the trip's state when the handler runs
func finalizeRequestedEvent(trip *entity.Trip) *event.Event {
	payload := map[string]interface{}{
		event.KeyOptionText:     trip.OptionSelected,
		event.KeyBookingPayload: map[string]interface{}(trip.BookingPayload.Clone()),
	}
	if trip.TotalCost != nil {
		payload[event.KeyTotalCost] = *trip.TotalCost
	}
	return event.NewEvent(event.TypeBookingFinalizeRequested, trip.ID, trip.ReferenceCode, payload)
}
