package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/travel-desk/internal/application/port"
	"github.com/garyjia/travel-desk/internal/domain"
	"github.com/garyjia/travel-desk/internal/domain/entity"
)

// ApprovalLedger opens and closes approval records. Callers run it inside
// the transaction that moves the trip so the two never disagree.
type ApprovalLedger struct {
	approvals port.ApprovalRepository
}

// NewApprovalLedger creates a new ApprovalLedger
func NewApprovalLedger(approvals port.ApprovalRepository) *ApprovalLedger {
	return &ApprovalLedger{approvals: approvals}
}

// Open creates an undecided record for approverID. It fails with
// ErrApprovalAlreadyOpen when the trip already has one.
func (l *ApprovalLedger) Open(ctx context.Context, tripID, approverID int64, role string) (*entity.Approval, error) {
	existing, err := l.approvals.GetOpenByTripID(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("get open approval: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("trip %d has open approval %d: %w", tripID, existing.ID, domain.ErrApprovalAlreadyOpen)
	}

	approval := &entity.Approval{
		TripID:     tripID,
		ApproverID: approverID,
		Role:       role,
		CreatedAt:  time.Now(),
	}
	if err := l.approvals.Create(ctx, approval); err != nil {
		return nil, fmt.Errorf("create approval: %w", err)
	}
	return approval, nil
}

// Close writes decision and comments onto an open record
func (l *ApprovalLedger) Close(ctx context.Context, approvalID int64, decision entity.Decision, comments string) error {
	return l.approvals.Decide(ctx, approvalID, decision, comments, time.Now())
}

// Withdraw closes the trip's open record, if any, as withdrawn
func (l *ApprovalLedger) Withdraw(ctx context.Context, tripID int64, reason string) (*entity.Approval, error) {
	open, err := l.approvals.GetOpenByTripID(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("get open approval: %w", err)
	}
	if open == nil {
		return nil, nil
	}

	if err := l.Close(ctx, open.ID, entity.DecisionWithdrawn, reason); err != nil {
		return nil, err
	}
	return open, nil
}
