package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/travel-desk/internal/application/port"
	"github.com/garyjia/travel-desk/internal/domain"
	"github.com/garyjia/travel-desk/internal/domain/entity"
	"github.com/garyjia/travel-desk/internal/domain/event"
	"github.com/garyjia/travel-desk/internal/domain/workflow"
)

// CancellationService handles trip cancellation. Booked trips need a
// travel admin to confirm the fee; anything earlier cancels directly.
type CancellationService interface {
	Request(ctx context.Context, tripID, actorID int64, reason string) (workflow.State, error)
	Confirm(ctx context.Context, tripID, actorID int64, cost int64) (workflow.State, error)
}

type cancellationServiceImpl struct {
	tripRepo  port.TripRepository
	directory port.Directory
	ledger    *ApprovalLedger
	txManager port.TransactionManager
	publisher EventPublisher
	logger    Logger
}

// NewCancellationService creates a new CancellationService
func NewCancellationService(
	tripRepo port.TripRepository,
	directory port.Directory,
	ledger *ApprovalLedger,
	txManager port.TransactionManager,
	publisher EventPublisher,
	logger Logger,
) CancellationService {
	return &cancellationServiceImpl{
		tripRepo:  tripRepo,
		directory: directory,
		ledger:    ledger,
		txManager: txManager,
		publisher: publisher,
		logger:    logger,
	}
}

// Request cancels a trip, or parks a booked trip in CANCELLATION_PENDING
func (s *cancellationServiceImpl) Request(ctx context.Context, tripID, actorID int64, reason string) (workflow.State, error) {
	reason = strings.TrimSpace(reason)

	var (
		trip *entity.Trip
		from workflow.State
	)

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		trip, err = s.tripRepo.GetByID(txCtx, tripID)
		if err != nil {
			return err
		}
		if err := requireOwnerOrAdmin(txCtx, s.directory, trip, actorID); err != nil {
			return err
		}

		from = trip.Status
		to, err := advance("request cancellation", trip, workflow.TriggerRequestCancel, workflow.Facts{})
		if err != nil {
			return err
		}

		if _, err := s.ledger.Withdraw(txCtx, trip.ID, "cancellation requested"); err != nil {
			return err
		}

		trip.Status = to
		trip.CancellationReason = reason
		return s.tripRepo.Update(txCtx, trip, from)
	})
	if err != nil {
		s.logger.Error("Failed to request cancellation", "error", err, "trip_id", tripID)
		return "", err
	}

	var evt *event.Event
	if trip.Status == workflow.StateCancellationPending {
		evt = cancellationRequestedEvent(trip, from)
	} else {
		evt = statusChangedEvent(trip, from, "cancelled")
	}
	publishAll(ctx, s.publisher, evt)

	s.logger.Info("Cancellation requested",
		"reference_code", trip.ReferenceCode,
		"from", from,
		"to", trip.Status)

	return trip.Status, nil
}

// Confirm completes a pending cancellation and records the fee
func (s *cancellationServiceImpl) Confirm(ctx context.Context, tripID, actorID int64, cost int64) (workflow.State, error) {
	if cost < 0 {
		return "", fmt.Errorf("%w: cancellation cost cannot be negative", domain.ErrInvalidInput)
	}

	var (
		trip *entity.Trip
		from workflow.State
	)

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		trip, err = s.tripRepo.GetByID(txCtx, tripID)
		if err != nil {
			return err
		}
		if _, err := requireAdmin(txCtx, s.directory, actorID); err != nil {
			return err
		}

		from = trip.Status
		to, err := advance("confirm cancellation", trip, workflow.TriggerConfirmCancel, workflow.Facts{})
		if err != nil {
			return err
		}

		trip.Status = to
		trip.CancellationCost = &cost
		return s.tripRepo.Update(txCtx, trip, from)
	})
	if err != nil {
		s.logger.Error("Failed to confirm cancellation", "error", err, "trip_id", tripID)
		return "", err
	}

	publishAll(ctx, s.publisher, statusChangedEvent(trip, from, "cancellation confirmed"))

	s.logger.Info("Cancellation confirmed",
		"reference_code", trip.ReferenceCode,
		"cost", cost)

	return trip.Status, nil
}
