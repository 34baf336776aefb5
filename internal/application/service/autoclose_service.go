package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/travel-desk/internal/application/port"
	"github.com/garyjia/travel-desk/internal/domain"
	"github.com/garyjia/travel-desk/internal/domain/entity"
	"github.com/garyjia/travel-desk/internal/domain/itinerary"
	"github.com/garyjia/travel-desk/internal/domain/workflow"
)

const sweepPageSize = 100

// SweepResult summarises one auto-close pass
type SweepResult struct {
	Scanned int `json:"scanned"`
	Closed  int `json:"closed"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// AutoCloseService closes booked trips whose journey has ended
type AutoCloseService interface {
	Sweep(ctx context.Context, now time.Time) (SweepResult, error)
}

type autoCloseServiceImpl struct {
	tripRepo    port.TripRepository
	segmentRepo port.SegmentRepository
	txManager   port.TransactionManager
	publisher   EventPublisher
	logger      Logger
}

// NewAutoCloseService creates a new AutoCloseService
func NewAutoCloseService(
	tripRepo port.TripRepository,
	segmentRepo port.SegmentRepository,
	txManager port.TransactionManager,
	publisher EventPublisher,
	logger Logger,
) AutoCloseService {
	return &autoCloseServiceImpl{
		tripRepo:    tripRepo,
		segmentRepo: segmentRepo,
		txManager:   txManager,
		publisher:   publisher,
		logger:      logger,
	}
}

// Sweep scans every BOOKED trip and closes those whose latest itinerary
// date is before now's calendar day. Each close is its own transaction.
func (s *autoCloseServiceImpl) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	var result SweepResult

	candidates, err := s.bookedTrips(ctx)
	if err != nil {
		return result, err
	}

	for _, trip := range candidates {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Scanned++

		segments, err := s.segmentRepo.ListByTripID(ctx, trip.ID)
		if err != nil {
			s.logger.Error("Failed to load itinerary", "error", err, "trip_id", trip.ID)
			result.Failed++
			continue
		}

		latest, ok := itinerary.LatestDate(segments)
		if !ok || !itinerary.JourneyEnded(latest, now) {
			result.Skipped++
			continue
		}

		closed, err := s.closeTrip(ctx, trip.ID, now)
		switch {
		case err != nil:
			s.logger.Error("Failed to auto-close trip", "error", err, "trip_id", trip.ID)
			result.Failed++
		case closed:
			result.Closed++
		default:
			result.Skipped++
		}
	}

	s.logger.Info("Auto-close sweep finished",
		"scanned", result.Scanned,
		"closed", result.Closed,
		"skipped", result.Skipped,
		"failed", result.Failed)

	return result, nil
}

// bookedTrips pages through all BOOKED trips before any are closed, so
// closing does not shift the pages being read
func (s *autoCloseServiceImpl) bookedTrips(ctx context.Context) ([]*entity.Trip, error) {
	var all []*entity.Trip
	for offset := 0; ; offset += sweepPageSize {
		page, err := s.tripRepo.ListByStatus(ctx, workflow.StateBooked, sweepPageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("list booked trips: %w", err)
		}
		all = append(all, page...)
		if len(page) < sweepPageSize {
			return all, nil
		}
	}
}

// closeTrip reloads the trip and closes it if it is still booked. A trip
// that moved on since the scan is reported as not closed.
func (s *autoCloseServiceImpl) closeTrip(ctx context.Context, tripID int64, now time.Time) (bool, error) {
	var trip *entity.Trip

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		trip, err = s.tripRepo.GetByID(txCtx, tripID)
		if err != nil {
			return err
		}

		to, err := advance("auto close", trip, workflow.TriggerAutoClose, workflow.Facts{})
		if err != nil {
			return err
		}

		trip.Status = to
		trip.ClosedAt = &now
		return s.tripRepo.Update(txCtx, trip, workflow.StateBooked)
	})
	if errors.Is(err, domain.ErrPrecondition) {
		s.logger.Info("Trip no longer booked, skipping", "trip_id", tripID)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	publishAll(ctx, s.publisher, statusChangedEvent(trip, workflow.StateBooked, "journey ended"))
	return true, nil
}
