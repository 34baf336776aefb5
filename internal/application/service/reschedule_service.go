package service

import (
	"context"
	"fmt"

	"github.com/garyjia/travel-desk/internal/application/port"
	"github.com/garyjia/travel-desk/internal/domain"
	"github.com/garyjia/travel-desk/internal/domain/entity"
	"github.com/garyjia/travel-desk/internal/domain/itinerary"
	"github.com/garyjia/travel-desk/internal/domain/workflow"
)

// SegmentChange proposes new details for one itinerary segment
type SegmentChange struct {
	SegmentID int64                  `json:"segmentId"`
	Details   map[string]interface{} `json:"details"`
}

// RescheduleInput moves the dates of a booked trip
type RescheduleInput struct {
	TripID   int64
	ActorID  int64
	Segments []SegmentChange
}

// RescheduleService changes the dates of a booked trip and sends it back
// to the options stage
type RescheduleService interface {
	Reschedule(ctx context.Context, input RescheduleInput) (workflow.State, error)
}

type rescheduleServiceImpl struct {
	tripRepo    port.TripRepository
	segmentRepo port.SegmentRepository
	fileRepo    port.FileRepository
	fileStore   port.FileStore
	txManager   port.TransactionManager
	publisher   EventPublisher
	logger      Logger
}

// NewRescheduleService creates a new RescheduleService
func NewRescheduleService(
	tripRepo port.TripRepository,
	segmentRepo port.SegmentRepository,
	fileRepo port.FileRepository,
	fileStore port.FileStore,
	txManager port.TransactionManager,
	publisher EventPublisher,
	logger Logger,
) RescheduleService {
	return &rescheduleServiceImpl{
		tripRepo:    tripRepo,
		segmentRepo: segmentRepo,
		fileRepo:    fileRepo,
		fileStore:   fileStore,
		txManager:   txManager,
		publisher:   publisher,
		logger:      logger,
	}
}

// Reschedule validates every change before writing anything. Only date and
// time fields may differ; the first other field that changes aborts the
// whole request with an *itinerary.DisallowedFieldError.
func (s *rescheduleServiceImpl) Reschedule(ctx context.Context, input RescheduleInput) (workflow.State, error) {
	var (
		trip    *entity.Trip
		from    workflow.State
		removed []*entity.TripFile
	)

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		trip, err = s.tripRepo.GetByID(txCtx, input.TripID)
		if err != nil {
			return err
		}
		if err := requireOwner(trip, input.ActorID); err != nil {
			return err
		}

		from = trip.Status
		to, err := advance("reschedule", trip, workflow.TriggerReschedule, workflow.Facts{})
		if err != nil {
			return err
		}

		segments, err := s.segmentRepo.ListByTripID(txCtx, trip.ID)
		if err != nil {
			return fmt.Errorf("list segments: %w", err)
		}
		byID := make(map[int64]*entity.Segment, len(segments))
		for _, seg := range segments {
			byID[seg.ID] = seg
		}

		for _, change := range input.Segments {
			seg, ok := byID[change.SegmentID]
			if !ok {
				return fmt.Errorf("%w: segment %d does not belong to trip %s", domain.ErrInvalidInput, change.SegmentID, trip.ReferenceCode)
			}
			if err := itinerary.CheckChanges(seg.ID, seg.Type, seg.Details, change.Details); err != nil {
				return err
			}
		}

		removed, err = s.fileRepo.ListByTripID(txCtx, trip.ID, entity.FileKindReceipt, entity.FileKindTravelOption)
		if err != nil {
			return fmt.Errorf("list files: %w", err)
		}
		for _, f := range removed {
			if err := s.fileRepo.Delete(txCtx, f.ID); err != nil {
				return fmt.Errorf("delete file %d: %w", f.ID, err)
			}
		}

		for _, change := range input.Segments {
			seg := byID[change.SegmentID]
			merged := itinerary.MergeAllowed(seg.Type, seg.Details, change.Details)
			if err := s.segmentRepo.UpdateDetails(txCtx, seg.ID, merged); err != nil {
				return fmt.Errorf("update segment %d: %w", seg.ID, err)
			}
			seg.Details = merged
		}

		trip.Status = to
		trip.TotalCost = nil
		trip.BookedAt = nil
		trip.OptionSelected = ""
		trip.BookingPayload = trip.BookingPayload.Without(entity.PayloadOptionsUploaded)
		return s.tripRepo.Update(txCtx, trip, from)
	})
	if err != nil {
		s.logger.Error("Failed to reschedule trip", "error", err, "trip_id", input.TripID)
		return "", err
	}

	s.removeBlobs(ctx, removed)

	publishAll(ctx, s.publisher, statusChangedEvent(trip, from, "rescheduled"))

	s.logger.Info("Trip rescheduled",
		"reference_code", trip.ReferenceCode,
		"segments", len(input.Segments),
		"files_removed", len(removed))

	return trip.Status, nil
}

// removeBlobs deletes stored files whose rows were removed. The rows are
// already gone, so failures are only logged.
func (s *rescheduleServiceImpl) removeBlobs(ctx context.Context, files []*entity.TripFile) {
	for _, f := range files {
		if !s.fileStore.Exists(ctx, f.Path) {
			continue
		}
		if err := s.fileStore.Delete(ctx, f.Path); err != nil {
			s.logger.Error("Failed to delete stored file", "error", err, "path", f.Path, "trip_id", f.TripID)
		}
	}
}
