package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/travel-desk/internal/application/port"
	"github.com/garyjia/travel-desk/internal/domain"
	"github.com/garyjia/travel-desk/internal/domain/entity"
	"github.com/garyjia/travel-desk/internal/domain/event"
	"github.com/garyjia/travel-desk/internal/domain/workflow"
)

// maxReferenceAttempts bounds reference code regeneration on collision
const maxReferenceAttempts = 5

// newReferenceCode returns TRV- followed by 8 uppercase hex characters
var newReferenceCode = func() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "TRV-" + strings.ToUpper(id[:8])
}

// SegmentInput is one itinerary leg supplied at trip creation
type SegmentInput struct {
	Type    string                 `json:"type"`
	Details map[string]interface{} `json:"details"`
}

// CreateTripInput holds the data for a new trip request
type CreateTripInput struct {
	RequesterID         int64
	Name                string
	TravelType          string
	DestinationCountry  string
	VisaRequired        bool
	BusinessPurpose     string
	IsVisaRequest       bool
	DeferredBooking     bool
	ExpectedJourneyDate *time.Time
	Segments            []SegmentInput
}

// CreateTripResult is returned by Create
type CreateTripResult struct {
	ID            int64          `json:"id"`
	ReferenceCode string         `json:"referenceCode"`
	Status        workflow.State `json:"status"`
}

// SelectOptionInput carries an option picked through the booking partner.
// ActorID 0 marks the partner callback itself.
type SelectOptionInput struct {
	TripID     int64
	ActorID    int64
	OptionText string
	Cost       *int64
	Payload    map[string]interface{}
}

// DecideInput is an approver's decision on an open approval
type DecideInput struct {
	ApprovalID int64
	ActorID    int64
	Action     entity.Decision
	Comments   string
}

// DecideResult echoes the action taken and where the trip ended up
type DecideResult struct {
	ApprovalID int64           `json:"approvalId"`
	Action     entity.Decision `json:"action"`
	TripStatus workflow.State  `json:"tripStatus"`
}

// TripDetail is the read model for a single trip
type TripDetail struct {
	Trip      *entity.Trip       `json:"trip"`
	Segments  []*entity.Segment  `json:"segments"`
	Approvals []*entity.Approval `json:"approvals"`
	Files     []*entity.TripFile `json:"files"`
	// Triggers the lifecycle allows from the trip's current status
	Triggers []workflow.Trigger `json:"triggers"`
}

// TripService drives trips through their lifecycle
type TripService interface {
	Create(ctx context.Context, input CreateTripInput) (*CreateTripResult, error)
	SelectOption(ctx context.Context, input SelectOptionInput) (workflow.State, error)
	ChooseOption(ctx context.Context, tripID, actorID int64, optionText string) (workflow.State, error)
	Decide(ctx context.Context, input DecideInput) (*DecideResult, error)
	MarkOptionsUploaded(ctx context.Context, tripID, actorID int64) (workflow.State, error)
	RecordBooking(ctx context.Context, tripID, actorID int64, cost int64) (workflow.State, error)
	RecordVisaUpload(ctx context.Context, tripID, actorID int64, cost int64) (workflow.State, error)
	Close(ctx context.Context, tripID, requesterID int64) (workflow.State, error)
	GetTrip(ctx context.Context, id int64) (*TripDetail, error)
	GetTripByReference(ctx context.Context, referenceCode string) (*entity.Trip, error)
	ListTrips(ctx context.Context, requesterID int64, limit, offset int) ([]*entity.Trip, error)
	ListPendingApprovals(ctx context.Context, approverID int64) ([]*entity.Approval, error)
}

type tripServiceImpl struct {
	tripRepo     port.TripRepository
	segmentRepo  port.SegmentRepository
	approvalRepo port.ApprovalRepository
	fileRepo     port.FileRepository
	directory    port.Directory
	resolver     *ApproverResolver
	ledger       *ApprovalLedger
	txManager    port.TransactionManager
	publisher    EventPublisher
	logger       Logger
}

// NewTripService creates a new TripService
func NewTripService(
	tripRepo port.TripRepository,
	segmentRepo port.SegmentRepository,
	approvalRepo port.ApprovalRepository,
	fileRepo port.FileRepository,
	directory port.Directory,
	resolver *ApproverResolver,
	ledger *ApprovalLedger,
	txManager port.TransactionManager,
	publisher EventPublisher,
	logger Logger,
) TripService {
	return &tripServiceImpl{
		tripRepo:     tripRepo,
		segmentRepo:  segmentRepo,
		approvalRepo: approvalRepo,
		fileRepo:     fileRepo,
		directory:    directory,
		resolver:     resolver,
		ledger:       ledger,
		txManager:    txManager,
		publisher:    publisher,
		logger:       logger,
	}
}

// Create routes and stores a new trip
func (s *tripServiceImpl) Create(ctx context.Context, input CreateTripInput) (*CreateTripResult, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	var (
		trip     *entity.Trip
		approval *entity.Approval
	)

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		requester, err := s.directory.GetByID(txCtx, input.RequesterID)
		if err != nil {
			return fmt.Errorf("get requester: %w", err)
		}

		status, approver, err := s.initialRouting(txCtx, requester, input)
		if err != nil {
			return err
		}

		now := time.Now()
		trip = &entity.Trip{
			RequesterID:         requester.ID,
			Name:                input.Name,
			TravelType:          input.TravelType,
			DestinationCountry:  input.DestinationCountry,
			VisaRequired:        input.VisaRequired,
			BusinessPurpose:     input.BusinessPurpose,
			Status:              status,
			BookingPayload:      entity.Payload{},
			IsVisaRequest:       input.IsVisaRequest,
			ExpectedJourneyDate: input.ExpectedJourneyDate,
			CreatedAt:           now,
			SubmittedAt:         now,
			UpdatedAt:           now,
		}

		if err := s.insertWithReference(txCtx, trip); err != nil {
			return err
		}

		for _, in := range input.Segments {
			seg := &entity.Segment{
				TripID:    trip.ID,
				Type:      in.Type,
				Details:   in.Details,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := s.segmentRepo.Create(txCtx, seg); err != nil {
				return fmt.Errorf("create segment: %w", err)
			}
		}

		if approver != nil {
			approval, err = s.ledger.Open(txCtx, trip.ID, approver.ID, approverRoleFor(status))
			if err != nil {
				return err
			}
		} else if status.IsPendingApproval() {
			s.logger.Warn("No approver available, trip left without open approval",
				"reference_code", trip.ReferenceCode,
				"status", status)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create trip", "error", err, "requester_id", input.RequesterID)
		return nil, err
	}

	publishAll(ctx, s.publisher,
		tripCreatedEvent(trip),
		approvalRequestedEvent(trip, approval))

	s.logger.Info("Trip created",
		"id", trip.ID,
		"reference_code", trip.ReferenceCode,
		"status", trip.Status)

	return &CreateTripResult{
		ID:            trip.ID,
		ReferenceCode: trip.ReferenceCode,
		Status:        trip.Status,
	}, nil
}

// initialRouting resolves the approver and applies the creation overrides:
// deferred bookings wait for an option, visa requests skip plain approval.
func (s *tripServiceImpl) initialRouting(ctx context.Context, requester *entity.User, input CreateTripInput) (workflow.State, *entity.User, error) {
	if input.DeferredBooking && !input.IsVisaRequest {
		return workflow.StateSelectOption, nil, nil
	}

	res, err := s.resolver.Resolve(ctx, requester)
	if err != nil {
		return "", nil, err
	}

	status := res.Status
	if status == workflow.StateApproved && input.IsVisaRequest {
		status = workflow.StateVisaPending
	}

	if !status.IsInitial() {
		return "", nil, fmt.Errorf("resolved status %s is not an initial status: %w", status, workflow.ErrInvalidState)
	}
	return status, res.Approver, nil
}

// insertWithReference assigns a fresh reference code, retrying on collision
func (s *tripServiceImpl) insertWithReference(ctx context.Context, trip *entity.Trip) error {
	var err error
	for attempt := 0; attempt < maxReferenceAttempts; attempt++ {
		trip.ReferenceCode = newReferenceCode()
		err = s.tripRepo.Create(ctx, trip)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return fmt.Errorf("create trip: %w", err)
		}
		s.logger.Warn("Reference code collision, regenerating", "reference_code", trip.ReferenceCode)
	}
	return fmt.Errorf("create trip after %d attempts: %w", maxReferenceAttempts, err)
}

func validateCreateInput(input CreateTripInput) error {
	if input.RequesterID <= 0 {
		return fmt.Errorf("%w: requester is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("%w: trip name is required", domain.ErrInvalidInput)
	}
	if input.TravelType != entity.TravelTypeDomestic && input.TravelType != entity.TravelTypeInternational {
		return fmt.Errorf("%w: unknown travel type %q", domain.ErrInvalidInput, input.TravelType)
	}
	for i, seg := range input.Segments {
		if !entity.IsValidSegmentType(seg.Type) {
			return fmt.Errorf("%w: segment %d has unknown type %q", domain.ErrInvalidInput, i, seg.Type)
		}
	}
	return nil
}

// SelectOption records the option picked through the booking partner and
// starts a fresh approval cycle for it
func (s *tripServiceImpl) SelectOption(ctx context.Context, input SelectOptionInput) (workflow.State, error) {
	if strings.TrimSpace(input.OptionText) == "" {
		return "", fmt.Errorf("%w: option text is required", domain.ErrInvalidInput)
	}

	var (
		trip     *entity.Trip
		from     workflow.State
		approval *entity.Approval
	)

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		trip, err = s.tripRepo.GetByID(txCtx, input.TripID)
		if err != nil {
			return err
		}
		if input.ActorID != 0 {
			if err := requireOwner(trip, input.ActorID); err != nil {
				return err
			}
		}

		from = trip.Status
		if from != workflow.StateSelectOption {
			return domain.NewPreconditionError("select option", string(from), workflow.ErrInvalidTransition)
		}
		if trip.BookingPayload.Flag(entity.PayloadOptionsUploaded) {
			return &domain.PreconditionError{
				Op:     "select option",
				Status: string(from),
				Reason: "options were uploaded by the travel desk, choose one of them instead",
			}
		}
		open, err := s.approvalRepo.GetOpenByTripID(txCtx, trip.ID)
		if err != nil {
			return fmt.Errorf("get open approval: %w", err)
		}
		if open != nil {
			return domain.NewPreconditionError("select option", string(from), domain.ErrApprovalAlreadyOpen)
		}

		requester, err := s.directory.GetByID(txCtx, trip.RequesterID)
		if err != nil {
			return fmt.Errorf("get requester: %w", err)
		}
		res, err := s.resolver.Resolve(txCtx, requester)
		if err != nil {
			return err
		}

		trigger, ok := workflow.RouteTrigger(res.Status)
		if !ok {
			return fmt.Errorf("no route to %s: %w", res.Status, workflow.ErrInvalidTransition)
		}
		to, err := advance("select option", trip, trigger, workflow.Facts{})
		if err != nil {
			return err
		}

		trip.Status = to
		trip.OptionSelected = input.OptionText
		trip.TotalCost = input.Cost
		trip.BookingPayload = trip.BookingPayload.MergeExternal(input.Payload)

		if err := s.tripRepo.Update(txCtx, trip, from); err != nil {
			return err
		}

		if res.Approver == nil {
			s.logger.Warn("Option selected but no approver resolved, trip left un-routed",
				"reference_code", trip.ReferenceCode,
				"status", to)
			return nil
		}

		approval, err = s.ledger.Open(txCtx, trip.ID, res.Approver.ID, approverRoleFor(to))
		return err
	})
	if err != nil {
		s.logger.Error("Failed to select option", "error", err, "trip_id", input.TripID)
		return "", err
	}

	publishAll(ctx, s.publisher,
		statusChangedEvent(trip, from, "option selected"),
		approvalRequestedEvent(trip, approval))

	s.logger.Info("Option selected",
		"reference_code", trip.ReferenceCode,
		"status", trip.Status,
		"partner_callback", input.ActorID == 0)

	return trip.Status, nil
}

// ChooseOption picks one of the options uploaded by the travel desk
func (s *tripServiceImpl) ChooseOption(ctx context.Context, tripID, actorID int64, optionText string) (workflow.State, error) {
	if strings.TrimSpace(optionText) == "" {
		return "", fmt.Errorf("%w: option text is required", domain.ErrInvalidInput)
	}

	return s.mutate(ctx, "choose option", tripID, func(txCtx context.Context, trip *entity.Trip) error {
		if err := requireOwner(trip, actorID); err != nil {
			return err
		}
		to, err := advance("choose option", trip, workflow.TriggerChooseOption, workflow.Facts{
			OptionsUploaded: trip.BookingPayload.Flag(entity.PayloadOptionsUploaded),
		})
		if err != nil {
			return err
		}
		trip.Status = to
		trip.OptionSelected = optionText
		return nil
	})
}

// Decide applies an approver's decision and moves the trip accordingly
func (s *tripServiceImpl) Decide(ctx context.Context, input DecideInput) (*DecideResult, error) {
	if !input.Action.IsValid() {
		return nil, fmt.Errorf("%w: unknown action %q", domain.ErrInvalidInput, input.Action)
	}

	var (
		trip        *entity.Trip
		approval    *entity.Approval
		next        *entity.Approval
		from        workflow.State
		finalizeReq bool
	)

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		approval, err = s.approvalRepo.GetByID(txCtx, input.ApprovalID)
		if err != nil {
			return err
		}
		if !approval.IsOpen() {
			return fmt.Errorf("approval %d: %w", approval.ID, domain.ErrApprovalClosed)
		}

		if input.ActorID != approval.ApproverID {
			actor, err := s.directory.GetByID(txCtx, input.ActorID)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("get actor: %w", err)
			}
			if actor == nil || actor.Role != entity.RoleSuperAdmin {
				return fmt.Errorf("%w: approval %d is assigned to another approver", domain.ErrForbidden, approval.ID)
			}
		}

		trip, err = s.tripRepo.GetByID(txCtx, approval.TripID)
		if err != nil {
			return err
		}
		from = trip.Status

		expected := pendingStatusFor(approval.Role)
		if from != expected {
			return &domain.PreconditionError{
				Op:     "decide",
				Status: string(from),
				Reason: fmt.Sprintf("%s approval expects %s", approval.Role, expected),
				Err:    domain.ErrStaleState,
			}
		}

		var (
			trigger   workflow.Trigger
			facts     workflow.Facts
			nextAdmin *entity.User
		)
		switch input.Action {
		case entity.DecisionAccept:
			trigger = workflow.TriggerAccept
			if from == workflow.StateRMPending {
				nextAdmin, err = s.resolver.FirstTravelAdmin(txCtx)
				if err != nil {
					return err
				}
				facts.HasTravelAdmin = nextAdmin != nil
			} else {
				facts.OptionSelected = trip.HasSelectedOption()
				facts.VisaRequest = trip.IsVisaRequest
			}
		case entity.DecisionReject:
			trigger = workflow.TriggerReject
		case entity.DecisionSendBack:
			trigger = workflow.TriggerSendBack
		}

		to, err := advance("decide", trip, trigger, facts)
		if err != nil {
			return err
		}

		// The record closes before the trip moves; both commit together.
		if err := s.ledger.Close(txCtx, approval.ID, input.Action, input.Comments); err != nil {
			return err
		}

		if input.Action == entity.DecisionAccept {
			if from == workflow.StateRMPending {
				trip.BookingPayload = trip.BookingPayload.With(entity.PayloadManagerApproved, true)
			} else {
				trip.BookingPayload = trip.BookingPayload.With(entity.PayloadAdminApproved, true)
			}
		}
		if to == workflow.StateBooked {
			now := time.Now()
			trip.BookedAt = &now
			finalizeReq = true
		}
		trip.Status = to

		if err := s.tripRepo.Update(txCtx, trip, from); err != nil {
			return err
		}

		if to == workflow.StateTravelAdminPending && nextAdmin != nil {
			next, err = s.ledger.Open(txCtx, trip.ID, nextAdmin.ID, entity.ApproverRoleTravelAdmin)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to decide approval", "error", err, "approval_id", input.ApprovalID)
		return nil, err
	}

	events := []*event.Event{
		approvalDecidedEvent(trip, approval, input.Action, input.Comments, from),
		approvalRequestedEvent(trip, next),
	}
	if finalizeReq {
		events = append(events, finalizeRequestedEvent(trip))
	}
	publishAll(ctx, s.publisher, events...)

	s.logger.Info("Approval decided",
		"approval_id", approval.ID,
		"action", input.Action,
		"reference_code", trip.ReferenceCode,
		"from", from,
		"to", trip.Status)

	return &DecideResult{
		ApprovalID: approval.ID,
		Action:     input.Action,
		TripStatus: trip.Status,
	}, nil
}

// MarkOptionsUploaded sends an approved trip back to the requester to pick an option
func (s *tripServiceImpl) MarkOptionsUploaded(ctx context.Context, tripID, actorID int64) (workflow.State, error) {
	return s.mutate(ctx, "mark options uploaded", tripID, func(txCtx context.Context, trip *entity.Trip) error {
		if _, err := requireAdmin(txCtx, s.directory, actorID); err != nil {
			return err
		}
		to, err := advance("mark options uploaded", trip, workflow.TriggerMarkOptionsUploaded, workflow.Facts{})
		if err != nil {
			return err
		}
		trip.Status = to
		trip.BookingPayload = trip.BookingPayload.With(entity.PayloadOptionsUploaded, true)
		return nil
	})
}

// RecordBooking books a trip whose option was chosen manually
func (s *tripServiceImpl) RecordBooking(ctx context.Context, tripID, actorID int64, cost int64) (workflow.State, error) {
	if cost < 0 {
		return "", fmt.Errorf("%w: cost cannot be negative", domain.ErrInvalidInput)
	}

	return s.mutate(ctx, "record booking", tripID, func(txCtx context.Context, trip *entity.Trip) error {
		if _, err := requireAdmin(txCtx, s.directory, actorID); err != nil {
			return err
		}
		to, err := advance("record booking", trip, workflow.TriggerRecordBooking, workflow.Facts{})
		if err != nil {
			return err
		}
		now := time.Now()
		trip.Status = to
		trip.TotalCost = &cost
		trip.BookedAt = &now
		return nil
	})
}

// RecordVisaUpload marks the visa documents of a visa request as uploaded
func (s *tripServiceImpl) RecordVisaUpload(ctx context.Context, tripID, actorID int64, cost int64) (workflow.State, error) {
	if cost < 0 {
		return "", fmt.Errorf("%w: cost cannot be negative", domain.ErrInvalidInput)
	}

	return s.mutate(ctx, "record visa upload", tripID, func(txCtx context.Context, trip *entity.Trip) error {
		if _, err := requireAdmin(txCtx, s.directory, actorID); err != nil {
			return err
		}
		to, err := advance("record visa upload", trip, workflow.TriggerRecordVisa, workflow.Facts{})
		if err != nil {
			return err
		}
		trip.Status = to
		trip.TotalCost = &cost
		return nil
	})
}

// Close lets the requester close their own trip from any status
func (s *tripServiceImpl) Close(ctx context.Context, tripID, requesterID int64) (workflow.State, error) {
	return s.mutate(ctx, "close", tripID, func(txCtx context.Context, trip *entity.Trip) error {
		if err := requireOwner(trip, requesterID); err != nil {
			return err
		}
		to, err := advance("close", trip, workflow.TriggerClose, workflow.Facts{})
		if err != nil {
			return err
		}
		if _, err := s.ledger.Withdraw(txCtx, trip.ID, "trip closed by requester"); err != nil {
			return err
		}
		now := time.Now()
		trip.Status = to
		trip.ClosedAt = &now
		return nil
	})
}

// mutate loads a trip, applies fn and writes it back guarded by the status
// it was loaded with, then publishes a status change.
func (s *tripServiceImpl) mutate(ctx context.Context, op string, tripID int64, fn func(txCtx context.Context, trip *entity.Trip) error) (workflow.State, error) {
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
		from = trip.Status

		if err := fn(txCtx, trip); err != nil {
			return err
		}
		return s.tripRepo.Update(txCtx, trip, from)
	})
	if err != nil {
		s.logger.Error("Trip operation failed", "op", op, "error", err, "trip_id", tripID)
		return "", err
	}

	publishAll(ctx, s.publisher, statusChangedEvent(trip, from, op))

	s.logger.Info("Trip updated",
		"op", op,
		"reference_code", trip.ReferenceCode,
		"from", from,
		"to", trip.Status)

	return trip.Status, nil
}

// GetTrip returns a trip with its itinerary, approval history and files
func (s *tripServiceImpl) GetTrip(ctx context.Context, id int64) (*TripDetail, error) {
	trip, err := s.tripRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	segments, err := s.segmentRepo.ListByTripID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	approvals, err := s.approvalRepo.ListByTripID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	files, err := s.fileRepo.ListByTripID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	return &TripDetail{
		Trip:      trip,
		Segments:  segments,
		Approvals: approvals,
		Files:     files,
		Triggers: workflow.Permitted(trip.Status, workflow.Facts{
			OptionSelected:  trip.HasSelectedOption(),
			VisaRequest:     trip.IsVisaRequest,
			OptionsUploaded: trip.BookingPayload.Flag(entity.PayloadOptionsUploaded),
		}),
	}, nil
}

// GetTripByReference looks a trip up by its reference code
func (s *tripServiceImpl) GetTripByReference(ctx context.Context, referenceCode string) (*entity.Trip, error) {
	return s.tripRepo.GetByReference(ctx, referenceCode)
}

// ListTrips returns a requester's trips, newest first
func (s *tripServiceImpl) ListTrips(ctx context.Context, requesterID int64, limit, offset int) ([]*entity.Trip, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.tripRepo.ListByRequester(ctx, requesterID, limit, offset)
}

// ListPendingApprovals returns the open approvals assigned to approverID
func (s *tripServiceImpl) ListPendingApprovals(ctx context.Context, approverID int64) ([]*entity.Approval, error) {
	return s.approvalRepo.ListOpenByApprover(ctx, approverID)
}
