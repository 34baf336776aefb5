package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/garyjia/travel-desk/internal/application/dispatcher"
	"github.com/garyjia/travel-desk/internal/application/port"
	"github.com/garyjia/travel-desk/internal/domain"
	"github.com/garyjia/travel-desk/internal/domain/entity"
	"github.com/garyjia/travel-desk/internal/domain/event"
)

// NotificationService turns committed trip events into notifications
type NotificationService interface {
	Register(d dispatcher.Dispatcher)
	NotifyApprovalRequested(ctx context.Context, evt *event.Event) error
	NotifyApprovalDecided(ctx context.Context, evt *event.Event) error
	NotifyStatusChanged(ctx context.Context, evt *event.Event) error
	NotifyCancellationRequested(ctx context.Context, evt *event.Event) error
}

type notificationServiceImpl struct {
	tripRepo      port.TripRepository
	directory     port.Directory
	notifier      port.Notifier
	actionBaseURL string
	logger        Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(
	tripRepo port.TripRepository,
	directory port.Directory,
	notifier port.Notifier,
	actionBaseURL string,
	logger Logger,
) NotificationService {
	return &notificationServiceImpl{
		tripRepo:      tripRepo,
		directory:     directory,
		notifier:      notifier,
		actionBaseURL: strings.TrimRight(actionBaseURL, "/"),
		logger:        logger,
	}
}

// Register subscribes the notification handlers on d
func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeApprovalRequested, "notify-approver", s.NotifyApprovalRequested)
	d.SubscribeNamed(event.TypeApprovalDecided, "notify-requester-decision", s.NotifyApprovalDecided)
	d.SubscribeNamed(event.TypeStatusChanged, "notify-requester-status", s.NotifyStatusChanged)
	d.SubscribeNamed(event.TypeCancellationRequested, "notify-travel-admins", s.NotifyCancellationRequested)
}

// NotifyApprovalRequested tells the approver a trip awaits their decision
func (s *notificationServiceImpl) NotifyApprovalRequested(ctx context.Context, evt *event.Event) error {
	trip, requester, err := s.loadTrip(ctx, evt)
	if err != nil {
		return err
	}

	approver, err := s.directory.GetByID(ctx, evt.GetPayloadInt(event.KeyApproverID))
	if err != nil {
		return fmt.Errorf("get approver: %w", err)
	}

	n := port.Notification{
		Recipient: recipientOf(approver),
		Subject:   fmt.Sprintf("Approval needed: %s %s", trip.ReferenceCode, trip.Name),
		Trip:      snapshotOf(trip, requester),
		Message:   fmt.Sprintf("%s requested travel to %s and needs your approval.", requester.Name, trip.DestinationCountry),
	}
	if s.actionBaseURL != "" {
		n.ActionLink = fmt.Sprintf("%s/approvals/%d", s.actionBaseURL, evt.GetPayloadInt(event.KeyApprovalID))
	}

	return s.send(ctx, evt, n)
}

// NotifyApprovalDecided tells the requester how their approver decided
func (s *notificationServiceImpl) NotifyApprovalDecided(ctx context.Context, evt *event.Event) error {
	trip, requester, err := s.loadTrip(ctx, evt)
	if err != nil {
		return err
	}

	decision := evt.GetPayloadString(event.KeyDecision)
	message := fmt.Sprintf("Your trip was marked %s by the %s.", decision, strings.ReplaceAll(evt.GetPayloadString(event.KeyRole), "_", " "))
	if comments := evt.GetPayloadString(event.KeyComments); comments != "" {
		message += "\nComments: " + comments
	}

	return s.send(ctx, evt, port.Notification{
		Recipient: recipientOf(requester),
		Subject:   fmt.Sprintf("Trip %s: %s", trip.ReferenceCode, decision),
		Trip:      snapshotOf(trip, requester),
		Message:   message,
	})
}

// NotifyStatusChanged tells the requester their trip moved
func (s *notificationServiceImpl) NotifyStatusChanged(ctx context.Context, evt *event.Event) error {
	trip, requester, err := s.loadTrip(ctx, evt)
	if err != nil {
		return err
	}

	message := fmt.Sprintf("Status changed from %s to %s.",
		evt.GetPayloadString(event.KeyFromStatus),
		evt.GetPayloadString(event.KeyToStatus))
	if reason := evt.GetPayloadString(event.KeyReason); reason != "" {
		message += "\nReason: " + reason
	}

	return s.send(ctx, evt, port.Notification{
		Recipient: recipientOf(requester),
		Subject:   fmt.Sprintf("Trip %s is now %s", trip.ReferenceCode, evt.GetPayloadString(event.KeyToStatus)),
		Trip:      snapshotOf(trip, requester),
		Message:   message,
	})
}

// NotifyCancellationRequested asks the travel desk to confirm a cancellation.
// The first travel admin is the recipient and the rest are copied.
func (s *notificationServiceImpl) NotifyCancellationRequested(ctx context.Context, evt *event.Event) error {
	trip, requester, err := s.loadTrip(ctx, evt)
	if err != nil {
		return err
	}

	admins, err := s.directory.ListByRole(ctx, entity.RoleTravelAdmin)
	if err != nil {
		return fmt.Errorf("list travel admins: %w", err)
	}
	if len(admins) == 0 {
		s.logger.Warn("No travel admin to notify of cancellation", "reference_code", trip.ReferenceCode)
		return nil
	}

	cc := make([]port.Recipient, 0, len(admins)-1)
	for _, admin := range admins[1:] {
		cc = append(cc, recipientOf(admin))
	}

	message := fmt.Sprintf("%s asked to cancel a booked trip.", requester.Name)
	if reason := evt.GetPayloadString(event.KeyReason); reason != "" {
		message += "\nReason: " + reason
	}

	return s.send(ctx, evt, port.Notification{
		Recipient: recipientOf(admins[0]),
		CC:        cc,
		Subject:   fmt.Sprintf("Cancellation requested: %s", trip.ReferenceCode),
		Trip:      snapshotOf(trip, requester),
		Message:   message,
	})
}

func (s *notificationServiceImpl) loadTrip(ctx context.Context, evt *event.Event) (*entity.Trip, *entity.User, error) {
	trip, err := s.tripRepo.GetByID(ctx, evt.TripID)
	if err != nil {
		return nil, nil, fmt.Errorf("get trip: %w", err)
	}

	requester, err := s.directory.GetByID(ctx, trip.RequesterID)
	if errors.Is(err, domain.ErrNotFound) {
		requester = &entity.User{ID: trip.RequesterID, Name: fmt.Sprintf("user %d", trip.RequesterID)}
	} else if err != nil {
		return nil, nil, fmt.Errorf("get requester: %w", err)
	}

	return trip, requester, nil
}

func (s *notificationServiceImpl) send(ctx context.Context, evt *event.Event, n port.Notification) error {
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Error("Failed to send notification",
			"error", err,
			"event_type", evt.Type,
			"reference_code", evt.ReferenceCode,
			"channel", s.notifier.Name())
		return fmt.Errorf("notify: %w", err)
	}

	s.logger.Info("Notification sent",
		"event_type", evt.Type,
		"reference_code", evt.ReferenceCode,
		"recipient", n.Recipient.Email)
	return nil
}

func recipientOf(u *entity.User) port.Recipient {
	return port.Recipient{
		Name:       u.Name,
		Email:      u.Email,
		LarkOpenID: u.LarkOpenID,
	}
}

func snapshotOf(trip *entity.Trip, requester *entity.User) port.TripSnapshot {
	return port.TripSnapshot{
		ID:                 trip.ID,
		ReferenceCode:      trip.ReferenceCode,
		Name:               trip.Name,
		Status:             string(trip.Status),
		RequesterName:      requester.Name,
		DestinationCountry: trip.DestinationCountry,
		TravelType:         trip.TravelType,
		OptionSelected:     trip.OptionSelected,
		TotalCost:          trip.TotalCost,
		UpdatedAt:          trip.UpdatedAt,
	}
}
