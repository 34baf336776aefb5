package service

import (
	"context"
	"fmt"

	"github.com/garyjia/travel-desk/internal/application/dispatcher"
	"github.com/garyjia/travel-desk/internal/application/port"
	"github.com/garyjia/travel-desk/internal/domain/entity"
	"github.com/garyjia/travel-desk/internal/domain/event"
)

// BookingService forwards partner-booked trips to the booking partner
type BookingService interface {
	Register(d dispatcher.Dispatcher)
	Finalize(ctx context.Context, evt *event.Event) error
}

type bookingServiceImpl struct {
	partner port.BookingPartner
	logger  Logger
}

// NewBookingService creates a new BookingService
func NewBookingService(partner port.BookingPartner, logger Logger) BookingService {
	return &bookingServiceImpl{
		partner: partner,
		logger:  logger,
	}
}

// Register subscribes the finalize handler on d
func (s *bookingServiceImpl) Register(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeBookingFinalizeRequested, "partner-finalize", s.Finalize)
}

// Finalize sends the booking captured in the event to the partner. The trip
// is not re-read: it may have moved on since the event was published.
func (s *bookingServiceImpl) Finalize(ctx context.Context, evt *event.Event) error {
	req := finalizeRequestFrom(evt)
	if req.OptionText == "" {
		return fmt.Errorf("finalize event %s for %s carries no option", evt.ID, evt.ReferenceCode)
	}

	if err := s.partner.Finalize(ctx, req); err != nil {
		s.logger.Error("Failed to finalize booking with partner", "error", err, "reference_code", req.ReferenceCode)
		return fmt.Errorf("finalize booking: %w", err)
	}

	s.logger.Info("Booking finalized with partner",
		"reference_code", req.ReferenceCode,
		"partner_booking_id", req.PartnerBookingID)
	return nil
}

func finalizeRequestFrom(evt *event.Event) port.FinalizeRequest {
	payload := entity.Payload(evt.GetPayloadMap(event.KeyBookingPayload))
	req := port.FinalizeRequest{
		TripID:        evt.TripID,
		ReferenceCode: evt.ReferenceCode,
		OptionText:    evt.GetPayloadString(event.KeyOptionText),
		Payload:       payload,
	}
	if id, ok := payload[entity.PayloadPartnerBookingID].(string); ok {
		req.PartnerBookingID = id
	}
	if _, ok := evt.Payload[event.KeyTotalCost]; ok {
		cost := evt.GetPayloadInt(event.KeyTotalCost)
		req.TotalCost = &cost
	}
	return req
}
