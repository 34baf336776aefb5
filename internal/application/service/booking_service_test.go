package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/travel-desk/internal/application/dispatcher"
	"github.com/garyjia/travel-desk/internal/application/port"
	"github.com/garyjia/travel-desk/internal/domain/entity"
	"github.com/garyjia/travel-desk/internal/domain/event"
	"github.com/garyjia/travel-desk/internal/domain/workflow"
)

type mockPartner struct {
	finalizeFunc func(ctx context.Context, req port.FinalizeRequest) error
	requests     []port.FinalizeRequest
}

func (m *mockPartner) Finalize(ctx context.Context, req port.FinalizeRequest) error {
	m.requests = append(m.requests, req)
	if m.finalizeFunc != nil {
		return m.finalizeFunc(ctx, req)
	}
	return nil
}

func TestBookingService_Finalize(t *testing.T) {
	env := newTestEnv(t)
	partner := &mockPartner{}
	svc := NewBookingService(partner, env.logger)
	trip, _ := env.bookedTrip("2099-01-01")
	trip.BookingPayload = trip.BookingPayload.With(entity.PayloadPartnerBookingID, "pb-42")

	err := svc.Finalize(context.Background(), finalizeRequestedEvent(trip))
	require.NoError(t, err)

	require.Len(t, partner.requests, 1)
	req := partner.requests[0]
	assert.Equal(t, trip.ID, req.TripID)
	assert.Equal(t, trip.ReferenceCode, req.ReferenceCode)
	assert.Equal(t, "pb-42", req.PartnerBookingID)
	assert.Equal(t, "UA 100", req.OptionText)
	require.NotNil(t, req.TotalCost)
	assert.Equal(t, int64(120000), *req.TotalCost)
	assert.Equal(t, "Y", req.Payload["fareClass"])
}

func TestBookingService_FinalizeUsesBookingAtPublishTime(t *testing.T) {
	env := newTestEnv(t)
	partner := &mockPartner{}
	svc := NewBookingService(partner, env.logger)
	trip, _ := env.bookedTrip("2099-01-01")

	evt := finalizeRequestedEvent(trip)

	// The trip is rescheduled before the handler runs.
	trip.OptionSelected = ""
	trip.TotalCost = nil
	trip.BookingPayload["fareClass"] = "J"
	trip.Status = workflow.StateApproved

	require.NoError(t, svc.Finalize(context.Background(), evt))

	require.Len(t, partner.requests, 1)
	req := partner.requests[0]
	assert.Equal(t, "UA 100", req.OptionText)
	require.NotNil(t, req.TotalCost)
	assert.Equal(t, int64(120000), *req.TotalCost)
	assert.Equal(t, "Y", req.Payload["fareClass"])
	assert.Empty(t, req.PartnerBookingID)
}

func TestBookingService_FinalizeWithoutCost(t *testing.T) {
	env := newTestEnv(t)
	partner := &mockPartner{}
	svc := NewBookingService(partner, env.logger)
	trip, _ := env.bookedTrip("2099-01-01")
	trip.TotalCost = nil

	require.NoError(t, svc.Finalize(context.Background(), finalizeRequestedEvent(trip)))

	require.Len(t, partner.requests, 1)
	assert.Nil(t, partner.requests[0].TotalCost)
}

func TestBookingService_FinalizeRejectsEventWithoutOption(t *testing.T) {
	env := newTestEnv(t)
	partner := &mockPartner{}
	svc := NewBookingService(partner, env.logger)

	evt := event.NewEvent(event.TypeBookingFinalizeRequested, 9, "TRV-00000009", nil)
	err := svc.Finalize(context.Background(), evt)

	assert.ErrorContains(t, err, "carries no option")
	assert.Empty(t, partner.requests)
}

func TestBookingService_FinalizeError(t *testing.T) {
	env := newTestEnv(t)
	partner := &mockPartner{finalizeFunc: func(ctx context.Context, req port.FinalizeRequest) error {
		return errors.New("partner 503")
	}}
	svc := NewBookingService(partner, env.logger)
	trip, _ := env.bookedTrip("2099-01-01")

	err := svc.Finalize(context.Background(), finalizeRequestedEvent(trip))

	assert.ErrorContains(t, err, "partner 503")
}

func TestBookingService_Register(t *testing.T) {
	env := newTestEnv(t)
	svc := NewBookingService(&mockPartner{}, env.logger)
	d := dispatcher.NewDispatcher()
	t.Cleanup(func() { _ = d.Close() })

	svc.Register(d)

	handlers := d.ListHandlers(event.TypeBookingFinalizeRequested)
	require.Len(t, handlers, 1)
	assert.Equal(t, "partner-finalize", handlers[0].Name)
}
