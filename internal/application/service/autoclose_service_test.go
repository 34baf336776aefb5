package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/travel-desk/internal/domain/entity"
	"github.com/garyjia/travel-desk/internal/domain/event"
	"github.com/garyjia/travel-desk/internal/domain/workflow"
)

var sweepNow = time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC)

func TestSweep_ClosesEndedJourney(t *testing.T) {
	env := newTestEnv(t)
	trip, _ := env.bookedTrip("2024-01-10")

	res, err := env.sweeper.Sweep(context.Background(), sweepNow)
	require.NoError(t, err)

	assert.Equal(t, SweepResult{Scanned: 1, Closed: 1}, res)
	stored := env.store.trip(trip.ID)
	assert.Equal(t, workflow.StateClosed, stored.Status)
	require.NotNil(t, stored.ClosedAt)
	assert.True(t, stored.ClosedAt.Equal(sweepNow))
	assert.Equal(t, []event.Type{event.TypeStatusChanged}, env.publisher.types())
}

func TestSweep_LeavesFutureAndUndatedTrips(t *testing.T) {
	env := newTestEnv(t)
	today, _ := env.bookedTrip("2024-02-01")
	future, _ := env.bookedTrip("2024-03-15")
	undated := env.store.putTrip(&entity.Trip{RequesterID: env.employee.ID, Status: workflow.StateBooked})
	env.store.putSegment(undated.ID, entity.SegmentTypeHotel, map[string]interface{}{"checkoutDate": "soon"})

	res, err := env.sweeper.Sweep(context.Background(), sweepNow)
	require.NoError(t, err)

	assert.Equal(t, SweepResult{Scanned: 3, Skipped: 3}, res)
	for _, id := range []int64{today.ID, future.ID, undated.ID} {
		assert.Equal(t, workflow.StateBooked, env.store.trip(id).Status)
	}
}

func TestSweep_IgnoresTripsThatAreNotBooked(t *testing.T) {
	env := newTestEnv(t)
	var ids []int64
	for _, state := range workflow.AllStates() {
		if state == workflow.StateBooked {
			continue
		}
		trip := env.store.putTrip(&entity.Trip{RequesterID: env.employee.ID, Status: state})
		env.store.putSegment(trip.ID, entity.SegmentTypeFlight, map[string]interface{}{"returnDate": "2020-01-01"})
		ids = append(ids, trip.ID)
	}

	res, err := env.sweeper.Sweep(context.Background(), sweepNow)
	require.NoError(t, err)

	assert.Zero(t, res.Scanned)
	for _, id := range ids {
		assert.NotEqual(t, workflow.StateClosed, env.store.trip(id).Status, "trip %d", id)
	}
}

func TestSweep_ClosesAcrossPages(t *testing.T) {
	env := newTestEnv(t)
	total := sweepPageSize + 7
	for i := 0; i < total; i++ {
		env.bookedTrip("2024-01-10")
	}

	res, err := env.sweeper.Sweep(context.Background(), sweepNow)
	require.NoError(t, err)

	assert.Equal(t, total, res.Scanned)
	assert.Equal(t, total, res.Closed)

	remaining, err := memTrips{s: env.store}.ListByStatus(context.Background(), workflow.StateBooked, 1000, 0)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestSweep_CountsFailuresAndContinues(t *testing.T) {
	env := newTestEnv(t)
	first, _ := env.bookedTrip("2024-01-10")
	second, _ := env.bookedTrip("2024-01-11")
	env.store.failTripUpdate = assert.AnError

	res, err := env.sweeper.Sweep(context.Background(), sweepNow)
	require.NoError(t, err)

	assert.Equal(t, SweepResult{Scanned: 2, Closed: 1, Failed: 1}, res)
	assert.Equal(t, workflow.StateBooked, env.store.trip(first.ID).Status)
	assert.Equal(t, workflow.StateClosed, env.store.trip(second.ID).Status)
}

func TestSweep_StopsOnCancelledContext(t *testing.T) {
	env := newTestEnv(t)
	env.bookedTrip("2024-01-10")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.sweeper.Sweep(ctx, sweepNow)

	assert.ErrorIs(t, err, context.Canceled)
}
