package service

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/garyjia/travel-desk/internal/domain/entity"
)

const opCount = 14

// applyOp runs one engine operation chosen by code against the trip at
// target, ignoring its outcome. Rejected operations are part of the search.
func applyOp(ctx context.Context, env *testEnv, tripIDs *[]int64, code int) {
	op := code % opCount
	var trip *entity.Trip
	if len(*tripIDs) > 0 {
		trip = env.store.trip((*tripIDs)[(code/opCount)%len(*tripIDs)])
	}
	requesters := []*entity.User{env.employee, env.loner, env.admin}

	decide := func(action entity.Decision) {
		if trip == nil {
			return
		}
		open, _ := memApprovals{s: env.store}.GetOpenByTripID(ctx, trip.ID)
		if open == nil {
			return
		}
		_, _ = env.trips.Decide(ctx, DecideInput{ApprovalID: open.ID, ActorID: open.ApproverID, Action: action})
	}

	switch op {
	case 0, 13:
		res, err := env.trips.Create(ctx, CreateTripInput{
			RequesterID:     requesters[(code/opCount)%len(requesters)].ID,
			Name:            "prop",
			TravelType:      entity.TravelTypeInternational,
			IsVisaRequest:   code%3 == 0,
			DeferredBooking: op == 13,
			Segments: []SegmentInput{{
				Type:    entity.SegmentTypeFlight,
				Details: map[string]interface{}{"returnDate": "2024-01-10"},
			}},
		})
		if err == nil {
			*tripIDs = append(*tripIDs, res.ID)
		}
	case 1:
		decide(entity.DecisionAccept)
	case 2:
		decide(entity.DecisionReject)
	case 3:
		decide(entity.DecisionSendBack)
	}

	if trip == nil {
		return
	}

	switch op {
	case 4:
		cost := int64(1000)
		_, _ = env.trips.SelectOption(ctx, SelectOptionInput{TripID: trip.ID, OptionText: "partner option", Cost: &cost})
	case 5:
		_, _ = env.trips.MarkOptionsUploaded(ctx, trip.ID, env.admin.ID)
	case 6:
		_, _ = env.trips.ChooseOption(ctx, trip.ID, trip.RequesterID, "option A")
	case 7:
		_, _ = env.trips.RecordBooking(ctx, trip.ID, env.admin.ID, 5000)
	case 8:
		_, _ = env.cancels.Request(ctx, trip.ID, trip.RequesterID, "prop")
	case 9:
		_, _ = env.cancels.Confirm(ctx, trip.ID, env.admin.ID, 100)
	case 10:
		_, _ = env.trips.Close(ctx, trip.ID, trip.RequesterID)
	case 11:
		_, _ = env.reschedules.Reschedule(ctx, RescheduleInput{TripID: trip.ID, ActorID: trip.RequesterID})
	case 12:
		_, _ = env.sweeper.Sweep(ctx, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	}
}

func TestProperties_OperationSequences(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	run := func(codes []int, check func(env *testEnv, tripIDs []int64) bool) bool {
		env := newTestEnv(t)
		ctx := context.Background()
		var tripIDs []int64
		for _, code := range codes {
			applyOp(ctx, env, &tripIDs, code)
			if !check(env, tripIDs) {
				return false
			}
		}
		return true
	}

	codes := gen.SliceOf(gen.IntRange(0, opCount*16-1))

	properties.Property("every trip status is a known status", prop.ForAll(
		func(codes []int) bool {
			return run(codes, func(env *testEnv, tripIDs []int64) bool {
				for _, id := range tripIDs {
					if !env.store.trip(id).Status.IsValid() {
						return false
					}
				}
				return true
			})
		},
		codes,
	))

	properties.Property("a trip has at most one open approval", prop.ForAll(
		func(codes []int) bool {
			return run(codes, func(env *testEnv, tripIDs []int64) bool {
				for _, id := range tripIDs {
					if len(env.store.openApprovalsFor(id)) > 1 {
						return false
					}
				}
				return true
			})
		},
		codes,
	))

	properties.Property("an open approval matches the trip's pending status", prop.ForAll(
		func(codes []int) bool {
			return run(codes, func(env *testEnv, tripIDs []int64) bool {
				for _, id := range tripIDs {
					status := env.store.trip(id).Status
					for _, a := range env.store.openApprovalsFor(id) {
						if pendingStatusFor(a.Role) != status {
							return false
						}
					}
				}
				return true
			})
		},
		codes,
	))

	properties.Property("terminal trips stay terminal", prop.ForAll(
		func(codes []int) bool {
			terminal := make(map[int64]bool)
			return run(codes, func(env *testEnv, tripIDs []int64) bool {
				for _, id := range tripIDs {
					status := env.store.trip(id).Status
					if terminal[id] && !status.IsTerminal() {
						return false
					}
					terminal[id] = status.IsTerminal()
				}
				return true
			})
		},
		codes,
	))

	properties.TestingRun(t)
}
