package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/travel-desk/internal/domain"
	"github.com/garyjia/travel-desk/internal/domain/entity"
	"github.com/garyjia/travel-desk/internal/domain/workflow"
	"github.com/garyjia/travel-desk/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/travel-desk/migrations"
	"github.com/garyjia/travel-desk/pkg/database"
)

type testStore struct {
	tx        *sqlite.TxManager
	trips     *TripRepository
	approvals *ApprovalRepository
	segments  *SegmentRepository
	files     *FileRepository
	users     *UserRepository
}

func openStore(t *testing.T) *testStore {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(context.Background(), database.Config{
		Path:            filepath.Join(t.TempDir(), "travel.db"),
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = database.NewMigrator(db, logger).Migrate(context.Background(), migrations.FS)
	require.NoError(t, err)

	return &testStore{
		tx:        sqlite.NewTxManager(db.DB, logger),
		trips:     NewTripRepository(db.DB, logger).(*TripRepository),
		approvals: NewApprovalRepository(db.DB, logger).(*ApprovalRepository),
		segments:  NewSegmentRepository(db.DB, logger).(*SegmentRepository),
		files:     NewFileRepository(db.DB, logger).(*FileRepository),
		users:     NewUserRepository(db.DB, logger).(*UserRepository),
	}
}

func seedTrip(t *testing.T, s *testStore, ref string, status workflow.State) *entity.Trip {
	t.Helper()
	ctx := context.Background()

	requester := &entity.User{Name: "Ann " + ref, Email: ref + "@example.com", Role: entity.RoleRequester}
	require.NoError(t, s.users.Create(ctx, requester))

	now := time.Now().UTC().Truncate(time.Second)
	trip := &entity.Trip{
		ReferenceCode:  ref,
		RequesterID:    requester.ID,
		Name:           "Customer visit",
		TravelType:     entity.TravelTypeInternational,
		Status:         status,
		BookingPayload: entity.Payload{"seat": "aisle"},
		CreatedAt:      now,
		SubmittedAt:    now,
		UpdatedAt:      now,
	}
	require.NoError(t, s.trips.Create(ctx, trip))
	return trip
}

func TestSQLite_TripRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	trip := seedTrip(t, s, "TRV-0000000A", workflow.StateRMPending)
	assert.NotZero(t, trip.ID)

	got, err := s.trips.GetByReference(ctx, "TRV-0000000A")
	require.NoError(t, err)
	assert.Equal(t, trip.ID, got.ID)
	assert.Equal(t, workflow.StateRMPending, got.Status)
	assert.Equal(t, "aisle", got.BookingPayload["seat"])
	assert.Nil(t, got.TotalCost)
	assert.Nil(t, got.BookedAt)

	cost := int64(125000)
	bookedAt := time.Now().UTC().Truncate(time.Second)
	got.Status = workflow.StateBooked
	got.TotalCost = &cost
	got.BookedAt = &bookedAt
	got.BookingPayload = got.BookingPayload.With(entity.PayloadAdminApproved, true)
	require.NoError(t, s.trips.Update(ctx, got, workflow.StateRMPending))

	reloaded, err := s.trips.GetByID(ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateBooked, reloaded.Status)
	require.NotNil(t, reloaded.TotalCost)
	assert.Equal(t, cost, *reloaded.TotalCost)
	require.NotNil(t, reloaded.BookedAt)
	assert.True(t, reloaded.BookedAt.Equal(bookedAt))
	assert.True(t, reloaded.BookingPayload.Flag(entity.PayloadAdminApproved))

	// Second writer still expecting RM_PENDING loses
	err = s.trips.Update(ctx, got, workflow.StateRMPending)
	assert.ErrorIs(t, err, domain.ErrStaleState)

	booked, err := s.trips.ListByStatus(ctx, workflow.StateBooked, 10, 0)
	require.NoError(t, err)
	assert.Len(t, booked, 1)
}

func TestSQLite_DuplicateReferenceIsConflict(t *testing.T) {
	s := openStore(t)
	first := seedTrip(t, s, "TRV-0000000B", workflow.StateSelectOption)

	dup := *first
	dup.ID = 0
	err := s.trips.Create(context.Background(), &dup)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestSQLite_SecondOpenApprovalRejected(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	trip := seedTrip(t, s, "TRV-0000000C", workflow.StateRMPending)

	open := &entity.Approval{TripID: trip.ID, ApproverID: 42, Role: entity.ApproverRoleReportingManager, CreatedAt: time.Now()}
	require.NoError(t, s.approvals.Create(ctx, open))

	second := &entity.Approval{TripID: trip.ID, ApproverID: 43, Role: entity.ApproverRoleTravelAdmin, CreatedAt: time.Now()}
	err := s.approvals.Create(ctx, second)
	assert.ErrorIs(t, err, domain.ErrApprovalAlreadyOpen)

	got, err := s.approvals.GetOpenByTripID(ctx, trip.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, open.ID, got.ID)
	assert.True(t, got.IsOpen())

	pending, err := s.approvals.ListOpenByApprover(ctx, 42)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	require.NoError(t, s.approvals.Decide(ctx, open.ID, entity.DecisionAccept, "ok", time.Now()))
	assert.ErrorIs(t, s.approvals.Decide(ctx, open.ID, entity.DecisionReject, "", time.Now()), domain.ErrApprovalClosed)

	// Closing the first record frees the slot
	require.NoError(t, s.approvals.Create(ctx, second))

	history, err := s.approvals.ListByTripID(ctx, trip.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.NotNil(t, history[0].Decision)
	assert.Equal(t, entity.DecisionAccept, *history[0].Decision)
	assert.NotNil(t, history[0].DecidedAt)
}

func TestSQLite_TransactionRollsBackEveryRepository(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	trip := seedTrip(t, s, "TRV-0000000D", workflow.StateBooked)

	seg := &entity.Segment{
		TripID:    trip.ID,
		Type:      entity.SegmentTypeFlight,
		Details:   map[string]interface{}{"departureDate": "2026-05-01", "flightNo": "TD101"},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, s.segments.Create(ctx, seg))
	receipt := &entity.TripFile{TripID: trip.ID, Kind: entity.FileKindReceipt, Path: "p", FileName: "r.pdf", UploadedBy: 1, CreatedAt: time.Now()}
	require.NoError(t, s.files.Create(ctx, receipt))

	err := s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		require.NoError(t, s.files.Delete(txCtx, receipt.ID))
		require.NoError(t, s.segments.UpdateDetails(txCtx, seg.ID, map[string]interface{}{"departureDate": "2026-06-01"}))
		return domain.ErrValidation
	})
	assert.ErrorIs(t, err, domain.ErrValidation)

	files, err := s.files.ListByTripID(ctx, trip.ID)
	require.NoError(t, err)
	assert.Len(t, files, 1)

	segments, err := s.segments.ListByTripID(ctx, trip.ID)
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, "2026-05-01", segments[0].Details["departureDate"])
	assert.Equal(t, "TD101", segments[0].Details["flightNo"])
}

func TestSQLite_DirectoryLookups(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	none, err := s.users.FirstByRole(ctx, entity.RoleTravelAdmin)
	require.NoError(t, err)
	assert.Nil(t, none)

	first := &entity.User{Name: "Tara", Email: "tara@example.com", Role: entity.RoleTravelAdmin, LarkOpenID: "ou_1"}
	second := &entity.User{Name: "Theo", Email: "theo@example.com", Role: entity.RoleTravelAdmin}
	require.NoError(t, s.users.Create(ctx, first))
	require.NoError(t, s.users.Create(ctx, second))

	manager := first.ID
	report := &entity.User{Name: "Rae", Email: "rae@example.com", Role: entity.RoleRequester, ApproverID: &manager}
	require.NoError(t, s.users.Create(ctx, report))

	got, err := s.users.FirstByRole(ctx, entity.RoleTravelAdmin)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, "ou_1", got.LarkOpenID)

	admins, err := s.users.ListByRole(ctx, entity.RoleTravelAdmin)
	require.NoError(t, err)
	assert.Len(t, admins, 2)

	loaded, err := s.users.GetByID(ctx, report.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.ApproverID)
	assert.Equal(t, first.ID, *loaded.ApproverID)

	_, err = s.users.GetByID(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, s.users.Create(ctx, &entity.User{Name: "Dup", Email: "tara@example.com", Role: entity.RoleRequester}), domain.ErrConflict)
}
