package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/garyjia/travel-desk/internal/domain"
	"github.com/garyjia/travel-desk/internal/domain/entity"
	"github.com/garyjia/travel-desk/internal/domain/event"
	"github.com/garyjia/travel-desk/internal/domain/workflow"
)

// memStore is an in-memory stand-in for the SQLite store. Stored entities
// are copied on the way in and out, and WithTransaction restores the
// previous state when fn fails.
type memStore struct {
	mu        sync.Mutex
	trips     map[int64]*entity.Trip
	approvals map[int64]*entity.Approval
	segments  map[int64]*entity.Segment
	files     map[int64]*entity.TripFile
	users     map[int64]*entity.User
	nextID    int64
	inTx      bool

	// failTripUpdate, when set, is returned by the next trip Update
	failTripUpdate error
}

func newMemStore() *memStore {
	return &memStore{
		trips:     make(map[int64]*entity.Trip),
		approvals: make(map[int64]*entity.Approval),
		segments:  make(map[int64]*entity.Segment),
		files:     make(map[int64]*entity.TripFile),
		users:     make(map[int64]*entity.User),
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

type memSnapshot struct {
	trips     map[int64]*entity.Trip
	approvals map[int64]*entity.Approval
	segments  map[int64]*entity.Segment
	files     map[int64]*entity.TripFile
}

func copyMap[T any](m map[int64]*T) map[int64]*T {
	out := make(map[int64]*T, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// WithTransaction implements port.TransactionManager. Nested calls join the
// outer transaction.
func (s *memStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	if s.inTx {
		s.mu.Unlock()
		return fn(ctx)
	}
	s.inTx = true
	snap := memSnapshot{
		trips:     copyMap(s.trips),
		approvals: copyMap(s.approvals),
		segments:  copyMap(s.segments),
		files:     copyMap(s.files),
	}
	s.mu.Unlock()

	err := fn(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inTx = false
	if err != nil {
		s.trips = snap.trips
		s.approvals = snap.approvals
		s.segments = snap.segments
		s.files = snap.files
	}
	return err
}

func cloneTrip(t *entity.Trip) *entity.Trip {
	cp := *t
	if t.BookingPayload != nil {
		cp.BookingPayload = t.BookingPayload.Clone()
	}
	return &cp
}

func cloneApproval(a *entity.Approval) *entity.Approval {
	cp := *a
	return &cp
}

func cloneSegment(seg *entity.Segment) *entity.Segment {
	cp := *seg
	cp.Details = make(map[string]interface{}, len(seg.Details))
	for k, v := range seg.Details {
		cp.Details[k] = v
	}
	return &cp
}

func cloneFile(f *entity.TripFile) *entity.TripFile {
	cp := *f
	return &cp
}

// putUser seeds a directory identity and returns it
func (s *memStore) putUser(name, role string, approverID *int64) *entity.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &entity.User{
		ID:    s.id(),
		Name:  name,
		Email: fmt.Sprintf("%s@example.com", name),
		Role:  role,
	}
	u.ApproverID = approverID
	s.users[u.ID] = u
	return u
}

// putTrip seeds a trip directly, bypassing routing
func (s *memStore) putTrip(trip *entity.Trip) *entity.Trip {
	s.mu.Lock()
	defer s.mu.Unlock()
	trip.ID = s.id()
	if trip.ReferenceCode == "" {
		trip.ReferenceCode = fmt.Sprintf("TRV-%08X", trip.ID)
	}
	if trip.BookingPayload == nil {
		trip.BookingPayload = entity.Payload{}
	}
	s.trips[trip.ID] = cloneTrip(trip)
	return trip
}

// putSegment seeds an itinerary segment
func (s *memStore) putSegment(tripID int64, segType string, details map[string]interface{}) *entity.Segment {
	s.mu.Lock()
	defer s.mu.Unlock()
	seg := &entity.Segment{ID: s.id(), TripID: tripID, Type: segType, Details: details}
	s.segments[seg.ID] = cloneSegment(seg)
	return seg
}

// putFile seeds a trip file row
func (s *memStore) putFile(tripID int64, kind, path string) *entity.TripFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := &entity.TripFile{ID: s.id(), TripID: tripID, Kind: kind, Path: path, FileName: kind + ".pdf"}
	s.files[f.ID] = cloneFile(f)
	return f
}

func (s *memStore) trip(id int64) *entity.Trip {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneTrip(s.trips[id])
}

func (s *memStore) approvalsFor(tripID int64) []*entity.Approval {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.Approval
	for _, a := range s.approvals {
		if a.TripID == tripID {
			out = append(out, cloneApproval(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memStore) openApprovalsFor(tripID int64) []*entity.Approval {
	var open []*entity.Approval
	for _, a := range s.approvalsFor(tripID) {
		if a.IsOpen() {
			open = append(open, a)
		}
	}
	return open
}

// memTrips implements port.TripRepository
type memTrips struct{ s *memStore }

func (r memTrips) Create(ctx context.Context, trip *entity.Trip) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.trips {
		if t.ReferenceCode == trip.ReferenceCode {
			return fmt.Errorf("duplicate reference %s: %w", trip.ReferenceCode, domain.ErrConflict)
		}
	}
	trip.ID = r.s.id()
	r.s.trips[trip.ID] = cloneTrip(trip)
	return nil
}

func (r memTrips) GetByID(ctx context.Context, id int64) (*entity.Trip, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.trips[id]
	if !ok {
		return nil, fmt.Errorf("trip %d: %w", id, domain.ErrNotFound)
	}
	return cloneTrip(t), nil
}

func (r memTrips) GetByReference(ctx context.Context, referenceCode string) (*entity.Trip, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.trips {
		if t.ReferenceCode == referenceCode {
			return cloneTrip(t), nil
		}
	}
	return nil, fmt.Errorf("trip %s: %w", referenceCode, domain.ErrNotFound)
}

func (r memTrips) Update(ctx context.Context, trip *entity.Trip, expected workflow.State) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failTripUpdate; err != nil {
		r.s.failTripUpdate = nil
		return err
	}
	stored, ok := r.s.trips[trip.ID]
	if !ok || stored.Status != expected {
		return domain.ErrStaleState
	}
	trip.UpdatedAt = time.Now()
	r.s.trips[trip.ID] = cloneTrip(trip)
	return nil
}

func (r memTrips) sorted(match func(*entity.Trip) bool) []*entity.Trip {
	var out []*entity.Trip
	for _, t := range r.s.trips {
		if match(t) {
			out = append(out, cloneTrip(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func page(trips []*entity.Trip, limit, offset int) []*entity.Trip {
	if offset >= len(trips) {
		return nil
	}
	end := offset + limit
	if end > len(trips) {
		end = len(trips)
	}
	return trips[offset:end]
}

func (r memTrips) ListByStatus(ctx context.Context, status workflow.State, limit, offset int) ([]*entity.Trip, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return page(r.sorted(func(t *entity.Trip) bool { return t.Status == status }), limit, offset), nil
}

func (r memTrips) ListByRequester(ctx context.Context, requesterID int64, limit, offset int) ([]*entity.Trip, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	all := r.sorted(func(t *entity.Trip) bool { return t.RequesterID == requesterID })
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return page(all, limit, offset), nil
}

// memApprovals implements port.ApprovalRepository. It does not enforce the
// single open record rule so tests can observe what the services do.
type memApprovals struct{ s *memStore }

func (r memApprovals) Create(ctx context.Context, approval *entity.Approval) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	approval.ID = r.s.id()
	r.s.approvals[approval.ID] = cloneApproval(approval)
	return nil
}

func (r memApprovals) GetByID(ctx context.Context, id int64) (*entity.Approval, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.approvals[id]
	if !ok {
		return nil, fmt.Errorf("approval %d: %w", id, domain.ErrNotFound)
	}
	return cloneApproval(a), nil
}

func (r memApprovals) GetOpenByTripID(ctx context.Context, tripID int64) (*entity.Approval, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var found *entity.Approval
	for _, a := range r.s.approvals {
		if a.TripID == tripID && a.IsOpen() && (found == nil || a.ID < found.ID) {
			found = a
		}
	}
	if found == nil {
		return nil, nil
	}
	return cloneApproval(found), nil
}

func (r memApprovals) ListByTripID(ctx context.Context, tripID int64) ([]*entity.Approval, error) {
	return r.s.approvalsFor(tripID), nil
}

func (r memApprovals) ListOpenByApprover(ctx context.Context, approverID int64) ([]*entity.Approval, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Approval
	for _, a := range r.s.approvals {
		if a.ApproverID == approverID && a.IsOpen() {
			out = append(out, cloneApproval(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memApprovals) Decide(ctx context.Context, id int64, decision entity.Decision, comments string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.approvals[id]
	if !ok || !a.IsOpen() {
		return domain.ErrApprovalClosed
	}
	cp := cloneApproval(a)
	cp.Decision = &decision
	cp.Comments = comments
	cp.DecidedAt = &at
	r.s.approvals[id] = cp
	return nil
}

// memSegments implements port.SegmentRepository
type memSegments struct{ s *memStore }

func (r memSegments) Create(ctx context.Context, segment *entity.Segment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	segment.ID = r.s.id()
	r.s.segments[segment.ID] = cloneSegment(segment)
	return nil
}

func (r memSegments) ListByTripID(ctx context.Context, tripID int64) ([]*entity.Segment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Segment
	for _, seg := range r.s.segments {
		if seg.TripID == tripID {
			out = append(out, cloneSegment(seg))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memSegments) UpdateDetails(ctx context.Context, id int64, details map[string]interface{}) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seg, ok := r.s.segments[id]
	if !ok {
		return domain.ErrNotFound
	}
	cp := cloneSegment(seg)
	cp.Details = details
	r.s.segments[id] = cloneSegment(cp)
	return nil
}

// memFiles implements port.FileRepository
type memFiles struct {
	s       *memStore
	failErr error
}

func (r *memFiles) Create(ctx context.Context, file *entity.TripFile) error {
	if r.failErr != nil {
		return r.failErr
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	file.ID = r.s.id()
	r.s.files[file.ID] = cloneFile(file)
	return nil
}

func (r *memFiles) ListByTripID(ctx context.Context, tripID int64, kinds ...string) ([]*entity.TripFile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	want := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	var out []*entity.TripFile
	for _, f := range r.s.files {
		if f.TripID == tripID && (len(kinds) == 0 || want[f.Kind]) {
			out = append(out, cloneFile(f))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memFiles) Delete(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.files, id)
	return nil
}

// memDirectory implements port.Directory
type memDirectory struct{ s *memStore }

func (d memDirectory) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	u, ok := d.s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (d memDirectory) ListByRole(ctx context.Context, role string) ([]*entity.User, error) {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	var out []*entity.User
	for _, u := range d.s.users {
		if u.Role == role {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d memDirectory) FirstByRole(ctx context.Context, role string) (*entity.User, error) {
	users, _ := d.ListByRole(ctx, role)
	if len(users) == 0 {
		return nil, nil
	}
	return users[0], nil
}

// memBlobs implements port.FileStore
type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: make(map[string][]byte)}
}

func (b *memBlobs) Save(ctx context.Context, path string, content []byte, contentType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[path] = content
	return nil
}

func (b *memBlobs) Read(ctx context.Context, path string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.objects[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

func (b *memBlobs) Exists(ctx context.Context, path string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[path]
	return ok
}

func (b *memBlobs) Delete(ctx context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, path)
	b.deleted = append(b.deleted, path)
	return nil
}

// recordingPublisher captures dispatched events
type recordingPublisher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (p *recordingPublisher) DispatchAsync(ctx context.Context, evt *event.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) types() []event.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]event.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

type mockLogger struct {
	mu    sync.Mutex
	warns []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}
func (m *mockLogger) Warn(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warns = append(m.warns, msg)
}

// testEnv wires every service against one memStore
type testEnv struct {
	store     *memStore
	files     *memFiles
	blobs     *memBlobs
	publisher *recordingPublisher
	logger    *mockLogger

	trips       TripService
	cancels     CancellationService
	reschedules RescheduleService
	sweeper     AutoCloseService
	documents   DocumentService

	admin    *entity.User
	manager  *entity.User
	employee *entity.User
	loner    *entity.User
	super    *entity.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := newMemStore()
	env := &testEnv{
		store:     store,
		files:     &memFiles{s: store},
		blobs:     newMemBlobs(),
		publisher: &recordingPublisher{},
		logger:    &mockLogger{},
	}

	env.admin = store.putUser("tara", entity.RoleTravelAdmin, nil)
	env.manager = store.putUser("mo", entity.RoleRequester, nil)
	env.employee = store.putUser("eli", entity.RoleRequester, &env.manager.ID)
	env.loner = store.putUser("lou", entity.RoleRequester, nil)
	env.super = store.putUser("sam", entity.RoleSuperAdmin, nil)

	trips := memTrips{s: store}
	approvals := memApprovals{s: store}
	segments := memSegments{s: store}
	directory := memDirectory{s: store}
	ledger := NewApprovalLedger(approvals)
	resolver := NewApproverResolver(directory, env.logger)

	env.trips = NewTripService(trips, segments, approvals, env.files, directory, resolver, ledger, store, env.publisher, env.logger)
	env.cancels = NewCancellationService(trips, directory, ledger, store, env.publisher, env.logger)
	env.reschedules = NewRescheduleService(trips, segments, env.files, env.blobs, store, env.publisher, env.logger)
	env.sweeper = NewAutoCloseService(trips, segments, store, env.publisher, env.logger)
	env.documents = NewDocumentService(trips, env.files, directory, env.blobs,
		func(ref, kind, name string) string { return fmt.Sprintf("trips/%s/%s/%s", ref, kind, name) },
		env.logger)

	return env
}

// createTrip files a standard domestic trip for requester
func (e *testEnv) createTrip(t *testing.T, requester *entity.User) *CreateTripResult {
	t.Helper()
	res, err := e.trips.Create(context.Background(), CreateTripInput{
		RequesterID:        requester.ID,
		Name:               "Client visit",
		TravelType:         entity.TravelTypeDomestic,
		DestinationCountry: "US",
		BusinessPurpose:    "quarterly review",
		Segments: []SegmentInput{{
			Type:    entity.SegmentTypeFlight,
			Details: map[string]interface{}{"from": "SFO", "to": "JFK", "departureDate": "2024-03-01"},
		}},
	})
	if err != nil {
		t.Fatalf("create trip: %v", err)
	}
	return res
}

// bookedTrip seeds a BOOKED trip for the employee with one flight segment
func (e *testEnv) bookedTrip(returnDate string) (*entity.Trip, *entity.Segment) {
	cost := int64(120000)
	booked := time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)
	trip := e.store.putTrip(&entity.Trip{
		RequesterID:    e.employee.ID,
		Name:           "Booked trip",
		TravelType:     entity.TravelTypeDomestic,
		Status:         workflow.StateBooked,
		OptionSelected: "UA 100",
		TotalCost:      &cost,
		BookingPayload: entity.Payload{entity.PayloadOptionsUploaded: true, "fareClass": "Y"},
		BookedAt:       &booked,
	})
	seg := e.store.putSegment(trip.ID, entity.SegmentTypeFlight, map[string]interface{}{
		"from":          "SFO",
		"to":            "JFK",
		"departureDate": "2024-01-05",
		"returnDate":    returnDate,
	})
	return trip, seg
}
