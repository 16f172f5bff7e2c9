package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MAZGOURA/attestation-api/internal/models"
	"github.com/MAZGOURA/attestation-api/internal/notifier"
	appErrors "github.com/MAZGOURA/attestation-api/pkg/errors"
)

type fakeDecisionStore struct {
	mu       sync.Mutex
	requests map[string]*models.AttestationRequest

	// beforeAssign runs under the lock ahead of the AssignReference
	// guard, letting tests interleave a competing write.
	beforeAssign func(requests map[string]*models.AttestationRequest)
}

func (f *fakeDecisionStore) FindByID(ctx context.Context, id string) (*models.AttestationRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *req
	return &clone, nil
}

func (f *fakeDecisionStore) List(ctx context.Context, filter models.AttestationFilter) ([]models.AttestationRequest, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AttestationRequest
	for _, req := range f.requests {
		out = append(out, *req)
	}
	return out, len(out), nil
}

func (f *fakeDecisionStore) Transition(ctx context.Context, id string, target models.AttestationStatus, reason *string, actorID string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok || req.Status != models.AttestationStatusPending {
		return false, nil
	}
	req.Status = target
	req.RejectionReason = reason
	req.DecidedBy = &actorID
	req.DecidedAt = &at
	return true, nil
}

func (f *fakeDecisionStore) AssignReference(ctx context.Context, id string, reference int64, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.beforeAssign != nil {
		f.beforeAssign(f.requests)
	}
	req, ok := f.requests[id]
	if !ok || req.Status != models.AttestationStatusApproved || req.ReferenceNumber != nil {
		return false, nil
	}
	req.ReferenceNumber = &reference
	return true, nil
}

func (f *fakeDecisionStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.requests[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.requests, id)
	return nil
}

type fakeAllocatorSource struct {
	mu       sync.Mutex
	next     int64
	calls    int
	err      error
	released []int64
}

func (f *fakeAllocatorSource) NextValue(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	f.next++
	return f.next, nil
}

func (f *fakeAllocatorSource) Release(ctx context.Context, value int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, value)
	if f.next == value {
		f.next--
		return true
	}
	return false
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []notifier.Event
	err    error
}

func (f *fakeNotifier) Notify(ctx context.Context, event notifier.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.err
}

type fakeAuditWriter struct {
	mu   sync.Mutex
	logs []*models.AuditLog
}

func (f *fakeAuditWriter) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, log)
	return nil
}

func pendingRequest(id string) *models.AttestationRequest {
	return &models.AttestationRequest{
		ID:            id,
		FirstName:     "Hana",
		LastName:      "El Hani",
		CIN:           "AB123456",
		Contact:       "hana@example.com",
		GroupCode:     "ID103",
		Status:        models.AttestationStatusPending,
		YearRequested: 2026,
	}
}

type decisionHarness struct {
	svc       *DecisionService
	store     *fakeDecisionStore
	allocator *fakeAllocatorSource
	notify    *fakeNotifier
	audit     *fakeAuditWriter
}

func newDecisionHarness(requests ...*models.AttestationRequest) *decisionHarness {
	store := &fakeDecisionStore{requests: map[string]*models.AttestationRequest{}}
	for _, req := range requests {
		store.requests[req.ID] = req
	}
	allocator := &fakeAllocatorSource{}
	notify := &fakeNotifier{}
	audit := &fakeAuditWriter{}
	return &decisionHarness{
		svc:       NewDecisionService(store, allocator, notify, audit, nil, nil, nil),
		store:     store,
		allocator: allocator,
		notify:    notify,
		audit:     audit,
	}
}

func TestDecideApprove(t *testing.T) {
	h := newDecisionHarness(pendingRequest("req-1"))

	updated, err := h.svc.Decide(context.Background(), "req-1", models.AttestationStatusApproved, DecideRequest{}, "admin-1")
	require.NoError(t, err)
	require.Equal(t, models.AttestationStatusApproved, updated.Status)
	require.Nil(t, updated.ReferenceNumber)
	require.Len(t, h.notify.events, 1)
	require.Len(t, h.audit.logs, 1)
	require.Equal(t, models.AuditActionApprove, h.audit.logs[0].Action)
	// Approval never touches the counter; the number is assigned on print.
	require.Zero(t, h.allocator.calls)
}

func TestDecideRejectStoresReason(t *testing.T) {
	h := newDecisionHarness(pendingRequest("req-1"))

	updated, err := h.svc.Decide(context.Background(), "req-1", models.AttestationStatusRejected, DecideRequest{Reason: "missing enrollment fee"}, "admin-1")
	require.NoError(t, err)
	require.Equal(t, models.AttestationStatusRejected, updated.Status)
	require.NotNil(t, updated.RejectionReason)
	require.Equal(t, "missing enrollment fee", *updated.RejectionReason)
}

func TestDecideApproveRejectsReason(t *testing.T) {
	h := newDecisionHarness(pendingRequest("req-1"))

	_, err := h.svc.Decide(context.Background(), "req-1", models.AttestationStatusApproved, DecideRequest{Reason: "looks fine"}, "admin-1")
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestDecideOnTerminalRequestHasNoSideEffects(t *testing.T) {
	h := newDecisionHarness(pendingRequest("req-1"))

	_, err := h.svc.Decide(context.Background(), "req-1", models.AttestationStatusApproved, DecideRequest{}, "admin-1")
	require.NoError(t, err)

	_, err = h.svc.Decide(context.Background(), "req-1", models.AttestationStatusRejected, DecideRequest{Reason: "changed my mind"}, "admin-2")
	require.True(t, appErrors.Is(err, appErrors.ErrStateConflict))

	// Only the first decision reached the notifier and the audit trail.
	require.Len(t, h.notify.events, 1)
	require.Len(t, h.audit.logs, 1)
	require.Equal(t, models.AttestationStatusApproved, h.store.requests["req-1"].Status)
}

func TestDecideConcurrentApproveSingleWinner(t *testing.T) {
	const admins = 8

	h := newDecisionHarness(pendingRequest("req-1"))

	var (
		mu        sync.Mutex
		approved  int
		conflicts int
		wg        sync.WaitGroup
	)
	wg.Add(admins)
	for i := 0; i < admins; i++ {
		go func(n int) {
			defer wg.Done()
			actor := fmt.Sprintf("admin-%d", n)
			_, err := h.svc.Decide(context.Background(), "req-1", models.AttestationStatusApproved, DecideRequest{}, actor)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				approved++
			case appErrors.Is(err, appErrors.ErrStateConflict):
				conflicts++
			}
		}(i)
	}
	wg.Wait()

	// Exactly one admin wins; the losers see the terminal state and
	// cause no side effects.
	require.Equal(t, 1, approved)
	require.Equal(t, admins-1, conflicts)
	require.Equal(t, models.AttestationStatusApproved, h.store.requests["req-1"].Status)
	require.Len(t, h.notify.events, 1)
	require.Len(t, h.audit.logs, 1)
}

func TestDecideUnknownRequest(t *testing.T) {
	h := newDecisionHarness()

	_, err := h.svc.Decide(context.Background(), "missing", models.AttestationStatusApproved, DecideRequest{}, "admin-1")
	require.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestDecideInvalidTarget(t *testing.T) {
	h := newDecisionHarness(pendingRequest("req-1"))

	_, err := h.svc.Decide(context.Background(), "req-1", models.AttestationStatusPending, DecideRequest{}, "admin-1")
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestDecideNotificationFailureDoesNotRevert(t *testing.T) {
	h := newDecisionHarness(pendingRequest("req-1"))
	h.notify.err = errors.New("webhook down")

	updated, err := h.svc.Decide(context.Background(), "req-1", models.AttestationStatusApproved, DecideRequest{}, "admin-1")
	require.NoError(t, err)
	require.Equal(t, models.AttestationStatusApproved, updated.Status)
}

func TestPrintAssignsReferenceOnce(t *testing.T) {
	h := newDecisionHarness(pendingRequest("req-1"))

	_, err := h.svc.Decide(context.Background(), "req-1", models.AttestationStatusApproved, DecideRequest{}, "admin-1")
	require.NoError(t, err)

	first, err := h.svc.Print(context.Background(), "req-1", "admin-1")
	require.NoError(t, err)
	require.Equal(t, int64(1), first.ReferenceNumber)

	// Printing again reuses the stored number without touching the counter.
	second, err := h.svc.Print(context.Background(), "req-1", "admin-1")
	require.NoError(t, err)
	require.Equal(t, int64(1), second.ReferenceNumber)
	require.Equal(t, 1, h.allocator.calls)
}

func TestPrintRequiresApproval(t *testing.T) {
	h := newDecisionHarness(pendingRequest("req-1"))

	_, err := h.svc.Print(context.Background(), "req-1", "admin-1")
	require.True(t, appErrors.Is(err, appErrors.ErrStateConflict))
	require.Zero(t, h.allocator.calls)
}

func TestPrintAllocatorFailureIsRecoverable(t *testing.T) {
	h := newDecisionHarness(pendingRequest("req-1"))

	_, err := h.svc.Decide(context.Background(), "req-1", models.AttestationStatusApproved, DecideRequest{}, "admin-1")
	require.NoError(t, err)

	h.allocator.err = appErrors.Clone(appErrors.ErrCounterConflict, "")
	_, err = h.svc.Print(context.Background(), "req-1", "admin-1")
	require.True(t, appErrors.Is(err, appErrors.ErrCounterConflict))
	require.Nil(t, h.store.requests["req-1"].ReferenceNumber)

	// Once the counter recovers the same request picks up a number.
	h.allocator.err = nil
	snapshot, err := h.svc.Print(context.Background(), "req-1", "admin-1")
	require.NoError(t, err)
	require.Equal(t, int64(1), snapshot.ReferenceNumber)
}

func TestPrintAllocatorFaultIsNotRetryable(t *testing.T) {
	h := newDecisionHarness(pendingRequest("req-1"))

	_, err := h.svc.Decide(context.Background(), "req-1", models.AttestationStatusApproved, DecideRequest{}, "admin-1")
	require.NoError(t, err)

	// A counter outage is not contention; the caller gets a server
	// fault rather than an invitation to retry.
	h.allocator.err = errors.New("connection refused")
	_, err = h.svc.Print(context.Background(), "req-1", "admin-1")
	require.True(t, appErrors.Is(err, appErrors.ErrInternal))
	require.False(t, appErrors.Is(err, appErrors.ErrCounterConflict))
}

func TestPrintLostAssignmentRaceReturnsValue(t *testing.T) {
	h := newDecisionHarness(pendingRequest("req-1"))

	_, err := h.svc.Decide(context.Background(), "req-1", models.AttestationStatusApproved, DecideRequest{}, "admin-1")
	require.NoError(t, err)

	// A competing print stamps its number between our allocation and
	// the guarded write, so our AssignReference sees the slot taken.
	winner := int64(99)
	h.store.beforeAssign = func(requests map[string]*models.AttestationRequest) {
		if requests["req-1"].ReferenceNumber == nil {
			requests["req-1"].ReferenceNumber = &winner
		}
	}

	snapshot, err := h.svc.Print(context.Background(), "req-1", "admin-1")
	require.NoError(t, err)
	require.Equal(t, winner, snapshot.ReferenceNumber)

	// The loser hands its unused number back so the sequence keeps no
	// hole, and the next allocation reissues it.
	require.Equal(t, []int64{1}, h.allocator.released)
	next, err := h.allocator.NextValue(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), next)
}

func TestDeleteRemovesRequest(t *testing.T) {
	h := newDecisionHarness(pendingRequest("req-1"))

	require.NoError(t, h.svc.Delete(context.Background(), "req-1", "admin-1"))
	require.Empty(t, h.store.requests)
	require.Len(t, h.audit.logs, 1)
	require.Equal(t, models.AuditActionDelete, h.audit.logs[0].Action)

	err := h.svc.Delete(context.Background(), "req-1", "admin-1")
	require.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
