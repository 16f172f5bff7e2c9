package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MAZGOURA/attestation-api/internal/models"
	"github.com/MAZGOURA/attestation-api/internal/notifier"
	"github.com/MAZGOURA/attestation-api/internal/roster"
	appErrors "github.com/MAZGOURA/attestation-api/pkg/errors"
)

type decisionStore interface {
	FindByID(ctx context.Context, id string) (*models.AttestationRequest, error)
	List(ctx context.Context, filter models.AttestationFilter) ([]models.AttestationRequest, int, error)
	Transition(ctx context.Context, id string, target models.AttestationStatus, reason *string, actorID string, at time.Time) (bool, error)
	AssignReference(ctx context.Context, id string, reference int64, at time.Time) (bool, error)
	Delete(ctx context.Context, id string) error
}

type referenceSource interface {
	NextValue(ctx context.Context) (int64, error)
	Release(ctx context.Context, value int64) bool
}

// DecideRequest is the administrative decision payload. Reason is only
// meaningful for rejections and is stored verbatim.
type DecideRequest struct {
	Reason string `json:"reason"`
}

// DecisionService owns the administrative side of the lifecycle:
// transitions, print resolution and hard deletes.
type DecisionService struct {
	repo      decisionStore
	allocator referenceSource
	notify    notifier.Notifier
	audit     auditWriter
	index     *roster.Index
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewDecisionService constructs DecisionService.
func NewDecisionService(repo decisionStore, allocator referenceSource, notify notifier.Notifier, audit auditWriter, index *roster.Index, metrics *MetricsService, logger *zap.Logger) *DecisionService {
	if notify == nil {
		notify = notifier.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DecisionService{
		repo:      repo,
		allocator: allocator,
		notify:    notify,
		audit:     audit,
		index:     index,
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns requests with pagination metadata.
func (s *DecisionService) List(ctx context.Context, filter models.AttestationFilter) ([]models.AttestationRequest, *models.Pagination, error) {
	requests, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return requests, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one request.
func (s *DecisionService) Get(ctx context.Context, id string) (*models.AttestationRequest, error) {
	req, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	return req, nil
}

// Decide moves a pending request to a terminal status. The precondition
// (current status is exactly PENDING) is evaluated inside the storage
// update, so concurrent decisions on the same request admit at most one
// winner; the loser gets a state conflict and must re-fetch rather than
// retry. A decision on an already-terminal request performs no side
// effects: no notification, no reference allocation.
func (s *DecisionService) Decide(ctx context.Context, id string, target models.AttestationStatus, req DecideRequest, actorID string) (*models.AttestationRequest, error) {
	if !models.CanTransition(models.AttestationStatusPending, target) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "target status must be APPROVED or REJECTED")
	}

	var reason *string
	if target == models.AttestationStatusRejected {
		if trimmed := strings.TrimSpace(req.Reason); trimmed != "" {
			reason = &trimmed
		}
	} else if strings.TrimSpace(req.Reason) != "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "approval does not accept a reason")
	}

	at := s.now()
	ok, err := s.repo.Transition(ctx, id, target, reason, actorID, at)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update request")
	}
	if !ok {
		current, findErr := s.repo.FindByID(ctx, id)
		if findErr != nil {
			if errors.Is(findErr, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
			}
			return nil, appErrors.Wrap(findErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
		}
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "request is already "+string(current.Status))
	}

	updated, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload request")
	}

	s.metrics.RecordDecision(target)
	s.emitAudit(ctx, actorID, auditActionFor(target), id, map[string]interface{}{
		"target": target,
		"reason": req.Reason,
	})

	// Best-effort: a delivery failure is reported separately and never
	// reverses the committed transition.
	if err := s.notify.Notify(ctx, notifier.Event{
		RequestID:       updated.ID,
		Status:          updated.Status,
		RejectionReason: updated.RejectionReason,
		Contact:         updated.Contact,
	}); err != nil {
		s.metrics.RecordNotificationFailure()
		s.logger.Warn("notification dispatch failed",
			zap.String("request_id", updated.ID),
			zap.Error(err),
		)
	}

	return updated, nil
}

// Print resolves the immutable snapshot handed to the document
// renderer, allocating the reference number on first print. The
// assignment is guarded on status and on the number still being unset,
// so a repeated print cannot consume a second value for the same
// request. If allocation succeeds but assignment loses a concurrent
// race, the winner's number is used and ours is reported unused.
func (s *DecisionService) Print(ctx context.Context, id string, actorID string) (*models.PrintSnapshot, error) {
	req, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != models.AttestationStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "only approved requests can be printed")
	}

	if req.ReferenceNumber == nil {
		value, err := s.allocator.NextValue(ctx)
		if err != nil {
			// The request stays APPROVED without a number; printing again
			// recovers once the counter is reachable. Only counter
			// contention is worth retrying, anything else is a fault.
			if appErrors.Is(err, appErrors.ErrCounterConflict) {
				return nil, appErrors.Wrap(err, appErrors.ErrCounterConflict.Code, appErrors.ErrCounterConflict.Status, "reference number not assigned, retry print")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "reference number not assigned")
		}
		assigned, err := s.repo.AssignReference(ctx, id, value, s.now())
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store reference number")
		}
		if !assigned {
			// A concurrent print already stamped the request. Hand our
			// number back so the sequence stays contiguous; if the
			// counter moved on in the meantime the decrement is refused
			// and the hole is logged instead.
			if s.allocator.Release(ctx, value) {
				s.logger.Info("returned unused reference number after concurrent print",
					zap.String("request_id", id),
					zap.Int64("value", value),
				)
			} else {
				s.logger.Warn("allocated reference number unused, concurrent print won",
					zap.String("request_id", id),
					zap.Int64("value", value),
				)
			}
		}
		req, err = s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if req.ReferenceNumber == nil {
			return nil, appErrors.Clone(appErrors.ErrNoReference, "")
		}
		s.emitAudit(ctx, actorID, models.AuditActionPrint, id, map[string]interface{}{
			"reference_number": *req.ReferenceNumber,
		})
	}

	return &models.PrintSnapshot{
		Request:         *req,
		Student:         s.studentRecord(req),
		ReferenceNumber: *req.ReferenceNumber,
		ResolvedAt:      s.now(),
	}, nil
}

// Delete removes a request outright. This is an administrative hard
// delete outside the state machine.
func (s *DecisionService) Delete(ctx context.Context, id string, actorID string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete request")
	}
	s.emitAudit(ctx, actorID, models.AuditActionDelete, id, nil)
	return nil
}

// studentRecord resolves the roster entry backing the request, falling
// back to the request's own identity when no exact roster row matches
// (possible on the verified path where names come from the identity
// service).
func (s *DecisionService) studentRecord(req *models.AttestationRequest) models.RosterEntry {
	if s.index != nil {
		if entry, ok := s.index.LookupExact(req.FirstName, req.LastName, req.GroupCode); ok {
			return *entry
		}
	}
	return models.RosterEntry{
		FullName:  strings.TrimSpace(req.LastName + " " + req.FirstName),
		GroupCode: req.GroupCode,
	}
}

func (s *DecisionService) emitAudit(ctx context.Context, actorID, action, resourceID string, detail map[string]interface{}) {
	if s.audit == nil {
		return
	}
	var payload []byte
	if detail != nil {
		payload, _ = json.Marshal(detail)
	}
	log := &models.AuditLog{
		Action:     action,
		Resource:   "attestation_request",
		ResourceID: &resourceID,
		Detail:     payload,
	}
	if actorID != "" {
		log.ActorID = &actorID
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}

func auditActionFor(target models.AttestationStatus) string {
	if target == models.AttestationStatusApproved {
		return models.AuditActionApprove
	}
	return models.AuditActionReject
}
