package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/MAZGOURA/attestation-api/internal/models"
	appErrors "github.com/MAZGOURA/attestation-api/pkg/errors"
)

type counterStore interface {
	Increment(ctx context.Context) (int64, error)
	Release(ctx context.Context, value int64) (bool, error)
	Reset(ctx context.Context, actorID string, at time.Time) error
	Current(ctx context.Context) (*models.DocumentCounter, error)
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// ReferenceAllocator hands out strictly increasing reference numbers.
// The increment itself is atomic at the storage layer; this wrapper only
// adds bounded retries on transient conflicts and the auditable reset.
type ReferenceAllocator struct {
	counters   counterStore
	audit      auditWriter
	metrics    *MetricsService
	logger     *zap.Logger
	maxRetries int
	retryDelay time.Duration
	now        func() time.Time
}

// NewReferenceAllocator constructs the allocator.
func NewReferenceAllocator(counters counterStore, audit auditWriter, metrics *MetricsService, logger *zap.Logger, maxRetries int, retryDelay time.Duration) *ReferenceAllocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelay <= 0 {
		retryDelay = 50 * time.Millisecond
	}
	return &ReferenceAllocator{
		counters:   counters,
		audit:      audit,
		metrics:    metrics,
		logger:     logger,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// NextValue returns the next reference number. Transient conflicts are
// retried a bounded number of times; any other failure propagates so the
// caller can leave the request approved without a number and recover.
func (a *ReferenceAllocator) NextValue(ctx context.Context) (int64, error) {
	var lastErr error
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if attempt > 0 {
			a.metrics.RecordCounterRetry()
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(a.retryDelay):
			}
		}
		value, err := a.counters.Increment(ctx)
		if err == nil {
			a.metrics.RecordReferenceAllocation()
			return value, nil
		}
		if !appErrors.Is(err, appErrors.ErrCounterConflict) {
			return 0, err
		}
		lastErr = err
	}
	return 0, lastErr
}

// Release returns a value that was allocated but never stamped onto a
// request, keeping the sequence contiguous when a print loses the
// assignment race. It succeeds only while the counter still sits at
// that value; otherwise the value stays consumed and the caller is
// expected to log the gap.
func (a *ReferenceAllocator) Release(ctx context.Context, value int64) bool {
	ok, err := a.counters.Release(ctx, value)
	if err != nil {
		a.logger.Warn("failed to return unused reference number",
			zap.Int64("value", value),
			zap.Error(err),
		)
		return false
	}
	return ok
}

// Reset zeroes the counter and records the actor. A reset while an
// approval is in flight can reissue low numbers within the same year;
// the warning below is deliberate.
func (a *ReferenceAllocator) Reset(ctx context.Context, actorID string) error {
	at := a.now()
	if err := a.counters.Reset(ctx, actorID, at); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset counter")
	}

	a.logger.Warn("document counter reset; numbers restart at 1 and may collide with in-flight approvals this year",
		zap.String("actor_id", actorID),
	)
	if a.audit != nil {
		detail, _ := json.Marshal(map[string]interface{}{"reset_at": at})
		if err := a.audit.CreateAuditLog(ctx, &models.AuditLog{
			ActorID:  &actorID,
			Action:   models.AuditActionCounterReset,
			Resource: "document_counter",
			Detail:   detail,
		}); err != nil {
			a.logger.Warn("failed to write counter reset audit log", zap.Error(err))
		}
	}
	return nil
}

// CurrentValue returns a read-only snapshot of the counter. It must not
// be used to derive the next reference number.
func (a *ReferenceAllocator) CurrentValue(ctx context.Context) (*models.DocumentCounter, error) {
	counter, err := a.counters.Current(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read counter")
	}
	return counter, nil
}
