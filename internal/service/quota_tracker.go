package service

import (
	"context"
	"fmt"
)

type quotaCounter interface {
	CountByContactAndYear(ctx context.Context, contact string, year int) (int, error)
}

// QuotaTracker counts a contact's requests for a calendar year and
// enforces the configured cap. Every status counts: a rejected request
// still consumes quota.
type QuotaTracker struct {
	counts quotaCounter
	limit  int
}

// NewQuotaTracker builds a tracker with the given yearly cap.
func NewQuotaTracker(counts quotaCounter, limit int) *QuotaTracker {
	if limit <= 0 {
		limit = 3
	}
	return &QuotaTracker{counts: counts, limit: limit}
}

// Limit returns the configured yearly cap.
func (q *QuotaTracker) Limit() int {
	return q.limit
}

// CountForYear returns how many requests the contact made in the year.
func (q *QuotaTracker) CountForYear(ctx context.Context, contactKey string, year int) (int, error) {
	count, err := q.counts.CountByContactAndYear(ctx, contactKey, year)
	if err != nil {
		return 0, fmt.Errorf("quota count: %w", err)
	}
	return count, nil
}

// CanSubmit reports whether the contact may submit another request this
// year. This is advisory only: the storage-level guard inside the insert
// is the authority, so two racing submissions cannot both pass on a
// stale count.
func (q *QuotaTracker) CanSubmit(ctx context.Context, contactKey string, year int) (bool, error) {
	count, err := q.CountForYear(ctx, contactKey, year)
	if err != nil {
		return false, err
	}
	return count < q.limit, nil
}
