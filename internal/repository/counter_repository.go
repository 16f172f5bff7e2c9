package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/MAZGOURA/attestation-api/internal/models"
	appErrors "github.com/MAZGOURA/attestation-api/pkg/errors"
)

// CounterRepository owns the single-row document counter. Every mutation
// is a single SQL statement; the value is never read, modified and
// written back from application code.
type CounterRepository struct {
	db *sqlx.DB
}

// NewCounterRepository constructs the repository.
func NewCounterRepository(db *sqlx.DB) *CounterRepository {
	return &CounterRepository{db: db}
}

// Bootstrap creates the counter row if it does not exist yet.
func (r *CounterRepository) Bootstrap(ctx context.Context) error {
	const query = `INSERT INTO document_counter (id, value) VALUES (1, 0) ON CONFLICT (id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("bootstrap counter: %w", err)
	}
	return nil
}

// Increment atomically bumps the counter and returns the new value. The
// UPDATE ... RETURNING form makes increment-and-read one storage
// operation, so concurrent callers each observe a distinct value.
func (r *CounterRepository) Increment(ctx context.Context) (int64, error) {
	const query = `UPDATE document_counter SET value = value + 1 WHERE id = 1 RETURNING value`
	var value int64
	if err := r.db.GetContext(ctx, &value, query); err != nil {
		if isTransientConflict(err) {
			return 0, appErrors.Wrap(err, appErrors.ErrCounterConflict.Code, appErrors.ErrCounterConflict.Status, appErrors.ErrCounterConflict.Message)
		}
		return 0, fmt.Errorf("increment counter: %w", err)
	}
	return value, nil
}

// Release hands back a value obtained from Increment that was never
// stamped onto a request. The guard only decrements while the counter
// still sits at that value, so a release after further increments is a
// no-op and the caller is told the value stayed consumed.
func (r *CounterRepository) Release(ctx context.Context, value int64) (bool, error) {
	const query = `UPDATE document_counter SET value = value - 1 WHERE id = 1 AND value = $1`
	result, err := r.db.ExecContext(ctx, query, value)
	if err != nil {
		return false, fmt.Errorf("release counter value: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("release counter value: %w", err)
	}
	return rows > 0, nil
}

// Reset zeroes the counter and records who reset it and when.
func (r *CounterRepository) Reset(ctx context.Context, actorID string, at time.Time) error {
	const query = `UPDATE document_counter SET value = 0, last_reset_by = $1, last_reset_at = $2 WHERE id = 1`
	if _, err := r.db.ExecContext(ctx, query, actorID, at); err != nil {
		return fmt.Errorf("reset counter: %w", err)
	}
	return nil
}

// Current returns a read-only snapshot. The snapshot must never be used
// as the basis for a subsequent write.
func (r *CounterRepository) Current(ctx context.Context) (*models.DocumentCounter, error) {
	const query = `SELECT value, last_reset_by, last_reset_at FROM document_counter WHERE id = 1`
	var counter models.DocumentCounter
	if err := r.db.GetContext(ctx, &counter, query); err != nil {
		return nil, fmt.Errorf("read counter: %w", err)
	}
	return &counter, nil
}

// isTransientConflict matches Postgres serialization and deadlock
// failures, the only increment errors worth retrying.
func isTransientConflict(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "40001" || pqErr.Code == "40P01"
}
