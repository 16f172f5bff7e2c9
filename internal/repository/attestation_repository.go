package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/MAZGOURA/attestation-api/internal/models"
	appErrors "github.com/MAZGOURA/attestation-api/pkg/errors"
)

const pqUniqueViolation = "23505"

// AttestationRepository persists attestation requests and enforces the
// storage-level guards the lifecycle depends on: the unique CIN index,
// the quota-fused insert and the status-guarded transition update.
type AttestationRepository struct {
	db *sqlx.DB
}

// NewAttestationRepository constructs the repository.
func NewAttestationRepository(db *sqlx.DB) *AttestationRepository {
	return &AttestationRepository{db: db}
}

// Create inserts a new pending request. Duplicate CIN is enforced by
// the unique index on cin, regardless of status. The quota guard needs
// more than statement atomicity: under READ COMMITTED two concurrent
// inserts would each count the committed rows only, both see quota-1
// and both pass. An advisory lock keyed on (contact, year) serializes
// submissions for the same quota slot, so the guarded SELECT always
// counts against a settled state.
func (r *AttestationRepository) Create(ctx context.Context, req *models.AttestationRequest, quota int) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = models.AttestationStatusPending
	}
	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	if req.UpdatedAt.IsZero() {
		req.UpdatedAt = now
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin submission: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// Held until commit or rollback; the second submission for the same
	// (contact, year) blocks here until the first one settles.
	const lock = `SELECT pg_advisory_xact_lock(hashtext($1), $2)`
	if _, err := tx.ExecContext(ctx, lock, req.Contact, req.YearRequested); err != nil {
		return fmt.Errorf("lock submission slot: %w", err)
	}

	const query = `INSERT INTO attestation_requests
	(id, first_name, last_name, cin, contact, group_code, status, rejection_reason, year_requested, reference_number, created_at, updated_at)
	SELECT $1, $2, $3, $4, $5, $6, $7, NULL, $8, NULL, $9, $10
	WHERE (SELECT COUNT(*) FROM attestation_requests WHERE contact = $5 AND year_requested = $8) < $11`

	result, err := tx.ExecContext(ctx, query,
		req.ID, req.FirstName, req.LastName, req.CIN, req.Contact, req.GroupCode,
		req.Status, req.YearRequested, req.CreatedAt, req.UpdatedAt, quota,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return appErrors.Clone(appErrors.ErrDuplicateCIN, "")
		}
		return fmt.Errorf("create attestation request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check attestation insert rows: %w", err)
	}
	if rows == 0 {
		return appErrors.Clone(appErrors.ErrQuotaExceeded, "")
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit submission: %w", err)
	}
	return nil
}

// FindByID fetches a request by identifier.
func (r *AttestationRepository) FindByID(ctx context.Context, id string) (*models.AttestationRequest, error) {
	const query = `SELECT id, first_name, last_name, cin, contact, group_code, status, rejection_reason,
       year_requested, reference_number, decided_by, decided_at, created_at, updated_at
	FROM attestation_requests WHERE id = $1`
	var req models.AttestationRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// ExistsByCIN reports whether any request, in any status, holds the CIN.
func (r *AttestationRepository) ExistsByCIN(ctx context.Context, cin string) (bool, error) {
	const query = `SELECT 1 FROM attestation_requests WHERE cin = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, cin); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check cin: %w", err)
	}
	return true, nil
}

// ExistsByName reports whether any request carries the same normalized
// name pair. This feeds the soft, warn-only duplicate signal.
func (r *AttestationRepository) ExistsByName(ctx context.Context, firstName, lastName string) (bool, error) {
	const query = `SELECT 1 FROM attestation_requests
	WHERE UPPER(TRIM(first_name)) = UPPER(TRIM($1)) AND UPPER(TRIM(last_name)) = UPPER(TRIM($2)) LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, firstName, lastName); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check name duplicate: %w", err)
	}
	return true, nil
}

// CountByContactAndYear counts every request of the contact for the
// year, regardless of status.
func (r *AttestationRepository) CountByContactAndYear(ctx context.Context, contact string, year int) (int, error) {
	const query = `SELECT COUNT(*) FROM attestation_requests WHERE contact = $1 AND year_requested = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, contact, year); err != nil {
		return 0, fmt.Errorf("count requests for year: %w", err)
	}
	return count, nil
}

// List returns requests matching the filter plus the total count.
func (r *AttestationRepository) List(ctx context.Context, filter models.AttestationFilter) ([]models.AttestationRequest, int, error) {
	base := `FROM attestation_requests`
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.GroupCode != "" {
		conditions = append(conditions, fmt.Sprintf("group_code = $%d", len(args)+1))
		args = append(args, filter.GroupCode)
	}
	if filter.Year > 0 {
		conditions = append(conditions, fmt.Sprintf("year_requested = $%d", len(args)+1))
		args = append(args, filter.Year)
	}
	if filter.CIN != "" {
		conditions = append(conditions, fmt.Sprintf("cin = $%d", len(args)+1))
		args = append(args, filter.CIN)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at": "created_at",
		"updated_at": "updated_at",
		"last_name":  "last_name",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, first_name, last_name, cin, contact, group_code, status, rejection_reason,
        year_requested, reference_number, decided_by, decided_at, created_at, updated_at
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var requests []models.AttestationRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list attestation requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attestation requests: %w", err)
	}
	return requests, total, nil
}

// Transition moves a pending request to a terminal status. The current
// status is evaluated inside the UPDATE itself, so two concurrent calls
// on the same request let at most one through; the loser sees zero rows.
func (r *AttestationRepository) Transition(ctx context.Context, id string, target models.AttestationStatus, reason *string, actorID string, at time.Time) (bool, error) {
	query := fmt.Sprintf(`UPDATE attestation_requests
	SET status = $2, rejection_reason = $3, decided_by = $4, decided_at = $5, updated_at = $5
	WHERE id = $1 AND status = '%s'`, models.AttestationStatusPending)

	result, err := r.db.ExecContext(ctx, query, id, target, reason, actorID, at)
	if err != nil {
		return false, fmt.Errorf("transition attestation request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check transition rows: %w", err)
	}
	return rows > 0, nil
}

// AssignReference sets the reference number once. The guard on status
// and on reference_number IS NULL makes a repeated print click a no-op
// at the storage layer.
func (r *AttestationRepository) AssignReference(ctx context.Context, id string, reference int64, at time.Time) (bool, error) {
	query := fmt.Sprintf(`UPDATE attestation_requests
	SET reference_number = $2, updated_at = $3
	WHERE id = $1 AND status = '%s' AND reference_number IS NULL`, models.AttestationStatusApproved)

	result, err := r.db.ExecContext(ctx, query, id, reference, at)
	if err != nil {
		return false, fmt.Errorf("assign reference number: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check reference rows: %w", err)
	}
	return rows > 0, nil
}

// Delete removes a request outright. Administrative hard delete, outside
// the state machine.
func (r *AttestationRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM attestation_requests WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete attestation request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check delete rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
