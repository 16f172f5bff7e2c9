package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/MAZGOURA/attestation-api/internal/models"
	appErrors "github.com/MAZGOURA/attestation-api/pkg/errors"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func pendingRequest() *models.AttestationRequest {
	return &models.AttestationRequest{
		FirstName:     "Hana",
		LastName:      "El Hani",
		CIN:           "AB123456",
		Contact:       "hana@example.com",
		GroupCode:     "ID103",
		YearRequested: 2026,
	}
}

func TestAttestationRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttestationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs("hana@example.com", 2026).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO attestation_requests").
		WithArgs(sqlmock.AnyArg(), "Hana", "El Hani", "AB123456", "hana@example.com", "ID103",
			models.AttestationStatusPending, 2026, sqlmock.AnyArg(), sqlmock.AnyArg(), 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	req := pendingRequest()
	require.NoError(t, repo.Create(context.Background(), req, 3))
	require.NotEmpty(t, req.ID)
	require.Equal(t, models.AttestationStatusPending, req.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttestationRepositoryCreateQuotaExceeded(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttestationRepository(db)

	// Guarded insert affects zero rows once the contact holds quota rows.
	// The advisory lock serializes racing submissions for the same
	// (contact, year), so the count the guard evaluates is settled.
	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs("hana@example.com", 2026).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO attestation_requests").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), pendingRequest(), 3)
	require.True(t, appErrors.Is(err, appErrors.ErrQuotaExceeded))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttestationRepositoryCreateDuplicateCIN(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttestationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs("hana@example.com", 2026).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO attestation_requests").
		WillReturnError(&pq.Error{Code: pqUniqueViolation, Constraint: "attestation_requests_cin_key"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), pendingRequest(), 3)
	require.True(t, appErrors.Is(err, appErrors.ErrDuplicateCIN))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttestationRepositoryTransitionGuard(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttestationRepository(db)

	now := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE attestation_requests")).
		WithArgs("req-1", models.AttestationStatusApproved, nil, "admin-1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.Transition(context.Background(), "req-1", models.AttestationStatusApproved, nil, "admin-1", now)
	require.NoError(t, err)
	require.True(t, ok)

	// Second caller loses the race: the status guard matches no row.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE attestation_requests")).
		WithArgs("req-1", models.AttestationStatusApproved, nil, "admin-2", now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err = repo.Transition(context.Background(), "req-1", models.AttestationStatusApproved, nil, "admin-2", now)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttestationRepositoryAssignReferenceOnce(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttestationRepository(db)

	now := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE attestation_requests")).
		WithArgs("req-1", int64(41), now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.AssignReference(context.Background(), "req-1", 41, now)
	require.NoError(t, err)
	require.True(t, ok)

	// Already numbered: the IS NULL guard rejects a second assignment.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE attestation_requests")).
		WithArgs("req-1", int64(42), now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err = repo.AssignReference(context.Background(), "req-1", 42, now)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttestationRepositoryExistsByCIN(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttestationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM attestation_requests WHERE cin = $1 LIMIT 1")).
		WithArgs("AB123456").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsByCIN(context.Background(), "AB123456")
	require.NoError(t, err)
	require.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM attestation_requests WHERE cin = $1 LIMIT 1")).
		WithArgs("ZZ999999").
		WillReturnError(sql.ErrNoRows)

	exists, err = repo.ExistsByCIN(context.Background(), "ZZ999999")
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttestationRepositoryCountByContactAndYear(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttestationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM attestation_requests WHERE contact = $1 AND year_requested = $2")).
		WithArgs("hana@example.com", 2026).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := repo.CountByContactAndYear(context.Background(), "hana@example.com", 2026)
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttestationRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttestationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM attestation_requests WHERE id = $1")).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "ghost")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
