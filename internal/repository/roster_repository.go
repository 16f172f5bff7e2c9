package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/MAZGOURA/attestation-api/internal/models"
)

// RosterRepository reads the authoritative student roster. The table is
// populated by an external import and is read-only for this service.
type RosterRepository struct {
	db *sqlx.DB
}

// NewRosterRepository constructs the repository.
func NewRosterRepository(db *sqlx.DB) *RosterRepository {
	return &RosterRepository{db: db}
}

// LoadAll returns every roster row in import order. Import order is what
// the in-memory index preserves and what suggestion ordering relies on.
func (r *RosterRepository) LoadAll(ctx context.Context) ([]models.RosterEntry, error) {
	const query = `SELECT external_id, full_name, group_code FROM roster_students ORDER BY id`
	var entries []models.RosterEntry
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	return entries, nil
}
