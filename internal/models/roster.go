package models

// RosterEntry is one row of the authoritative enrollment roster.
// Rows are imported out of band and never mutated by this service.
type RosterEntry struct {
	ExternalID string `db:"external_id" json:"external_id"`
	FullName   string `db:"full_name" json:"full_name"`
	GroupCode  string `db:"group_code" json:"group_code"`
}
