package models

import "time"

// AttestationStatus captures the lifecycle of an attestation request.
type AttestationStatus string

const (
	AttestationStatusPending  AttestationStatus = "PENDING"
	AttestationStatusApproved AttestationStatus = "APPROVED"
	AttestationStatusRejected AttestationStatus = "REJECTED"
)

// Valid reports whether the status is one of the closed set.
func (s AttestationStatus) Valid() bool {
	switch s {
	case AttestationStatusPending, AttestationStatusApproved, AttestationStatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no transition may leave this status.
func (s AttestationStatus) Terminal() bool {
	return s == AttestationStatusApproved || s == AttestationStatusRejected
}

// CanTransition is the single transition table for the request lifecycle.
// Only PENDING→APPROVED and PENDING→REJECTED exist; both targets are terminal.
func CanTransition(from, to AttestationStatus) bool {
	if from != AttestationStatusPending {
		return false
	}
	return to == AttestationStatusApproved || to == AttestationStatusRejected
}

// AttestationRequest is a student's request for a proof-of-enrollment document.
type AttestationRequest struct {
	ID              string            `db:"id" json:"id"`
	FirstName       string            `db:"first_name" json:"first_name"`
	LastName        string            `db:"last_name" json:"last_name"`
	CIN             string            `db:"cin" json:"cin"`
	Contact         string            `db:"contact" json:"contact"`
	GroupCode       string            `db:"group_code" json:"group_code"`
	Status          AttestationStatus `db:"status" json:"status"`
	RejectionReason *string           `db:"rejection_reason" json:"rejection_reason,omitempty"`
	YearRequested   int               `db:"year_requested" json:"year_requested"`
	ReferenceNumber *int64            `db:"reference_number" json:"reference_number,omitempty"`
	DecidedBy       *string           `db:"decided_by" json:"decided_by,omitempty"`
	DecidedAt       *time.Time        `db:"decided_at" json:"decided_at,omitempty"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updated_at"`
}

// AttestationFilter constrains listing queries.
type AttestationFilter struct {
	Status    AttestationStatus
	GroupCode string
	Year      int
	CIN       string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// PrintSnapshot is the immutable payload handed to the document renderer.
// It is only resolvable for an approved request that already holds a
// reference number.
type PrintSnapshot struct {
	Request         AttestationRequest `json:"request"`
	Student         RosterEntry        `json:"student"`
	ReferenceNumber int64              `json:"reference_number"`
	ResolvedAt      time.Time          `json:"resolved_at"`
}
