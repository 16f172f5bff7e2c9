package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionApprove      = "ATTESTATION_APPROVE"
	AuditActionReject       = "ATTESTATION_REJECT"
	AuditActionDelete       = "ATTESTATION_DELETE"
	AuditActionPrint        = "ATTESTATION_PRINT"
	AuditActionCounterReset = "COUNTER_RESET"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	ActorID    *string   `db:"actor_id" json:"actor_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	Detail     []byte    `db:"detail" json:"detail,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
