package models

import "time"

// DocumentCounter is the single-row persisted counter backing reference
// numbers. It is only ever mutated through atomic increment or reset
// statements; its value must never be cached across operations.
type DocumentCounter struct {
	Value       int64      `db:"value" json:"value"`
	LastResetBy *string    `db:"last_reset_by" json:"last_reset_by,omitempty"`
	LastResetAt *time.Time `db:"last_reset_at" json:"last_reset_at,omitempty"`
}
