package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionCreateApplication = "CREATE_APPLICATION"
	ActionTransitionStatus  = "TRANSITION_STATUS"
	ActionAssignNbfc        = "ASSIGN_NBFC"

	ActionRaiseQuery   = "RAISE_QUERY"
	ActionResolveQuery = "RESOLVE_QUERY"

	ActionPostLedgerEntry = "POST_LEDGER_ENTRY"
	ActionRequestPayout   = "REQUEST_PAYOUT"
	ActionApprovePayout   = "APPROVE_PAYOUT"
	ActionRejectPayout    = "REJECT_PAYOUT"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable gracefully if automated
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	ActorRole  Role       `gorm:"type:varchar(20)" json:"actor_role"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`        // Reference string (uuid/file number)
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // Human readable name
	Details    string     `gorm:"type:jsonb" json:"details"`                      // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
