package model

import (
	"time"

	"github.com/google/uuid"
)

// TargetKind enum constants — what a query thread is attached to.
const (
	TargetApplication = "APPLICATION"
	TargetLedgerEntry = "LEDGER_ENTRY"
)

// Query is a thread root raised against one application or one ledger entry,
// never both. A thread is open until resolved; there is no reopening — a new
// clarification starts a new thread.
type Query struct {
	ID             uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TargetID       uuid.UUID  `gorm:"type:uuid;not null;index" json:"target_id"`
	TargetKind     string     `gorm:"type:varchar(20);not null;index" json:"target_kind"` // APPLICATION, LEDGER_ENTRY
	RaisedByID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"raised_by_id"`
	RaisedByRole   Role       `gorm:"type:varchar(20);not null" json:"raised_by_role"`
	RaisedToRole   Role       `gorm:"type:varchar(20);not null;index" json:"raised_to_role"`
	Message        string     `gorm:"type:text;not null" json:"message"`
	Resolved       bool       `gorm:"not null;default:false;index" json:"resolved"`
	ResolvedByID   *uuid.UUID `gorm:"type:uuid" json:"resolved_by_id"`
	ResolvedAt     *time.Time `json:"resolved_at"`
	ResolutionNote string     `gorm:"type:text" json:"resolution_note"`
	Replies        []QueryReply `gorm:"foreignKey:QueryID" json:"replies,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// QueryReply is one message appended to an open thread. Replies are ordered
// by Seq and frozen once the thread resolves.
type QueryReply struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Seq       int64     `gorm:"autoIncrement;uniqueIndex" json:"seq"`
	QueryID   uuid.UUID `gorm:"type:uuid;not null;index" json:"query_id"`
	ActorID   uuid.UUID `gorm:"type:uuid;not null" json:"actor_id"`
	ActorRole Role      `gorm:"type:varchar(20);not null" json:"actor_role"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
