package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DisputeStatus enum constants — denormalized projection of the entry's
// query thread state.
const (
	DisputeNone       = "NONE"
	DisputeUnderQuery = "UNDER_QUERY"
	DisputeResolved   = "RESOLVED"
)

// LedgerEntry is one append-only commission record. Entries are never edited
// or deleted once posted; corrections are posted as new offsetting entries.
// PayoutAmount is signed — negative for a paid-out entry. Seq gives the
// strict insertion order the running balance is computed in.
type LedgerEntry struct {
	ID                  uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Seq                 int64           `gorm:"autoIncrement;uniqueIndex" json:"seq"`
	ClientID            uuid.UUID       `gorm:"type:uuid;not null;index" json:"client_id"`
	SourceApplicationID *uuid.UUID      `gorm:"type:uuid;uniqueIndex" json:"source_application_id"` // Nil for manual adjustments and payout offsets
	EntryDate           time.Time       `gorm:"not null" json:"entry_date"`
	DisbursedAmount     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"disbursed_amount"`
	CommissionRate      decimal.Decimal `gorm:"type:decimal(6,4);not null;default:0" json:"commission_rate"` // Snapshotted at posting time
	PayoutAmount        decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"payout_amount"`
	Description         string          `gorm:"type:text" json:"description"`
	DisputeStatus       string          `gorm:"type:varchar(20);not null;default:'NONE'" json:"dispute_status"`
	PayoutRequestFlag   bool            `gorm:"not null;default:false" json:"payout_request_flag"`
	CreatedAt           time.Time       `json:"created_at"`
}

// PayoutStatus enum constants
const (
	PayoutRequested = "REQUESTED"
	PayoutApproved  = "APPROVED"
	PayoutRejected  = "REJECTED"
	PayoutPaid      = "PAID"
)

// PayoutRequest is a client's ask to be paid their accrued balance. At most
// one REQUESTED row may exist per client at a time.
type PayoutRequest struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ClientID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"client_id"`
	Amount          decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	Full            bool            `gorm:"not null;default:false" json:"full"` // Targets the entire balance at request time
	Status          string          `gorm:"type:varchar(20);not null;default:'REQUESTED';index" json:"status"`
	RequestedByID   uuid.UUID       `gorm:"type:uuid;not null" json:"requested_by_id"`
	RequestedAt     time.Time       `gorm:"not null" json:"requested_at"`
	DecidedByID     *uuid.UUID      `gorm:"type:uuid" json:"decided_by_id"`
	DecidedAt       *time.Time      `json:"decided_at"`
	RejectionReason string          `gorm:"type:text" json:"rejection_reason"` // Required iff REJECTED
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
