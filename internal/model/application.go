package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LenderDecision enum constants
const (
	DecisionApproved = "APPROVED"
	DecisionRejected = "REJECTED"
)

// LoanApplication is the workflow aggregate. Status moves only through the
// application service's Transition; every successful move appends one
// StatusHistoryEntry in the same transaction.
type LoanApplication struct {
	ID              uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	FileNumber      string              `gorm:"type:varchar(30);uniqueIndex;not null" json:"file_number"` // Human-facing, assigned at creation, immutable
	ClientID        uuid.UUID           `gorm:"type:uuid;not null;index" json:"client_id"`
	Client          *Client             `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	ApplicantName   string              `gorm:"type:varchar(255);not null" json:"applicant_name"`
	LoanProductID   uuid.UUID           `gorm:"type:uuid;not null;index" json:"loan_product_id"`
	LoanProduct     *LoanProduct        `gorm:"foreignKey:LoanProductID" json:"loan_product,omitempty"`
	RequestedAmount decimal.Decimal     `gorm:"type:decimal(18,4);not null" json:"requested_amount"`
	ApprovedAmount  decimal.NullDecimal `gorm:"type:decimal(18,4)" json:"approved_amount"` // Set iff the lender decision is APPROVED
	Status          Status              `gorm:"type:varchar(30);not null;default:'DRAFT';index" json:"status"`
	AnalystID       *uuid.UUID          `gorm:"type:uuid;index" json:"analyst_id"` // Assigned credit analyst
	Analyst         *User               `gorm:"foreignKey:AnalystID" json:"analyst,omitempty"`

	// Lender decision, recorded by the NBFC on the SENT_TO_NBFC → APPROVED/REJECTED move.
	DecisionStatus  *string    `gorm:"type:varchar(20)" json:"decision_status"`
	DecisionRemarks string     `gorm:"type:text" json:"decision_remarks"`
	DecisionAt      *time.Time `json:"decision_at"`
	DecisionNbfcID  *uuid.UUID `gorm:"type:uuid" json:"decision_nbfc_id"`

	// FormData is the opaque form-configuration payload. The core stores it
	// verbatim and never interprets it.
	FormData string `gorm:"type:jsonb" json:"form_data"`

	Nbfcs []NbfcAssignment `gorm:"foreignKey:ApplicationID" json:"nbfcs,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NbfcAssignment links an application to a lending partner. The Seq column
// preserves assignment order.
type NbfcAssignment struct {
	ID            uuid.UUID    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Seq           int64        `gorm:"autoIncrement;uniqueIndex" json:"seq"`
	ApplicationID uuid.UUID    `gorm:"type:uuid;not null;index;uniqueIndex:ux_app_nbfc,priority:1" json:"application_id"`
	NbfcID        uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:ux_app_nbfc,priority:2" json:"nbfc_id"`
	Nbfc          *NbfcPartner `gorm:"foreignKey:NbfcID" json:"nbfc,omitempty"`
	AssignedByID  uuid.UUID    `gorm:"type:uuid;not null" json:"assigned_by_id"`
	CreatedAt     time.Time    `json:"created_at"`
}

// StatusHistoryEntry is the immutable audit trail of status moves. Rows are
// append-only and totally ordered by Seq; insertion order, not wall-clock
// time, is the tie-breaker.
type StatusHistoryEntry struct {
	ID            uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Seq           int64     `gorm:"autoIncrement;uniqueIndex" json:"seq"`
	ApplicationID uuid.UUID `gorm:"type:uuid;not null;index" json:"application_id"`
	FromStatus    *Status   `gorm:"type:varchar(30)" json:"from_status"` // Nil for the creation entry
	ToStatus      Status    `gorm:"type:varchar(30);not null" json:"to_status"`
	ActorID       uuid.UUID `gorm:"type:uuid;not null" json:"actor_id"`
	ActorRole     Role      `gorm:"type:varchar(20);not null" json:"actor_role"`
	Notes         string    `gorm:"type:text" json:"notes"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
}
