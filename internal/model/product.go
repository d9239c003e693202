package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LoanProduct represents an offered loan type (working capital, term loan...).
// The catalog changes rarely; list reads go through the cache port.
type LoanProduct struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Code        string          `gorm:"type:varchar(100);uniqueIndex;not null" json:"code"`
	Name        string          `gorm:"type:varchar(255);not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	MinAmount   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"min_amount"`
	MaxAmount   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"max_amount"`
	IsActive    bool            `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`
}
