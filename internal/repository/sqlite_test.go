package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// The production schema leans on postgres (uuid columns with
// gen_random_uuid() defaults, decimal types). Tests run against sqlite, so
// each table gets a sqlite-safe mirror struct that only pins the table and
// column names; the repositories still read and write the real model types.

type ledgerEntrySQLite struct {
	ID                  string `gorm:"primaryKey"`
	Seq                 int64  `gorm:"uniqueIndex"`
	ClientID            string `gorm:"index"`
	SourceApplicationID *string
	EntryDate           time.Time
	DisbursedAmount     string
	CommissionRate      string
	PayoutAmount        string
	Description         string
	DisputeStatus       string
	PayoutRequestFlag   bool
	CreatedAt           time.Time
}

func (ledgerEntrySQLite) TableName() string { return "ledger_entries" }

type payoutRequestSQLite struct {
	ID              string `gorm:"primaryKey"`
	ClientID        string `gorm:"index"`
	Amount          string
	Full            bool
	Status          string `gorm:"index"`
	RequestedByID   string
	RequestedAt     time.Time
	DecidedByID     *string
	DecidedAt       *time.Time
	RejectionReason string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (payoutRequestSQLite) TableName() string { return "payout_requests" }

type querySQLite struct {
	ID             string `gorm:"primaryKey"`
	TargetID       string `gorm:"index"`
	TargetKind     string
	RaisedByID     string `gorm:"index"`
	RaisedByRole   string
	RaisedToRole   string `gorm:"index"`
	Message        string
	Resolved       bool `gorm:"index"`
	ResolvedByID   *string
	ResolvedAt     *time.Time
	ResolutionNote string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (querySQLite) TableName() string { return "queries" }

type queryReplySQLite struct {
	ID        string `gorm:"primaryKey"`
	Seq       int64  `gorm:"uniqueIndex"`
	QueryID   string `gorm:"index"`
	ActorID   string
	ActorRole string
	Message   string
	CreatedAt time.Time
}

func (queryReplySQLite) TableName() string { return "query_replies" }

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&ledgerEntrySQLite{},
		&payoutRequestSQLite{},
		&querySQLite{},
		&queryReplySQLite{},
	))
	return db
}
