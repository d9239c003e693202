package repository

import (
	"context"
	"errors"

	"lendflow/internal/apperr"
	"lendflow/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerRepository provides access to the append-only commission ledger.
// Entries are only ever inserted; the sole permitted update is the
// dispute-status projection and the payout-request flag.
type LedgerRepository interface {
	Append(ctx context.Context, entry *model.LedgerEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.LedgerEntry, error)
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]model.LedgerEntry, error)
	// SumPayoutAmount computes the running balance: the signed sum of
	// payout_amount over all of the client's entries in insertion order.
	SumPayoutAmount(ctx context.Context, clientID uuid.UUID) (decimal.Decimal, error)
	CountBySourceApplication(ctx context.Context, applicationID uuid.UUID) (int64, error)
	SetDisputeStatus(ctx context.Context, entryID uuid.UUID, status string) error
	SetPayoutRequestFlag(ctx context.Context, entryID uuid.UUID, flagged bool) error
}

type ledgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) Append(ctx context.Context, entry *model.LedgerEntry) error {
	if err := GetDB(ctx, r.db).Create(entry).Error; err != nil {
		return apperr.FromStore(err, "ledger entry")
	}
	return nil
}

func (r *ledgerRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.LedgerEntry, error) {
	var entry model.LedgerEntry
	if err := GetDB(ctx, r.db).First(&entry, "id = ?", id).Error; err != nil {
		return nil, apperr.FromStore(err, "ledger entry")
	}
	return &entry, nil
}

func (r *ledgerRepository) ListByClient(ctx context.Context, clientID uuid.UUID) ([]model.LedgerEntry, error) {
	var entries []model.LedgerEntry
	if err := GetDB(ctx, r.db).
		Where("client_id = ?", clientID).
		Order("seq asc").
		Find(&entries).Error; err != nil {
		return nil, apperr.FromStore(err, "ledger entry")
	}
	return entries, nil
}

func (r *ledgerRepository) SumPayoutAmount(ctx context.Context, clientID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := GetDB(ctx, r.db).Model(&model.LedgerEntry{}).
		Where("client_id = ?", clientID).
		Select("COALESCE(SUM(payout_amount), 0)").
		Scan(&sum).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, apperr.FromStore(err, "ledger entry")
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

func (r *ledgerRepository) CountBySourceApplication(ctx context.Context, applicationID uuid.UUID) (int64, error) {
	var count int64
	if err := GetDB(ctx, r.db).Model(&model.LedgerEntry{}).
		Where("source_application_id = ?", applicationID).
		Count(&count).Error; err != nil {
		return 0, apperr.FromStore(err, "ledger entry")
	}
	return count, nil
}

func (r *ledgerRepository) SetDisputeStatus(ctx context.Context, entryID uuid.UUID, status string) error {
	res := GetDB(ctx, r.db).Model(&model.LedgerEntry{}).
		Where("id = ?", entryID).
		Update("dispute_status", status)
	if res.Error != nil {
		return apperr.FromStore(res.Error, "ledger entry")
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.KindNotFound, "ledger entry not found")
	}
	return nil
}

func (r *ledgerRepository) SetPayoutRequestFlag(ctx context.Context, entryID uuid.UUID, flagged bool) error {
	res := GetDB(ctx, r.db).Model(&model.LedgerEntry{}).
		Where("id = ?", entryID).
		Update("payout_request_flag", flagged)
	if res.Error != nil {
		return apperr.FromStore(res.Error, "ledger entry")
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.KindNotFound, "ledger entry not found")
	}
	return nil
}

// PayoutRepository provides access to payout requests. GetByIDForUpdate pins
// the request row while an approval or rejection is decided.
type PayoutRepository interface {
	Create(ctx context.Context, req *model.PayoutRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.PayoutRequest, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.PayoutRequest, error)
	Save(ctx context.Context, req *model.PayoutRequest) error
	// HasOutstanding reports whether the client already has a REQUESTED row.
	HasOutstanding(ctx context.Context, clientID uuid.UUID) (bool, error)
	// SumApprovedUnpaid sums amounts of APPROVED-but-not-yet-PAID requests
	// for the client, excluding the given request id.
	SumApprovedUnpaid(ctx context.Context, clientID uuid.UUID, exclude uuid.UUID) (decimal.Decimal, error)
	ListByClient(ctx context.Context, clientID uuid.UUID, page, limit int) ([]model.PayoutRequest, int64, error)
	ListByStatus(ctx context.Context, status string, page, limit int) ([]model.PayoutRequest, int64, error)
}

type payoutRepository struct {
	db *gorm.DB
}

func NewPayoutRepository(db *gorm.DB) PayoutRepository {
	return &payoutRepository{db: db}
}

func (r *payoutRepository) Create(ctx context.Context, req *model.PayoutRequest) error {
	if err := GetDB(ctx, r.db).Create(req).Error; err != nil {
		return apperr.FromStore(err, "payout request")
	}
	return nil
}

func (r *payoutRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.PayoutRequest, error) {
	var req model.PayoutRequest
	if err := GetDB(ctx, r.db).First(&req, "id = ?", id).Error; err != nil {
		return nil, apperr.FromStore(err, "payout request")
	}
	return &req, nil
}

func (r *payoutRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.PayoutRequest, error) {
	var req model.PayoutRequest
	if err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&req, "id = ?", id).Error; err != nil {
		return nil, apperr.FromStore(err, "payout request")
	}
	return &req, nil
}

func (r *payoutRepository) Save(ctx context.Context, req *model.PayoutRequest) error {
	if err := GetDB(ctx, r.db).Save(req).Error; err != nil {
		return apperr.FromStore(err, "payout request")
	}
	return nil
}

func (r *payoutRepository) HasOutstanding(ctx context.Context, clientID uuid.UUID) (bool, error) {
	var req model.PayoutRequest
	err := GetDB(ctx, r.db).
		Where("client_id = ? AND status = ?", clientID, model.PayoutRequested).
		First(&req).Error
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, apperr.FromStore(err, "payout request")
}

func (r *payoutRepository) SumApprovedUnpaid(ctx context.Context, clientID uuid.UUID, exclude uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := GetDB(ctx, r.db).Model(&model.PayoutRequest{}).
		Where("client_id = ? AND status = ? AND id <> ?", clientID, model.PayoutApproved, exclude).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, apperr.FromStore(err, "payout request")
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

func (r *payoutRepository) ListByClient(ctx context.Context, clientID uuid.UUID, page, limit int) ([]model.PayoutRequest, int64, error) {
	db := GetDB(ctx, r.db)
	var total int64
	if err := db.Model(&model.PayoutRequest{}).Where("client_id = ?", clientID).Count(&total).Error; err != nil {
		return nil, 0, apperr.FromStore(err, "payout request")
	}

	offset := (page - 1) * limit
	var reqs []model.PayoutRequest
	if err := db.Where("client_id = ?", clientID).
		Order("created_at desc").
		Offset(offset).Limit(limit).
		Find(&reqs).Error; err != nil {
		return nil, 0, apperr.FromStore(err, "payout request")
	}
	return reqs, total, nil
}

func (r *payoutRepository) ListByStatus(ctx context.Context, status string, page, limit int) ([]model.PayoutRequest, int64, error) {
	db := GetDB(ctx, r.db)
	query := db.Model(&model.PayoutRequest{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperr.FromStore(err, "payout request")
	}

	offset := (page - 1) * limit
	fetch := db.Order("created_at desc").Offset(offset).Limit(limit)
	if status != "" {
		fetch = fetch.Where("status = ?", status)
	}
	var reqs []model.PayoutRequest
	if err := fetch.Find(&reqs).Error; err != nil {
		return nil, 0, apperr.FromStore(err, "payout request")
	}
	return reqs, total, nil
}
