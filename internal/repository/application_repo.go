package repository

import (
	"context"
	"fmt"

	"lendflow/internal/apperr"
	"lendflow/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ApplicationFilter narrows application listings.
type ApplicationFilter struct {
	Status   model.Status
	ClientID *uuid.UUID
	KamID    *uuid.UUID
	NbfcID   *uuid.UUID
	Page     int
	Limit    int
}

// ApplicationRepository provides access to loan applications and their
// append-only status history. GetByIDForUpdate is the per-application
// serialization point for status transitions.
type ApplicationRepository interface {
	Create(ctx context.Context, app *model.LoanApplication) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.LoanApplication, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.LoanApplication, error)
	Save(ctx context.Context, app *model.LoanApplication) error
	List(ctx context.Context, filter ApplicationFilter) ([]model.LoanApplication, int64, error)

	AppendHistory(ctx context.Context, entry *model.StatusHistoryEntry) error
	ListHistory(ctx context.Context, applicationID uuid.UUID) ([]model.StatusHistoryEntry, error)

	AssignNbfc(ctx context.Context, assignment *model.NbfcAssignment) error
	ListNbfcs(ctx context.Context, applicationID uuid.UUID) ([]model.NbfcAssignment, error)
	CountNbfcs(ctx context.Context, applicationID uuid.UUID) (int64, error)

	// NextFileNumber allocates the next file number under the given day
	// prefix, e.g. "LF-20260828-". Must run inside a transaction: it takes a
	// pg advisory lock on the prefix so concurrent creates never collide.
	NextFileNumber(ctx context.Context, prefix string) (string, error)
}

type applicationRepository struct {
	db *gorm.DB
}

func NewApplicationRepository(db *gorm.DB) ApplicationRepository {
	return &applicationRepository{db: db}
}

func (r *applicationRepository) Create(ctx context.Context, app *model.LoanApplication) error {
	if err := GetDB(ctx, r.db).Create(app).Error; err != nil {
		return apperr.FromStore(err, "application")
	}
	return nil
}

func (r *applicationRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.LoanApplication, error) {
	var app model.LoanApplication
	if err := GetDB(ctx, r.db).
		Preload("Client").
		Preload("LoanProduct").
		Preload("Nbfcs", func(db *gorm.DB) *gorm.DB { return db.Order("seq asc") }).
		Preload("Nbfcs.Nbfc").
		First(&app, "id = ?", id).Error; err != nil {
		return nil, apperr.FromStore(err, "application")
	}
	return &app, nil
}

func (r *applicationRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.LoanApplication, error) {
	var app model.LoanApplication
	if err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&app, "id = ?", id).Error; err != nil {
		return nil, apperr.FromStore(err, "application")
	}
	return &app, nil
}

func (r *applicationRepository) Save(ctx context.Context, app *model.LoanApplication) error {
	if err := GetDB(ctx, r.db).Save(app).Error; err != nil {
		return apperr.FromStore(err, "application")
	}
	return nil
}

func (r *applicationRepository) List(ctx context.Context, filter ApplicationFilter) ([]model.LoanApplication, int64, error) {
	db := GetDB(ctx, r.db)

	build := func(q *gorm.DB) *gorm.DB {
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.ClientID != nil {
			q = q.Where("client_id = ?", *filter.ClientID)
		}
		if filter.KamID != nil {
			q = q.Where("client_id IN (?)",
				db.Session(&gorm.Session{NewDB: true}).Model(&model.Client{}).Select("id").Where("kam_id = ?", *filter.KamID))
		}
		if filter.NbfcID != nil {
			q = q.Where("id IN (?)",
				db.Session(&gorm.Session{NewDB: true}).Model(&model.NbfcAssignment{}).Select("application_id").Where("nbfc_id = ?", *filter.NbfcID))
		}
		return q
	}

	var total int64
	if err := build(db.Model(&model.LoanApplication{})).Count(&total).Error; err != nil {
		return nil, 0, apperr.FromStore(err, "application")
	}

	offset := (filter.Page - 1) * filter.Limit
	var apps []model.LoanApplication
	if err := build(db.Preload("Client").Preload("LoanProduct")).
		Order("created_at desc").
		Offset(offset).Limit(filter.Limit).
		Find(&apps).Error; err != nil {
		return nil, 0, apperr.FromStore(err, "application")
	}
	return apps, total, nil
}

func (r *applicationRepository) AppendHistory(ctx context.Context, entry *model.StatusHistoryEntry) error {
	if err := GetDB(ctx, r.db).Create(entry).Error; err != nil {
		return apperr.FromStore(err, "status history")
	}
	return nil
}

func (r *applicationRepository) ListHistory(ctx context.Context, applicationID uuid.UUID) ([]model.StatusHistoryEntry, error) {
	var entries []model.StatusHistoryEntry
	if err := GetDB(ctx, r.db).
		Where("application_id = ?", applicationID).
		Order("seq asc").
		Find(&entries).Error; err != nil {
		return nil, apperr.FromStore(err, "status history")
	}
	return entries, nil
}

func (r *applicationRepository) AssignNbfc(ctx context.Context, assignment *model.NbfcAssignment) error {
	if err := GetDB(ctx, r.db).Create(assignment).Error; err != nil {
		return apperr.FromStore(err, "nbfc assignment")
	}
	return nil
}

func (r *applicationRepository) ListNbfcs(ctx context.Context, applicationID uuid.UUID) ([]model.NbfcAssignment, error) {
	var assignments []model.NbfcAssignment
	if err := GetDB(ctx, r.db).
		Preload("Nbfc").
		Where("application_id = ?", applicationID).
		Order("seq asc").
		Find(&assignments).Error; err != nil {
		return nil, apperr.FromStore(err, "nbfc assignment")
	}
	return assignments, nil
}

func (r *applicationRepository) NextFileNumber(ctx context.Context, prefix string) (string, error) {
	db := GetDB(ctx, r.db)
	if err := db.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", prefix).Error; err != nil {
		return "", apperr.FromStore(err, "application")
	}

	var count int64
	if err := db.Model(&model.LoanApplication{}).
		Where("file_number LIKE ?", prefix+"%").
		Count(&count).Error; err != nil {
		return "", apperr.FromStore(err, "application")
	}
	return fmt.Sprintf("%s%05d", prefix, count+1), nil
}

func (r *applicationRepository) CountNbfcs(ctx context.Context, applicationID uuid.UUID) (int64, error) {
	var count int64
	if err := GetDB(ctx, r.db).Model(&model.NbfcAssignment{}).
		Where("application_id = ?", applicationID).
		Count(&count).Error; err != nil {
		return 0, apperr.FromStore(err, "nbfc assignment")
	}
	return count, nil
}
