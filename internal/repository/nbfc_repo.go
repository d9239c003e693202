package repository

import (
	"context"

	"lendflow/internal/apperr"
	"lendflow/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NbfcRepository provides access to lending partners.
type NbfcRepository interface {
	Create(ctx context.Context, nbfc *model.NbfcPartner) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.NbfcPartner, error)
	List(ctx context.Context, page, limit int) ([]model.NbfcPartner, int64, error)
}

type nbfcRepository struct {
	db *gorm.DB
}

func NewNbfcRepository(db *gorm.DB) NbfcRepository {
	return &nbfcRepository{db: db}
}

func (r *nbfcRepository) Create(ctx context.Context, nbfc *model.NbfcPartner) error {
	if err := GetDB(ctx, r.db).Create(nbfc).Error; err != nil {
		return apperr.FromStore(err, "nbfc partner")
	}
	return nil
}

func (r *nbfcRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.NbfcPartner, error) {
	var nbfc model.NbfcPartner
	if err := GetDB(ctx, r.db).First(&nbfc, "id = ?", id).Error; err != nil {
		return nil, apperr.FromStore(err, "nbfc partner")
	}
	return &nbfc, nil
}

func (r *nbfcRepository) List(ctx context.Context, page, limit int) ([]model.NbfcPartner, int64, error) {
	var nbfcs []model.NbfcPartner
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.NbfcPartner{}).Count(&total).Error; err != nil {
		return nil, 0, apperr.FromStore(err, "nbfc partner")
	}

	offset := (page - 1) * limit
	if err := db.Order("name asc").Offset(offset).Limit(limit).Find(&nbfcs).Error; err != nil {
		return nil, 0, apperr.FromStore(err, "nbfc partner")
	}
	return nbfcs, total, nil
}
