package repository

import (
	"context"

	"lendflow/internal/apperr"
	"lendflow/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProductRepository provides access to the loan product catalog.
type ProductRepository interface {
	Create(ctx context.Context, product *model.LoanProduct) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.LoanProduct, error)
	GetByCode(ctx context.Context, code string) (*model.LoanProduct, error)
	ListActive(ctx context.Context) ([]model.LoanProduct, error)
}

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, product *model.LoanProduct) error {
	if err := GetDB(ctx, r.db).Create(product).Error; err != nil {
		return apperr.FromStore(err, "loan product")
	}
	return nil
}

func (r *productRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.LoanProduct, error) {
	var product model.LoanProduct
	if err := GetDB(ctx, r.db).First(&product, "id = ?", id).Error; err != nil {
		return nil, apperr.FromStore(err, "loan product")
	}
	return &product, nil
}

func (r *productRepository) GetByCode(ctx context.Context, code string) (*model.LoanProduct, error) {
	var product model.LoanProduct
	if err := GetDB(ctx, r.db).First(&product, "code = ?", code).Error; err != nil {
		return nil, apperr.FromStore(err, "loan product")
	}
	return &product, nil
}

func (r *productRepository) ListActive(ctx context.Context) ([]model.LoanProduct, error) {
	var products []model.LoanProduct
	if err := GetDB(ctx, r.db).Where("is_active = ?", true).Order("code asc").Find(&products).Error; err != nil {
		return nil, apperr.FromStore(err, "loan product")
	}
	return products, nil
}
