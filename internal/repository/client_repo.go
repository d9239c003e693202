package repository

import (
	"context"

	"lendflow/internal/apperr"
	"lendflow/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ClientRepository provides access to client accounts. GetByIDForUpdate is
// the per-client serialization point for ledger and payout operations: it
// must be called inside a transaction and holds a row lock until commit.
type ClientRepository interface {
	Create(ctx context.Context, client *model.Client) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Client, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Client, error)
	List(ctx context.Context, page, limit int) ([]model.Client, int64, error)
	Update(ctx context.Context, client *model.Client) error
}

type clientRepository struct {
	db *gorm.DB
}

func NewClientRepository(db *gorm.DB) ClientRepository {
	return &clientRepository{db: db}
}

func (r *clientRepository) Create(ctx context.Context, client *model.Client) error {
	if err := GetDB(ctx, r.db).Create(client).Error; err != nil {
		return apperr.FromStore(err, "client")
	}
	return nil
}

func (r *clientRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Client, error) {
	var client model.Client
	if err := GetDB(ctx, r.db).First(&client, "id = ?", id).Error; err != nil {
		return nil, apperr.FromStore(err, "client")
	}
	return &client, nil
}

func (r *clientRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Client, error) {
	var client model.Client
	if err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&client, "id = ?", id).Error; err != nil {
		return nil, apperr.FromStore(err, "client")
	}
	return &client, nil
}

func (r *clientRepository) List(ctx context.Context, page, limit int) ([]model.Client, int64, error) {
	var clients []model.Client
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Client{}).Count(&total).Error; err != nil {
		return nil, 0, apperr.FromStore(err, "client")
	}

	offset := (page - 1) * limit
	if err := db.Preload("Kam").Order("created_at desc").Offset(offset).Limit(limit).Find(&clients).Error; err != nil {
		return nil, 0, apperr.FromStore(err, "client")
	}
	return clients, total, nil
}

func (r *clientRepository) Update(ctx context.Context, client *model.Client) error {
	if err := GetDB(ctx, r.db).Save(client).Error; err != nil {
		return apperr.FromStore(err, "client")
	}
	return nil
}
