package repository

import (
	"context"
	"errors"

	"lendflow/internal/apperr"
	"lendflow/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QueryRepository provides access to query threads and their replies.
type QueryRepository interface {
	Create(ctx context.Context, q *model.Query) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Query, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Query, error)
	Save(ctx context.Context, q *model.Query) error
	AddReply(ctx context.Context, reply *model.QueryReply) error

	ListByTarget(ctx context.Context, targetID uuid.UUID) ([]model.Query, error)
	// HasOpenByInitiator reports whether targetID already has an unresolved
	// thread raised by the given actor.
	HasOpenByInitiator(ctx context.Context, targetID, raisedByID uuid.UUID) (bool, error)
	CountOpen(ctx context.Context, targetID uuid.UUID) (int64, error)
	CountOpenRaisedByRole(ctx context.Context, targetID uuid.UUID, role model.Role) (int64, error)
	CountOpenRaisedToRole(ctx context.Context, targetID uuid.UUID, role model.Role) (int64, error)
}

type queryRepository struct {
	db *gorm.DB
}

func NewQueryRepository(db *gorm.DB) QueryRepository {
	return &queryRepository{db: db}
}

func (r *queryRepository) Create(ctx context.Context, q *model.Query) error {
	if err := GetDB(ctx, r.db).Create(q).Error; err != nil {
		return apperr.FromStore(err, "query")
	}
	return nil
}

func (r *queryRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Query, error) {
	var q model.Query
	if err := GetDB(ctx, r.db).
		Preload("Replies", func(db *gorm.DB) *gorm.DB { return db.Order("seq asc") }).
		First(&q, "id = ?", id).Error; err != nil {
		return nil, apperr.FromStore(err, "query")
	}
	return &q, nil
}

func (r *queryRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Query, error) {
	var q model.Query
	if err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&q, "id = ?", id).Error; err != nil {
		return nil, apperr.FromStore(err, "query")
	}
	return &q, nil
}

func (r *queryRepository) Save(ctx context.Context, q *model.Query) error {
	if err := GetDB(ctx, r.db).Save(q).Error; err != nil {
		return apperr.FromStore(err, "query")
	}
	return nil
}

func (r *queryRepository) AddReply(ctx context.Context, reply *model.QueryReply) error {
	if err := GetDB(ctx, r.db).Create(reply).Error; err != nil {
		return apperr.FromStore(err, "query reply")
	}
	return nil
}

func (r *queryRepository) ListByTarget(ctx context.Context, targetID uuid.UUID) ([]model.Query, error) {
	var queries []model.Query
	if err := GetDB(ctx, r.db).
		Preload("Replies", func(db *gorm.DB) *gorm.DB { return db.Order("seq asc") }).
		Where("target_id = ?", targetID).
		Order("created_at asc").
		Find(&queries).Error; err != nil {
		return nil, apperr.FromStore(err, "query")
	}
	return queries, nil
}

func (r *queryRepository) HasOpenByInitiator(ctx context.Context, targetID, raisedByID uuid.UUID) (bool, error) {
	var q model.Query
	err := GetDB(ctx, r.db).
		Where("target_id = ? AND raised_by_id = ? AND resolved = ?", targetID, raisedByID, false).
		First(&q).Error
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, apperr.FromStore(err, "query")
}

func (r *queryRepository) CountOpen(ctx context.Context, targetID uuid.UUID) (int64, error) {
	var count int64
	if err := GetDB(ctx, r.db).Model(&model.Query{}).
		Where("target_id = ? AND resolved = ?", targetID, false).
		Count(&count).Error; err != nil {
		return 0, apperr.FromStore(err, "query")
	}
	return count, nil
}

func (r *queryRepository) CountOpenRaisedByRole(ctx context.Context, targetID uuid.UUID, role model.Role) (int64, error) {
	var count int64
	if err := GetDB(ctx, r.db).Model(&model.Query{}).
		Where("target_id = ? AND raised_by_role = ? AND resolved = ?", targetID, role, false).
		Count(&count).Error; err != nil {
		return 0, apperr.FromStore(err, "query")
	}
	return count, nil
}

func (r *queryRepository) CountOpenRaisedToRole(ctx context.Context, targetID uuid.UUID, role model.Role) (int64, error) {
	var count int64
	if err := GetDB(ctx, r.db).Model(&model.Query{}).
		Where("target_id = ? AND raised_to_role = ? AND resolved = ?", targetID, role, false).
		Count(&count).Error; err != nil {
		return 0, apperr.FromStore(err, "query")
	}
	return count, nil
}
