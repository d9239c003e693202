package repository

import (
	"context"

	"lendflow/internal/apperr"
	"lendflow/internal/model"

	"gorm.io/gorm"
)

// AuditRepository appends and lists audit rows. Append is always called from
// inside the transaction of the operation it records.
type AuditRepository interface {
	Append(ctx context.Context, entry *model.AuditLog) error
	List(ctx context.Context, action string, page, limit int) ([]model.AuditLog, int64, error)
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Append(ctx context.Context, entry *model.AuditLog) error {
	if err := GetDB(ctx, r.db).Create(entry).Error; err != nil {
		return apperr.FromStore(err, "audit log")
	}
	return nil
}

func (r *auditRepository) List(ctx context.Context, action string, page, limit int) ([]model.AuditLog, int64, error) {
	db := GetDB(ctx, r.db)
	query := db.Model(&model.AuditLog{})
	if action != "" {
		query = query.Where("action = ?", action)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperr.FromStore(err, "audit log")
	}

	offset := (page - 1) * limit
	fetch := db.Preload("User").Order("created_at desc").Offset(offset).Limit(limit)
	if action != "" {
		fetch = fetch.Where("action = ?", action)
	}
	var logs []model.AuditLog
	if err := fetch.Find(&logs).Error; err != nil {
		return nil, 0, apperr.FromStore(err, "audit log")
	}
	return logs, total, nil
}
