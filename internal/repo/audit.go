package repo

import (
	"context"

	"github.com/Skotchmaster/galenos/internal/models"
)

func (r *GormRepo) CreateAudit(ctx context.Context, entry *models.AuditLog) error {
	return r.DB.WithContext(ctx).Create(entry).Error
}

// ListAudit returns the newest entries first.
func (r *GormRepo) ListAudit(ctx context.Context, f AuditFilter) ([]models.AuditLog, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}

	q := r.DB.WithContext(ctx).Model(&models.AuditLog{})
	if f.Entity != "" {
		q = q.Where("entity = ?", f.Entity)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}

	var out []models.AuditLog
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
