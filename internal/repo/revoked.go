package repo

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/galenos/internal/models"
)

func (r *GormRepo) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var count int64
	if err := r.DB.WithContext(ctx).Model(&models.RevokedToken{}).
		Where("jti = ?", jti).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Revoke records jti as spent. Revoking an already revoked jti is a no-op.
func (r *GormRepo) Revoke(ctx context.Context, p RevokeParams) error {
	return r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "jti"}}, DoNothing: true}).
		Create(record(p)).Error
}

// ClaimRefresh is the strict form of Revoke used by rotation: of any number of
// concurrent callers with the same jti exactly one succeeds, the rest get
// ErrAlreadyRevoked.
func (r *GormRepo) ClaimRefresh(ctx context.Context, p RevokeParams) error {
	if err := r.DB.WithContext(ctx).Create(record(p)).Error; err != nil {
		if IsUniqueViolation(err) {
			return ErrAlreadyRevoked
		}
		return err
	}
	return nil
}

// PruneRevoked drops records whose token expired before cutoff. Records with
// no expiry are kept.
func (r *GormRepo) PruneRevoked(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", cutoff).
		Delete(&models.RevokedToken{})
	return res.RowsAffected, res.Error
}

func record(p RevokeParams) *models.RevokedToken {
	if p.RevokedAt.IsZero() {
		p.RevokedAt = time.Now().UTC()
	}
	return &models.RevokedToken{
		JTI:       p.JTI,
		TokenType: p.TokenType,
		RevokedAt: p.RevokedAt,
		ExpiresAt: p.ExpiresAt,
		UserID:    p.UserID,
	}
}
