package repo

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/tasktracker/internal/models"
)

// Revoke records jti as logged out. Revoking the same jti again is a no-op.
func (r *GormRepo) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	marker := models.RevokedToken{
		JTI:       jti,
		RevokedAt: time.Now().UTC(),
		ExpiresAt: expiresAt.UTC(),
	}
	return translate(r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "jti"}}, DoNothing: true}).
		Create(&marker).Error)
}

func (r *GormRepo) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var count int64
	if err := r.DB.WithContext(ctx).Model(&models.RevokedToken{}).
		Where("jti = ?", jti).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// PruneRevoked drops markers of tokens that expired before the given time.
// Such tokens already fail verification on expiry alone.
func (r *GormRepo) PruneRevoked(ctx context.Context, before time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).Where("expires_at < ?", before.UTC()).Delete(&models.RevokedToken{})
	return res.RowsAffected, res.Error
}
