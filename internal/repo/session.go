package repo

import (
	"context"
	"time"

	"github.com/amazingshop/userservice/internal/models"
)

// SetSession overwrites the stored refresh token and its expiry
// unconditionally. Login and registration use it to start a new session.
func (r *GormRepo) SetSession(ctx context.Context, userID uint, token string, expiry time.Time) error {
	result := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"refresh_token":        token,
			"refresh_token_expiry": expiry,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearSession nulls both session fields. Idempotent.
func (r *GormRepo) ClearSession(ctx context.Context, userID uint) error {
	return r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"refresh_token":        nil,
			"refresh_token_expiry": nil,
		}).Error
}

// RotateSession swaps the stored refresh token for a new one only when the
// stored value still equals the presented one. The guard in the WHERE clause
// makes the read-validate-write sequence a single compare-and-swap, so two
// concurrent refreshes presenting the same token can never both rotate.
func (r *GormRepo) RotateSession(ctx context.Context, userID uint, presented, next string, expiry time.Time) error {
	result := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND refresh_token = ?", userID, presented).
		Updates(map[string]any{
			"refresh_token":        next,
			"refresh_token_expiry": expiry,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSessionMismatch
	}
	return nil
}
