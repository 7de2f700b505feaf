package repository

import (
	"context"
	"time"

	"shopauth/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RefreshTokenRepository stores the hashed half of issued refresh tokens.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *model.RefreshToken) error
	FindByHash(ctx context.Context, hash string) (*model.RefreshToken, error)
	Update(ctx context.Context, token *model.RefreshToken) error
	TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByHash(ctx context.Context, hash string) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type refreshTokenRepository struct {
	db *gorm.DB
}

func NewRefreshTokenRepository(db *gorm.DB) RefreshTokenRepository {
	return &refreshTokenRepository{db: db}
}

func (r *refreshTokenRepository) Create(ctx context.Context, token *model.RefreshToken) error {
	return GetDB(ctx, r.db).Create(token).Error
}

func (r *refreshTokenRepository) FindByHash(ctx context.Context, hash string) (*model.RefreshToken, error) {
	var token model.RefreshToken
	if err := GetDB(ctx, r.db).First(&token, "hash = ?", hash).Error; err != nil {
		return nil, err
	}
	return &token, nil
}

// Update saves the full row; used when a token is rotated in place.
func (r *refreshTokenRepository) Update(ctx context.Context, token *model.RefreshToken) error {
	return GetDB(ctx, r.db).Save(token).Error
}

func (r *refreshTokenRepository) TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	return GetDB(ctx, r.db).Model(&model.RefreshToken{}).
		Where("id = ?", id).
		Update("last_used_at", at).Error
}

func (r *refreshTokenRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.RefreshToken{}).Error
}

func (r *refreshTokenRepository) DeleteByHash(ctx context.Context, hash string) error {
	return GetDB(ctx, r.db).Where("hash = ?", hash).Delete(&model.RefreshToken{}).Error
}

// DeleteExpired removes rows past their expiry. Run from the seed/maintenance
// command, not on the request path.
func (r *refreshTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res := GetDB(ctx, r.db).Where("expires_at < ?", before).Delete(&model.RefreshToken{})
	return res.RowsAffected, res.Error
}
