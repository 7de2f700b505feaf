package model

import (
	"time"

	"github.com/google/uuid"
)

// RefreshTokenType is the discriminator stored alongside every refresh token row.
const RefreshTokenType = "jwt_refresh_token"

// RefreshToken is the persisted half of the token pair. Only a SHA-256 hash of
// the opaque token value is stored; the plaintext exists once, in the issue
// response. Rotation rewrites the row with a fresh hash and expiry; logout
// deletes it.
type RefreshToken struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	User       User       `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Type       string     `gorm:"type:varchar(40);not null;default:jwt_refresh_token" json:"type"`
	Hash       string     `gorm:"type:varchar(80);uniqueIndex;not null" json:"-"`
	Abilities  string     `gorm:"type:text;not null;default:'[\"*\"]'" json:"abilities"`
	ExpiresAt  time.Time  `gorm:"not null" json:"expires_at"`
	LastUsedAt *time.Time `json:"last_used_at"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// Expired reports whether the token is past its expiry.
func (t *RefreshToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
