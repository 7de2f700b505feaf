package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"shopauth/internal/model"
	"shopauth/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	defaultAccessTokenTTL  = time.Hour
	defaultRefreshTokenTTL = 7 * 24 * time.Hour

	refreshTokenPrefix = "rf_"
	refreshSecretBytes = 40
)

type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Phone     string `json:"phone"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenPair is what auth operations hand back: a signed JWT plus the opaque
// refresh token in its only plaintext appearance.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// AccessClaims is the JWT payload for access tokens. Subject carries the
// user id.
type AccessClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// AuthService implements registration, the login/refresh/logout token
// lifecycle and access-token validation.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest, tenant *model.Tenant) (*model.User, *TokenPair, error)
	Login(ctx context.Context, req LoginRequest) (*model.User, *TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	CurrentUser(ctx context.Context, userID uuid.UUID) (*model.User, error)
	ValidateAccessToken(tokenString string) (*AccessClaims, error)
}

type authService struct {
	userRepo  repository.UserRepository
	tokenRepo repository.RefreshTokenRepository
	rbacSvc   RbacService
	tx        repository.TransactionManager
}

func NewAuthService(
	userRepo repository.UserRepository,
	tokenRepo repository.RefreshTokenRepository,
	rbacSvc RbacService,
	tx repository.TransactionManager,
) AuthService {
	return &authService{userRepo: userRepo, tokenRepo: tokenRepo, rbacSvc: rbacSvc, tx: tx}
}

// GetJWTSecret returns the signing key for access tokens.
func GetJWTSecret() []byte {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "default_super_secret_key"
	}
	return []byte(secret)
}

func ttlFromEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs <= 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}

func AccessTokenTTL() time.Duration {
	return ttlFromEnv("ACCESS_TOKEN_TTL", defaultAccessTokenTTL)
}

func RefreshTokenTTL() time.Duration {
	return ttlFromEnv("REFRESH_TOKEN_TTL", defaultRefreshTokenTTL)
}

// Register creates the user with a bcrypt-hashed password, attaches it to the
// tenant, binds the tenant's default role and signs them in.
func (s *authService) Register(ctx context.Context, req RegisterRequest, tenant *model.Tenant) (*model.User, *TokenPair, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return nil, nil, fmt.Errorf("%w: email already registered", ErrConflict)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, err
	}

	user := &model.User{
		Email:    email,
		Password: string(hashed),
		Status:   model.UserStatusActive,
		Profile: &model.UserProfile{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Phone:     req.Phone,
		},
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.userRepo.Create(txCtx, user); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: email already registered", ErrConflict)
			}
			return err
		}
		if tenant != nil {
			if err := s.userRepo.AttachTenant(txCtx, user, tenant); err != nil {
				return err
			}
			if err := s.rbacSvc.AssignDefaultRole(txCtx, user.ID, tenant.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	pair, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Login verifies credentials and issues a fresh token pair. A missing user
// and a wrong password produce the same error.
func (s *authService) Login(ctx context.Context, req LoginRequest) (*model.User, *TokenPair, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	if !user.IsActive() {
		return nil, nil, ErrAccountInactive
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, nil, err
	}

	pair, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Refresh exchanges a valid refresh token for a new pair. The presented token
// is rotated in place: its row gets a new hash and expiry, so the old value
// dies the moment the new one is born. An expired row is removed on sight.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if !strings.HasPrefix(refreshToken, refreshTokenPrefix) {
		return nil, ErrInvalidToken
	}

	stored, err := s.tokenRepo.FindByHash(ctx, hashRefreshToken(refreshToken))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	now := time.Now()
	if stored.Expired(now) {
		_ = s.tokenRepo.Delete(ctx, stored.ID)
		return nil, ErrInvalidToken
	}

	user, err := s.userRepo.GetByID(ctx, stored.UserID)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if !user.IsActive() {
		return nil, ErrAccountInactive
	}

	plaintext, err := newRefreshTokenValue()
	if err != nil {
		return nil, err
	}

	stored.Hash = hashRefreshToken(plaintext)
	stored.ExpiresAt = now.Add(RefreshTokenTTL())
	stored.LastUsedAt = &now
	if err := s.tokenRepo.Update(ctx, stored); err != nil {
		return nil, err
	}

	access, expiresAt, err := s.signAccessToken(user)
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: plaintext, ExpiresAt: expiresAt}, nil
}

// Logout revokes the presented refresh token. Unknown tokens are ignored so
// logout never fails for an already signed-out client.
func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.tokenRepo.DeleteByHash(ctx, hashRefreshToken(refreshToken))
}

func (s *authService) CurrentUser(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	user, err := s.userRepo.GetByIDWithProfile(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, "user")
	}
	return user, nil
}

// ValidateAccessToken parses and verifies a JWT, enforcing the HS256 method.
func (s *authService) ValidateAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return GetJWTSecret(), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *authService) issueTokenPair(ctx context.Context, user *model.User) (*TokenPair, error) {
	access, expiresAt, err := s.signAccessToken(user)
	if err != nil {
		return nil, err
	}

	plaintext, err := newRefreshTokenValue()
	if err != nil {
		return nil, err
	}

	row := &model.RefreshToken{
		UserID:    user.ID,
		Type:      model.RefreshTokenType,
		Hash:      hashRefreshToken(plaintext),
		ExpiresAt: time.Now().Add(RefreshTokenTTL()),
	}
	if err := s.tokenRepo.Create(ctx, row); err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: plaintext, ExpiresAt: expiresAt}, nil
}

func (s *authService) signAccessToken(user *model.User) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(AccessTokenTTL())

	claims := AccessClaims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(GetJWTSecret())
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// newRefreshTokenValue produces the opaque client-side token: a fixed prefix
// over 40 random bytes, hex encoded.
func newRefreshTokenValue() (string, error) {
	buf := make([]byte, refreshSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return refreshTokenPrefix + hex.EncodeToString(buf), nil
}

func hashRefreshToken(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}
