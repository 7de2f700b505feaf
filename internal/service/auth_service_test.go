package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"shopauth/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedTenantWithDefaults(t *testing.T, db *memDB, rbacSvc RbacService) *model.Tenant {
	t.Helper()
	tenant := &model.Tenant{ID: uuid.New(), Name: "Shop", Slug: "shop", Status: model.TenantStatusActive}
	db.tenants[tenant.ID] = tenant
	_, err := rbacSvc.CreateDefaultRoles(context.Background(), tenant.ID)
	require.NoError(t, err)
	return tenant
}

func TestRegisterAssignsDefaultRoleAndIssuesTokens(t *testing.T) {
	db, _, rbacSvc, authSvc, _ := newTestServices()
	ctx := context.Background()
	tenant := seedTenantWithDefaults(t, db, rbacSvc)

	user, tokens, err := authSvc.Register(ctx, RegisterRequest{
		Email:     "Jamie@Example.com",
		Password:  "correct-horse",
		FirstName: "Jamie",
		LastName:  "Doe",
	}, tenant)
	require.NoError(t, err)

	assert.Equal(t, "jamie@example.com", user.Email)
	assert.NotEqual(t, "correct-horse", user.Password)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.True(t, strings.HasPrefix(tokens.RefreshToken, "rf_"))

	roles, err := rbacSvc.GetUserRoles(ctx, user.ID, tenant.ID)
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, "customer", roles[0].Name)

	_, _, err = authSvc.Register(ctx, RegisterRequest{
		Email:     "jamie@example.com",
		Password:  "another-pass",
		FirstName: "Jamie",
		LastName:  "Doe",
	}, tenant)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestLogin(t *testing.T) {
	db, _, rbacSvc, authSvc, _ := newTestServices()
	ctx := context.Background()
	tenant := seedTenantWithDefaults(t, db, rbacSvc)

	registered, _, err := authSvc.Register(ctx, RegisterRequest{
		Email:     "sam@example.com",
		Password:  "super-secret",
		FirstName: "Sam",
		LastName:  "Lee",
	}, tenant)
	require.NoError(t, err)

	user, tokens, err := authSvc.Login(ctx, LoginRequest{Email: "sam@example.com", Password: "super-secret"})
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	assert.NotNil(t, user.LastLoginAt)
	assert.NotEmpty(t, tokens.AccessToken)

	// Wrong password and unknown email produce the same error.
	_, _, err = authSvc.Login(ctx, LoginRequest{Email: "sam@example.com", Password: "nope"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = authSvc.Login(ctx, LoginRequest{Email: "ghost@example.com", Password: "nope"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Suspended accounts are rejected after password verification.
	stored := db.users[registered.ID]
	stored.Status = model.UserStatusSuspended
	_, _, err = authSvc.Login(ctx, LoginRequest{Email: "sam@example.com", Password: "super-secret"})
	assert.ErrorIs(t, err, ErrAccountInactive)
}

func TestRefreshRotatesToken(t *testing.T) {
	db, _, rbacSvc, authSvc, _ := newTestServices()
	ctx := context.Background()
	tenant := seedTenantWithDefaults(t, db, rbacSvc)

	_, tokens, err := authSvc.Register(ctx, RegisterRequest{
		Email:     "rotate@example.com",
		Password:  "super-secret",
		FirstName: "Ro",
		LastName:  "Tate",
	}, tenant)
	require.NoError(t, err)

	rotated, err := authSvc.Refresh(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, tokens.RefreshToken, rotated.RefreshToken)
	assert.True(t, strings.HasPrefix(rotated.RefreshToken, "rf_"))

	// The row was rewritten, not duplicated, and records the use.
	require.Len(t, db.tokens, 1)
	for _, row := range db.tokens {
		assert.NotNil(t, row.LastUsedAt)
	}

	// The old value died with the rotation.
	_, err = authSvc.Refresh(ctx, tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// The new value works.
	_, err = authSvc.Refresh(ctx, rotated.RefreshToken)
	assert.NoError(t, err)
}

func TestRefreshRejectsExpiredAndMalformed(t *testing.T) {
	db, _, rbacSvc, authSvc, _ := newTestServices()
	ctx := context.Background()
	tenant := seedTenantWithDefaults(t, db, rbacSvc)

	_, tokens, err := authSvc.Register(ctx, RegisterRequest{
		Email:     "stale@example.com",
		Password:  "super-secret",
		FirstName: "St",
		LastName:  "Ale",
	}, tenant)
	require.NoError(t, err)

	_, err = authSvc.Refresh(ctx, "not-a-refresh-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	for _, row := range db.tokens {
		row.ExpiresAt = time.Now().Add(-time.Hour)
	}
	_, err = authSvc.Refresh(ctx, tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// The expired row was removed on sight.
	assert.Empty(t, db.tokens)
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	db, _, rbacSvc, authSvc, _ := newTestServices()
	ctx := context.Background()
	tenant := seedTenantWithDefaults(t, db, rbacSvc)

	_, tokens, err := authSvc.Register(ctx, RegisterRequest{
		Email:     "bye@example.com",
		Password:  "super-secret",
		FirstName: "By",
		LastName:  "Ee",
	}, tenant)
	require.NoError(t, err)

	require.NoError(t, authSvc.Logout(ctx, tokens.RefreshToken))
	assert.Empty(t, db.tokens)

	_, err = authSvc.Refresh(ctx, tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Logging out again, or with nothing, never fails.
	require.NoError(t, authSvc.Logout(ctx, tokens.RefreshToken))
	require.NoError(t, authSvc.Logout(ctx, ""))
}

func TestValidateAccessToken(t *testing.T) {
	db, _, rbacSvc, authSvc, _ := newTestServices()
	ctx := context.Background()
	tenant := seedTenantWithDefaults(t, db, rbacSvc)

	user, tokens, err := authSvc.Register(ctx, RegisterRequest{
		Email:     "claims@example.com",
		Password:  "super-secret",
		FirstName: "Cl",
		LastName:  "Aims",
	}, tenant)
	require.NoError(t, err)

	claims, err := authSvc.ValidateAccessToken(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.Subject)
	assert.Equal(t, "claims@example.com", claims.Email)

	_, err = authSvc.ValidateAccessToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
