package main

import (
	"context"
	"errors"
	"os"
	"time"

	"shopauth/internal/database"
	"shopauth/internal/model"
	"shopauth/internal/repository"
	"shopauth/internal/service"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Seeds a demo tenant with the default RBAC matrix, a platform super admin
// holding the manage:* wildcard, and one demo user per standard role.
// Idempotent: safe to rerun against a seeded database.
func main() {
	if err := godotenv.Load("configs/.env"); err != nil {
		logrus.Info("No configs/.env file found or error loading it")
	}

	db, err := database.NewConnection(databaseDSN())
	if err != nil {
		logrus.WithError(err).Fatal("Database connection failed")
	}

	ctx := context.Background()

	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	tenantRepo := repository.NewTenantRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	permRepo := repository.NewPermissionRepository(db)
	tokenRepo := repository.NewRefreshTokenRepository(db)

	permService := service.NewPermissionService(permRepo, roleRepo, txManager)
	rbacService := service.NewRbacService(roleRepo, permService, txManager)

	tenant := seedTenant(ctx, tenantRepo)

	if _, err := rbacService.CreateDefaultRoles(ctx, tenant.ID); err != nil {
		logrus.WithError(err).Fatal("Failed to seed default roles")
	}
	logrus.WithField("tenant", tenant.Slug).Info("Default roles and permissions seeded")

	seedWildcardPermission(ctx, permRepo, roleRepo, tenant.ID)

	users := []struct {
		email string
		role  string
	}{
		{"superadmin@demo.local", "super_admin"},
		{"admin@demo.local", "admin"},
		{"manager@demo.local", "manager"},
		{"staff@demo.local", "staff"},
		{"customer@demo.local", "customer"},
	}
	for _, u := range users {
		seedUser(ctx, userRepo, rbacService, tenant, u.email, u.role)
	}

	if removed, err := tokenRepo.DeleteExpired(ctx, time.Now()); err == nil && removed > 0 {
		logrus.WithField("count", removed).Info("Pruned expired refresh tokens")
	}

	logrus.Info("Seed completed")
}

func seedTenant(ctx context.Context, tenantRepo repository.TenantRepository) *model.Tenant {
	tenant, err := tenantRepo.GetBySlug(ctx, "demo")
	if err == nil {
		return tenant
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		logrus.WithError(err).Fatal("Failed to look up demo tenant")
	}

	tenant = &model.Tenant{
		Name:        "Demo Store",
		Slug:        "demo",
		Description: "Seeded demo tenant",
		Status:      model.TenantStatusActive,
	}
	if err := tenantRepo.Create(ctx, tenant); err != nil {
		logrus.WithError(err).Fatal("Failed to create demo tenant")
	}
	logrus.Info("Created demo tenant")
	return tenant
}

// seedWildcardPermission registers the manage:* permission and binds it to
// super_admin. The wildcard is an ordinary row with resource "*"; routes that
// accept it must ask for it explicitly.
func seedWildcardPermission(ctx context.Context, permRepo repository.PermissionRepository, roleRepo repository.RoleRepository, tenantID uuid.UUID) {
	perm, err := permRepo.FindByResourceAction(ctx, "*", "manage", tenantID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		perm = &model.Permission{
			Name:        model.PermissionName("manage", "*"),
			Resource:    "*",
			Action:      "manage",
			Description: "Full administrative access",
			TenantID:    tenantID,
		}
		if err := permRepo.Create(ctx, perm); err != nil {
			logrus.WithError(err).Fatal("Failed to create wildcard permission")
		}
	} else if err != nil {
		logrus.WithError(err).Fatal("Failed to look up wildcard permission")
	}

	role, err := roleRepo.FindByName(ctx, "super_admin", tenantID)
	if err != nil {
		logrus.WithError(err).Fatal("super_admin role missing after bootstrap")
	}
	if err := roleRepo.AppendPermissions(ctx, role, []model.Permission{*perm}); err != nil {
		logrus.WithError(err).Fatal("Failed to bind wildcard permission")
	}
}

func seedUser(
	ctx context.Context,
	userRepo repository.UserRepository,
	rbacService service.RbacService,
	tenant *model.Tenant,
	email, roleName string,
) {
	user, err := userRepo.GetByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		hashed, err := bcrypt.GenerateFromPassword([]byte("changeme123"), bcrypt.DefaultCost)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to hash seed password")
		}
		user = &model.User{
			Email:    email,
			Password: string(hashed),
			Status:   model.UserStatusActive,
		}
		if err := userRepo.Create(ctx, user); err != nil {
			logrus.WithError(err).WithField("email", email).Fatal("Failed to create seed user")
		}
		if err := userRepo.AttachTenant(ctx, user, tenant); err != nil {
			logrus.WithError(err).WithField("email", email).Fatal("Failed to attach seed user to tenant")
		}
	} else if err != nil {
		logrus.WithError(err).Fatal("Failed to look up seed user")
	}

	if err := rbacService.AssignRole(ctx, user.ID, roleName, tenant.ID); err != nil {
		logrus.WithError(err).WithField("email", email).Fatal("Failed to assign seed role")
	}
	logrus.WithFields(logrus.Fields{"email": email, "role": roleName}).Info("Seed user ready")
}

func databaseDSN() string {
	dbHost := envOr("DB_HOST", "localhost")
	dbPort := envOr("DB_PORT", "5432")
	dbUser := envOr("DB_USER", "postgres")
	dbPassword := envOr("DB_PASSWORD", "postgres")
	dbName := envOr("DB_NAME", "postgres")
	dbSslMode := envOr("DB_SSLMODE", "disable")

	return "postgres://" + dbUser + ":" + dbPassword + "@" + dbHost + ":" + dbPort + "/" + dbName + "?sslmode=" + dbSslMode
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
