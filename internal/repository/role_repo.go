package repository

import (
	"context"

	"shopauth/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RoleRepository defines data access for roles, role<->permission bindings and
// user<->role edges. Every read is tenant-scoped: a role id from another
// tenant behaves exactly like a missing role.
type RoleRepository interface {
	Create(ctx context.Context, role *model.Role) error
	Update(ctx context.Context, role *model.Role) error
	UpsertByName(ctx context.Context, role *model.Role) error
	FindByID(ctx context.Context, id, tenantID uuid.UUID) (*model.Role, error)
	FindByIDWithPermissions(ctx context.Context, id, tenantID uuid.UUID) (*model.Role, error)
	FindByName(ctx context.Context, name string, tenantID uuid.UUID) (*model.Role, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID, tenantID uuid.UUID) ([]model.Role, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]model.Role, error)
	GetDefault(ctx context.Context, tenantID uuid.UUID) (*model.Role, error)

	ReplacePermissions(ctx context.Context, role *model.Role, perms []model.Permission) error
	AppendPermissions(ctx context.Context, role *model.Role, perms []model.Permission) error
	RemovePermissions(ctx context.Context, role *model.Role, perms []model.Permission) error

	ListForUser(ctx context.Context, userID, tenantID uuid.UUID) ([]model.Role, error)
	AttachUser(ctx context.Context, userID, roleID, tenantID uuid.UUID) error
	DetachUser(ctx context.Context, userID, roleID, tenantID uuid.UUID) error
	ClearUserRoles(ctx context.Context, userID, tenantID uuid.UUID) error
	HasUserRole(ctx context.Context, userID, roleID, tenantID uuid.UUID) (bool, error)
}

type roleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) Create(ctx context.Context, role *model.Role) error {
	return GetDB(ctx, r.db).Create(role).Error
}

func (r *roleRepository) Update(ctx context.Context, role *model.Role) error {
	return GetDB(ctx, r.db).Save(role).Error
}

// UpsertByName finds a role by (name, tenant_id) or creates it. Used by the
// tenant bootstrap so reseeding never duplicates roles.
func (r *roleRepository) UpsertByName(ctx context.Context, role *model.Role) error {
	return GetDB(ctx, r.db).
		Where("name = ? AND tenant_id = ?", role.Name, role.TenantID).
		Attrs(model.Role{DisplayName: role.DisplayName, IsDefault: role.IsDefault}).
		FirstOrCreate(role).Error
}

func (r *roleRepository) FindByID(ctx context.Context, id, tenantID uuid.UUID) (*model.Role, error) {
	var role model.Role
	if err := GetDB(ctx, r.db).Where("tenant_id = ?", tenantID).First(&role, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) FindByIDWithPermissions(ctx context.Context, id, tenantID uuid.UUID) (*model.Role, error) {
	var role model.Role
	if err := GetDB(ctx, r.db).Preload("Permissions").Where("tenant_id = ?", tenantID).First(&role, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) FindByName(ctx context.Context, name string, tenantID uuid.UUID) (*model.Role, error) {
	var role model.Role
	if err := GetDB(ctx, r.db).Where("name = ? AND tenant_id = ?", name, tenantID).First(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) FindByIDs(ctx context.Context, ids []uuid.UUID, tenantID uuid.UUID) ([]model.Role, error) {
	var roles []model.Role
	if err := GetDB(ctx, r.db).Where("id IN ? AND tenant_id = ?", ids, tenantID).Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *roleRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]model.Role, error) {
	var roles []model.Role
	if err := GetDB(ctx, r.db).Preload("Permissions").Where("tenant_id = ?", tenantID).Order("name asc").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *roleRepository) GetDefault(ctx context.Context, tenantID uuid.UUID) (*model.Role, error) {
	var role model.Role
	if err := GetDB(ctx, r.db).Where("tenant_id = ? AND is_default = ?", tenantID, true).First(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) ReplacePermissions(ctx context.Context, role *model.Role, perms []model.Permission) error {
	return GetDB(ctx, r.db).Model(role).Association("Permissions").Replace(perms)
}

func (r *roleRepository) AppendPermissions(ctx context.Context, role *model.Role, perms []model.Permission) error {
	return GetDB(ctx, r.db).Model(role).Association("Permissions").Append(perms)
}

func (r *roleRepository) RemovePermissions(ctx context.Context, role *model.Role, perms []model.Permission) error {
	return GetDB(ctx, r.db).Model(role).Association("Permissions").Delete(perms)
}

// ListForUser returns all roles the user holds in the tenant, permissions
// preloaded. The join filters on the edge table's own tenant_id column.
func (r *roleRepository) ListForUser(ctx context.Context, userID, tenantID uuid.UUID) ([]model.Role, error) {
	var roles []model.Role
	err := GetDB(ctx, r.db).
		Preload("Permissions").
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ? AND user_roles.tenant_id = ?", userID, tenantID).
		Find(&roles).Error
	if err != nil {
		return nil, err
	}
	return roles, nil
}

// AttachUser is idempotent: assigning a role the user already holds in the
// tenant is a no-op.
func (r *roleRepository) AttachUser(ctx context.Context, userID, roleID, tenantID uuid.UUID) error {
	edge := model.UserRole{UserID: userID, RoleID: roleID, TenantID: tenantID}
	return GetDB(ctx, r.db).Where(edge).FirstOrCreate(&model.UserRole{}).Error
}

func (r *roleRepository) DetachUser(ctx context.Context, userID, roleID, tenantID uuid.UUID) error {
	return GetDB(ctx, r.db).
		Where("user_id = ? AND role_id = ? AND tenant_id = ?", userID, roleID, tenantID).
		Delete(&model.UserRole{}).Error
}

func (r *roleRepository) ClearUserRoles(ctx context.Context, userID, tenantID uuid.UUID) error {
	return GetDB(ctx, r.db).
		Where("user_id = ? AND tenant_id = ?", userID, tenantID).
		Delete(&model.UserRole{}).Error
}

func (r *roleRepository) HasUserRole(ctx context.Context, userID, roleID, tenantID uuid.UUID) (bool, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.UserRole{}).
		Where("user_id = ? AND role_id = ? AND tenant_id = ?", userID, roleID, tenantID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
