package repository

import (
	"context"

	"shopauth/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PermissionRepository defines tenant-scoped data access for permissions.
type PermissionRepository interface {
	Create(ctx context.Context, perm *model.Permission) error
	CreateBatch(ctx context.Context, perms []model.Permission) ([]model.Permission, error)
	FindByID(ctx context.Context, id, tenantID uuid.UUID) (*model.Permission, error)
	FindByResourceAction(ctx context.Context, resource, action string, tenantID uuid.UUID) (*model.Permission, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID, tenantID uuid.UUID) ([]model.Permission, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]model.Permission, error)
	ListByResource(ctx context.Context, resource string, tenantID uuid.UUID) ([]model.Permission, error)
	ListByResourceActions(ctx context.Context, resource string, actions []string, tenantID uuid.UUID) ([]model.Permission, error)
	Update(ctx context.Context, perm *model.Permission) error
	Delete(ctx context.Context, perm *model.Permission) error
	ClearRoleBindings(ctx context.Context, perm *model.Permission) error
}

type permissionRepository struct {
	db *gorm.DB
}

func NewPermissionRepository(db *gorm.DB) PermissionRepository {
	return &permissionRepository{db: db}
}

func (r *permissionRepository) Create(ctx context.Context, perm *model.Permission) error {
	return GetDB(ctx, r.db).Create(perm).Error
}

// CreateBatch inserts all permissions in a single statement; the insert is
// all-or-nothing so a unique-constraint hit leaves no partial rows.
func (r *permissionRepository) CreateBatch(ctx context.Context, perms []model.Permission) ([]model.Permission, error) {
	if len(perms) == 0 {
		return perms, nil
	}
	if err := GetDB(ctx, r.db).Create(&perms).Error; err != nil {
		return nil, err
	}
	return perms, nil
}

func (r *permissionRepository) FindByID(ctx context.Context, id, tenantID uuid.UUID) (*model.Permission, error) {
	var perm model.Permission
	if err := GetDB(ctx, r.db).Where("tenant_id = ?", tenantID).First(&perm, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &perm, nil
}

func (r *permissionRepository) FindByResourceAction(ctx context.Context, resource, action string, tenantID uuid.UUID) (*model.Permission, error) {
	var perm model.Permission
	err := GetDB(ctx, r.db).
		Where("resource = ? AND action = ? AND tenant_id = ?", resource, action, tenantID).
		First(&perm).Error
	if err != nil {
		return nil, err
	}
	return &perm, nil
}

func (r *permissionRepository) FindByIDs(ctx context.Context, ids []uuid.UUID, tenantID uuid.UUID) ([]model.Permission, error) {
	var perms []model.Permission
	if err := GetDB(ctx, r.db).Where("id IN ? AND tenant_id = ?", ids, tenantID).Find(&perms).Error; err != nil {
		return nil, err
	}
	return perms, nil
}

func (r *permissionRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]model.Permission, error) {
	var perms []model.Permission
	err := GetDB(ctx, r.db).
		Where("tenant_id = ?", tenantID).
		Order("resource asc, action asc").
		Find(&perms).Error
	if err != nil {
		return nil, err
	}
	return perms, nil
}

func (r *permissionRepository) ListByResource(ctx context.Context, resource string, tenantID uuid.UUID) ([]model.Permission, error) {
	var perms []model.Permission
	err := GetDB(ctx, r.db).
		Where("resource = ? AND tenant_id = ?", resource, tenantID).
		Order("action asc").
		Find(&perms).Error
	if err != nil {
		return nil, err
	}
	return perms, nil
}

func (r *permissionRepository) ListByResourceActions(ctx context.Context, resource string, actions []string, tenantID uuid.UUID) ([]model.Permission, error) {
	var perms []model.Permission
	err := GetDB(ctx, r.db).
		Where("resource = ? AND action IN ? AND tenant_id = ?", resource, actions, tenantID).
		Find(&perms).Error
	if err != nil {
		return nil, err
	}
	return perms, nil
}

func (r *permissionRepository) Update(ctx context.Context, perm *model.Permission) error {
	return GetDB(ctx, r.db).Save(perm).Error
}

func (r *permissionRepository) Delete(ctx context.Context, perm *model.Permission) error {
	return GetDB(ctx, r.db).Delete(perm).Error
}

// ClearRoleBindings detaches the permission from every role holding it.
// Called before delete so no role keeps a dangling edge.
func (r *permissionRepository) ClearRoleBindings(ctx context.Context, perm *model.Permission) error {
	return GetDB(ctx, r.db).Model(perm).Association("Roles").Clear()
}
