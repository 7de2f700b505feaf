package service

import (
	"context"
	"errors"
	"fmt"

	"shopauth/internal/model"
	"shopauth/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CreateRoleRequest struct {
	Name        string `json:"name" binding:"required"`
	DisplayName string `json:"display_name"`
	IsDefault   bool   `json:"is_default"`
}

// roleSeed declares one role of the default matrix. grants picks which of the
// tenant's permissions the role receives during bootstrap.
type roleSeed struct {
	name        string
	displayName string
	isDefault   bool
	grants      func(p model.Permission) bool
}

func in(s string, set ...string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

var defaultRoleSeeds = []roleSeed{
	{
		name:        "super_admin",
		displayName: "Super Administrator",
		grants:      func(p model.Permission) bool { return true },
	},
	{
		name:        "admin",
		displayName: "Administrator",
		grants: func(p model.Permission) bool {
			return !(p.Action == "manage" && p.Resource == "*")
		},
	},
	{
		name:        "manager",
		displayName: "Store Manager",
		grants: func(p model.Permission) bool {
			if in(p.Action, "read", "update") {
				return true
			}
			return p.Action == "manage" && in(p.Resource, "product", "order", "inventory")
		},
	},
	{
		name:        "staff",
		displayName: "Staff Member",
		grants: func(p model.Permission) bool {
			if p.Action == "read" {
				return true
			}
			if p.Action == "create" && in(p.Resource, "order", "cart") {
				return true
			}
			return p.Action == "update" && in(p.Resource, "order", "inventory")
		},
	},
	{
		name:        "customer",
		displayName: "Customer",
		isDefault:   true,
		grants: func(p model.Permission) bool {
			if p.Action == "read" && in(p.Resource, "product", "category") {
				return true
			}
			if p.Action == "create" && in(p.Resource, "cart", "order") {
				return true
			}
			return p.Action == "update" && p.Resource == "cart"
		},
	},
}

// RbacService manages roles and user<->role bindings within a tenant.
type RbacService interface {
	CreateRole(ctx context.Context, tenantID uuid.UUID, req CreateRoleRequest) (*model.Role, error)
	GetRole(ctx context.Context, id, tenantID uuid.UUID) (*model.Role, error)
	GetRolesByTenant(ctx context.Context, tenantID uuid.UUID) ([]model.Role, error)
	GetDefaultRole(ctx context.Context, tenantID uuid.UUID) (*model.Role, error)
	FindRoleByName(ctx context.Context, name string, tenantID uuid.UUID) (*model.Role, error)

	CreateDefaultRoles(ctx context.Context, tenantID uuid.UUID) ([]model.Role, error)

	AssignRole(ctx context.Context, userID uuid.UUID, roleName string, tenantID uuid.UUID) error
	RemoveRole(ctx context.Context, userID uuid.UUID, roleName string, tenantID uuid.UUID) error
	AssignRoles(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID, tenantID uuid.UUID) error
	AssignDefaultRole(ctx context.Context, userID, tenantID uuid.UUID) error
	GetUserRoles(ctx context.Context, userID, tenantID uuid.UUID) ([]model.Role, error)
	HasRole(ctx context.Context, userID uuid.UUID, roleName string, tenantID uuid.UUID) (bool, error)

	CanManageTenant(ctx context.Context, userID, currentTenantID, targetTenantID uuid.UUID) bool
}

type rbacService struct {
	roleRepo repository.RoleRepository
	permSvc  PermissionService
	tx       repository.TransactionManager
}

func NewRbacService(
	roleRepo repository.RoleRepository,
	permSvc PermissionService,
	tx repository.TransactionManager,
) RbacService {
	return &rbacService{roleRepo: roleRepo, permSvc: permSvc, tx: tx}
}

func (s *rbacService) CreateRole(ctx context.Context, tenantID uuid.UUID, req CreateRoleRequest) (*model.Role, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}

	if _, err := s.roleRepo.FindByName(ctx, req.Name, tenantID); err == nil {
		return nil, fmt.Errorf("%w: role %s", ErrConflict, req.Name)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName = req.Name
	}

	role := &model.Role{
		Name:        req.Name,
		DisplayName: displayName,
		IsDefault:   req.IsDefault,
		TenantID:    tenantID,
	}
	if err := s.roleRepo.Create(ctx, role); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: role %s", ErrConflict, req.Name)
		}
		return nil, err
	}
	return role, nil
}

func (s *rbacService) GetRole(ctx context.Context, id, tenantID uuid.UUID) (*model.Role, error) {
	role, err := s.roleRepo.FindByIDWithPermissions(ctx, id, tenantID)
	if err != nil {
		return nil, notFoundOr(err, "role")
	}
	return role, nil
}

func (s *rbacService) GetRolesByTenant(ctx context.Context, tenantID uuid.UUID) ([]model.Role, error) {
	return s.roleRepo.ListByTenant(ctx, tenantID)
}

func (s *rbacService) GetDefaultRole(ctx context.Context, tenantID uuid.UUID) (*model.Role, error) {
	role, err := s.roleRepo.GetDefault(ctx, tenantID)
	if err != nil {
		return nil, notFoundOr(err, "default role")
	}
	return role, nil
}

func (s *rbacService) FindRoleByName(ctx context.Context, name string, tenantID uuid.UUID) (*model.Role, error) {
	role, err := s.roleRepo.FindByName(ctx, name, tenantID)
	if err != nil {
		return nil, notFoundOr(err, "role")
	}
	return role, nil
}

// CreateDefaultRoles seeds the tenant's permission catalog and the standard
// role matrix, then binds permissions per role. Idempotent: roles are
// upserted by name and each role's bindings are replaced wholesale, so
// rerunning converges to the same state.
func (s *rbacService) CreateDefaultRoles(ctx context.Context, tenantID uuid.UUID) ([]model.Role, error) {
	if _, err := s.permSvc.CreateDefaultPermissions(ctx, tenantID); err != nil {
		return nil, err
	}

	perms, err := s.permSvc.GetPermissionsByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	roles := make([]model.Role, 0, len(defaultRoleSeeds))
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		for _, seed := range defaultRoleSeeds {
			role := &model.Role{
				Name:        seed.name,
				DisplayName: seed.displayName,
				IsDefault:   seed.isDefault,
				TenantID:    tenantID,
			}
			if err := s.roleRepo.UpsertByName(txCtx, role); err != nil {
				return err
			}

			var granted []model.Permission
			for _, p := range perms {
				if seed.grants(p) {
					granted = append(granted, p)
				}
			}
			if err := s.roleRepo.ReplacePermissions(txCtx, role, granted); err != nil {
				return err
			}

			role.Permissions = granted
			roles = append(roles, *role)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return roles, nil
}

// AssignRole grants a role by name. Idempotent: re-assigning an already held
// role succeeds without change.
func (s *rbacService) AssignRole(ctx context.Context, userID uuid.UUID, roleName string, tenantID uuid.UUID) error {
	role, err := s.FindRoleByName(ctx, roleName, tenantID)
	if err != nil {
		return err
	}
	return s.roleRepo.AttachUser(ctx, userID, role.ID, tenantID)
}

// RemoveRole revokes a role by name. Removing a role the user does not hold
// is a no-op.
func (s *rbacService) RemoveRole(ctx context.Context, userID uuid.UUID, roleName string, tenantID uuid.UUID) error {
	role, err := s.FindRoleByName(ctx, roleName, tenantID)
	if err != nil {
		return err
	}
	return s.roleRepo.DetachUser(ctx, userID, role.ID, tenantID)
}

// AssignRoles replaces the user's entire role set in the tenant. All ids must
// resolve within the tenant or nothing changes.
func (s *rbacService) AssignRoles(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID, tenantID uuid.UUID) error {
	roles, err := s.roleRepo.FindByIDs(ctx, roleIDs, tenantID)
	if err != nil {
		return err
	}
	if len(roles) != len(roleIDs) {
		return fmt.Errorf("%w: some roles do not exist in the specified tenant", ErrNotFound)
	}

	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.roleRepo.ClearUserRoles(txCtx, userID, tenantID); err != nil {
			return err
		}
		for _, role := range roles {
			if err := s.roleRepo.AttachUser(txCtx, userID, role.ID, tenantID); err != nil {
				return err
			}
		}
		return nil
	})
}

// AssignDefaultRole binds the tenant's default role to the user. A tenant
// without a default role is legal; the call is then a no-op.
func (s *rbacService) AssignDefaultRole(ctx context.Context, userID, tenantID uuid.UUID) error {
	role, err := s.roleRepo.GetDefault(ctx, tenantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	return s.roleRepo.AttachUser(ctx, userID, role.ID, tenantID)
}

func (s *rbacService) GetUserRoles(ctx context.Context, userID, tenantID uuid.UUID) ([]model.Role, error) {
	return s.roleRepo.ListForUser(ctx, userID, tenantID)
}

func (s *rbacService) HasRole(ctx context.Context, userID uuid.UUID, roleName string, tenantID uuid.UUID) (bool, error) {
	role, err := s.roleRepo.FindByName(ctx, roleName, tenantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return s.roleRepo.HasUserRole(ctx, userID, role.ID, tenantID)
}

// CanManageTenant decides whether the user may administer the target tenant.
// Holding the literal manage:* permission in the current tenant grants
// cross-tenant administration; otherwise the target must be the current
// tenant and the user needs manage:tenant there. The wildcard test is an
// exact name match on purpose: a query-side "manage:*" pattern would be
// satisfied by any manage permission.
func (s *rbacService) CanManageTenant(ctx context.Context, userID, currentTenantID, targetTenantID uuid.UUID) bool {
	perms, err := s.permSvc.GetUserPermissions(ctx, userID, currentTenantID)
	if err != nil {
		return false
	}
	for _, p := range perms {
		if p.Name == "manage:*" {
			return true
		}
	}
	if currentTenantID != targetTenantID {
		return false
	}
	return s.permSvc.HasPermission(ctx, userID, "manage:tenant", currentTenantID)
}
