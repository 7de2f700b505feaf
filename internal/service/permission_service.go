package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"shopauth/internal/model"
	"shopauth/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreatePermissionRequest struct {
	Resource    string `json:"resource" binding:"required"`
	Action      string `json:"action" binding:"required"`
	Description string `json:"description"`
}

type CreateBulkPermissionsRequest struct {
	Resource string   `json:"resource" binding:"required"`
	Actions  []string `json:"actions" binding:"required,min=1"`
}

type UpdatePermissionRequest struct {
	Description string `json:"description"`
}

// Default catalog created for a fresh tenant: 14 resources x 5 actions.
var (
	defaultResources = []string{
		"user", "role", "permission", "tenant",
		"product", "category", "order", "cart",
		"payment", "delivery", "analytics", "inventory",
		"customer", "report",
	}
	defaultActions = []string{"create", "read", "update", "delete", "manage"}
)

// --- Interface ---

// PermissionService is the permission registry plus the authorization engine.
// Registry mutations return typed errors; the Has* query family returns bool
// only and treats every lookup failure as deny.
type PermissionService interface {
	CreatePermission(ctx context.Context, tenantID uuid.UUID, req CreatePermissionRequest) (*model.Permission, error)
	CreateResourcePermissions(ctx context.Context, tenantID uuid.UUID, resource string, actions []string) ([]model.Permission, error)
	CreateDefaultPermissions(ctx context.Context, tenantID uuid.UUID) ([]model.Permission, error)
	UpdatePermission(ctx context.Context, id, tenantID uuid.UUID, req UpdatePermissionRequest) (*model.Permission, error)
	DeletePermission(ctx context.Context, id, tenantID uuid.UUID) error

	GetPermissionsByTenant(ctx context.Context, tenantID uuid.UUID) ([]model.Permission, error)
	GetPermissionsByResource(ctx context.Context, resource string, tenantID uuid.UUID) ([]model.Permission, error)
	GetPermissionsGroupedByResource(ctx context.Context, tenantID uuid.UUID) (map[string][]model.Permission, error)
	GetRolePermissions(ctx context.Context, roleID, tenantID uuid.UUID) ([]model.Permission, error)

	AssignPermissionsToRole(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID, tenantID uuid.UUID) error
	AddPermissionsToRole(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID, tenantID uuid.UUID) error
	RemovePermissionsFromRole(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID, tenantID uuid.UUID) error

	GetUserPermissions(ctx context.Context, userID, tenantID uuid.UUID) ([]model.Permission, error)
	HasPermission(ctx context.Context, userID uuid.UUID, name string, tenantID uuid.UUID) bool
	HasAnyPermission(ctx context.Context, userID uuid.UUID, names []string, tenantID uuid.UUID) bool
	HasAllPermissions(ctx context.Context, userID uuid.UUID, names []string, tenantID uuid.UUID) bool
	CanAccessResource(ctx context.Context, userID uuid.UUID, resource, action string, tenantID uuid.UUID) bool
}

type permissionService struct {
	permRepo repository.PermissionRepository
	roleRepo repository.RoleRepository
	tx       repository.TransactionManager
}

func NewPermissionService(
	permRepo repository.PermissionRepository,
	roleRepo repository.RoleRepository,
	tx repository.TransactionManager,
) PermissionService {
	return &permissionService{permRepo: permRepo, roleRepo: roleRepo, tx: tx}
}

// --- Registry ---

func (s *permissionService) CreatePermission(ctx context.Context, tenantID uuid.UUID, req CreatePermissionRequest) (*model.Permission, error) {
	resource := strings.TrimSpace(req.Resource)
	action := strings.TrimSpace(req.Action)
	if resource == "" || action == "" {
		return nil, fmt.Errorf("%w: resource and action are required", ErrInvalidInput)
	}

	if _, err := s.permRepo.FindByResourceAction(ctx, resource, action, tenantID); err == nil {
		return nil, fmt.Errorf("%w: permission %s:%s", ErrConflict, action, resource)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	perm := &model.Permission{
		Name:        model.PermissionName(action, resource),
		Resource:    resource,
		Action:      action,
		Description: req.Description,
		TenantID:    tenantID,
	}
	if perm.Description == "" {
		perm.Description = action + " " + resource
	}

	if err := s.permRepo.Create(ctx, perm); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: permission %s", ErrConflict, perm.Name)
		}
		return nil, err
	}
	return perm, nil
}

// CreateResourcePermissions inserts one permission per action for a resource.
// If any action already exists the whole batch is rejected with a conflict
// naming the collided actions; otherwise the insert is atomic.
func (s *permissionService) CreateResourcePermissions(ctx context.Context, tenantID uuid.UUID, resource string, actions []string) ([]model.Permission, error) {
	resource = strings.TrimSpace(resource)
	if resource == "" || len(actions) == 0 {
		return nil, fmt.Errorf("%w: resource and actions are required", ErrInvalidInput)
	}

	existing, err := s.permRepo.ListByResourceActions(ctx, resource, actions, tenantID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		collided := make([]string, 0, len(existing))
		for _, p := range existing {
			collided = append(collided, p.Action)
		}
		return nil, fmt.Errorf("%w: permissions already exist for %s: %s", ErrConflict, resource, strings.Join(collided, ", "))
	}

	perms := make([]model.Permission, 0, len(actions))
	for _, action := range actions {
		perms = append(perms, model.Permission{
			Name:        model.PermissionName(action, resource),
			Resource:    resource,
			Action:      action,
			Description: action + " " + resource,
			TenantID:    tenantID,
		})
	}

	created, err := s.permRepo.CreateBatch(ctx, perms)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: permissions already exist for %s", ErrConflict, resource)
		}
		return nil, err
	}
	return created, nil
}

// CreateDefaultPermissions seeds the e-commerce catalog for a fresh tenant.
// A conflict on one resource is swallowed and the loop continues, so
// reseeding is safe.
func (s *permissionService) CreateDefaultPermissions(ctx context.Context, tenantID uuid.UUID) ([]model.Permission, error) {
	var all []model.Permission
	for _, resource := range defaultResources {
		created, err := s.CreateResourcePermissions(ctx, tenantID, resource, defaultActions)
		if err != nil {
			if errors.Is(err, ErrConflict) {
				continue
			}
			return nil, err
		}
		all = append(all, created...)
	}
	return all, nil
}

func (s *permissionService) UpdatePermission(ctx context.Context, id, tenantID uuid.UUID, req UpdatePermissionRequest) (*model.Permission, error) {
	perm, err := s.permRepo.FindByID(ctx, id, tenantID)
	if err != nil {
		return nil, notFoundOr(err, "permission")
	}

	// Identity fields (resource, action, name) are immutable.
	perm.Description = req.Description
	if err := s.permRepo.Update(ctx, perm); err != nil {
		return nil, err
	}
	return perm, nil
}

// DeletePermission removes the permission and detaches it from every role in
// one transaction.
func (s *permissionService) DeletePermission(ctx context.Context, id, tenantID uuid.UUID) error {
	perm, err := s.permRepo.FindByID(ctx, id, tenantID)
	if err != nil {
		return notFoundOr(err, "permission")
	}

	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.permRepo.ClearRoleBindings(txCtx, perm); err != nil {
			return err
		}
		return s.permRepo.Delete(txCtx, perm)
	})
}

func (s *permissionService) GetPermissionsByTenant(ctx context.Context, tenantID uuid.UUID) ([]model.Permission, error) {
	return s.permRepo.ListByTenant(ctx, tenantID)
}

func (s *permissionService) GetPermissionsByResource(ctx context.Context, resource string, tenantID uuid.UUID) ([]model.Permission, error) {
	return s.permRepo.ListByResource(ctx, resource, tenantID)
}

func (s *permissionService) GetPermissionsGroupedByResource(ctx context.Context, tenantID uuid.UUID) (map[string][]model.Permission, error) {
	perms, err := s.permRepo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]model.Permission)
	for _, p := range perms {
		grouped[p.Resource] = append(grouped[p.Resource], p)
	}
	return grouped, nil
}

func (s *permissionService) GetRolePermissions(ctx context.Context, roleID, tenantID uuid.UUID) ([]model.Permission, error) {
	role, err := s.roleRepo.FindByIDWithPermissions(ctx, roleID, tenantID)
	if err != nil {
		return nil, notFoundOr(err, "role")
	}
	return role.Permissions, nil
}

// --- Role bindings ---

// resolveBinding validates that the role and every permission id belong to the
// tenant. A count mismatch means at least one id is missing or foreign; it
// surfaces as not-found without naming which, so other tenants' ids stay
// unguessable.
func (s *permissionService) resolveBinding(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID, tenantID uuid.UUID) (*model.Role, []model.Permission, error) {
	role, err := s.roleRepo.FindByID(ctx, roleID, tenantID)
	if err != nil {
		return nil, nil, notFoundOr(err, "role")
	}

	perms, err := s.permRepo.FindByIDs(ctx, permissionIDs, tenantID)
	if err != nil {
		return nil, nil, err
	}
	if len(perms) != len(permissionIDs) {
		return nil, nil, fmt.Errorf("%w: some permissions do not exist in the specified tenant", ErrNotFound)
	}

	return role, perms, nil
}

func (s *permissionService) AssignPermissionsToRole(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID, tenantID uuid.UUID) error {
	role, perms, err := s.resolveBinding(ctx, roleID, permissionIDs, tenantID)
	if err != nil {
		return err
	}
	// Replace is detach-all-then-attach; gorm runs it in one transaction.
	return s.roleRepo.ReplacePermissions(ctx, role, perms)
}

func (s *permissionService) AddPermissionsToRole(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID, tenantID uuid.UUID) error {
	role, perms, err := s.resolveBinding(ctx, roleID, permissionIDs, tenantID)
	if err != nil {
		return err
	}
	return s.roleRepo.AppendPermissions(ctx, role, perms)
}

func (s *permissionService) RemovePermissionsFromRole(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID, tenantID uuid.UUID) error {
	role, err := s.roleRepo.FindByID(ctx, roleID, tenantID)
	if err != nil {
		return notFoundOr(err, "role")
	}

	perms, err := s.permRepo.FindByIDs(ctx, permissionIDs, tenantID)
	if err != nil {
		return err
	}
	// Removing permissions the role never had is a no-op.
	return s.roleRepo.RemovePermissions(ctx, role, perms)
}

// --- Authorization engine ---

// GetUserPermissions unions permissions across every role the user holds in
// the tenant, de-duplicated by permission id.
func (s *permissionService) GetUserPermissions(ctx context.Context, userID, tenantID uuid.UUID) ([]model.Permission, error) {
	roles, err := s.roleRepo.ListForUser(ctx, userID, tenantID)
	if err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]struct{})
	var perms []model.Permission
	for _, role := range roles {
		for _, p := range role.Permissions {
			if _, ok := seen[p.ID]; ok {
				continue
			}
			seen[p.ID] = struct{}{}
			perms = append(perms, p)
		}
	}
	return perms, nil
}

// HasPermission reports whether any effective permission equals the name or
// matches it as a wildcard pattern. It is total: unknown tenants, users with
// zero bindings and lookup failures all answer false.
func (s *permissionService) HasPermission(ctx context.Context, userID uuid.UUID, name string, tenantID uuid.UUID) bool {
	perms, err := s.GetUserPermissions(ctx, userID, tenantID)
	if err != nil {
		return false
	}
	return anyMatches(perms, name)
}

func (s *permissionService) HasAnyPermission(ctx context.Context, userID uuid.UUID, names []string, tenantID uuid.UUID) bool {
	perms, err := s.GetUserPermissions(ctx, userID, tenantID)
	if err != nil {
		return false
	}
	for _, name := range names {
		if anyMatches(perms, name) {
			return true
		}
	}
	return false
}

func (s *permissionService) HasAllPermissions(ctx context.Context, userID uuid.UUID, names []string, tenantID uuid.UUID) bool {
	perms, err := s.GetUserPermissions(ctx, userID, tenantID)
	if err != nil {
		return false
	}
	for _, name := range names {
		if !anyMatches(perms, name) {
			return false
		}
	}
	return true
}

func (s *permissionService) CanAccessResource(ctx context.Context, userID uuid.UUID, resource, action string, tenantID uuid.UUID) bool {
	return s.HasPermission(ctx, userID, model.PermissionName(action, resource), tenantID)
}

func anyMatches(perms []model.Permission, name string) bool {
	for _, p := range perms {
		if p.Name == name || p.Matches(name) {
			return true
		}
	}
	return false
}

// notFoundOr converts a gorm record miss into the service-level not-found;
// other errors pass through unchanged.
func notFoundOr(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, entity)
	}
	return err
}
