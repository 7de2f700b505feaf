package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is a named, tenant-scoped bundle of permissions. At most one role per
// tenant should carry IsDefault; it is auto-assigned at registration.
type Role struct {
	ID          uuid.UUID    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name        string       `gorm:"type:varchar(50);not null;uniqueIndex:idx_roles_name_tenant" json:"name"`
	DisplayName string       `gorm:"type:varchar(255);not null" json:"display_name"`
	TenantID    uuid.UUID    `gorm:"type:uuid;not null;index;uniqueIndex:idx_roles_name_tenant" json:"tenant_id"`
	IsDefault   bool         `gorm:"default:false" json:"is_default"`
	Permissions []Permission `gorm:"many2many:role_permissions;" json:"permissions,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Permission is an atomic (resource, action) capability. Name is always the
// derived "action:resource" pair; it is never bound from request payloads.
type Permission struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(120);not null;uniqueIndex:idx_permissions_name_tenant" json:"name"`
	Resource    string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_permissions_res_action_tenant" json:"resource"`
	Action      string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_permissions_res_action_tenant" json:"action"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	TenantID    uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_permissions_name_tenant;uniqueIndex:idx_permissions_res_action_tenant" json:"tenant_id"`
	Roles       []Role    `gorm:"many2many:role_permissions;" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UserRole is the user<->role edge. Tenant id is stored explicitly even though
// the role already carries one: queries filter the edge table directly.
type UserRole struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	RoleID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"role_id"`
	TenantID  uuid.UUID `gorm:"type:uuid;primaryKey;index" json:"tenant_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// PermissionName derives the canonical "action:resource" identifier.
func PermissionName(action, resource string) string {
	return action + ":" + resource
}

// Matches reports whether the permission satisfies a two-token pattern of the
// form "action:resource", where either token may be the wildcard "*". The
// wildcard lives on the pattern side only: a stored "manage:*" permission
// matches the pattern "manage:*" exactly, not arbitrary manage patterns.
func (p Permission) Matches(pattern string) bool {
	actionPattern, resourcePattern, ok := strings.Cut(pattern, ":")
	if !ok {
		return false
	}

	actionMatches := actionPattern == "*" || actionPattern == p.Action
	resourceMatches := resourcePattern == "*" || resourcePattern == p.Resource

	return actionMatches && resourceMatches
}
