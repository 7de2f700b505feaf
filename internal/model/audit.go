package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionUserLogin          = "USER_LOGIN"
	ActionUserRegister       = "USER_REGISTER"
	ActionTokenRefresh       = "TOKEN_REFRESH"
	ActionUserLogout         = "USER_LOGOUT"
	ActionRoleCreate         = "ROLE_CREATE"
	ActionRoleAssign         = "ROLE_ASSIGN"
	ActionRoleRemove         = "ROLE_REMOVE"
	ActionRolesReplace       = "ROLES_REPLACE"
	ActionPermissionCreate   = "PERMISSION_CREATE"
	ActionPermissionUpdate   = "PERMISSION_UPDATE"
	ActionPermissionDelete   = "PERMISSION_DELETE"
	ActionRolePermissionsSet = "ROLE_PERMISSIONS_SET"
	ActionTenantCreate       = "TENANT_CREATE"
	ActionTenantBootstrap    = "TENANT_BOOTSTRAP"
)

// AuditLog tracks who changed what, scoped to the tenant the change happened in.
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // nil for seed/bootstrap runs
	User       *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	TenantID   *uuid.UUID `gorm:"type:uuid;index" json:"tenant_id"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    string     `gorm:"type:jsonb" json:"details"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
