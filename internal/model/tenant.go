package model

import (
	"time"

	"github.com/google/uuid"
)

// Tenant lifecycle statuses
const (
	TenantStatusActive    = "active"
	TenantStatusInactive  = "inactive"
	TenantStatusSuspended = "suspended"
)

// Tenant is the isolation boundary. Every RBAC entity carries a tenant_id and
// every query filters by it; that filter is the only partitioning mechanism.
type Tenant struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	Slug        string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"slug"`
	Domain      *string   `gorm:"type:varchar(255);uniqueIndex" json:"domain,omitempty"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	Status      string    `gorm:"type:varchar(20);not null;default:active" json:"status"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsActive reports whether requests may resolve to this tenant.
func (t *Tenant) IsActive() bool {
	return t.Status == TenantStatusActive
}
