package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"shopauth/internal/model"
	"shopauth/internal/service"
	"shopauth/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// permCacheEntry stores the user's effective permission names for one tenant
// with TTL.
type permCacheEntry struct {
	names     []string
	expiresAt time.Time
}

var (
	permCache    sync.Map // "userID:tenantID" -> permCacheEntry
	permCacheTTL = 5 * time.Minute
)

// Service references for access checks — set via InitAccessControl
var (
	acPermSvc service.PermissionService
	acRbacSvc service.RbacService
)

// InitAccessControl sets the services backing RequirePermission and RequireRole
func InitAccessControl(permSvc service.PermissionService, rbacSvc service.RbacService) {
	acPermSvc = permSvc
	acRbacSvc = rbacSvc
}

// RequirePermission passes when the caller holds ANY of the given permission
// names in the resolved tenant. Wildcard patterns like "manage:*" work on the
// query side, so routes typically list the concrete name plus the wildcard.
// Must run after Authenticate and ResolveTenant.
func RequirePermission(names ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, tenant, ok := accessContext(c)
		if !ok {
			return
		}

		perms, err := cachedUserPermissions(c.Request.Context(), userID, tenant.ID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to verify permissions"))
			return
		}

		for _, name := range names {
			for _, held := range perms {
				if held == name || patternMatches(held, name) {
					c.Next()
					return
				}
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: missing permission"))
	}
}

// RequireRole passes when the caller holds ANY of the given roles in the
// resolved tenant. Must run after Authenticate and ResolveTenant.
func RequireRole(roleNames ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, tenant, ok := accessContext(c)
		if !ok {
			return
		}

		for _, name := range roleNames {
			held, err := acRbacSvc.HasRole(c.Request.Context(), userID, name, tenant.ID)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to verify roles"))
				return
			}
			if held {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient role"))
	}
}

// ClearPermissionCache drops cached permissions for one user+tenant, or the
// whole cache when both ids are nil uuids. Call after any binding mutation.
func ClearPermissionCache(userID, tenantID uuid.UUID) {
	if userID == uuid.Nil && tenantID == uuid.Nil {
		permCache.Range(func(key, _ interface{}) bool {
			permCache.Delete(key)
			return true
		})
		return
	}
	permCache.Delete(cacheKey(userID, tenantID))
}

func accessContext(c *gin.Context) (uuid.UUID, *model.Tenant, bool) {
	userID, ok := CurrentUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
		return uuid.Nil, nil, false
	}
	tenant, ok := CurrentTenant(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Tenant context required"))
		return uuid.Nil, nil, false
	}
	return userID, tenant, true
}

func cacheKey(userID, tenantID uuid.UUID) string {
	return userID.String() + ":" + tenantID.String()
}

func cachedUserPermissions(ctx context.Context, userID, tenantID uuid.UUID) ([]string, error) {
	key := cacheKey(userID, tenantID)
	if entry, ok := permCache.Load(key); ok {
		cached := entry.(permCacheEntry)
		if time.Now().Before(cached.expiresAt) {
			return cached.names, nil
		}
	}

	perms, err := acPermSvc.GetUserPermissions(ctx, userID, tenantID)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(perms))
	for _, p := range perms {
		names = append(names, p.Name)
	}

	permCache.Store(key, permCacheEntry{names: names, expiresAt: time.Now().Add(permCacheTTL)})
	return names, nil
}

// patternMatches reports whether a held "action:resource" name satisfies a
// requested pattern where either side may be "*".
func patternMatches(held, pattern string) bool {
	hAction, hResource, ok := strings.Cut(held, ":")
	if !ok {
		return false
	}
	pAction, pResource, ok := strings.Cut(pattern, ":")
	if !ok {
		return false
	}
	actionOK := pAction == "*" || pAction == hAction
	resourceOK := pResource == "*" || pResource == hResource
	return actionOK && resourceOK
}
