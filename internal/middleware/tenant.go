package middleware

import (
	"net/http"
	"strings"

	"shopauth/internal/model"
	"shopauth/internal/repository"
	"shopauth/pkg/response"

	"github.com/gin-gonic/gin"
)

const ContextTenantKey = "tenant"

// tenantRepo holds the repository reference for tenant resolution — set via InitTenantMiddleware
var tenantRepo repository.TenantRepository

// InitTenantMiddleware sets the repository used by ResolveTenant
func InitTenantMiddleware(repo repository.TenantRepository) {
	tenantRepo = repo
}

// ResolveTenant binds the request to a tenant. Precedence: X-Tenant-Slug
// header, then subdomain of the configured base host, then exact custom
// domain match. Unresolvable requests get 404, inactive tenants 403.
func ResolveTenant(baseHost string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tenant *model.Tenant
		var err error

		if slug := c.GetHeader("X-Tenant-Slug"); slug != "" {
			tenant, err = tenantRepo.GetBySlug(c.Request.Context(), strings.ToLower(slug))
		} else {
			host := requestHost(c)
			if sub, ok := subdomainOf(host, baseHost); ok {
				tenant, err = tenantRepo.GetBySlug(c.Request.Context(), sub)
			} else {
				tenant, err = tenantRepo.GetByDomain(c.Request.Context(), host)
			}
		}

		if err != nil || tenant == nil {
			c.AbortWithStatusJSON(http.StatusNotFound, response.Error(http.StatusNotFound, "Tenant not found"))
			return
		}
		if !tenant.IsActive() {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Tenant is not active"))
			return
		}

		c.Set(ContextTenantKey, tenant)
		c.Next()
	}
}

// CurrentTenant returns the tenant bound by ResolveTenant.
func CurrentTenant(c *gin.Context) (*model.Tenant, bool) {
	v, ok := c.Get(ContextTenantKey)
	if !ok {
		return nil, false
	}
	tenant, ok := v.(*model.Tenant)
	return tenant, ok
}

func requestHost(c *gin.Context) string {
	host := c.Request.Host
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return strings.ToLower(host)
}

// subdomainOf extracts the first label when host is a strict subdomain of
// base, e.g. "acme.shop.example" under "shop.example" yields "acme".
func subdomainOf(host, base string) (string, bool) {
	if base == "" || host == base {
		return "", false
	}
	if !strings.HasSuffix(host, "."+base) {
		return "", false
	}
	prefix := strings.TrimSuffix(host, "."+base)
	if prefix == "" || strings.Contains(prefix, ".") {
		return "", false
	}
	return prefix, true
}
