package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"shopauth/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubTenantRepo struct {
	bySlug   map[string]*model.Tenant
	byDomain map[string]*model.Tenant
}

func (s *stubTenantRepo) Create(ctx context.Context, tenant *model.Tenant) error { return nil }
func (s *stubTenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Tenant, error) {
	return nil, gorm.ErrRecordNotFound
}
func (s *stubTenantRepo) GetBySlug(ctx context.Context, slug string) (*model.Tenant, error) {
	if t, ok := s.bySlug[slug]; ok {
		return t, nil
	}
	return nil, gorm.ErrRecordNotFound
}
func (s *stubTenantRepo) GetByDomain(ctx context.Context, domain string) (*model.Tenant, error) {
	if t, ok := s.byDomain[domain]; ok {
		return t, nil
	}
	return nil, gorm.ErrRecordNotFound
}
func (s *stubTenantRepo) List(ctx context.Context, page, limit int) ([]model.Tenant, int64, error) {
	return nil, 0, nil
}
func (s *stubTenantRepo) Update(ctx context.Context, tenant *model.Tenant) error { return nil }
func (s *stubTenantRepo) Delete(ctx context.Context, id uuid.UUID) error         { return nil }

func tenantRouter(t *testing.T, repo *stubTenantRepo) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	InitTenantMiddleware(repo)

	router := gin.New()
	router.GET("/probe", ResolveTenant("shop.example"), func(c *gin.Context) {
		tenant, ok := CurrentTenant(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"slug": tenant.Slug})
	})
	return router
}

func TestResolveTenantHeaderWinsOverHost(t *testing.T) {
	acme := &model.Tenant{ID: uuid.New(), Slug: "acme", Status: model.TenantStatusActive}
	globex := &model.Tenant{ID: uuid.New(), Slug: "globex", Status: model.TenantStatusActive}
	repo := &stubTenantRepo{bySlug: map[string]*model.Tenant{"acme": acme, "globex": globex}}
	router := tenantRouter(t, repo)

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Host = "globex.shop.example"
	req.Header.Set("X-Tenant-Slug", "ACME")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "acme")
}

func TestResolveTenantBySubdomain(t *testing.T) {
	acme := &model.Tenant{ID: uuid.New(), Slug: "acme", Status: model.TenantStatusActive}
	repo := &stubTenantRepo{bySlug: map[string]*model.Tenant{"acme": acme}}
	router := tenantRouter(t, repo)

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Host = "acme.shop.example:8080"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "acme")
}

func TestResolveTenantByCustomDomain(t *testing.T) {
	domain := "store.acme.io"
	acme := &model.Tenant{ID: uuid.New(), Slug: "acme", Domain: &domain, Status: model.TenantStatusActive}
	repo := &stubTenantRepo{byDomain: map[string]*model.Tenant{domain: acme}}
	router := tenantRouter(t, repo)

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Host = "store.acme.io"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "acme")
}

func TestResolveTenantUnknownIs404(t *testing.T) {
	router := tenantRouter(t, &stubTenantRepo{})

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Host = "ghost.shop.example"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResolveTenantInactiveIs403(t *testing.T) {
	frozen := &model.Tenant{ID: uuid.New(), Slug: "frozen", Status: model.TenantStatusSuspended}
	repo := &stubTenantRepo{bySlug: map[string]*model.Tenant{"frozen": frozen}}
	router := tenantRouter(t, repo)

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("X-Tenant-Slug", "frozen")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSubdomainOf(t *testing.T) {
	tests := []struct {
		host string
		base string
		want string
		ok   bool
	}{
		{"acme.shop.example", "shop.example", "acme", true},
		{"shop.example", "shop.example", "", false},
		{"deep.acme.shop.example", "shop.example", "", false},
		{"acme.other.example", "shop.example", "", false},
		{"acme.shop.example", "", "", false},
	}
	for _, tt := range tests {
		sub, ok := subdomainOf(tt.host, tt.base)
		assert.Equal(t, tt.ok, ok, tt.host)
		assert.Equal(t, tt.want, sub, tt.host)
	}
}
