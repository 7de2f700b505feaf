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

type CreateTenantRequest struct {
	Name   string  `json:"name" binding:"required"`
	Slug   string  `json:"slug" binding:"required"`
	Domain *string `json:"domain"`
}

// TenantService manages tenant records and the RBAC bootstrap for new tenants.
type TenantService interface {
	CreateTenant(ctx context.Context, req CreateTenantRequest) (*model.Tenant, error)
	GetTenant(ctx context.Context, id uuid.UUID) (*model.Tenant, error)
	GetTenantBySlug(ctx context.Context, slug string) (*model.Tenant, error)
	ListTenants(ctx context.Context, page, limit int) ([]model.Tenant, int64, error)
	Bootstrap(ctx context.Context, tenantID uuid.UUID) ([]model.Role, error)
}

type tenantService struct {
	tenantRepo repository.TenantRepository
	rbacSvc    RbacService
}

func NewTenantService(tenantRepo repository.TenantRepository, rbacSvc RbacService) TenantService {
	return &tenantService{tenantRepo: tenantRepo, rbacSvc: rbacSvc}
}

func (s *tenantService) CreateTenant(ctx context.Context, req CreateTenantRequest) (*model.Tenant, error) {
	slug := strings.ToLower(strings.TrimSpace(req.Slug))
	if slug == "" {
		return nil, fmt.Errorf("%w: slug is required", ErrInvalidInput)
	}

	if _, err := s.tenantRepo.GetBySlug(ctx, slug); err == nil {
		return nil, fmt.Errorf("%w: tenant slug %s", ErrConflict, slug)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	tenant := &model.Tenant{
		Name:   req.Name,
		Slug:   slug,
		Domain: req.Domain,
		Status: model.TenantStatusActive,
	}
	if err := s.tenantRepo.Create(ctx, tenant); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: tenant slug %s", ErrConflict, slug)
		}
		return nil, err
	}
	return tenant, nil
}

func (s *tenantService) GetTenant(ctx context.Context, id uuid.UUID) (*model.Tenant, error) {
	tenant, err := s.tenantRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}
	return tenant, nil
}

func (s *tenantService) GetTenantBySlug(ctx context.Context, slug string) (*model.Tenant, error) {
	tenant, err := s.tenantRepo.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}
	return tenant, nil
}

func (s *tenantService) ListTenants(ctx context.Context, page, limit int) ([]model.Tenant, int64, error) {
	return s.tenantRepo.List(ctx, page, limit)
}

// Bootstrap seeds the tenant's default permission catalog and role matrix.
func (s *tenantService) Bootstrap(ctx context.Context, tenantID uuid.UUID) ([]model.Role, error) {
	if _, err := s.GetTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	return s.rbacSvc.CreateDefaultRoles(ctx, tenantID)
}
