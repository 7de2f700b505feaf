package handler

import (
	"net/http"

	"shopauth/internal/middleware"
	"shopauth/internal/model"
	"shopauth/internal/service"
	"shopauth/internal/websocket"
	"shopauth/pkg/pagination"
	"shopauth/pkg/response"

	"github.com/gin-gonic/gin"
)

type TenantHandler struct {
	tenantService service.TenantService
	rbacService   service.RbacService
	audit         service.AuditService
	hub           *websocket.Hub
}

func NewTenantHandler(
	tenantService service.TenantService,
	rbacService service.RbacService,
	audit service.AuditService,
	hub *websocket.Hub,
) *TenantHandler {
	return &TenantHandler{tenantService: tenantService, rbacService: rbacService, audit: audit, hub: hub}
}

// RegisterRoutes binds tenant administration endpoints.
func (h *TenantHandler) RegisterRoutes(router *gin.RouterGroup) {
	tenants := router.Group("/tenants")
	{
		tenants.GET("/current", h.GetCurrentTenant)
		tenants.POST("", middleware.RequirePermission("manage:*"), h.CreateTenant)
		tenants.GET("", middleware.RequirePermission("manage:*"), h.ListTenants)
		tenants.GET("/:id", h.GetTenant)
		tenants.POST("/:id/bootstrap", h.Bootstrap)
	}
}

// GetCurrentTenant returns the tenant resolved for this request
// @Summary      Get current tenant
// @Tags         tenants
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response
// @Router       /tenants/current [get]
func (h *TenantHandler) GetCurrentTenant(c *gin.Context) {
	tenant, ok := middleware.CurrentTenant(c)
	if !ok {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Tenant context required"))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, tenant))
}

// CreateTenant creates a new tenant
// @Summary      Create tenant
// @Tags         tenants
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateTenantRequest  true  "Tenant Payload"
// @Success      201      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /tenants [post]
func (h *TenantHandler) CreateTenant(c *gin.Context) {
	actorID, current, ok := requestScope(c)
	if !ok {
		return
	}

	var req service.CreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	tenant, err := h.tenantService.CreateTenant(c.Request.Context(), req)
	if err != nil {
		status := service.HTTPStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	h.audit.Record(c.Request.Context(), ptrOf(actorID), ptrOf(current.ID), model.ActionTenantCreate, tenant.ID.String(), tenant.Slug, req)

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, tenant))
}

// ListTenants returns all tenants, paginated
// @Summary      List tenants
// @Tags         tenants
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page number"
// @Param        limit  query     int  false  "Page size"
// @Success      200    {object}  response.Response
// @Router       /tenants [get]
func (h *TenantHandler) ListTenants(c *gin.Context) {
	params := pagination.Parse(c)

	tenants, total, err := h.tenantService.ListTenants(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		status := service.HTTPStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"tenants": tenants,
		"total":   total,
		"page":    params.Page,
		"limit":   params.Limit,
	}))
}

// GetTenant returns one tenant, gated by tenant-management rights
// @Summary      Get tenant
// @Tags         tenants
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Tenant ID"
// @Success      200  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /tenants/{id} [get]
func (h *TenantHandler) GetTenant(c *gin.Context) {
	actorID, current, ok := requestScope(c)
	if !ok {
		return
	}
	tenantID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	if !h.rbacService.CanManageTenant(c.Request.Context(), actorID, current.ID, tenantID) {
		c.JSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied"))
		return
	}

	tenant, err := h.tenantService.GetTenant(c.Request.Context(), tenantID)
	if err != nil {
		status := service.HTTPStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, tenant))
}

// Bootstrap seeds the tenant's default permission catalog and role matrix
// @Summary      Bootstrap tenant RBAC
// @Description  Creates the default permission catalog and standard roles for the tenant. Safe to rerun.
// @Tags         tenants
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Tenant ID"
// @Success      200  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /tenants/{id}/bootstrap [post]
func (h *TenantHandler) Bootstrap(c *gin.Context) {
	actorID, current, ok := requestScope(c)
	if !ok {
		return
	}
	tenantID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	if !h.rbacService.CanManageTenant(c.Request.Context(), actorID, current.ID, tenantID) {
		c.JSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied"))
		return
	}

	roles, err := h.tenantService.Bootstrap(c.Request.Context(), tenantID)
	if err != nil {
		status := service.HTTPStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	h.audit.Record(c.Request.Context(), ptrOf(actorID), ptrOf(tenantID), model.ActionTenantBootstrap, tenantID.String(), "", nil)
	h.hub.BroadcastToTenant(tenantID, "tenant.bootstrapped", gin.H{"roles": len(roles)})

	c.JSON(http.StatusOK, response.Success(http.StatusOK, roles))
}
