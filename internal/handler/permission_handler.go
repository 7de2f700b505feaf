package handler

import (
	"context"
	"net/http"

	"shopauth/internal/middleware"
	"shopauth/internal/model"
	"shopauth/internal/service"
	"shopauth/internal/websocket"
	"shopauth/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type PermissionHandler struct {
	permService service.PermissionService
	audit       service.AuditService
	hub         *websocket.Hub
}

func NewPermissionHandler(permService service.PermissionService, audit service.AuditService, hub *websocket.Hub) *PermissionHandler {
	return &PermissionHandler{permService: permService, audit: audit, hub: hub}
}

// RegisterRoutes binds permission registry and role-binding endpoints.
func (h *PermissionHandler) RegisterRoutes(router *gin.RouterGroup) {
	perms := router.Group("/permissions")
	{
		perms.GET("", middleware.RequirePermission("read:permission", "manage:permission", "manage:*"), h.ListPermissions)
		perms.GET("/grouped", middleware.RequirePermission("read:permission", "manage:permission", "manage:*"), h.ListGrouped)
		perms.GET("/resource/:resource", middleware.RequirePermission("read:permission", "manage:permission", "manage:*"), h.ListByResource)
		perms.POST("", middleware.RequirePermission("manage:permission", "manage:*"), h.CreatePermission)
		perms.POST("/bulk", middleware.RequirePermission("manage:permission", "manage:*"), h.CreateBulk)
		perms.PUT("/:id", middleware.RequirePermission("manage:permission", "manage:*"), h.UpdatePermission)
		perms.DELETE("/:id", middleware.RequirePermission("manage:permission", "manage:*"), h.DeletePermission)
	}

	bindings := router.Group("/permissions/roles/:roleId")
	bindings.Use(middleware.RequirePermission("manage:role", "manage:*"))
	{
		bindings.PUT("", h.ReplaceRolePermissions)
		bindings.POST("", h.AddRolePermissions)
		bindings.DELETE("", h.RemoveRolePermissions)
	}
}

// ListPermissions returns the tenant's permission catalog
// @Summary      List permissions
// @Tags         permissions
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response
// @Router       /permissions [get]
func (h *PermissionHandler) ListPermissions(c *gin.Context) {
	_, tenant, ok := requestScope(c)
	if !ok {
		return
	}

	perms, err := h.permService.GetPermissionsByTenant(c.Request.Context(), tenant.ID)
	if err != nil {
		status := service.HTTPStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, perms))
}

// ListGrouped returns the catalog grouped by resource
// @Summary      List permissions grouped by resource
// @Tags         permissions
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response
// @Router       /permissions/grouped [get]
func (h *PermissionHandler) ListGrouped(c *gin.Context) {
	_, tenant, ok := requestScope(c)
	if !ok {
		return
	}

	grouped, err := h.permService.GetPermissionsGroupedByResource(c.Request.Context(), tenant.ID)
	if err != nil {
		status := service.HTTPStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, grouped))
}

// ListByResource returns the permissions of one resource
// @Summary      List permissions for a resource
// @Tags         permissions
// @Produce      json
// @Security     BearerAuth
// @Param        resource  path      string  true  "Resource name"
// @Success      200       {object}  response.Response
// @Router       /permissions/resource/{resource} [get]
func (h *PermissionHandler) ListByResource(c *gin.Context) {
	_, tenant, ok := requestScope(c)
	if !ok {
		return
	}

	perms, err := h.permService.GetPermissionsByResource(c.Request.Context(), c.Param("resource"), tenant.ID)
	if err != nil {
		status := service.HTTPStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, perms))
}

// CreatePermission registers a single permission
// @Summary      Create permission
// @Tags         permissions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreatePermissionRequest  true  "Permission Payload"
// @Success      201      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /permissions [post]
func (h *PermissionHandler) CreatePermission(c *gin.Context) {
	actorID, tenant, ok := requestScope(c)
	if !ok {
		return
	}

	var req service.CreatePermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	perm, err := h.permService.CreatePermission(c.Request.Context(), tenant.ID, req)
	if err != nil {
		status := service.HTTPStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	h.audit.Record(c.Request.Context(), ptrOf(actorID), ptrOf(tenant.ID), model.ActionPermissionCreate, perm.ID.String(), perm.Name, req)

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, perm))
}

// CreateBulk registers several actions for one resource atomically
// @Summary      Create permissions for a resource
// @Tags         permissions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateBulkPermissionsRequest  true  "Bulk Payload"
// @Success      201      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /permissions/bulk [post]
func (h *PermissionHandler) CreateBulk(c *gin.Context) {
	actorID, tenant, ok := requestScope(c)
	if !ok {
		return
	}

	var req service.CreateBulkPermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	perms, err := h.permService.CreateResourcePermissions(c.Request.Context(), tenant.ID, req.Resource, req.Actions)
	if err != nil {
		status := service.HTTPStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	h.audit.Record(c.Request.Context(), ptrOf(actorID), ptrOf(tenant.ID), model.ActionPermissionCreate, "", req.Resource, req)

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, perms))
}

// UpdatePermission updates a permission's description
// @Summary      Update permission
// @Tags         permissions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                           true  "Permission ID"
// @Param        payload  body      service.UpdatePermissionRequest  true  "Update Payload"
// @Success      200      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /permissions/{id} [put]
func (h *PermissionHandler) UpdatePermission(c *gin.Context) {
	actorID, tenant, ok := requestScope(c)
	if !ok {
		return
	}
	permID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req service.UpdatePermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	perm, err := h.permService.UpdatePermission(c.Request.Context(), permID, tenant.ID, req)
	if err != nil {
		status := service.HTTPStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	h.audit.Record(c.Request.Context(), ptrOf(actorID), ptrOf(tenant.ID), model.ActionPermissionUpdate, perm.ID.String(), perm.Name, req)

	c.JSON(http.StatusOK, response.Success(http.StatusOK, perm))
}

// DeletePermission removes a permission and detaches it from all roles
// @Summary      Delete permission
// @Tags         permissions
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Permission ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /permissions/{id} [delete]
func (h *PermissionHandler) DeletePermission(c *gin.Context) {
	actorID, tenant, ok := requestScope(c)
	if !ok {
		return
	}
	permID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.permService.DeletePermission(c.Request.Context(), permID, tenant.ID); err != nil {
		status := service.HTTPStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	// Any user could have held this permission through some role.
	middleware.ClearPermissionCache(uuid.Nil, uuid.Nil)
	h.audit.Record(c.Request.Context(), ptrOf(actorID), ptrOf(tenant.ID), model.ActionPermissionDelete, permID.String(), "", nil)

	c.JSON(http.StatusOK, response.SuccessMessage(http.StatusOK, "Permission deleted successfully", nil))
}

type rolePermissionsRequest struct {
	PermissionIDs []uuid.UUID `json:"permission_ids" binding:"required"`
}

// ReplaceRolePermissions replaces a role's entire permission set
// @Summary      Replace role permissions
// @Tags         permissions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        roleId   path      string                  true  "Role ID"
// @Param        payload  body      rolePermissionsRequest  true  "Permission IDs"
// @Success      200      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /permissions/roles/{roleId} [put]
func (h *PermissionHandler) ReplaceRolePermissions(c *gin.Context) {
	h.mutateRoleBindings(c, h.permService.AssignPermissionsToRole, "role.permissions_replaced")
}

// AddRolePermissions appends permissions to a role
// @Summary      Add role permissions
// @Tags         permissions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        roleId   path      string                  true  "Role ID"
// @Param        payload  body      rolePermissionsRequest  true  "Permission IDs"
// @Success      200      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /permissions/roles/{roleId} [post]
func (h *PermissionHandler) AddRolePermissions(c *gin.Context) {
	h.mutateRoleBindings(c, h.permService.AddPermissionsToRole, "role.permissions_added")
}

// RemoveRolePermissions detaches permissions from a role
// @Summary      Remove role permissions
// @Tags         permissions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        roleId   path      string                  true  "Role ID"
// @Param        payload  body      rolePermissionsRequest  true  "Permission IDs"
// @Success      200      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /permissions/roles/{roleId} [delete]
func (h *PermissionHandler) RemoveRolePermissions(c *gin.Context) {
	h.mutateRoleBindings(c, h.permService.RemovePermissionsFromRole, "role.permissions_removed")
}

type bindingMutation func(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID, tenantID uuid.UUID) error

func (h *PermissionHandler) mutateRoleBindings(c *gin.Context, mutate bindingMutation, eventType string) {
	actorID, tenant, ok := requestScope(c)
	if !ok {
		return
	}
	roleID, ok := parseUUIDParam(c, "roleId")
	if !ok {
		return
	}

	var req rolePermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	if err := mutate(c.Request.Context(), roleID, req.PermissionIDs, tenant.ID); err != nil {
		status := service.HTTPStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	// The binding change affects every holder of the role.
	middleware.ClearPermissionCache(uuid.Nil, uuid.Nil)
	h.audit.Record(c.Request.Context(), ptrOf(actorID), ptrOf(tenant.ID), model.ActionRolePermissionsSet, roleID.String(), "", req)
	h.hub.BroadcastToTenant(tenant.ID, eventType, gin.H{"role_id": roleID, "permission_ids": req.PermissionIDs})

	c.JSON(http.StatusOK, response.SuccessMessage(http.StatusOK, "Role permissions updated successfully", nil))
}
