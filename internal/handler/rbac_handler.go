package handler

import (
	"net/http"

	"shopauth/internal/middleware"
	"shopauth/internal/model"
	"shopauth/internal/service"
	"shopauth/internal/websocket"
	"shopauth/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type RbacHandler struct {
	rbacService service.RbacService
	permService service.PermissionService
	audit       service.AuditService
	hub         *websocket.Hub
}

func NewRbacHandler(
	rbacService service.RbacService,
	permService service.PermissionService,
	audit service.AuditService,
	hub *websocket.Hub,
) *RbacHandler {
	return &RbacHandler{rbacService: rbacService, permService: permService, audit: audit, hub: hub}
}

// RegisterRoutes binds role and binding endpoints. Callers must already be
// authenticated and tenant-resolved.
func (h *RbacHandler) RegisterRoutes(router *gin.RouterGroup) {
	roles := router.Group("/rbac/roles")
	{
		roles.GET("", middleware.RequirePermission("read:role", "manage:role", "manage:*"), h.ListRoles)
		roles.POST("", middleware.RequirePermission("manage:role", "manage:*"), h.CreateRole)
		roles.GET("/default", middleware.RequirePermission("read:role", "manage:role", "manage:*"), h.GetDefaultRole)
		roles.GET("/:id", middleware.RequirePermission("read:role", "manage:role", "manage:*"), h.GetRole)
		roles.GET("/:id/permissions", middleware.RequirePermission("read:role", "manage:role", "manage:*"), h.GetRolePermissions)
	}

	users := router.Group("/rbac/users/:userId")
	{
		users.GET("/roles", middleware.RequirePermission("read:user", "manage:user", "manage:*"), h.GetUserRoles)
		users.PUT("/roles", middleware.RequirePermission("manage:user", "manage:*"), h.ReplaceUserRoles)
		users.POST("/roles", middleware.RequirePermission("manage:user", "manage:*"), h.AssignRole)
		users.DELETE("/roles/:roleName", middleware.RequirePermission("manage:user", "manage:*"), h.RemoveRole)
		users.GET("/permissions", middleware.RequirePermission("read:user", "manage:user", "manage:*"), h.GetUserPermissions)
	}
}

// ListRoles returns the tenant's roles with permissions preloaded
// @Summary      List roles
// @Tags         rbac
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response
// @Router       /rbac/roles [get]
func (h *RbacHandler) ListRoles(c *gin.Context) {
	_, tenant, ok := requestScope(c)
	if !ok {
		return
	}

	roles, err := h.rbacService.GetRolesByTenant(c.Request.Context(), tenant.ID)
	if err != nil {
		status := service.HTTPStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, roles))
}

// CreateRole creates a custom role in the tenant
// @Summary      Create role
// @Tags         rbac
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateRoleRequest  true  "Role Payload"
// @Success      201      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /rbac/roles [post]
func (h *RbacHandler) CreateRole(c *gin.Context) {
	actorID, tenant, ok := requestScope(c)
	if !ok {
		return
	}

	var req service.CreateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	role, err := h.rbacService.CreateRole(c.Request.Context(), tenant.ID, req)
	if err != nil {
		status := service.HTTPStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	h.audit.Record(c.Request.Context(), ptrOf(actorID), ptrOf(tenant.ID), model.ActionRoleCreate, role.ID.String(), role.Name, req)
	h.hub.BroadcastToTenant(tenant.ID, "role.created", role)

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, role))
}

// GetRole returns a single role with its permissions
// @Summary      Get role
// @Tags         rbac
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Role ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /rbac/roles/{id} [get]
func (h *RbacHandler) GetRole(c *gin.Context) {
	_, tenant, ok := requestScope(c)
	if !ok {
		return
	}
	roleID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	role, err := h.rbacService.GetRole(c.Request.Context(), roleID, tenant.ID)
	if err != nil {
		status := service.HTTPStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, role))
}

// GetDefaultRole returns the tenant's default role
// @Summary      Get default role
// @Tags         rbac
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /rbac/roles/default [get]
func (h *RbacHandler) GetDefaultRole(c *gin.Context) {
	_, tenant, ok := requestScope(c)
	if !ok {
		return
	}

	role, err := h.rbacService.GetDefaultRole(c.Request.Context(), tenant.ID)
	if err != nil {
		status := service.HTTPStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, role))
}

// GetRolePermissions returns the permissions bound to a role
// @Summary      Get role permissions
// @Tags         rbac
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Role ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /rbac/roles/{id}/permissions [get]
func (h *RbacHandler) GetRolePermissions(c *gin.Context) {
	_, tenant, ok := requestScope(c)
	if !ok {
		return
	}
	roleID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	perms, err := h.permService.GetRolePermissions(c.Request.Context(), roleID, tenant.ID)
	if err != nil {
		status := service.HTTPStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, perms))
}

type assignRoleRequest struct {
	RoleName string `json:"role_name" binding:"required"`
}

// AssignRole grants a role to a user by name (idempotent)
// @Summary      Assign role to user
// @Tags         rbac
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        userId   path      string             true  "User ID"
// @Param        payload  body      assignRoleRequest  true  "Role name"
// @Success      200      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /rbac/users/{userId}/roles [post]
func (h *RbacHandler) AssignRole(c *gin.Context) {
	actorID, tenant, ok := requestScope(c)
	if !ok {
		return
	}
	userID, ok := parseUUIDParam(c, "userId")
	if !ok {
		return
	}

	var req assignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	if err := h.rbacService.AssignRole(c.Request.Context(), userID, req.RoleName, tenant.ID); err != nil {
		status := service.HTTPStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	middleware.ClearPermissionCache(userID, tenant.ID)
	h.audit.Record(c.Request.Context(), ptrOf(actorID), ptrOf(tenant.ID), model.ActionRoleAssign, userID.String(), req.RoleName, nil)
	h.hub.BroadcastToTenant(tenant.ID, "user.role_assigned", gin.H{"user_id": userID, "role_name": req.RoleName})

	c.JSON(http.StatusOK, response.SuccessMessage(http.StatusOK, "Role assigned successfully", nil))
}

// RemoveRole revokes a role from a user by name (no-op when not held)
// @Summary      Remove role from user
// @Tags         rbac
// @Produce      json
// @Security     BearerAuth
// @Param        userId    path      string  true  "User ID"
// @Param        roleName  path      string  true  "Role name"
// @Success      200       {object}  response.Response
// @Failure      404       {object}  response.Response
// @Router       /rbac/users/{userId}/roles/{roleName} [delete]
func (h *RbacHandler) RemoveRole(c *gin.Context) {
	actorID, tenant, ok := requestScope(c)
	if !ok {
		return
	}
	userID, ok := parseUUIDParam(c, "userId")
	if !ok {
		return
	}
	roleName := c.Param("roleName")

	if err := h.rbacService.RemoveRole(c.Request.Context(), userID, roleName, tenant.ID); err != nil {
		status := service.HTTPStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	middleware.ClearPermissionCache(userID, tenant.ID)
	h.audit.Record(c.Request.Context(), ptrOf(actorID), ptrOf(tenant.ID), model.ActionRoleRemove, userID.String(), roleName, nil)
	h.hub.BroadcastToTenant(tenant.ID, "user.role_removed", gin.H{"user_id": userID, "role_name": roleName})

	c.JSON(http.StatusOK, response.SuccessMessage(http.StatusOK, "Role removed successfully", nil))
}

type replaceRolesRequest struct {
	RoleIDs []uuid.UUID `json:"role_ids" binding:"required"`
}

// ReplaceUserRoles replaces the user's entire role set in the tenant
// @Summary      Replace user roles
// @Tags         rbac
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        userId   path      string               true  "User ID"
// @Param        payload  body      replaceRolesRequest  true  "Role IDs"
// @Success      200      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /rbac/users/{userId}/roles [put]
func (h *RbacHandler) ReplaceUserRoles(c *gin.Context) {
	actorID, tenant, ok := requestScope(c)
	if !ok {
		return
	}
	userID, ok := parseUUIDParam(c, "userId")
	if !ok {
		return
	}

	var req replaceRolesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	if err := h.rbacService.AssignRoles(c.Request.Context(), userID, req.RoleIDs, tenant.ID); err != nil {
		status := service.HTTPStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	middleware.ClearPermissionCache(userID, tenant.ID)
	h.audit.Record(c.Request.Context(), ptrOf(actorID), ptrOf(tenant.ID), model.ActionRolesReplace, userID.String(), "", req)
	h.hub.BroadcastToTenant(tenant.ID, "user.roles_replaced", gin.H{"user_id": userID, "role_ids": req.RoleIDs})

	c.JSON(http.StatusOK, response.SuccessMessage(http.StatusOK, "Roles updated successfully", nil))
}

// GetUserRoles returns the roles a user holds in the tenant
// @Summary      Get user roles
// @Tags         rbac
// @Produce      json
// @Security     BearerAuth
// @Param        userId  path      string  true  "User ID"
// @Success      200     {object}  response.Response
// @Router       /rbac/users/{userId}/roles [get]
func (h *RbacHandler) GetUserRoles(c *gin.Context) {
	_, tenant, ok := requestScope(c)
	if !ok {
		return
	}
	userID, ok := parseUUIDParam(c, "userId")
	if !ok {
		return
	}

	roles, err := h.rbacService.GetUserRoles(c.Request.Context(), userID, tenant.ID)
	if err != nil {
		status := service.HTTPStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, roles))
}

// GetUserPermissions returns the user's effective permissions in the tenant
// @Summary      Get user permissions
// @Tags         rbac
// @Produce      json
// @Security     BearerAuth
// @Param        userId  path      string  true  "User ID"
// @Success      200     {object}  response.Response
// @Router       /rbac/users/{userId}/permissions [get]
func (h *RbacHandler) GetUserPermissions(c *gin.Context) {
	_, tenant, ok := requestScope(c)
	if !ok {
		return
	}
	userID, ok := parseUUIDParam(c, "userId")
	if !ok {
		return
	}

	perms, err := h.permService.GetUserPermissions(c.Request.Context(), userID, tenant.ID)
	if err != nil {
		status := service.HTTPStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, perms))
}
