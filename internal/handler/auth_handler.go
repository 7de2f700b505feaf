package handler

import (
	"net/http"

	"shopauth/internal/middleware"
	"shopauth/internal/model"
	"shopauth/internal/service"
	"shopauth/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AuthHandler struct {
	authService service.AuthService
	rbacService service.RbacService
	permService service.PermissionService
	audit       service.AuditService
}

// NewAuthHandler sets up the routing dependencies for authentication endpoints
func NewAuthHandler(
	authService service.AuthService,
	rbacService service.RbacService,
	permService service.PermissionService,
	audit service.AuditService,
) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		rbacService: rbacService,
		permService: permService,
		audit:       audit,
	}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *AuthHandler) RegisterRoutes(router *gin.RouterGroup) {
	auth := router.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.Refresh)
		auth.POST("/logout", h.Logout)
		auth.GET("/me", middleware.Authenticate(h.authService), h.GetMe)
	}
}

type authResponse struct {
	User   *model.User        `json:"user"`
	Tokens *service.TokenPair `json:"tokens"`
}

// Register handles POST /auth/register
// @Summary      Register a new user
// @Description  Creates an account in the resolved tenant, binds the tenant's default role and signs the user in
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        X-Tenant-Slug  header    string                   true  "Tenant slug"
// @Param        payload        body      service.RegisterRequest  true  "Registration Payload"
// @Success      201            {object}  response.Response
// @Failure      400            {object}  response.Response
// @Failure      409            {object}  response.Response
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	tenant, _ := middleware.CurrentTenant(c)

	user, tokens, err := h.authService.Register(c.Request.Context(), req, tenant)
	if err != nil {
		status := service.HTTPStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	middleware.SetTokenCookies(c, tokens.AccessToken, tokens.RefreshToken)

	var tenantID *uuid.UUID
	if tenant != nil {
		tenantID = ptrOf(tenant.ID)
	}
	h.audit.Record(c.Request.Context(), ptrOf(user.ID), tenantID, model.ActionUserRegister, user.ID.String(), user.Email, nil)

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, authResponse{User: user, Tokens: tokens}))
}

// Login handles POST /auth/login
// @Summary      Login user
// @Description  Authenticates a user by email and password, returning a token pair
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.LoginRequest  true  "Login Credentials"
// @Success      200      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload"))
		return
	}

	user, tokens, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		status := service.HTTPStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	middleware.SetTokenCookies(c, tokens.AccessToken, tokens.RefreshToken)

	var tenantID *uuid.UUID
	if tenant, ok := middleware.CurrentTenant(c); ok {
		tenantID = ptrOf(tenant.ID)
	}
	h.audit.Record(c.Request.Context(), ptrOf(user.ID), tenantID, model.ActionUserLogin, user.ID.String(), user.Email, nil)

	c.JSON(http.StatusOK, response.Success(http.StatusOK, authResponse{User: user, Tokens: tokens}))
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh handles POST /auth/refresh
// @Summary      Refresh token pair
// @Description  Exchanges a valid refresh token for a new access/refresh pair; the presented token is rotated
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      refreshRequest  false  "Refresh token (falls back to the refresh_token cookie)"
// @Success      200      {object}  response.Response{data=service.TokenPair}
// @Failure      401      {object}  response.Response
// @Router       /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	_ = c.ShouldBindJSON(&req)
	if req.RefreshToken == "" {
		req.RefreshToken, _ = c.Cookie("refresh_token")
	}
	if req.RefreshToken == "" {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Refresh token is missing"))
		return
	}

	tokens, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		status := service.HTTPStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	middleware.SetTokenCookies(c, tokens.AccessToken, tokens.RefreshToken)

	c.JSON(http.StatusOK, response.Success(http.StatusOK, tokens))
}

// Logout handles POST /auth/logout
// @Summary      Logout user
// @Description  Revokes the presented refresh token and clears auth cookies
// @Tags         auth
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshRequest
	_ = c.ShouldBindJSON(&req)
	if req.RefreshToken == "" {
		req.RefreshToken, _ = c.Cookie("refresh_token")
	}

	if err := h.authService.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		status := service.HTTPStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	middleware.ClearTokenCookies(c)

	c.JSON(http.StatusOK, response.SuccessMessage(http.StatusOK, "Logged out successfully", nil))
}

// GetMe handles GET /auth/me
// @Summary      Get current user
// @Description  Returns the authenticated user with roles and effective permissions in the resolved tenant
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response
// @Failure      401  {object}  response.Response
// @Router       /auth/me [get]
func (h *AuthHandler) GetMe(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User ID not found in context"))
		return
	}

	user, err := h.authService.CurrentUser(c.Request.Context(), userID)
	if err != nil {
		status := service.HTTPStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	payload := gin.H{"user": user}
	if tenant, ok := middleware.CurrentTenant(c); ok {
		roles, _ := h.rbacService.GetUserRoles(c.Request.Context(), userID, tenant.ID)
		perms, _ := h.permService.GetUserPermissions(c.Request.Context(), userID, tenant.ID)
		payload["roles"] = roles
		payload["permissions"] = perms
		payload["tenant"] = tenant
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, payload))
}
