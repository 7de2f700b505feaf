package handler

import (
	"net/http"

	"shopauth/internal/middleware"
	"shopauth/internal/model"
	"shopauth/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func ptrOf[T any](v T) *T {
	return &v
}

// parseUUIDParam reads a path parameter as a uuid, writing a 400 on failure.
func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid "+name+" parameter"))
		return uuid.Nil, false
	}
	return id, true
}

// requestScope pulls the authenticated user and resolved tenant out of the
// context, writing the error response itself when either is missing.
func requestScope(c *gin.Context) (uuid.UUID, *model.Tenant, bool) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User ID not found in context"))
		return uuid.Nil, nil, false
	}
	tenant, ok := middleware.CurrentTenant(c)
	if !ok {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Tenant context required"))
		return uuid.Nil, nil, false
	}
	return userID, tenant, true
}
