package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/nyanpass/panel/internal/http/api/admin/permissions"
	"github.com/nyanpass/panel/internal/http/response"
)

// PermissionHandler lists admin permission definitions.
type PermissionHandler struct{}

// NewPermissionHandler constructs a PermissionHandler.
func NewPermissionHandler() *PermissionHandler {
	return &PermissionHandler{}
}

// List returns every permission definition and the caller's grants.
func (h *PermissionHandler) List(c *gin.Context) {
	granted, _ := c.Get("adminPermissions")
	response.OK(c, gin.H{
		"permissions":    permissions.Definitions(),
		"granted":        granted,
		"is_super_admin": c.GetBool("adminIsSuperAdmin"),
	})
}
