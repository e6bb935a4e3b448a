package admin

import (
	"github.com/gin-gonic/gin"
	"github.com/nyanpass/panel/internal/billing"
	"github.com/nyanpass/panel/internal/config"
	handlers "github.com/nyanpass/panel/internal/http/api/admin/handlers"
	"github.com/nyanpass/panel/internal/http/api/admin/permissions"
	"github.com/nyanpass/panel/internal/http/middleware"
	"github.com/nyanpass/panel/internal/http/response"
	"github.com/nyanpass/panel/internal/models"
	"github.com/nyanpass/panel/internal/ratelimit"
	"github.com/nyanpass/panel/internal/security"
	"gorm.io/gorm"
)

// RegisterAdminRoutes registers admin routes, middleware, and handlers.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, svc *billing.Service, limiter middleware.Limiter) {
	if r == nil || db == nil || svc == nil {
		return
	}

	adminGroup := r.Group("/api/v1/admin")

	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	adminGroup.POST("/login", middleware.RateLimit(limiter, ratelimit.ScopeIP), authHandler.Login)

	selfAuthed := adminGroup.Group("")
	selfAuthed.Use(adminAuthMiddleware(db, jwtCfg))

	mfaHandler := handlers.NewMFAHandler(db)
	selfAuthed.GET("/mfa/status", mfaHandler.Status)
	selfAuthed.POST("/mfa/totp/setup", mfaHandler.SetupTOTP)
	selfAuthed.POST("/mfa/totp/confirm", mfaHandler.ConfirmTOTP)
	selfAuthed.POST("/mfa/totp/disable", mfaHandler.DisableTOTP)

	authed := adminGroup.Group("")
	authed.Use(adminAuthMiddleware(db, jwtCfg))
	authed.Use(adminPermissionMiddleware())

	orderHandler := handlers.NewOrderHandler(svc)
	authed.GET("/orders", orderHandler.List)
	authed.GET("/orders/:order_no", orderHandler.Get)
	authed.POST("/orders/:order_no/paid", orderHandler.MarkPaid)
	authed.POST("/orders/:order_no/refund", orderHandler.Refund)
	authed.DELETE("/orders/:order_no", orderHandler.Delete)

	couponHandler := handlers.NewCouponHandler(svc)
	authed.POST("/coupons", couponHandler.Create)
	authed.POST("/coupons/generate", couponHandler.Generate)
	authed.GET("/coupons", couponHandler.List)
	authed.GET("/coupons/:id", couponHandler.Get)
	authed.PUT("/coupons/:id", couponHandler.Update)
	authed.DELETE("/coupons/:id", couponHandler.Delete)

	codeHandler := handlers.NewRechargeCodeHandler(svc)
	authed.POST("/recharge-codes", codeHandler.Generate)
	authed.GET("/recharge-codes", codeHandler.List)
	authed.DELETE("/recharge-codes/:id", codeHandler.Revoke)

	planHandler := handlers.NewPlanHandler(svc)
	authed.POST("/plans", planHandler.Create)
	authed.GET("/plans", planHandler.List)
	authed.GET("/plans/:id", planHandler.Get)
	authed.PUT("/plans/:id", planHandler.Update)
	authed.DELETE("/plans/:id", planHandler.Delete)

	userHandler := handlers.NewUserHandler(db, svc)
	authed.GET("/users", userHandler.List)
	authed.GET("/users/:id", userHandler.Get)
	authed.POST("/users/:id/balance", userHandler.AdjustBalance)
	authed.POST("/users/:id/ban", userHandler.Ban)
	authed.POST("/users/:id/unban", userHandler.Unban)
	authed.GET("/balance/logs", userHandler.BalanceLogs)

	settingHandler := handlers.NewSettingHandler(db)
	authed.GET("/settings", settingHandler.List)
	authed.GET("/settings/:key", settingHandler.Get)
	authed.PUT("/settings/:key", settingHandler.Put)

	permissionHandler := handlers.NewPermissionHandler()
	authed.GET("/permissions", permissionHandler.List)
}

// adminAuthMiddleware validates admin JWTs and loads admin context.
func adminAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "missing authorization header")
			return
		}
		token, ok := middleware.BearerToken(authHeader)
		if !ok {
			response.Unauthorized(c, "invalid authorization format")
			return
		}

		claims, errJWT := security.ParseAdminToken(jwtCfg.Secret, token)
		if errJWT != nil {
			response.Unauthorized(c, "invalid token")
			return
		}

		var admin models.Admin
		if errFind := db.WithContext(c.Request.Context()).First(&admin, claims.AdminID).Error; errFind != nil {
			response.Unauthorized(c, "admin not found")
			return
		}
		if !admin.Active {
			response.Forbidden(c, "admin disabled")
			return
		}

		adminPermissions := permissions.ParsePermissions(admin.Permissions)
		c.Set("adminID", admin.ID)
		c.Set("adminUsername", admin.Username)
		c.Set("adminPermissions", adminPermissions)
		c.Set("adminIsSuperAdmin", admin.IsSuperAdmin)
		c.Next()
	}
}

// adminPermissionMiddleware rejects routes missing from the admin's permission list.
// Super admins pass every check.
func adminPermissionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetBool("adminIsSuperAdmin") {
			c.Next()
			return
		}
		key := permissions.Key(c.Request.Method, c.FullPath())
		granted, _ := c.Get("adminPermissions")
		perms, _ := granted.([]string)
		if !permissions.HasPermission(perms, key) {
			response.Forbidden(c, "permission denied")
			return
		}
		c.Next()
	}
}
