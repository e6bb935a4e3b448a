package front

import (
	"github.com/gin-gonic/gin"
	"github.com/nyanpass/panel/internal/billing"
	"github.com/nyanpass/panel/internal/config"
	handlers "github.com/nyanpass/panel/internal/http/api/front/handlers"
	"github.com/nyanpass/panel/internal/http/middleware"
	"github.com/nyanpass/panel/internal/ratelimit"
	"gorm.io/gorm"
)

// RegisterFrontRoutes registers the public and user routes under /api/v1.
func RegisterFrontRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, svc *billing.Service, limiter middleware.Limiter) {
	if r == nil || db == nil || svc == nil {
		return
	}

	api := r.Group("/api/v1")

	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	auth := api.Group("/auth")
	auth.Use(middleware.RateLimit(limiter, ratelimit.ScopeIP))
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)

	planHandler := handlers.NewPlanHandler(svc)
	api.GET("/plans", planHandler.List)

	paymentHandler := handlers.NewPaymentHandler(svc)
	api.GET("/payment/notify/:method", paymentHandler.Notify)
	api.POST("/payment/notify/:method", paymentHandler.Notify)

	user := api.Group("/user")
	user.Use(middleware.UserAuth(jwtCfg.Secret))
	user.Use(middleware.RateLimit(limiter, ratelimit.ScopeUser))

	userHandler := handlers.NewUserHandler(db, svc)
	user.GET("/profile", userHandler.Profile)
	user.GET("/balance/logs", userHandler.BalanceLogs)
	user.GET("/invite", userHandler.Invite)

	orderHandler := handlers.NewOrderHandler(svc)
	user.GET("/orders", orderHandler.List)
	user.GET("/orders/:order_no", orderHandler.Get)
	user.POST("/orders", orderHandler.Create)
	user.POST("/orders/:order_no/cancel", orderHandler.Cancel)

	rechargeHandler := handlers.NewRechargeHandler(svc)
	user.POST("/recharge", middleware.RateLimit(limiter, ratelimit.ScopeIP), rechargeHandler.Redeem)
	user.POST("/recharge/online", rechargeHandler.Online)

	couponHandler := handlers.NewCouponHandler(svc)
	user.POST("/coupons/verify", couponHandler.Verify)

	user.POST("/payment/pay", paymentHandler.Pay)
}
