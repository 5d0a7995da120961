package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/orgstack/org-management-service/internal/middleware"
	"github.com/orgstack/org-management-service/internal/service"
)

// Handlers groups everything the router mounts
type Handlers struct {
	Health *HealthHandler
	Org    *OrgHandler
	Auth   *AuthHandler
}

// RegisterRoutes mounts all routes on the gin engine. Update and delete
// require a bearer token; tenant-level authorization happens in the
// organization handler. limiter may be nil to disable login rate
// limiting (tests).
func RegisterRoutes(r *gin.Engine, h *Handlers, auth service.AuthService, limiter *middleware.RateLimiter) {
	r.GET("/", h.Health.Root)
	r.GET("/healthz", h.Health.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	org := r.Group("/org")
	{
		org.POST("/create", h.Org.Create)
		org.GET("/get", h.Org.Get)
		org.PUT("/update", middleware.RequireAuth(auth), h.Org.Update)
		org.DELETE("/delete", middleware.RequireAuth(auth), h.Org.Delete)
	}

	login := r.Group("/admin")
	if limiter != nil {
		login.Use(middleware.RateLimit(limiter))
	}
	login.POST("/login", h.Auth.Login)
}
