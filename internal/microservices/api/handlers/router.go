package handlers

import (
	"github.com/gin-gonic/gin"

	"shawarma-pos/internal/common/logger"
	"shawarma-pos/internal/microservices/api/service"
)

// Router: health, login, menu/staff reads and order intake stay public so terminals can sync
// without a session; everything else goes through JWT + RBAC.
func Router(h *Handler, s *service.Service, lg *logger.Logger) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), AccessLog(lg), gin.Recovery())

	api := r.Group("/api")
	api.GET("/health", h.HealthHandler.Health)
	api.POST("/login", h.AuthHandler.Login)
	api.GET("/menu", h.MenuHandler.List)
	api.GET("/staff", h.StaffHandler.List)
	api.POST("/orders", h.OrderHandler.Create)

	authz := s.AuthorizationService
	authed := api.Group("", Authenticate(s.AuthService))
	authed.GET("/orders", RequirePermission(authz, lg, service.ResourceOrders, service.ActionRead), h.OrderHandler.List)
	authed.DELETE("/orders", RequirePermission(authz, lg, service.ResourceOrders, service.ActionWrite), h.OrderHandler.Delete)
	authed.POST("/menu", RequirePermission(authz, lg, service.ResourceMenu, service.ActionWrite), h.MenuHandler.Create)
	authed.PUT("/menu/:id/stock", RequirePermission(authz, lg, service.ResourceMenu, service.ActionWrite), h.MenuHandler.UpdateStock)
	authed.POST("/staff", RequirePermission(authz, lg, service.ResourceStaff, service.ActionWrite), h.StaffHandler.Create)

	return r
}
