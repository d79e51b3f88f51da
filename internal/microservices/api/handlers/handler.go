package handlers

import (
	"shawarma-pos/internal/common/logger"
	"shawarma-pos/internal/microservices/api/service"
)

type Handler struct {
	HealthHandler *HealthHandler
	AuthHandler   *AuthHandler
	MenuHandler   *MenuHandler
	StaffHandler  *StaffHandler
	OrderHandler  *OrderHandler
}

func New(s *service.Service, checks HealthChecks, lg *logger.Logger) *Handler {
	return &Handler{
		HealthHandler: NewHealthHandler(checks),
		AuthHandler:   NewAuthHandler(s.AuthService, lg),
		MenuHandler:   NewMenuHandler(s.MenuService, lg),
		StaffHandler:  NewStaffHandler(s.StaffService, lg),
		OrderHandler:  NewOrderHandler(s.OrderService, lg),
	}
}
