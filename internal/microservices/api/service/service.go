package service

import (
	"time"

	"shawarma-pos/internal/common/logger"
	"shawarma-pos/internal/microservices/api/repository"
)

type Service struct {
	OrderService         OrderServiceInterface
	MenuService          MenuServiceInterface
	StaffService         StaffServiceInterface
	AuthService          AuthServiceInterface
	AuthorizationService AuthorizationServiceInterface
}

func New(repo *repository.Repository, pub Publisher, secret []byte, tokenTTL time.Duration, lg *logger.Logger) (*Service, error) {
	authz, err := NewAuthorizationService()
	if err != nil {
		return nil, err
	}
	catalog := NewCatalogService(repo.CatalogRepo, lg)
	return &Service{
		OrderService:         NewOrderService(repo.OrderRepo, pub, lg),
		MenuService:          catalog,
		StaffService:         catalog,
		AuthService:          NewAuthService(repo.CatalogRepo, secret, tokenTTL),
		AuthorizationService: authz,
	}, nil
}
