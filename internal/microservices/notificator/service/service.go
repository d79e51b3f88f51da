package service

import "shawarma-pos/internal/common/logger"

type Service struct {
	NotificatorService NotificatorServiceInterface
}

func New(c Consumer, lg *logger.Logger) *Service {
	return &Service{NotificatorService: NewNotificatorService(c, lg)}
}
