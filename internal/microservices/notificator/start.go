package notificator

import (
	"context"

	"shawarma-pos/internal/common/logger"
	"shawarma-pos/internal/config"
	"shawarma-pos/internal/connections/rabbitmq"
	"shawarma-pos/internal/microservices/notificator/service"
)

// Run consumes order.accepted events until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config) error {
	lg := logger.New("notification-subscriber")
	rmqClient, err := rabbitmq.Dial(cfg.RabbitMQ)
	if err != nil {
		return err
	}
	defer rmqClient.Close()
	if err := rmqClient.DeclareTopology(); err != nil {
		return err
	}
	svc := service.New(rmqClient, lg)
	return svc.NotificatorService.Notify(ctx)
}
