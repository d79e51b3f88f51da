package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"shawarma-pos/internal/common/logger"
	"shawarma-pos/internal/connections/rabbitmq"
	"shawarma-pos/internal/domain"
)

const (
	consumerTag = "notificator"
	prefetch    = 10
)

// Consumer is satisfied by *rabbitmq.Client.
type Consumer interface {
	Consume(queue, consumer string, prefetch int) (<-chan amqp.Delivery, error)
}

type NotificatorServiceInterface interface {
	Notify(ctx context.Context) error
}

type NotificatorService struct {
	consumer Consumer
	lg       *logger.Logger
}

func NewNotificatorService(c Consumer, lg *logger.Logger) NotificatorServiceInterface {
	return &NotificatorService{consumer: c, lg: lg}
}

// Notify logs every accepted order until ctx is cancelled or the delivery channel closes.
func (ns *NotificatorService) Notify(ctx context.Context) error {
	msgs, err := ns.consumer.Consume(rabbitmq.NotificationsQueue, consumerTag, prefetch)
	if err != nil {
		return fmt.Errorf("consume %s: %w", rabbitmq.NotificationsQueue, err)
	}
	ns.lg.Info("notificator_listening", map[string]any{"queue": rabbitmq.NotificationsQueue})
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			ns.handle(d)
		}
	}
}

func (ns *NotificatorService) handle(d amqp.Delivery) {
	lg := ns.lg.WithRequestID(d.CorrelationId)
	if d.Type != "" && d.Type != domain.EventOrderAccepted {
		lg.Debug("event_ignored", map[string]any{"type": d.Type})
		_ = d.Ack(false)
		return
	}
	var ev domain.OrderAcceptedEvent
	if err := json.Unmarshal(d.Body, &ev); err != nil {
		lg.Error("event_decode_failed", err, map[string]any{"type": d.Type})
		// битое сообщение повторять бессмысленно
		_ = d.Nack(false, false)
		return
	}
	lg.Info("order_accepted", map[string]any{
		"order_id":   ev.OrderID,
		"staff":      ev.Staff,
		"total":      ev.Total,
		"item_count": ev.ItemCount,
		"offline":    ev.Offline,
		"latency_ms": ev.ServerReceivedAt.Sub(ev.CreatedAt).Milliseconds(),
	})
	if err := d.Ack(false); err != nil {
		lg.Error("event_ack_failed", err, map[string]any{"order_id": ev.OrderID})
	}
}
