package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"shawarma-pos/internal/common/logger"
	"shawarma-pos/internal/domain"
	"shawarma-pos/internal/microservices/api/repository"
)

const (
	ordersListLimit    = 500
	publishTimeout     = 5 * time.Second
	EventOrderAccepted = domain.EventOrderAccepted
)

var (
	ErrOrderIDRequired = errors.New("order with id required")
	ErrDeleteTarget    = errors.New("either staff or action=reset-all required")
)

// Publisher is satisfied by *rabbitmq.Client.
type Publisher interface {
	PublishEvent(ctx context.Context, eventType, correlationID string, v any) error
}

type DeleteOrdersResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Deleted int64  `json:"deleted"`
	Staff   string `json:"staff,omitempty"`
	Action  string `json:"action,omitempty"`
}

type OrderServiceInterface interface {
	CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (domain.CreateOrderResult, error)
	ListOrders(ctx context.Context) ([]domain.ServerOrder, error)
	DeleteOrders(ctx context.Context, req domain.DeleteOrdersRequest) (DeleteOrdersResult, error)
}

type OrderService struct {
	repo repository.OrderRepositoryInterface
	pub  Publisher
	lg   *logger.Logger
	now  func() time.Time
}

func NewOrderService(repo repository.OrderRepositoryInterface, pub Publisher, lg *logger.Logger) OrderServiceInterface {
	return &OrderService{repo: repo, pub: pub, lg: lg, now: func() time.Time { return time.Now().UTC() }}
}

// CreateOrder is idempotent per order id: a replay is acknowledged as a duplicate and
// changes nothing.
func (s *OrderService) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (domain.CreateOrderResult, error) {
	// 1. Basic validation
	if req.ID == "" {
		return domain.CreateOrderResult{}, ErrOrderIDRequired
	}
	received := s.now()
	ts := received
	if req.Timestamp != nil && !req.Timestamp.IsZero() {
		ts = req.Timestamp.UTC()
	}
	total := req.Total
	if total.IsZero() && len(req.Items) > 0 {
		total = domain.ComputeTotal(req.Items)
	}

	// 2. Keep the whole body as the payload
	payload, err := json.Marshal(req)
	if err != nil {
		return domain.CreateOrderResult{}, fmt.Errorf("failed to marshal payload: %w", err)
	}

	// 3. Save once
	order := domain.ServerOrder{
		ID:               req.ID,
		Staff:            req.StaffName(),
		Timestamp:        ts,
		Total:            total,
		Payload:          payload,
		ServerReceivedAt: received,
	}
	inserted, err := s.repo.InsertOrder(ctx, order, req.Items)
	if err != nil {
		return domain.CreateOrderResult{}, err
	}
	if !inserted {
		s.lg.Info("order_duplicate", map[string]any{"order_id": req.ID})
		return domain.CreateOrderResult{OK: true, ID: req.ID, Duplicate: true}, nil
	}
	s.lg.Info("order_accepted", map[string]any{"order_id": req.ID, "staff": order.Staff, "total": total.String()})

	// 4. Notify; the order is already durable, so a broker failure is only logged
	s.publish(ctx, order, len(req.Items))
	return domain.CreateOrderResult{OK: true, ID: req.ID}, nil
}

func (s *OrderService) publish(ctx context.Context, o domain.ServerOrder, items int) {
	if s.pub == nil {
		return
	}
	ev := domain.OrderAcceptedEvent{
		OrderID:          o.ID,
		Staff:            o.Staff,
		Total:            o.Total.StringFixed(2),
		ItemCount:        items,
		Offline:          domain.IsOfflineID(o.ID),
		CreatedAt:        o.Timestamp,
		ServerReceivedAt: o.ServerReceivedAt,
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.pub.PublishEvent(pctx, EventOrderAccepted, o.ID, ev); err != nil {
		s.lg.Error("order_event_publish_failed", err, map[string]any{"order_id": o.ID})
	}
}

func (s *OrderService) ListOrders(ctx context.Context) ([]domain.ServerOrder, error) {
	return s.repo.ListOrders(ctx, ordersListLimit)
}

func (s *OrderService) DeleteOrders(ctx context.Context, req domain.DeleteOrdersRequest) (DeleteOrdersResult, error) {
	switch {
	case req.Action == "reset-all":
		n, err := s.repo.DeleteAllOrders(ctx)
		if err != nil {
			return DeleteOrdersResult{}, err
		}
		s.lg.Warn("orders_reset", map[string]any{"deleted": n})
		return DeleteOrdersResult{OK: true, Message: "All orders deleted", Deleted: n, Action: req.Action}, nil
	case req.Staff != "":
		n, err := s.repo.DeleteOrdersByStaff(ctx, req.Staff)
		if err != nil {
			return DeleteOrdersResult{}, err
		}
		s.lg.Warn("staff_orders_deleted", map[string]any{"staff": req.Staff, "deleted": n})
		return DeleteOrdersResult{OK: true, Message: "Orders deleted for " + req.Staff, Deleted: n, Staff: req.Staff}, nil
	default:
		return DeleteOrdersResult{}, ErrDeleteTarget
	}
}
