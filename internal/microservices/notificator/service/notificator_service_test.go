package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"shawarma-pos/internal/common/logger"
	"shawarma-pos/internal/domain"
)

type ackRecorder struct {
	mu     sync.Mutex
	acked  []uint64
	nacked []uint64
}

func (a *ackRecorder) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *ackRecorder) Nack(tag uint64, _ bool, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacked = append(a.nacked, tag)
	return nil
}

func (a *ackRecorder) Reject(tag uint64, requeue bool) error { return a.Nack(tag, false, requeue) }

type stubConsumer struct {
	ch  chan amqp.Delivery
	err error
}

func (c *stubConsumer) Consume(string, string, int) (<-chan amqp.Delivery, error) {
	return c.ch, c.err
}

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestNotify(t *testing.T) {
	t.Parallel()

	body, err := json.Marshal(domain.OrderAcceptedEvent{
		OrderID: "offline-1700000000000-abc123def", Staff: "staff1", Total: "40.00", ItemCount: 2, Offline: true,
		CreatedAt: time.Now().Add(-time.Minute), ServerReceivedAt: time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}

	acks := &ackRecorder{}
	ch := make(chan amqp.Delivery, 3)
	ch <- amqp.Delivery{Acknowledger: acks, DeliveryTag: 1, Type: domain.EventOrderAccepted, Body: body}
	ch <- amqp.Delivery{Acknowledger: acks, DeliveryTag: 2, Type: domain.EventOrderAccepted, Body: []byte("{broken")}
	ch <- amqp.Delivery{Acknowledger: acks, DeliveryTag: 3, Type: "menu.changed", Body: []byte("{}")}
	close(ch)

	out := &syncBuffer{}
	svc := NewNotificatorService(&stubConsumer{ch: ch}, logger.NewWithWriter("notificator", out, "DEBUG"))

	err = svc.Notify(context.Background())
	if err == nil || !strings.Contains(err.Error(), "closed") {
		t.Fatalf("Notify err = %v, want closed channel", err)
	}

	if len(acks.acked) != 2 || acks.acked[0] != 1 || acks.acked[1] != 3 {
		t.Errorf("acked = %v, want [1 3]", acks.acked)
	}
	if len(acks.nacked) != 1 || acks.nacked[0] != 2 {
		t.Errorf("nacked = %v, want [2]", acks.nacked)
	}
	logs := out.String()
	for _, want := range []string{`"action":"order_accepted"`, `"order_id":"offline-1700000000000-abc123def"`, `"action":"event_decode_failed"`} {
		if !strings.Contains(logs, want) {
			t.Errorf("logs missing %s:\n%s", want, logs)
		}
	}
}

func TestNotifyStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	svc := NewNotificatorService(&stubConsumer{ch: make(chan amqp.Delivery)}, logger.NewWithWriter("notificator", &syncBuffer{}, "ERROR"))

	done := make(chan error, 1)
	go func() { done <- svc.Notify(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Notify after cancel = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Notify did not return after cancel")
	}
}

func TestNotifyConsumeError(t *testing.T) {
	t.Parallel()

	boom := errors.New("channel closed")
	svc := NewNotificatorService(&stubConsumer{err: boom}, logger.NewWithWriter("notificator", &syncBuffer{}, "ERROR"))
	if err := svc.Notify(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped consume error", err)
	}
}
