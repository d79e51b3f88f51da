// Package network relays terminal connectivity to interested components.
package network

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"shawarma-pos/internal/common/logger"
)

type subscriber struct {
	id int
	fn func(bool)
}

// Monitor keeps the last known connectivity state and fans transitions out to subscribers.
type Monitor struct {
	mu     sync.RWMutex
	online bool
	nextID int
	subs   []subscriber
	lg     *logger.Logger
}

func NewMonitor(initial bool, lg *logger.Logger) *Monitor {
	if lg == nil {
		lg = logger.New("network-monitor")
	}
	return &Monitor{online: initial, lg: lg}
}

func (m *Monitor) Status() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Subscribe registers fn for every transition. The returned func unsubscribes and is safe to call twice.
func (m *Monitor) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.subs = append(m.subs, subscriber{id: id, fn: fn})
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, s := range m.subs {
				if s.id == id {
					m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Set records the platform signal. Only real transitions reach subscribers.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	subs := make([]subscriber, len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	m.lg.Info("connectivity_changed", map[string]any{"online": online, "subscribers": len(subs)})
	for _, s := range subs {
		m.notify(s, online)
	}
}

func (m *Monitor) notify(s subscriber, online bool) {
	defer func() {
		if r := recover(); r != nil {
			m.lg.Error("subscriber_panicked", fmt.Errorf("%v", r), map[string]any{"subscriber": s.id})
		}
	}()
	s.fn(online)
}

// AfterOnline calls fn once connectivity has stayed up for settle after each offline→online transition.
// A drop during the settle window cancels that call.
func AfterOnline(ctx context.Context, m *Monitor, settle time.Duration, fn func(context.Context)) func() {
	var gen atomic.Uint64
	return m.Subscribe(func(online bool) {
		g := gen.Add(1)
		if !online {
			return
		}
		go func() {
			if err := SleepOrDone(ctx, settle); err != nil {
				return
			}
			// any transition since this one means the link did not stay up
			if gen.Load() != g || !m.Status() {
				return
			}
			fn(ctx)
		}()
	})
}

// SleepOrDone waits for the duration or returns early on context cancellation.
func SleepOrDone(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
