package network

import (
	"context"
	"sync"
	"time"
)

// OnlineRegistrar is the terminal's background sync facility: a registered tag fires
// once connectivity has come back and stayed up for the settle delay, or right away
// when already online.
type OnlineRegistrar struct {
	monitor *Monitor
	fire    func(tag string)

	mu      sync.Mutex
	pending map[string]struct{}
	unsub   func()
}

func NewOnlineRegistrar(ctx context.Context, m *Monitor, settle time.Duration, fire func(tag string)) *OnlineRegistrar {
	r := &OnlineRegistrar{monitor: m, fire: fire, pending: make(map[string]struct{})}
	r.unsub = AfterOnline(ctx, m, settle, func(context.Context) { r.flush() })
	return r
}

func (r *OnlineRegistrar) Register(tag string) error {
	if r.monitor.Status() {
		go r.fire(tag)
		return nil
	}
	r.mu.Lock()
	r.pending[tag] = struct{}{}
	r.mu.Unlock()
	return nil
}

// Pending lists tags waiting for connectivity.
func (r *OnlineRegistrar) Pending() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.pending))
	for t := range r.pending {
		out = append(out, t)
	}
	return out
}

func (r *OnlineRegistrar) Close() { r.unsub() }

func (r *OnlineRegistrar) flush() {
	r.mu.Lock()
	tags := r.pending
	r.pending = make(map[string]struct{})
	r.mu.Unlock()
	for t := range tags {
		go r.fire(t)
	}
}
