package network

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"shawarma-pos/internal/common/logger"
)

func quietLogger() *logger.Logger { return logger.NewWithWriter("test", io.Discard, "error") }

func TestMonitorNotifiesOnTransitionsOnly(t *testing.T) {
	t.Parallel()

	m := NewMonitor(false, quietLogger())
	var got []bool
	m.Subscribe(func(online bool) { got = append(got, online) })

	m.Set(false)
	m.Set(true)
	m.Set(true)
	m.Set(false)

	if len(got) != 2 || got[0] != true || got[1] != false {
		t.Fatalf("expected [true false], got %v", got)
	}
	if m.Status() {
		t.Fatal("expected offline status")
	}
}

func TestMonitorIsolatesPanickingSubscriber(t *testing.T) {
	t.Parallel()

	m := NewMonitor(false, quietLogger())
	var before, after atomic.Int32
	m.Subscribe(func(bool) { before.Add(1) })
	m.Subscribe(func(bool) { panic("listener bug") })
	m.Subscribe(func(bool) { after.Add(1) })

	m.Set(true)

	if before.Load() != 1 || after.Load() != 1 {
		t.Fatalf("expected both healthy subscribers called once, got before=%d after=%d", before.Load(), after.Load())
	}
}

func TestMonitorUnsubscribe(t *testing.T) {
	t.Parallel()

	m := NewMonitor(true, quietLogger())
	var calls atomic.Int32
	unsub := m.Subscribe(func(bool) { calls.Add(1) })
	m.Set(false)
	unsub()
	unsub()
	m.Set(true)

	if calls.Load() != 1 {
		t.Fatalf("expected 1 call, got %d", calls.Load())
	}
}

func TestAfterOnlineSettles(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewMonitor(false, quietLogger())
	fired := make(chan struct{}, 4)
	AfterOnline(ctx, m, 30*time.Millisecond, func(context.Context) { fired <- struct{}{} })

	// flap: up then down inside the settle window
	m.Set(true)
	m.Set(false)
	select {
	case <-fired:
		t.Fatal("sync must not fire when connectivity dropped during settle")
	case <-time.After(80 * time.Millisecond):
	}

	m.Set(true)
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("expected callback after settle delay")
	}
}

func TestSleepOrDone(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := SleepOrDone(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
	if err := SleepOrDone(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

type stubChecker struct {
	mu  sync.Mutex
	err error
}

func (s *stubChecker) set(err error) { s.mu.Lock(); s.err = err; s.mu.Unlock() }

func (s *stubChecker) Health(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func TestProberFeedsMonitor(t *testing.T) {
	t.Parallel()

	m := NewMonitor(false, quietLogger())
	chk := &stubChecker{}
	p := NewProber(chk, m, time.Second, quietLogger())

	if !p.ProbeOnce(context.Background()) || !m.Status() {
		t.Fatal("expected online after healthy probe")
	}
	chk.set(errors.New("connection refused"))
	if p.ProbeOnce(context.Background()) || m.Status() {
		t.Fatal("expected offline after failed probe")
	}
}

func TestOnlineRegistrar(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewMonitor(false, quietLogger())
	fired := make(chan string, 4)
	r := NewOnlineRegistrar(ctx, m, 10*time.Millisecond, func(tag string) { fired <- tag })
	defer r.Close()

	if err := r.Register("sync-orders"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register("sync-orders"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if got := r.Pending(); len(got) != 1 {
		t.Fatalf("expected one pending tag, got %v", got)
	}

	m.Set(true)
	select {
	case tag := <-fired:
		if tag != "sync-orders" {
			t.Fatalf("unexpected tag %q", tag)
		}
	case <-time.After(time.Second):
		t.Fatal("registration did not fire on reconnect")
	}
	select {
	case tag := <-fired:
		t.Fatalf("tag fired twice: %q", tag)
	case <-time.After(50 * time.Millisecond):
	}

	// already online: fires right away
	_ = r.Register("sync-orders")
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("expected immediate fire while online")
	}
}

func TestOnlineRegistrarWaitsForSettle(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewMonitor(false, quietLogger())
	fired := make(chan string, 4)
	r := NewOnlineRegistrar(ctx, m, 60*time.Millisecond, func(tag string) { fired <- tag })
	defer r.Close()
	_ = r.Register("sync-orders")

	// link flaps inside the settle window
	m.Set(true)
	m.Set(false)
	select {
	case tag := <-fired:
		t.Fatalf("tag %q fired although the link dropped during settle", tag)
	case <-time.After(150 * time.Millisecond):
	}
	if got := r.Pending(); len(got) != 1 {
		t.Fatalf("tag must stay pending after a flap, got %v", got)
	}

	m.Set(true)
	select {
	case <-fired:
		t.Fatal("fired before the settle delay elapsed")
	case <-time.After(20 * time.Millisecond):
	}
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("tag did not fire once the link stayed up")
	}
}

func TestAfterOnlineRequiresLinkToStayUp(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewMonitor(false, quietLogger())
	var calls atomic.Int32
	AfterOnline(ctx, m, 50*time.Millisecond, func(context.Context) { calls.Add(1) })

	// up, down, up again: only the last transition may fire
	m.Set(true)
	m.Set(false)
	time.Sleep(10 * time.Millisecond)
	m.Set(true)
	time.Sleep(200 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Fatalf("expected exactly one call for the stable transition, got %d", n)
	}
}
