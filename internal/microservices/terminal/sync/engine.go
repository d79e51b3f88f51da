// Package sync replays orders captured offline against the backend.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	gosync "sync"
	"sync/atomic"
	"time"

	"shawarma-pos/internal/common/logger"
	"shawarma-pos/internal/domain"
)

const BackgroundTag = "sync-orders"

type OrderStore interface {
	SaveOrder(ctx context.Context, o domain.Order) (string, error)
	GetPendingOrders(ctx context.Context) ([]domain.Order, error)
	MarkOrderSynced(ctx context.Context, id string) (bool, error)
	RecordSyncFailure(ctx context.Context, id, msg string, deadLetter bool) (bool, error)
	CountPending(ctx context.Context) (int, error)
	AddToSyncQueue(ctx context.Context, typ string, data []byte) (uint, error)
	GetSyncQueue(ctx context.Context) ([]domain.SyncQueueEntry, error)
	RemoveSyncQueueItem(ctx context.Context, id uint) error
	IncrementSyncQueueRetries(ctx context.Context, id uint) error
}

type Remote interface {
	CreateOrder(ctx context.Context, o domain.Order) (domain.CreateOrderResult, error)
	UpdateStock(ctx context.Context, id string, stock int) error
}

type Connectivity interface {
	Status() bool
}

// BackgroundSync asks the platform to run a pass later, even without a foreground trigger.
type BackgroundSync interface {
	Register(tag string) error
}

type Config struct {
	RequestTimeout time.Duration
	// MaxAttempts caps permanent rejections before an order is dead-lettered; 0 retries forever.
	MaxAttempts int
}

type Result struct {
	Ran          bool
	Synced       int
	Failed       int
	DeadLettered int
	Replayed     int
	// QueueDropped counts queue entries discarded after a permanent rejection.
	QueueDropped int
}

type subscriber struct {
	id int
	fn func(domain.SyncEvent)
}

type Engine struct {
	store  OrderStore
	remote Remote
	net    Connectivity
	bg     BackgroundSync
	cfg    Config
	lg     *logger.Logger
	now    func() time.Time

	syncing atomic.Bool

	mu     gosync.RWMutex
	subs   []subscriber
	nextID int
}

func New(store OrderStore, remote Remote, net Connectivity, cfg Config, lg *logger.Logger) *Engine {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	if lg == nil {
		lg = logger.New("sync-engine")
	}
	return &Engine{
		store:  store,
		remote: remote,
		net:    net,
		cfg:    cfg,
		lg:     lg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetBackgroundSync wires the optional background facility. nil disables registration.
func (e *Engine) SetBackgroundSync(bg BackgroundSync) { e.bg = bg }

func (e *Engine) IsSyncing() bool { return e.syncing.Load() }

// Subscribe delivers every sync event to fn until the returned func is called.
func (e *Engine) Subscribe(fn func(domain.SyncEvent)) func() {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.subs = append(e.subs, subscriber{id: id, fn: fn})
	e.mu.Unlock()

	var once gosync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			for i, s := range e.subs {
				if s.id == id {
					e.subs = append(e.subs[:i:i], e.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (e *Engine) emit(ev domain.SyncEvent) {
	e.mu.RLock()
	subs := make([]subscriber, len(e.subs))
	copy(subs, e.subs)
	e.mu.RUnlock()
	for _, s := range subs {
		e.deliver(s, ev)
	}
}

func (e *Engine) deliver(s subscriber, ev domain.SyncEvent) {
	defer func() {
		if r := recover(); r != nil {
			e.lg.Error("sync_subscriber_panicked", fmt.Errorf("%v", r), map[string]any{"event": string(ev.Type)})
		}
	}()
	s.fn(ev)
}

// TriggerSync is the manual trigger. It reports whether a pass actually ran.
func (e *Engine) TriggerSync(ctx context.Context) bool {
	res, _ := e.SyncPendingOrders(ctx)
	return res.Ran
}

// SyncPendingOrders runs one pass. A call while another pass is running, or while offline,
// returns at once with Ran=false.
func (e *Engine) SyncPendingOrders(ctx context.Context) (Result, error) {
	if !e.net.Status() {
		return Result{}, nil
	}
	if !e.syncing.CompareAndSwap(false, true) {
		e.lg.Debug("sync_skipped", map[string]any{"reason": domain.ErrSyncInProgress.Error()})
		return Result{}, nil
	}
	defer e.syncing.Store(false)

	res := Result{Ran: true}
	e.emit(domain.SyncEvent{Type: domain.SyncStart})

	pending, err := e.store.GetPendingOrders(ctx)
	if err != nil {
		e.lg.Error("sync_load_failed", err, nil)
		e.emit(domain.SyncEvent{Type: domain.SyncError, Error: err.Error()})
		return res, err
	}
	e.lg.Info("sync_started", map[string]any{"pending": len(pending)})

	// строго по одному: следующий заказ только после ответа на предыдущий
	for _, o := range pending {
		if ctx.Err() != nil {
			break
		}
		if e.submit(ctx, o, &res) {
			res.Synced++
		} else {
			res.Failed++
		}
	}

	res.Replayed, res.QueueDropped = e.drainQueue(ctx)
	e.RefreshPendingCount(ctx)
	e.emit(domain.SyncEvent{Type: domain.SyncComplete, Synced: res.Synced, Failed: res.Failed})
	e.lg.Info("sync_completed", map[string]any{
		"synced": res.Synced, "failed": res.Failed, "dead_lettered": res.DeadLettered,
		"queue_replayed": res.Replayed, "queue_dropped": res.QueueDropped,
	})
	return res, nil
}

func (e *Engine) submit(ctx context.Context, o domain.Order, res *Result) bool {
	rctx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	ack, err := e.remote.CreateOrder(rctx, o)
	cancel()

	if err == nil {
		if _, merr := e.store.MarkOrderSynced(ctx, o.ID); merr != nil {
			// the backend has it; the next pass will replay and get a duplicate ack
			e.lg.Error("mark_synced_failed", merr, map[string]any{"order_id": o.ID})
			return false
		}
		e.lg.Debug("order_synced", map[string]any{"order_id": o.ID, "duplicate": ack.Duplicate})
		return true
	}

	attempts := o.Attempts + 1
	dead := e.cfg.MaxAttempts > 0 && domain.IsPermanentRejection(err) && attempts >= e.cfg.MaxAttempts
	if _, ferr := e.store.RecordSyncFailure(ctx, o.ID, err.Error(), dead); ferr != nil {
		e.lg.Error("record_failure_failed", ferr, map[string]any{"order_id": o.ID})
	}
	if dead {
		res.DeadLettered++
		e.lg.Warn("order_dead_lettered", map[string]any{"order_id": o.ID, "attempts": attempts, "error": err.Error()})
	} else {
		e.lg.Warn("order_sync_failed", map[string]any{"order_id": o.ID, "attempts": attempts, "kind": domain.Kind(err), "error": err.Error()})
	}
	return false
}

// drainQueue replays generic entries in id order and stops at the first retryable failure,
// so a later entry never overtakes an earlier one. An entry rejected permanently MaxAttempts
// times is dropped so it cannot block the rest of the queue.
func (e *Engine) drainQueue(ctx context.Context) (done, dropped int) {
	entries, err := e.store.GetSyncQueue(ctx)
	if err != nil {
		e.lg.Error("sync_queue_load_failed", err, nil)
		return 0, 0
	}
	for _, entry := range entries {
		if ctx.Err() != nil {
			return done, dropped
		}
		err := e.replay(ctx, entry)
		if errors.Is(err, errUnknownEntry) {
			e.lg.Warn("sync_queue_entry_skipped", map[string]any{"entry_id": entry.ID, "type": entry.Type})
			continue
		}
		if err != nil {
			attempts := entry.Retries + 1
			if e.cfg.MaxAttempts > 0 && domain.IsPermanentRejection(err) && attempts >= e.cfg.MaxAttempts {
				if rerr := e.store.RemoveSyncQueueItem(ctx, entry.ID); rerr != nil {
					e.lg.Error("sync_queue_remove_failed", rerr, map[string]any{"entry_id": entry.ID})
					return done, dropped
				}
				dropped++
				e.lg.Warn("sync_queue_entry_dropped", map[string]any{
					"entry_id": entry.ID, "type": entry.Type, "data": string(entry.Data), "attempts": attempts, "error": err.Error(),
				})
				continue
			}
			if ierr := e.store.IncrementSyncQueueRetries(ctx, entry.ID); ierr != nil {
				e.lg.Error("sync_queue_retry_failed", ierr, map[string]any{"entry_id": entry.ID})
			}
			e.lg.Warn("sync_queue_replay_failed", map[string]any{"entry_id": entry.ID, "type": entry.Type, "attempts": attempts, "error": err.Error()})
			return done, dropped
		}
		if err := e.store.RemoveSyncQueueItem(ctx, entry.ID); err != nil {
			e.lg.Error("sync_queue_remove_failed", err, map[string]any{"entry_id": entry.ID})
			return done, dropped
		}
		done++
	}
	return done, dropped
}

var errUnknownEntry = errors.New("unknown sync queue entry type")

func (e *Engine) replay(ctx context.Context, entry domain.SyncQueueEntry) error {
	rctx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()
	switch entry.Type {
	case domain.QueueMenuStock:
		var u domain.StockUpdate
		if err := json.Unmarshal(entry.Data, &u); err != nil {
			return fmt.Errorf("decode %s: %w", entry.Type, err)
		}
		return e.remote.UpdateStock(rctx, u.ID, u.Stock)
	default:
		return fmt.Errorf("%w: %q", errUnknownEntry, entry.Type)
	}
}

// SaveOfflineOrder assigns an id when missing, persists the order as pending and asks for a
// background sync. Storage failures are returned: the order is not captured.
func (e *Engine) SaveOfflineOrder(ctx context.Context, o domain.Order) (domain.Order, error) {
	now := e.now()
	if o.ID == "" {
		o.ID = domain.NewOfflineID(now)
	}
	if o.Timestamp.IsZero() {
		o.Timestamp = now
	}
	if o.Total.IsZero() && len(o.Items) > 0 {
		o.Total = domain.ComputeTotal(o.Items)
	}
	if err := o.Validate(); err != nil {
		return domain.Order{}, err
	}
	if _, err := e.store.SaveOrder(ctx, o); err != nil {
		e.lg.Error("offline_order_not_captured", err, map[string]any{"order_id": o.ID})
		return domain.Order{}, err
	}
	o.Synced = false
	e.lg.Info("offline_order_saved", map[string]any{"order_id": o.ID, "staff": o.Staff, "total": o.Total.String()})

	e.RefreshPendingCount(ctx)
	if e.bg != nil {
		if err := e.bg.Register(BackgroundTag); err != nil {
			e.lg.Warn("background_sync_unavailable", map[string]any{"error": err.Error()})
		}
	}
	return o, nil
}

// QueueStockUpdate stores a stock edit made while offline for later replay.
func (e *Engine) QueueStockUpdate(ctx context.Context, u domain.StockUpdate) (uint, error) {
	b, err := json.Marshal(u)
	if err != nil {
		return 0, err
	}
	id, err := e.store.AddToSyncQueue(ctx, domain.QueueMenuStock, b)
	if err != nil {
		return 0, err
	}
	if e.bg != nil {
		if err := e.bg.Register(BackgroundTag); err != nil {
			e.lg.Warn("background_sync_unavailable", map[string]any{"error": err.Error()})
		}
	}
	return id, nil
}

func (e *Engine) PendingCount(ctx context.Context) (int, error) {
	return e.store.CountPending(ctx)
}

// RefreshPendingCount emits PENDING_COUNT with the current number of pending orders.
func (e *Engine) RefreshPendingCount(ctx context.Context) {
	n, err := e.store.CountPending(ctx)
	if err != nil {
		e.lg.Error("pending_count_failed", err, nil)
		return
	}
	e.emit(domain.SyncEvent{Type: domain.PendingCount, Count: n})
}
