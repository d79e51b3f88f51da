// Package store is the terminal's durable local database: orders captured while offline,
// read-through snapshots of menu and staff, and a generic replay queue.
package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"shawarma-pos/internal/domain"
)

var ErrClosed = errors.New("store is closed")

type orderRecord struct {
	ID           string             `gorm:"primaryKey;type:varchar(64)"`
	Staff        string             `gorm:"index;type:varchar(50)"`
	Items        []domain.OrderItem `gorm:"serializer:json"`
	Total        decimal.Decimal    `gorm:"type:text"`
	Timestamp    time.Time          `gorm:"index"`
	Synced       bool               `gorm:"index:idx_orders_pending,priority:1"`
	DeadLettered bool               `gorm:"index:idx_orders_pending,priority:2"`
	SavedAt      time.Time
	SyncedAt     *time.Time
	Attempts     int
	LastError    string
}

func (orderRecord) TableName() string { return "orders" }

type menuRecord struct {
	ID          string          `gorm:"primaryKey;type:varchar(64)"`
	Name        string          `gorm:"type:varchar(255)"`
	Price       decimal.Decimal `gorm:"type:text"`
	Stock       int
	LastUpdated time.Time `gorm:"index"`
}

func (menuRecord) TableName() string { return "menu_items" }

type staffRecord struct {
	Username string `gorm:"primaryKey;type:varchar(50)"`
	Role     string `gorm:"index;type:varchar(20)"`
}

func (staffRecord) TableName() string { return "staff_members" }

type queueRecord struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Type      string `gorm:"index;type:varchar(50)"`
	Data      []byte
	Timestamp time.Time `gorm:"index"`
	Retries   int
}

func (queueRecord) TableName() string { return "sync_queue" }

// OpenDB opens (or creates) the SQLite file at path. A single connection serialises writers.
func OpenDB(path string) (*gorm.DB, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			gormlogger.Config{SlowThreshold: time.Second, LogLevel: gormlogger.Silent, IgnoreRecordNotFoundError: true},
		),
	})
	if err != nil {
		return nil, &domain.StorageUnavailable{Op: "open", Err: err}
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, &domain.StorageUnavailable{Op: "open", Err: err}
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

type Store struct {
	db     *gorm.DB
	closed atomic.Bool
	now    func() time.Time
}

// New migrates the local schema on db.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&orderRecord{}, &menuRecord{}, &staffRecord{}, &queueRecord{}); err != nil {
		return nil, &domain.StorageUnavailable{Op: "migrate", Err: err}
	}
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Open is OpenDB followed by New.
func Open(path string) (*Store, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	return New(db)
}

func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) conn(ctx context.Context, op string) (*gorm.DB, error) {
	if s.closed.Load() {
		return nil, &domain.StorageUnavailable{Op: op, Err: ErrClosed}
	}
	return s.db.WithContext(ctx), nil
}

func fail(op string, err error) error {
	if err == nil {
		return nil
	}
	return &domain.StorageUnavailable{Op: op, Err: err}
}

// ===== orders =====

// SaveOrder upserts o as pending. It never touches the network.
func (s *Store) SaveOrder(ctx context.Context, o domain.Order) (string, error) {
	if o.ID == "" {
		return "", domain.ErrMissingID
	}
	db, err := s.conn(ctx, "save_order")
	if err != nil {
		return "", err
	}
	rec := orderRecord{
		ID:        o.ID,
		Staff:     o.Staff,
		Items:     o.Items,
		Total:     o.Total,
		Timestamp: o.Timestamp.UTC(),
		SavedAt:   s.now(),
	}
	if err := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error; err != nil {
		return "", fail("save_order", err)
	}
	return rec.ID, nil
}

func (s *Store) GetOrders(ctx context.Context) ([]domain.Order, error) {
	db, err := s.conn(ctx, "get_orders")
	if err != nil {
		return nil, err
	}
	var recs []orderRecord
	if err := db.Find(&recs).Error; err != nil {
		return nil, fail("get_orders", err)
	}
	return toOrders(recs), nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (domain.Order, bool, error) {
	db, err := s.conn(ctx, "get_order")
	if err != nil {
		return domain.Order{}, false, err
	}
	var rec orderRecord
	err = db.Where("id = ?", id).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Order{}, false, nil
	}
	if err != nil {
		return domain.Order{}, false, fail("get_order", err)
	}
	return rec.toDomain(), true, nil
}

// GetPendingOrders reads through idx_orders_pending.
func (s *Store) GetPendingOrders(ctx context.Context) ([]domain.Order, error) {
	db, err := s.conn(ctx, "get_pending_orders")
	if err != nil {
		return nil, err
	}
	var recs []orderRecord
	if err := db.Where("synced = ? AND dead_lettered = ?", false, false).
		Order("timestamp").Find(&recs).Error; err != nil {
		return nil, fail("get_pending_orders", err)
	}
	return toOrders(recs), nil
}

func (s *Store) CountPending(ctx context.Context) (int, error) {
	db, err := s.conn(ctx, "count_pending")
	if err != nil {
		return 0, err
	}
	var n int64
	if err := db.Model(&orderRecord{}).Where("synced = ? AND dead_lettered = ?", false, false).Count(&n).Error; err != nil {
		return 0, fail("count_pending", err)
	}
	return int(n), nil
}

// MarkOrderSynced returns false without error when id is unknown.
func (s *Store) MarkOrderSynced(ctx context.Context, id string) (bool, error) {
	db, err := s.conn(ctx, "mark_order_synced")
	if err != nil {
		return false, err
	}
	now := s.now()
	res := db.Model(&orderRecord{}).Where("id = ?", id).
		Updates(map[string]any{"synced": true, "synced_at": now, "last_error": ""})
	if res.Error != nil {
		return false, fail("mark_order_synced", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// RecordSyncFailure bumps the attempt counter; deadLetter moves the order out of the pending set.
func (s *Store) RecordSyncFailure(ctx context.Context, id, msg string, deadLetter bool) (bool, error) {
	db, err := s.conn(ctx, "record_sync_failure")
	if err != nil {
		return false, err
	}
	res := db.Model(&orderRecord{}).Where("id = ?", id).Updates(map[string]any{
		"attempts":      gorm.Expr("attempts + 1"),
		"last_error":    msg,
		"dead_lettered": deadLetter,
	})
	if res.Error != nil {
		return false, fail("record_sync_failure", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) GetFailedOrders(ctx context.Context) ([]domain.Order, error) {
	db, err := s.conn(ctx, "get_failed_orders")
	if err != nil {
		return nil, err
	}
	var recs []orderRecord
	if err := db.Where("synced = ? AND dead_lettered = ?", false, true).Order("timestamp").Find(&recs).Error; err != nil {
		return nil, fail("get_failed_orders", err)
	}
	return toOrders(recs), nil
}

// RequeueOrder returns a dead-lettered order to the pending set with a fresh attempt budget.
func (s *Store) RequeueOrder(ctx context.Context, id string) (bool, error) {
	db, err := s.conn(ctx, "requeue_order")
	if err != nil {
		return false, err
	}
	res := db.Model(&orderRecord{}).Where("id = ? AND synced = ?", id, false).
		Updates(map[string]any{"dead_lettered": false, "attempts": 0, "last_error": ""})
	if res.Error != nil {
		return false, fail("requeue_order", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) DeleteOrder(ctx context.Context, id string) error {
	db, err := s.conn(ctx, "delete_order")
	if err != nil {
		return err
	}
	return fail("delete_order", db.Where("id = ?", id).Delete(&orderRecord{}).Error)
}

// ===== snapshots =====

// SaveMenu replaces the whole menu snapshot in one transaction.
func (s *Store) SaveMenu(ctx context.Context, items []domain.MenuItem) error {
	db, err := s.conn(ctx, "save_menu")
	if err != nil {
		return err
	}
	now := s.now()
	recs := make([]menuRecord, 0, len(items))
	for _, it := range items {
		recs = append(recs, menuRecord{ID: it.ID, Name: it.Name, Price: it.Price, Stock: it.Stock, LastUpdated: now})
	}
	return fail("save_menu", db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM menu_items").Error; err != nil {
			return err
		}
		if len(recs) == 0 {
			return nil
		}
		return tx.Create(&recs).Error
	}))
}

func (s *Store) GetMenu(ctx context.Context) ([]domain.MenuItem, error) {
	db, err := s.conn(ctx, "get_menu")
	if err != nil {
		return nil, err
	}
	var recs []menuRecord
	if err := db.Order("id").Find(&recs).Error; err != nil {
		return nil, fail("get_menu", err)
	}
	out := make([]domain.MenuItem, 0, len(recs))
	for _, r := range recs {
		out = append(out, domain.MenuItem{ID: r.ID, Name: r.Name, Price: r.Price, Stock: r.Stock, LastUpdated: r.LastUpdated})
	}
	return out, nil
}

// SaveStaff replaces the whole staff snapshot in one transaction.
func (s *Store) SaveStaff(ctx context.Context, list []domain.StaffMember) error {
	db, err := s.conn(ctx, "save_staff")
	if err != nil {
		return err
	}
	recs := make([]staffRecord, 0, len(list))
	for _, m := range list {
		recs = append(recs, staffRecord{Username: m.Username, Role: m.Role})
	}
	return fail("save_staff", db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM staff_members").Error; err != nil {
			return err
		}
		if len(recs) == 0 {
			return nil
		}
		return tx.Create(&recs).Error
	}))
}

func (s *Store) GetStaff(ctx context.Context) ([]domain.StaffMember, error) {
	db, err := s.conn(ctx, "get_staff")
	if err != nil {
		return nil, err
	}
	var recs []staffRecord
	if err := db.Order("username").Find(&recs).Error; err != nil {
		return nil, fail("get_staff", err)
	}
	out := make([]domain.StaffMember, 0, len(recs))
	for _, r := range recs {
		out = append(out, domain.StaffMember{Username: r.Username, Role: r.Role})
	}
	return out, nil
}

// ===== generic sync queue =====

func (s *Store) AddToSyncQueue(ctx context.Context, typ string, data []byte) (uint, error) {
	db, err := s.conn(ctx, "add_to_sync_queue")
	if err != nil {
		return 0, err
	}
	rec := queueRecord{Type: typ, Data: data, Timestamp: s.now()}
	if err := db.Create(&rec).Error; err != nil {
		return 0, fail("add_to_sync_queue", err)
	}
	return rec.ID, nil
}

func (s *Store) GetSyncQueue(ctx context.Context) ([]domain.SyncQueueEntry, error) {
	db, err := s.conn(ctx, "get_sync_queue")
	if err != nil {
		return nil, err
	}
	var recs []queueRecord
	if err := db.Order("id").Find(&recs).Error; err != nil {
		return nil, fail("get_sync_queue", err)
	}
	out := make([]domain.SyncQueueEntry, 0, len(recs))
	for _, r := range recs {
		out = append(out, domain.SyncQueueEntry{ID: r.ID, Type: r.Type, Data: r.Data, Timestamp: r.Timestamp, Retries: r.Retries})
	}
	return out, nil
}

func (s *Store) RemoveSyncQueueItem(ctx context.Context, id uint) error {
	db, err := s.conn(ctx, "remove_sync_queue_item")
	if err != nil {
		return err
	}
	return fail("remove_sync_queue_item", db.Delete(&queueRecord{}, id).Error)
}

func (s *Store) IncrementSyncQueueRetries(ctx context.Context, id uint) error {
	db, err := s.conn(ctx, "increment_sync_queue_retries")
	if err != nil {
		return err
	}
	return fail("increment_sync_queue_retries",
		db.Model(&queueRecord{}).Where("id = ?", id).Update("retries", gorm.Expr("retries + 1")).Error)
}

// ClearAll wipes every local collection (logout / reset).
func (s *Store) ClearAll(ctx context.Context) error {
	db, err := s.conn(ctx, "clear_all")
	if err != nil {
		return err
	}
	return fail("clear_all", db.Transaction(func(tx *gorm.DB) error {
		for _, table := range []string{"orders", "menu_items", "staff_members", "sync_queue"} {
			if err := tx.Exec(fmt.Sprintf("DELETE FROM %s", table)).Error; err != nil {
				return err
			}
		}
		return nil
	}))
}

func (r orderRecord) toDomain() domain.Order {
	return domain.Order{
		ID:           r.ID,
		Staff:        r.Staff,
		Items:        r.Items,
		Total:        r.Total,
		Timestamp:    r.Timestamp,
		Synced:       r.Synced,
		SavedAt:      r.SavedAt,
		SyncedAt:     r.SyncedAt,
		Attempts:     r.Attempts,
		LastError:    r.LastError,
		DeadLettered: r.DeadLettered,
	}
}

func toOrders(recs []orderRecord) []domain.Order {
	out := make([]domain.Order, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toDomain())
	}
	return out
}
