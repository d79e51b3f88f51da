package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"shawarma-pos/internal/domain"
)

const (
	pgForeignKeyViolation = "23503"
	pgUndefinedTable      = "42P01"
)

var (
	ErrUnknownStaff     = errors.New("unknown staff member")
	ErrSchemaNotCreated = errors.New("database schema not initialized")
)

type OrderRepositoryInterface interface {
	// InsertOrder stores o once. inserted is false when the id already existed.
	InsertOrder(ctx context.Context, o domain.ServerOrder, items []domain.OrderItem) (inserted bool, err error)
	ListOrders(ctx context.Context, limit int) ([]domain.ServerOrder, error)
	DeleteOrdersByStaff(ctx context.Context, staff string) (int64, error)
	DeleteAllOrders(ctx context.Context) (int64, error)
}

type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) OrderRepositoryInterface {
	return &OrderRepository{pool: pool}
}

func (or *OrderRepository) InsertOrder(ctx context.Context, o domain.ServerOrder, items []domain.OrderItem) (bool, error) {
	tx, err := or.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// 1. Insert order; a replay of the same id is a no-op
	var id string
	err = tx.QueryRow(ctx, `
		INSERT INTO orders (id, staff, timestamp, total, payload, server_received_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
		RETURNING id
	`, o.ID, o.Staff, o.Timestamp, o.Total, o.Payload, o.ServerReceivedAt).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, classify("insert order", err)
	}

	// 2. Decrement stock only for a first write
	if len(items) > 0 {
		batch := &pgx.Batch{}
		for _, it := range items {
			batch.Queue(`UPDATE menu SET stock = GREATEST(stock - $1, 0), updated_at = NOW() WHERE id = $2`, it.Quantity, it.ID)
		}
		br := tx.SendBatch(ctx, batch)
		for _, it := range items {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return false, classify("decrement stock "+it.ID, err)
			}
		}
		if err := br.Close(); err != nil {
			return false, classify("decrement stock", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, classify("commit order", err)
	}
	return true, nil
}

func (or *OrderRepository) ListOrders(ctx context.Context, limit int) ([]domain.ServerOrder, error) {
	rows, err := or.pool.Query(ctx, `
		SELECT id, COALESCE(staff, ''), timestamp, total, COALESCE(payload, 'null'::jsonb), server_received_at
		FROM orders
		ORDER BY server_received_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, classify("list orders", err)
	}
	defer rows.Close()

	out := make([]domain.ServerOrder, 0, limit)
	for rows.Next() {
		var o domain.ServerOrder
		var payload []byte
		if err := rows.Scan(&o.ID, &o.Staff, &o.Timestamp, &o.Total, &payload, &o.ServerReceivedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		if string(payload) != "null" {
			o.Payload = payload
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list orders", err)
	}
	return out, nil
}

func (or *OrderRepository) DeleteOrdersByStaff(ctx context.Context, staff string) (int64, error) {
	tag, err := or.pool.Exec(ctx, `DELETE FROM orders WHERE staff = $1`, staff)
	if err != nil {
		return 0, classify("delete staff orders", err)
	}
	return tag.RowsAffected(), nil
}

func (or *OrderRepository) DeleteAllOrders(ctx context.Context) (int64, error) {
	tag, err := or.pool.Exec(ctx, `DELETE FROM orders`)
	if err != nil {
		return 0, classify("delete all orders", err)
	}
	return tag.RowsAffected(), nil
}

// classify maps Postgres error codes the API reports specially onto sentinels.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgForeignKeyViolation:
			return fmt.Errorf("%s: %w", op, ErrUnknownStaff)
		case pgUndefinedTable:
			return fmt.Errorf("%s: %w", op, ErrSchemaNotCreated)
		}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
