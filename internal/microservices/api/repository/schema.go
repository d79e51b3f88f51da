package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"shawarma-pos/internal/common/logger"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		username   VARCHAR(50) PRIMARY KEY,
		password   VARCHAR(255) NOT NULL,
		role       VARCHAR(20) DEFAULT 'staff',
		meta       JSONB,
		created_at TIMESTAMPTZ DEFAULT NOW(),
		updated_at TIMESTAMPTZ DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS menu (
		id         VARCHAR(50) PRIMARY KEY,
		name       VARCHAR(255) NOT NULL,
		price      DECIMAL(10,2) NOT NULL DEFAULT 0,
		stock      INTEGER NOT NULL DEFAULT 0,
		meta       JSONB,
		created_at TIMESTAMPTZ DEFAULT NOW(),
		updated_at TIMESTAMPTZ DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id                 VARCHAR(64) PRIMARY KEY,
		staff              VARCHAR(50) REFERENCES users(username),
		timestamp          TIMESTAMPTZ DEFAULT NOW(),
		total              DECIMAL(10,2) NOT NULL DEFAULT 0,
		payload            JSONB,
		server_received_at TIMESTAMPTZ DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_staff ON orders(staff)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_timestamp ON orders(timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_received ON orders(server_received_at)`,
	`CREATE INDEX IF NOT EXISTS idx_menu_stock ON menu(stock)`,
}

type seedUser struct {
	username, password, role string
}

type seedItem struct {
	id, name string
	price    int64
	stock    int
}

var (
	defaultUsers = []seedUser{
		{"admin", "admin123", "admin"},
		{"staff1", "staff123", "staff"},
	}
	defaultMenu = []seedItem{
		{"m-1", "Shawarma Wrap", 20, 25},
		{"m-2", "Chicken Shawarma", 25, 20},
		{"m-3", "Beef Shawarma", 28, 18},
	}
)

// InitSchema creates the tables and seeds an empty database. Default users are only
// created outside production.
func InitSchema(ctx context.Context, pool *pgxpool.Pool, production bool, lg *logger.Logger) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	if !production {
		var users int
		if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&users); err != nil {
			return fmt.Errorf("failed to count users: %w", err)
		}
		if users == 0 {
			for _, u := range defaultUsers {
				hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
				if err != nil {
					return fmt.Errorf("hash seed password: %w", err)
				}
				if _, err := pool.Exec(ctx, `INSERT INTO users (username, password, role) VALUES ($1, $2, $3)`,
					u.username, string(hash), u.role); err != nil {
					return fmt.Errorf("failed to seed user %s: %w", u.username, err)
				}
			}
			lg.Info("default_users_created", map[string]any{"count": len(defaultUsers)})
		}
	}

	var items int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM menu`).Scan(&items); err != nil {
		return fmt.Errorf("failed to count menu: %w", err)
	}
	if items == 0 {
		for _, m := range defaultMenu {
			if _, err := pool.Exec(ctx, `INSERT INTO menu (id, name, price, stock) VALUES ($1, $2, $3, $4)`,
				m.id, m.name, decimal.NewFromInt(m.price), m.stock); err != nil {
				return fmt.Errorf("failed to seed menu item %s: %w", m.id, err)
			}
		}
		lg.Info("default_menu_created", map[string]any{"count": len(defaultMenu)})
	}
	return nil
}
