package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type OrderItem struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// Order is the terminal-side record. Total is fixed at creation.
type Order struct {
	ID        string          `json:"id"`
	Staff     string          `json:"staff"`
	Items     []OrderItem     `json:"items"`
	Total     decimal.Decimal `json:"total"`
	Timestamp time.Time       `json:"timestamp"`

	Synced   bool       `json:"synced"`
	SavedAt  time.Time  `json:"savedAt"`
	SyncedAt *time.Time `json:"syncedAt,omitempty"`

	Attempts     int    `json:"attempts,omitempty"`
	LastError    string `json:"lastError,omitempty"`
	DeadLettered bool   `json:"deadLettered,omitempty"`
}

type MenuItem struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	LastUpdated time.Time       `json:"lastUpdated,omitempty"`
}

type StaffMember struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// SyncQueueEntry — отложенная операция, не связанная с заказами.
type SyncQueueEntry struct {
	ID        uint      `json:"id"`
	Type      string    `json:"type"`
	Data      []byte    `json:"data"`
	Timestamp time.Time `json:"timestamp"`
	Retries   int       `json:"retries"`
}

const QueueMenuStock = "menu.stock"

type StockUpdate struct {
	ID    string `json:"id"`
	Stock int    `json:"stock"`
}

// ServerOrder is a row of the backend orders table.
type ServerOrder struct {
	ID               string          `json:"id"`
	Staff            string          `json:"staff"`
	Timestamp        time.Time       `json:"timestamp"`
	Total            decimal.Decimal `json:"total"`
	Payload          json.RawMessage `json:"payload,omitempty"`
	ServerReceivedAt time.Time       `json:"serverReceivedAt"`
}
