package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateOrderRequest is the wire body of POST /api/orders.
type CreateOrderRequest struct {
	ID        string          `json:"id"`
	Staff     string          `json:"staff"`
	User      string          `json:"user,omitempty"`
	Items     []OrderItem     `json:"items"`
	Total     decimal.Decimal `json:"total"`
	Timestamp *time.Time      `json:"timestamp,omitempty"`
}

func (r CreateOrderRequest) StaffName() string {
	if r.User != "" {
		return r.User
	}
	return r.Staff
}

func RequestFromOrder(o Order) CreateOrderRequest {
	ts := o.Timestamp
	return CreateOrderRequest{ID: o.ID, Staff: o.Staff, Items: o.Items, Total: o.Total, Timestamp: &ts}
}

type CreateOrderResult struct {
	OK        bool   `json:"ok"`
	ID        string `json:"id,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Error     string `json:"error,omitempty"`
	Offline   bool   `json:"offline,omitempty"`
	Message   string `json:"message,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	OK    bool        `json:"ok"`
	Token string      `json:"token"`
	User  StaffMember `json:"user"`
}

type CreateStaffRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

type CreateMenuItemRequest struct {
	Name  string           `json:"name" binding:"required"`
	Price *decimal.Decimal `json:"price" binding:"required"`
	Stock *int             `json:"stock" binding:"required"`
}

type UpdateStockRequest struct {
	Stock *int `json:"stock" binding:"required"`
}

type DeleteOrdersRequest struct {
	Staff  string `json:"staff"`
	Action string `json:"action"`
}
