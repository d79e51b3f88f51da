package domain

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	offlinePrefix  = "offline-"
	base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
)

var (
	ErrNoItems      = errors.New("order has no items")
	ErrMissingStaff = errors.New("order staff is required")
	ErrInvalidItem  = errors.New("invalid order item")
	ErrMissingID    = errors.New("order id is required")

	base36AlphaCount = big.NewInt(int64(len(base36Alphabet)))
)

// NewOfflineID returns offline-<unix ms>-<9 base36 chars>.
func NewOfflineID(now time.Time) string {
	var sb strings.Builder
	sb.Grow(9)
	for i := 0; i < 9; i++ {
		n, err := rand.Int(rand.Reader, base36AlphaCount)
		if err != nil {
			panic(fmt.Sprintf("crypto/rand: %v", err))
		}
		sb.WriteByte(base36Alphabet[n.Int64()])
	}
	return fmt.Sprintf("%s%d-%s", offlinePrefix, now.UnixMilli(), sb.String())
}

func IsOfflineID(id string) bool { return strings.HasPrefix(id, offlinePrefix) }

func ComputeTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// NewOrder validates the input, assigns an offline id and computes the total once.
func NewOrder(staff string, items []OrderItem, now time.Time) (Order, error) {
	o := Order{Staff: strings.TrimSpace(staff), Items: items, Timestamp: now.UTC()}
	if err := o.Validate(); err != nil {
		return Order{}, err
	}
	o.ID = NewOfflineID(now)
	o.Total = ComputeTotal(items)
	return o, nil
}

func (o Order) Validate() error {
	if o.Staff == "" {
		return ErrMissingStaff
	}
	if len(o.Items) == 0 {
		return ErrNoItems
	}
	for i, it := range o.Items {
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: item %d (%s) quantity %d", ErrInvalidItem, i, it.Name, it.Quantity)
		}
		if it.Price.IsNegative() {
			return fmt.Errorf("%w: item %d (%s) negative price", ErrInvalidItem, i, it.Name)
		}
	}
	return nil
}
