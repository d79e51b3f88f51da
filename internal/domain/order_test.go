package domain

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var offlineIDPattern = regexp.MustCompile(`^offline-\d+-[0-9a-z]{9}$`)

func TestNewOfflineID(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1700000000123)
	seen := make(map[string]struct{}, 200)
	for i := 0; i < 200; i++ {
		id := NewOfflineID(now)
		if !offlineIDPattern.MatchString(id) {
			t.Fatalf("unexpected id format %q", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
	if !IsOfflineID(NewOfflineID(now)) {
		t.Fatal("expected offline prefix")
	}
}

func TestNewOrderComputesTotalOnce(t *testing.T) {
	t.Parallel()

	items := []OrderItem{
		{ID: "m-1", Name: "Wrap", Price: decimal.RequireFromString("20"), Quantity: 2},
		{ID: "m-2", Name: "Chicken", Price: decimal.RequireFromString("12.50"), Quantity: 1},
	}
	o, err := NewOrder(" alice ", items, time.Now())
	if err != nil {
		t.Fatalf("new order: %v", err)
	}
	if o.Staff != "alice" {
		t.Fatalf("expected trimmed staff, got %q", o.Staff)
	}
	if !o.Total.Equal(decimal.RequireFromString("52.50")) {
		t.Fatalf("expected total 52.50, got %s", o.Total)
	}
	if o.Items[0].ID != "m-1" || o.Items[1].ID != "m-2" {
		t.Fatal("item order not preserved")
	}

	o.Items[0].Quantity = 10
	if !o.Total.Equal(decimal.RequireFromString("52.50")) {
		t.Fatal("total must not follow later item edits")
	}
}

func TestNewOrderValidation(t *testing.T) {
	t.Parallel()

	wrap := OrderItem{ID: "m-1", Name: "Wrap", Price: decimal.NewFromInt(20), Quantity: 1}
	tests := []struct {
		name  string
		staff string
		items []OrderItem
		want  error
	}{
		{name: "no_staff", staff: "", items: []OrderItem{wrap}, want: ErrMissingStaff},
		{name: "no_items", staff: "alice", items: nil, want: ErrNoItems},
		{name: "zero_quantity", staff: "alice", items: []OrderItem{{Name: "x", Price: decimal.NewFromInt(1)}}, want: ErrInvalidItem},
		{name: "negative_price", staff: "alice", items: []OrderItem{{Name: "x", Price: decimal.NewFromInt(-1), Quantity: 1}}, want: ErrInvalidItem},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewOrder(tt.staff, tt.items, time.Now())
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if Kind(err) != "bad_request" {
				t.Fatalf("expected bad_request kind, got %q", Kind(err))
			}
		})
	}
}
