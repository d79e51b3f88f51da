package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"shawarma-pos/internal/domain"
)

func testOrder() domain.Order {
	return domain.Order{
		ID:        "offline-1-abc",
		Staff:     "alice",
		Items:     []domain.OrderItem{{ID: "m-1", Name: "Wrap", Price: decimal.NewFromInt(20), Quantity: 2}},
		Total:     decimal.NewFromInt(40),
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestCreateOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		body      string
		wantKind  string
		wantPerm  bool
		wantDupOK bool
	}{
		{name: "accepted", status: http.StatusOK, body: `{"ok":true,"id":"offline-1-abc"}`},
		{name: "duplicate_ack", status: http.StatusOK, body: `{"ok":true,"id":"offline-1-abc","duplicate":true}`, wantDupOK: true},
		{name: "unknown_staff", status: http.StatusUnprocessableEntity, body: `{"error":"unknown staff"}`, wantKind: "remote_rejection", wantPerm: true},
		{name: "server_error", status: http.StatusInternalServerError, body: `{"error":"db down"}`, wantKind: "remote_rejection"},
		{name: "ok_false", status: http.StatusOK, body: `{"ok":false,"error":"nope"}`, wantKind: "remote_rejection", wantPerm: true},
		{name: "edge_offline", status: http.StatusOK, body: `{"ok":false,"offline":true,"message":"saved locally"}`, wantKind: "network_failure"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got domain.CreateOrderRequest
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/api/orders" {
					t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
				}
				_ = json.NewDecoder(r.Body).Decode(&got)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			res, err := New(srv.URL, time.Second).CreateOrder(context.Background(), testOrder())
			if got.ID != "offline-1-abc" || got.Staff != "alice" || !got.Total.Equal(decimal.NewFromInt(40)) || len(got.Items) != 1 {
				t.Fatalf("unexpected request body %+v", got)
			}
			if tt.wantKind == "" {
				if err != nil || !res.OK {
					t.Fatalf("expected success, got res=%+v err=%v", res, err)
				}
				if res.Duplicate != tt.wantDupOK {
					t.Fatalf("duplicate flag: expected %v, got %v", tt.wantDupOK, res.Duplicate)
				}
				return
			}
			if got := domain.Kind(err); got != tt.wantKind {
				t.Fatalf("expected kind %q, got %q (%v)", tt.wantKind, got, err)
			}
			if got := domain.IsPermanentRejection(err); got != tt.wantPerm {
				t.Fatalf("permanent: expected %v, got %v", tt.wantPerm, got)
			}
		})
	}
}

func TestNetworkFailureAndTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	_, err := New(srv.URL, 50*time.Millisecond).CreateOrder(context.Background(), testOrder())
	var nf *domain.NetworkFailure
	if !errors.As(err, &nf) {
		t.Fatalf("expected NetworkFailure on timeout, got %v", err)
	}

	closed := httptest.NewServer(http.NotFoundHandler())
	url := closed.URL
	closed.Close()
	if err := New(url, time.Second).Health(context.Background()); domain.Kind(err) != "network_failure" {
		t.Fatalf("expected network_failure for closed server, got %v", err)
	}
}

func TestSnapshotsDecode(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/menu":
			_, _ = w.Write([]byte(`[{"id":"m-1","name":"Shawarma Wrap","price":20,"stock":25}]`))
		case "/api/staff":
			_, _ = w.Write([]byte(`[{"username":"admin","role":"admin"}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	menu, err := c.Menu(context.Background())
	if err != nil || len(menu) != 1 || !menu[0].Price.Equal(decimal.NewFromInt(20)) || menu[0].Stock != 25 {
		t.Fatalf("menu: %+v err=%v", menu, err)
	}
	staff, err := c.Staff(context.Background())
	if err != nil || len(staff) != 1 || staff[0].Role != "admin" {
		t.Fatalf("staff: %+v err=%v", staff, err)
	}
}

func TestUpdateStockLogsInAndRetriesOn401(t *testing.T) {
	t.Parallel()

	var logins, puts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/login":
			n := logins.Add(1)
			_ = json.NewEncoder(w).Encode(domain.LoginResponse{OK: true, Token: "tok-" + string(rune('0'+n))})
		case "/api/menu/m-1/stock":
			puts.Add(1)
			if r.Header.Get("Authorization") != "Bearer tok-2" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"Invalid token"}`))
				return
			}
			_, _ = w.Write([]byte(`{"ok":true}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, WithCredentials("admin", "admin123"))
	if err := c.UpdateStock(context.Background(), "m-1", 7); err != nil {
		t.Fatalf("update stock: %v", err)
	}
	if logins.Load() != 2 || puts.Load() != 2 {
		t.Fatalf("expected 2 logins and 2 puts, got %d/%d", logins.Load(), puts.Load())
	}
}

func TestLoginWithoutCredentials(t *testing.T) {
	t.Parallel()

	err := New("http://127.0.0.1:1", time.Second).UpdateStock(context.Background(), "m-1", 1)
	if !domain.IsPermanentRejection(err) {
		t.Fatalf("expected permanent rejection, got %v", err)
	}
}
