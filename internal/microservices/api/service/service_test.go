package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"shawarma-pos/internal/common/logger"
	"shawarma-pos/internal/domain"
	"shawarma-pos/internal/microservices/api/repository"
)

// --- stubs ---

type stubOrderRepo struct {
	mu        sync.Mutex
	orders    map[string]domain.ServerOrder
	insertErr error
	deleted   []string
}

func newStubOrderRepo() *stubOrderRepo {
	return &stubOrderRepo{orders: map[string]domain.ServerOrder{}}
}

func (r *stubOrderRepo) InsertOrder(_ context.Context, o domain.ServerOrder, _ []domain.OrderItem) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return false, r.insertErr
	}
	if _, ok := r.orders[o.ID]; ok {
		return false, nil
	}
	r.orders[o.ID] = o
	return true, nil
}

func (r *stubOrderRepo) ListOrders(context.Context, int) ([]domain.ServerOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.ServerOrder, 0, len(r.orders))
	for _, o := range r.orders {
		out = append(out, o)
	}
	return out, nil
}

func (r *stubOrderRepo) DeleteOrdersByStaff(_ context.Context, staff string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, o := range r.orders {
		if o.Staff == staff {
			delete(r.orders, id)
			n++
		}
	}
	r.deleted = append(r.deleted, staff)
	return n, nil
}

func (r *stubOrderRepo) DeleteAllOrders(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := int64(len(r.orders))
	r.orders = map[string]domain.ServerOrder{}
	return n, nil
}

type stubPublisher struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (p *stubPublisher) PublishEvent(_ context.Context, eventType, correlationID string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType+":"+correlationID)
	return p.err
}

type stubCatalogRepo struct {
	users map[string]repository.Credentials
	menu  map[string]domain.MenuItem
}

func (r *stubCatalogRepo) ListMenu(context.Context) ([]domain.MenuItem, error) {
	out := make([]domain.MenuItem, 0, len(r.menu))
	for _, m := range r.menu {
		out = append(out, m)
	}
	return out, nil
}

func (r *stubCatalogRepo) CreateMenuItem(_ context.Context, item domain.MenuItem) error {
	r.menu[item.ID] = item
	return nil
}

func (r *stubCatalogRepo) UpdateStock(_ context.Context, id string, stock int) (bool, error) {
	m, ok := r.menu[id]
	if !ok {
		return false, nil
	}
	m.Stock = stock
	r.menu[id] = m
	return true, nil
}

func (r *stubCatalogRepo) ListStaff(context.Context) ([]domain.StaffMember, error) {
	out := []domain.StaffMember{}
	for _, u := range r.users {
		out = append(out, domain.StaffMember{Username: u.Username, Role: u.Role})
	}
	return out, nil
}

func (r *stubCatalogRepo) GetCredentials(_ context.Context, username string) (repository.Credentials, bool, error) {
	c, ok := r.users[username]
	return c, ok, nil
}

func (r *stubCatalogRepo) CreateUser(_ context.Context, c repository.Credentials) error {
	if _, ok := r.users[c.Username]; ok {
		return repository.ErrAlreadyExists
	}
	r.users[c.Username] = c
	return nil
}

func quiet() *logger.Logger { return logger.NewWithWriter("api", io.Discard, "ERROR") }

func newCatalogRepo(t *testing.T) *stubCatalogRepo {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("staff123"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return &stubCatalogRepo{
		users: map[string]repository.Credentials{
			"staff1": {Username: "staff1", PasswordHash: string(hash), Role: domain.RoleStaff},
		},
		menu: map[string]domain.MenuItem{
			"m-1": {ID: "m-1", Name: "Shawarma Wrap", Price: decimal.NewFromInt(20), Stock: 25},
		},
	}
}

// --- orders ---

func TestCreateOrderIsIdempotent(t *testing.T) {
	t.Parallel()

	repo := newStubOrderRepo()
	pub := &stubPublisher{}
	svc := NewOrderService(repo, pub, quiet())
	req := domain.CreateOrderRequest{
		ID:    "offline-1700000000000-abc123def",
		Staff: "staff1",
		Items: []domain.OrderItem{{ID: "m-1", Name: "Shawarma Wrap", Price: decimal.NewFromInt(20), Quantity: 2}},
	}

	first, err := svc.CreateOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	if !first.OK || first.Duplicate || first.ID != req.ID {
		t.Fatalf("first create = %+v", first)
	}

	second, err := svc.CreateOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !second.OK || !second.Duplicate {
		t.Fatalf("replay = %+v, want duplicate ack", second)
	}

	if len(repo.orders) != 1 {
		t.Fatalf("stored %d orders, want 1", len(repo.orders))
	}
	stored := repo.orders[req.ID]
	if !stored.Total.Equal(decimal.NewFromInt(40)) {
		t.Errorf("total = %s, want computed 40", stored.Total)
	}
	var body domain.CreateOrderRequest
	if err := json.Unmarshal(stored.Payload, &body); err != nil || body.ID != req.ID {
		t.Errorf("payload not the request body: %s (%v)", stored.Payload, err)
	}
	if len(pub.events) != 1 || pub.events[0] != EventOrderAccepted+":"+req.ID {
		t.Errorf("events = %v, want a single order.accepted", pub.events)
	}
}

func TestCreateOrder(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		req       domain.CreateOrderRequest
		insertErr error
		pubErr    error
		pub       bool
		wantErr   error
		wantStaff string
	}{
		{name: "missing_id", req: domain.CreateOrderRequest{Staff: "staff1"}, pub: true, wantErr: ErrOrderIDRequired},
		{name: "user_alias", req: domain.CreateOrderRequest{ID: "o-1", User: "staff1", Timestamp: &ts}, pub: true, wantStaff: "staff1"},
		{name: "publish_failure_still_accepts", req: domain.CreateOrderRequest{ID: "o-2", Staff: "staff1"}, pub: true, pubErr: errors.New("broker down"), wantStaff: "staff1"},
		{name: "no_broker", req: domain.CreateOrderRequest{ID: "o-3", Staff: "staff1"}, wantStaff: "staff1"},
		{name: "unknown_staff", req: domain.CreateOrderRequest{ID: "o-4", Staff: "ghost"}, pub: true,
			insertErr: repository.ErrUnknownStaff, wantErr: repository.ErrUnknownStaff},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			repo := newStubOrderRepo()
			repo.insertErr = tc.insertErr
			var pub Publisher
			if tc.pub {
				pub = &stubPublisher{err: tc.pubErr}
			}
			svc := NewOrderService(repo, pub, quiet())

			res, err := svc.CreateOrder(context.Background(), tc.req)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !res.OK {
				t.Fatalf("result = %+v", res)
			}
			got := repo.orders[tc.req.ID]
			if got.Staff != tc.wantStaff {
				t.Errorf("staff = %q, want %q", got.Staff, tc.wantStaff)
			}
			if tc.req.Timestamp != nil && !got.Timestamp.Equal(ts) {
				t.Errorf("timestamp = %v, want client timestamp %v", got.Timestamp, ts)
			}
			if got.ServerReceivedAt.IsZero() {
				t.Error("server_received_at not stamped")
			}
		})
	}
}

func TestDeleteOrders(t *testing.T) {
	t.Parallel()

	repo := newStubOrderRepo()
	repo.orders["a"] = domain.ServerOrder{ID: "a", Staff: "staff1"}
	repo.orders["b"] = domain.ServerOrder{ID: "b", Staff: "staff2"}
	repo.orders["c"] = domain.ServerOrder{ID: "c", Staff: "staff1"}
	svc := NewOrderService(repo, nil, quiet())

	if _, err := svc.DeleteOrders(context.Background(), domain.DeleteOrdersRequest{}); !errors.Is(err, ErrDeleteTarget) {
		t.Fatalf("empty request err = %v, want ErrDeleteTarget", err)
	}

	res, err := svc.DeleteOrders(context.Background(), domain.DeleteOrdersRequest{Staff: "staff1"})
	if err != nil || res.Deleted != 2 || res.Staff != "staff1" {
		t.Fatalf("by staff = %+v, %v", res, err)
	}

	res, err = svc.DeleteOrders(context.Background(), domain.DeleteOrdersRequest{Action: "reset-all"})
	if err != nil || res.Deleted != 1 || !res.OK {
		t.Fatalf("reset-all = %+v, %v", res, err)
	}
	if len(repo.orders) != 0 {
		t.Errorf("orders left: %d", len(repo.orders))
	}
}

// --- catalog ---

func TestCatalog(t *testing.T) {
	t.Parallel()

	repo := newCatalogRepo(t)
	svc := NewCatalogService(repo, quiet())
	ctx := context.Background()

	price := decimal.RequireFromString("12.50")
	stock := 5
	item, err := svc.CreateMenuItem(ctx, domain.CreateMenuItemRequest{Name: " Falafel ", Price: &price, Stock: &stock})
	if err != nil {
		t.Fatalf("create menu item: %v", err)
	}
	if item.Name != "Falafel" || len(item.ID) < 3 || item.ID[:2] != "m-" {
		t.Errorf("item = %+v", item)
	}
	if _, err := svc.CreateMenuItem(ctx, domain.CreateMenuItemRequest{Name: "x"}); !errors.Is(err, ErrInvalidMenu) {
		t.Errorf("missing price err = %v", err)
	}

	if err := svc.UpdateStock(ctx, "m-1", 3); err != nil {
		t.Fatalf("update stock: %v", err)
	}
	if repo.menu["m-1"].Stock != 3 {
		t.Errorf("stock = %d, want 3", repo.menu["m-1"].Stock)
	}
	if err := svc.UpdateStock(ctx, "m-404", 3); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing item err = %v, want ErrNotFound", err)
	}
	if err := svc.UpdateStock(ctx, "m-1", -1); domain.Kind(err) != "bad_request" {
		t.Errorf("negative stock err = %v", err)
	}

	member, err := svc.CreateStaff(ctx, domain.CreateStaffRequest{Username: "staff2", Password: "pw"})
	if err != nil || member.Role != domain.RoleStaff {
		t.Fatalf("create staff = %+v, %v", member, err)
	}
	if repo.users["staff2"].PasswordHash == "pw" {
		t.Error("password stored in clear")
	}
	if _, err := svc.CreateStaff(ctx, domain.CreateStaffRequest{Username: "x", Password: "pw", Role: "owner"}); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("bad role err = %v", err)
	}
	if _, err := svc.CreateStaff(ctx, domain.CreateStaffRequest{Username: "staff2", Password: "pw"}); !errors.Is(err, repository.ErrAlreadyExists) {
		t.Errorf("duplicate err = %v", err)
	}
}

// --- auth ---

func TestLoginAndValidate(t *testing.T) {
	t.Parallel()

	repo := newCatalogRepo(t)
	svc := NewAuthService(repo, []byte("secret"), time.Hour)

	if _, err := svc.Login(context.Background(), "staff1", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password err = %v", err)
	}
	if _, err := svc.Login(context.Background(), "nobody", "staff123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user err = %v", err)
	}

	res, err := svc.Login(context.Background(), "staff1", "staff123")
	if err != nil || !res.OK || res.Token == "" {
		t.Fatalf("login = %+v, %v", res, err)
	}
	user, err := svc.ValidateToken(res.Token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if user.Username != "staff1" || user.Role != domain.RoleStaff {
		t.Errorf("user = %+v", user)
	}
}

func TestValidateTokenRejects(t *testing.T) {
	t.Parallel()

	repo := newCatalogRepo(t)
	issuer := NewAuthService(repo, []byte("secret"), time.Hour)
	res, err := issuer.Login(context.Background(), "staff1", "staff123")
	if err != nil {
		t.Fatal(err)
	}

	expired := NewAuthService(repo, []byte("secret"), time.Hour)
	expired.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Username: "admin", Role: domain.RoleAdmin})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		svc   *AuthService
		token string
	}{
		{name: "wrong_secret", svc: NewAuthService(repo, []byte("other"), time.Hour), token: res.Token},
		{name: "expired", svc: expired, token: res.Token},
		{name: "alg_none", svc: issuer, token: unsigned},
		{name: "garbage", svc: issuer, token: "not-a-token"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := tc.svc.ValidateToken(tc.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("err = %v, want ErrInvalidToken", err)
			}
		})
	}
}

// --- authorization ---

func TestCheckPermission(t *testing.T) {
	t.Parallel()

	authz, err := NewAuthorizationService()
	if err != nil {
		t.Fatalf("new authorization service: %v", err)
	}

	tests := []struct {
		role, obj, act string
		want           bool
	}{
		{domain.RoleStaff, ResourceOrders, ActionRead, true},
		{domain.RoleStaff, ResourceMenu, ActionRead, true},
		{domain.RoleStaff, ResourceMenu, ActionWrite, false},
		{domain.RoleStaff, ResourceStaff, ActionWrite, false},
		{domain.RoleStaff, ResourceOrders, ActionWrite, false},
		{domain.RoleAdmin, ResourceOrders, ActionRead, true},
		{domain.RoleAdmin, ResourceOrders, ActionWrite, true},
		{domain.RoleAdmin, ResourceStaff, ActionWrite, true},
		{domain.RoleAdmin, ResourceMenu, ActionWrite, true},
		{"", ResourceOrders, ActionRead, false},
		{"guest", ResourceMenu, ActionRead, false},
	}
	for _, tc := range tests {
		got, err := authz.CheckPermission(tc.role, tc.obj, tc.act)
		if err != nil {
			t.Fatalf("CheckPermission(%q,%q,%q): %v", tc.role, tc.obj, tc.act, err)
		}
		if got != tc.want {
			t.Errorf("CheckPermission(%q,%q,%q) = %v, want %v", tc.role, tc.obj, tc.act, got, tc.want)
		}
	}
}
