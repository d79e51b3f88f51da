// Package localapi is the HTTP surface the terminal UI talks to: placing orders,
// watching sync progress and reading the local snapshots.
package localapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"shawarma-pos/internal/common/httpx"
	"shawarma-pos/internal/common/logger"
	"shawarma-pos/internal/domain"
)

type LocalStore interface {
	GetOrders(ctx context.Context) ([]domain.Order, error)
	GetPendingOrders(ctx context.Context) ([]domain.Order, error)
	GetFailedOrders(ctx context.Context) ([]domain.Order, error)
	RequeueOrder(ctx context.Context, id string) (bool, error)
	DeleteOrder(ctx context.Context, id string) error
	GetMenu(ctx context.Context) ([]domain.MenuItem, error)
	GetStaff(ctx context.Context) ([]domain.StaffMember, error)
	ClearAll(ctx context.Context) error
}

type Syncer interface {
	SaveOfflineOrder(ctx context.Context, o domain.Order) (domain.Order, error)
	QueueStockUpdate(ctx context.Context, u domain.StockUpdate) (uint, error)
	TriggerSync(ctx context.Context) bool
	IsSyncing() bool
	PendingCount(ctx context.Context) (int, error)
	RefreshPendingCount(ctx context.Context)
	Subscribe(fn func(domain.SyncEvent)) func()
}

type Network interface {
	Status() bool
	Subscribe(fn func(online bool)) func()
}

type Remote interface {
	CreateOrder(ctx context.Context, o domain.Order) (domain.CreateOrderResult, error)
	UpdateStock(ctx context.Context, id string, stock int) error
}

type Handler struct {
	store  LocalStore
	sync   Syncer
	net    Network
	remote Remote
	lg     *logger.Logger

	heartbeat time.Duration
}

func New(store LocalStore, sync Syncer, net Network, remote Remote, lg *logger.Logger) *Handler {
	if lg == nil {
		lg = logger.New("local-api")
	}
	return &Handler{store: store, sync: sync, net: net, remote: remote, lg: lg, heartbeat: 25 * time.Second}
}

// RegisterRoutes registers the /local endpoints on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/local", func(r chi.Router) {
		r.Post("/orders", h.PlaceOrder)
		r.Get("/orders", h.ListOrders)
		r.Get("/orders/pending", h.ListPending)
		r.Get("/orders/failed", h.ListFailed)
		r.Post("/orders/{id}/requeue", h.Requeue)
		r.Delete("/orders/{id}", h.DeleteOrder)

		r.Get("/status", h.Status)
		r.Post("/sync", h.TriggerSync)
		r.Get("/events", h.Events)

		r.Get("/menu", h.Menu)
		r.Put("/menu/{id}/stock", h.UpdateStock)
		r.Get("/staff", h.Staff)
		r.Post("/reset", h.Reset)
	})
}

type placeOrderResponse struct {
	OK        bool         `json:"ok"`
	Offline   bool         `json:"offline"`
	Duplicate bool         `json:"duplicate,omitempty"`
	Message   string       `json:"message,omitempty"`
	Order     domain.Order `json:"order"`
}

// PlaceOrder sends the order straight to the backend when online and captures it locally otherwise.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteProblem(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	o, err := domain.NewOrder(req.StaffName(), req.Items, time.Now())
	if err != nil {
		httpx.WriteProblem(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if req.ID != "" {
		o.ID = req.ID
	}

	ctx := r.Context()
	if h.net.Status() {
		ack, err := h.remote.CreateOrder(ctx, o)
		switch {
		case err == nil:
			o.Synced = true
			httpx.WriteJSON(w, http.StatusCreated, placeOrderResponse{OK: true, Duplicate: ack.Duplicate, Order: o})
			return
		case domain.Kind(err) != "network_failure":
			h.writeError(w, err)
			return
		}
		h.lg.Warn("order_submit_failed_capturing_locally", map[string]any{"order_id": o.ID, "error": err.Error()})
	}

	saved, err := h.sync.SaveOfflineOrder(ctx, o)
	if err != nil {
		var su *domain.StorageUnavailable
		if errors.As(err, &su) {
			httpx.WriteProblem(w, http.StatusServiceUnavailable, "storage_unavailable",
				"order was NOT captured: local storage is unavailable")
			return
		}
		h.writeError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, placeOrderResponse{
		OK: false, Offline: true, Message: "Order saved locally. Will sync when online.", Order: saved,
	})
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.store.GetOrders)
}

func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.store.GetPendingOrders)
}

func (h *Handler) ListFailed(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.store.GetFailedOrders)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, get func(context.Context) ([]domain.Order, error)) {
	orders, err := get(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	httpx.WriteJSON(w, http.StatusOK, orders)
}

func (h *Handler) Requeue(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	found, err := h.store.RequeueOrder(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !found {
		httpx.WriteProblem(w, http.StatusNotFound, "not_found", fmt.Sprintf("order %q not found", id))
		return
	}
	h.sync.RefreshPendingCount(r.Context())
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "id": id})
}

func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteOrder(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	h.sync.RefreshPendingCount(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

type statusResponse struct {
	Online  bool `json:"online"`
	Syncing bool `json:"syncing"`
	Pending int  `json:"pending"`
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	n, err := h.sync.PendingCount(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, statusResponse{Online: h.net.Status(), Syncing: h.sync.IsSyncing(), Pending: n})
}

// TriggerSync runs a pass in the background; the outcome arrives on /local/events.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if !h.net.Status() {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"started": false, "reason": "offline"})
		return
	}
	if h.sync.IsSyncing() {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"started": false, "reason": domain.ErrSyncInProgress.Error()})
		return
	}
	go h.sync.TriggerSync(context.WithoutCancel(r.Context()))
	httpx.WriteJSON(w, http.StatusAccepted, map[string]any{"started": true})
}

func (h *Handler) Menu(w http.ResponseWriter, r *http.Request) {
	menu, err := h.store.GetMenu(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if menu == nil {
		menu = []domain.MenuItem{}
	}
	httpx.WriteJSON(w, http.StatusOK, menu)
}

func (h *Handler) Staff(w http.ResponseWriter, r *http.Request) {
	staff, err := h.store.GetStaff(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if staff == nil {
		staff = []domain.StaffMember{}
	}
	httpx.WriteJSON(w, http.StatusOK, staff)
}

// UpdateStock forwards the edit when online and queues it for replay otherwise.
func (h *Handler) UpdateStock(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Stock == nil || *req.Stock < 0 {
		httpx.WriteProblem(w, http.StatusBadRequest, "bad_request", "stock must be a non-negative integer")
		return
	}
	u := domain.StockUpdate{ID: chi.URLParam(r, "id"), Stock: *req.Stock}

	if h.net.Status() {
		err := h.remote.UpdateStock(r.Context(), u.ID, u.Stock)
		if err == nil {
			httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "queued": false})
			return
		}
		if domain.Kind(err) != "network_failure" {
			h.writeError(w, err)
			return
		}
	}
	qid, err := h.sync.QueueStockUpdate(r.Context(), u)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, map[string]any{"ok": true, "queued": true, "queue_id": qid})
}

func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.store.ClearAll(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	h.lg.Warn("local_data_cleared", nil)
	h.sync.RefreshPendingCount(r.Context())
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	code := domain.HTTPStatus(err)
	var rr *domain.RemoteRejection
	if errors.As(err, &rr) && rr.Permanent() {
		code = rr.Status
	}
	if code >= http.StatusInternalServerError {
		h.lg.Error("local_api_error", err, map[string]any{"status": code})
	}
	httpx.WriteProblem(w, code, domain.Kind(err), err.Error())
}
