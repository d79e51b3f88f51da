// Package remote is the terminal's HTTP client for the POS backend.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"shawarma-pos/internal/domain"
)

const maxErrorBody = 4 << 10

type Client struct {
	base     string
	http     *http.Client
	username string
	password string

	mu    sync.Mutex
	token string
}

type Option func(*Client)

// WithCredentials makes the client log in for endpoints that need a bearer token.
func WithCredentials(username, password string) Option {
	return func(c *Client) { c.username, c.password = username, password }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New builds a client; timeout bounds every single request.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, "health", http.MethodGet, "/api/health", nil, nil, false)
}

// CreateOrder submits o. A duplicate acknowledgement counts as success.
func (c *Client) CreateOrder(ctx context.Context, o domain.Order) (domain.CreateOrderResult, error) {
	var res domain.CreateOrderResult
	if err := c.do(ctx, "create_order", http.MethodPost, "/api/orders", domain.RequestFromOrder(o), &res, false); err != nil {
		return domain.CreateOrderResult{}, err
	}
	if res.Offline {
		return res, &domain.NetworkFailure{Op: "create_order", Err: fmt.Errorf("edge answered offline: %s", res.Message)}
	}
	if !res.OK {
		return res, &domain.RemoteRejection{Op: "create_order", Status: http.StatusUnprocessableEntity, Message: res.Error}
	}
	return res, nil
}

func (c *Client) Menu(ctx context.Context) ([]domain.MenuItem, error) {
	var out []domain.MenuItem
	if err := c.do(ctx, "get_menu", http.MethodGet, "/api/menu", nil, &out, false); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Staff(ctx context.Context) ([]domain.StaffMember, error) {
	var out []domain.StaffMember
	if err := c.do(ctx, "get_staff", http.MethodGet, "/api/staff", nil, &out, false); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateStock(ctx context.Context, id string, stock int) error {
	body := domain.UpdateStockRequest{Stock: &stock}
	return c.do(ctx, "update_stock", http.MethodPut, "/api/menu/"+id+"/stock", body, nil, true)
}

// Login exchanges the configured credentials for a token.
func (c *Client) Login(ctx context.Context) error {
	if c.username == "" {
		return &domain.RemoteRejection{Op: "login", Status: http.StatusUnauthorized, Message: "no terminal credentials configured"}
	}
	var res domain.LoginResponse
	req := domain.LoginRequest{Username: c.username, Password: c.password}
	if err := c.do(ctx, "login", http.MethodPost, "/api/login", req, &res, false); err != nil {
		return err
	}
	c.mu.Lock()
	c.token = res.Token
	c.mu.Unlock()
	return nil
}

func (c *Client) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any, auth bool) error {
	if auth && c.currentToken() == "" {
		if err := c.Login(ctx); err != nil {
			return err
		}
	}
	status, err := c.roundTrip(ctx, op, method, path, in, out)
	if auth && status == http.StatusUnauthorized {
		if err := c.Login(ctx); err != nil {
			return err
		}
		_, err = c.roundTrip(ctx, op, method, path, in, out)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("%s: marshal: %w", op, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return 0, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.currentToken(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, &domain.NetworkFailure{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, &domain.RemoteRejection{Op: op, Status: resp.StatusCode, Message: errorMessage(raw)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, &domain.NetworkFailure{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return resp.StatusCode, nil
}

// errorMessage pulls "error" or "detail" out of a JSON error body.
func errorMessage(raw []byte) string {
	var body struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(raw, &body) == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Detail != "" {
			return body.Detail
		}
	}
	return strings.TrimSpace(string(raw))
}
