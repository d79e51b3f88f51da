package edge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"shawarma-pos/internal/common/httpx"
	"shawarma-pos/internal/common/logger"
	"shawarma-pos/internal/domain"
)

const (
	cachePrefix  = "shawarma-pos-"
	maxBody      = 8 << 20
	offlineOrder = "Order saved locally. Will sync when online."
)

var cacheableAPI = []string{"/api/menu", "/api/staff"}

// hop-by-hop headers are never forwarded
var hopHeaders = []string{
	"Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"Te", "Trailer", "Transfer-Encoding", "Upgrade",
}

type Config struct {
	Origin       string
	Version      string
	StaticAssets []string
	Timeout      time.Duration
}

type Layer struct {
	origin  *url.URL
	version string
	static  map[string]struct{}
	assets  []string
	client  *http.Client
	caches  *Storage
	lg      *logger.Logger
}

func New(cfg Config, caches *Storage, lg *logger.Logger) (*Layer, error) {
	origin, err := url.Parse(strings.TrimRight(cfg.Origin, "/"))
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("edge: invalid origin %q", cfg.Origin)
	}
	if cfg.Version == "" {
		cfg.Version = "v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if lg == nil {
		lg = logger.New("edge-cache")
	}
	static := make(map[string]struct{}, len(cfg.StaticAssets))
	for _, a := range cfg.StaticAssets {
		static[a] = struct{}{}
	}
	return &Layer{
		origin:  origin,
		version: cfg.Version,
		static:  static,
		assets:  cfg.StaticAssets,
		client:  &http.Client{Timeout: cfg.Timeout},
		caches:  caches,
		lg:      lg,
	}, nil
}

func (l *Layer) StaticCache() string  { return cachePrefix + "static-" + l.version }
func (l *Layer) DynamicCache() string { return cachePrefix + "dynamic-" + l.version }
func (l *Layer) APICache() string     { return cachePrefix + "api-" + l.version }

// RegisterRoutes mounts the proxy on r. It claims every path, so mount it last.
func (l *Layer) RegisterRoutes(r chi.Router) {
	api := []string{"/api/menu", "/api/menu/*", "/api/staff", "/api/staff/*", "/api/*"}
	for _, p := range api {
		r.Get(p, l.cachedAPI)
	}
	r.Get("/*", l.content)
	r.Post("/api/orders", l.createOrder)
	for _, p := range append(api, "/api/orders", "/*") {
		for _, m := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
			if p == "/api/orders" && m == http.MethodPost {
				continue
			}
			r.Method(m, p, http.HandlerFunc(l.passthrough))
		}
	}
}

// Install precaches the static assets. Fetch failures are logged and skipped.
func (l *Layer) Install(ctx context.Context) error {
	cached := 0
	for _, asset := range l.assets {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset, nil)
		if err != nil {
			return err
		}
		resp, err := l.fetch(req)
		if err != nil {
			l.lg.Warn("precache_failed", map[string]any{"asset": asset, "error": err.Error()})
			continue
		}
		if !ok(resp.Status) {
			l.lg.Warn("precache_failed", map[string]any{"asset": asset, "status": resp.Status})
			continue
		}
		if err := l.caches.Put(ctx, l.StaticCache(), asset, resp); err != nil {
			return err
		}
		cached++
	}
	l.lg.Info("edge_installed", map[string]any{"cache": l.StaticCache(), "assets": cached, "configured": len(l.assets)})
	return nil
}

// Activate drops caches left behind by older versions.
func (l *Layer) Activate(ctx context.Context) error {
	names, err := l.caches.Caches(ctx)
	if err != nil {
		return err
	}
	current := map[string]bool{l.StaticCache(): true, l.DynamicCache(): true, l.APICache(): true}
	for _, name := range names {
		if !strings.HasPrefix(name, cachePrefix) || current[name] {
			continue
		}
		if err := l.caches.DeleteCache(ctx, name); err != nil {
			return err
		}
		l.lg.Info("edge_cache_evicted", map[string]any{"cache": name})
	}
	return nil
}

// PutMenu stores menu as the cached /api/menu response.
func (l *Layer) PutMenu(ctx context.Context, menu []domain.MenuItem) error {
	if menu == nil {
		menu = []domain.MenuItem{}
	}
	b, err := json.Marshal(menu)
	if err != nil {
		return err
	}
	return l.caches.Put(ctx, l.APICache(), "/api/menu", CachedResponse{
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   b,
	})
}

// ===== strategies =====

// cachedAPI is network-first. Only menu and staff responses are stored.
func (l *Layer) cachedAPI(w http.ResponseWriter, r *http.Request) {
	key := r.URL.RequestURI()
	cacheable := isCacheableAPI(r.URL.Path)

	resp, err := l.fetch(r)
	if err == nil {
		if cacheable && ok(resp.Status) {
			l.store(r.Context(), l.APICache(), key, resp)
		}
		write(w, resp)
		return
	}

	l.lg.Debug("edge_network_failed", map[string]any{"path": r.URL.Path, "error": err.Error()})
	if cacheable {
		if cached, hit := l.match(r.Context(), l.APICache(), key); hit {
			write(w, cached)
			return
		}
	}
	httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "Offline - Server not available", "offline": true})
}

func (l *Layer) createOrder(w http.ResponseWriter, r *http.Request) {
	resp, err := l.fetch(r)
	if err == nil {
		write(w, resp)
		return
	}
	l.lg.Info("edge_order_offline", map[string]any{"error": err.Error()})
	httpx.WriteJSON(w, http.StatusOK, domain.CreateOrderResult{OK: false, Offline: true, Message: offlineOrder})
}

func (l *Layer) content(w http.ResponseWriter, r *http.Request) {
	if l.isStatic(r.URL.Path) {
		l.staticAsset(w, r)
		return
	}
	l.dynamic(w, r)
}

// staticAsset is cache-first.
func (l *Layer) staticAsset(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Path
	if cached, hit := l.match(r.Context(), l.StaticCache(), key); hit {
		write(w, cached)
		return
	}
	resp, err := l.fetch(r)
	if err != nil {
		offlineText(w, "Offline - Asset not available")
		return
	}
	if ok(resp.Status) {
		l.store(r.Context(), l.StaticCache(), key, resp)
	}
	write(w, resp)
}

func (l *Layer) dynamic(w http.ResponseWriter, r *http.Request) {
	key := r.URL.RequestURI()
	resp, err := l.fetch(r)
	if err == nil {
		if ok(resp.Status) {
			l.store(r.Context(), l.DynamicCache(), key, resp)
		}
		write(w, resp)
		return
	}
	if cached, hit := l.match(r.Context(), l.DynamicCache(), key); hit {
		write(w, cached)
		return
	}
	if isNavigation(r) {
		// index.html может лежать в любом из двух кэшей
		for _, name := range []string{l.DynamicCache(), l.StaticCache()} {
			if cached, hit := l.match(r.Context(), name, "/index.html"); hit {
				write(w, cached)
				return
			}
		}
	}
	offlineText(w, "Offline - Content not available")
}

func (l *Layer) passthrough(w http.ResponseWriter, r *http.Request) {
	resp, err := l.fetch(r)
	if err != nil {
		httpx.WriteProblem(w, http.StatusBadGateway, "origin_unreachable", err.Error())
		return
	}
	write(w, resp)
}

// ===== plumbing =====

// fetch forwards r to the origin. A non-nil error means the origin could not be reached;
// any HTTP status, 5xx included, is a response.
func (l *Layer) fetch(r *http.Request) (CachedResponse, error) {
	target := *l.origin
	target.Path = l.origin.Path + r.URL.Path
	target.RawQuery = r.URL.RawQuery

	var body io.Reader
	if r.Body != nil && r.Body != http.NoBody {
		b, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
		if err != nil {
			return CachedResponse{}, fmt.Errorf("read request body: %w", err)
		}
		body = bytes.NewReader(b)
	}
	out, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), body)
	if err != nil {
		return CachedResponse{}, err
	}
	out.Header = r.Header.Clone()
	if out.Header == nil {
		out.Header = http.Header{}
	}
	stripHop(out.Header)

	resp, err := l.client.Do(out)
	if err != nil {
		return CachedResponse{}, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return CachedResponse{}, fmt.Errorf("read origin body: %w", err)
	}
	h := resp.Header.Clone()
	stripHop(h)
	h.Del("Content-Length")
	return CachedResponse{Status: resp.StatusCode, Header: h, Body: b}, nil
}

func (l *Layer) match(ctx context.Context, cache, key string) (CachedResponse, bool) {
	cached, hit, err := l.caches.Match(ctx, cache, key)
	if err != nil {
		l.lg.Error("edge_cache_read_failed", err, map[string]any{"cache": cache, "key": key})
		return CachedResponse{}, false
	}
	return cached, hit
}

func (l *Layer) store(ctx context.Context, cache, key string, resp CachedResponse) {
	// сохраняем даже если клиент уже ушёл
	ctx = context.WithoutCancel(ctx)
	if err := l.caches.Put(ctx, cache, key, resp); err != nil {
		l.lg.Error("edge_cache_write_failed", err, map[string]any{"cache": cache, "key": key})
	}
}

func (l *Layer) isStatic(path string) bool {
	if _, found := l.static[path]; found {
		return true
	}
	for asset := range l.static {
		if asset != "/" && strings.HasSuffix(path, asset) {
			return true
		}
	}
	return false
}

func isCacheableAPI(path string) bool {
	for _, p := range cacheableAPI {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func isNavigation(r *http.Request) bool {
	if r.Header.Get("Sec-Fetch-Mode") == "navigate" || r.Header.Get("Sec-Fetch-Dest") == "document" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func ok(status int) bool { return status >= 200 && status <= 299 }

func stripHop(h http.Header) {
	for _, k := range hopHeaders {
		h.Del(k)
	}
}

func write(w http.ResponseWriter, resp CachedResponse) {
	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

func offlineText(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = io.WriteString(w, msg)
}
