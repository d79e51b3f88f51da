// Package terminal wires the POS terminal agent: local store, connectivity, sync engine,
// edge cache proxy and the local UI API.
package terminal

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"shawarma-pos/internal/common/httpx"
	"shawarma-pos/internal/common/logger"
	"shawarma-pos/internal/config"
	"shawarma-pos/internal/microservices/terminal/edge"
	"shawarma-pos/internal/microservices/terminal/localapi"
	"shawarma-pos/internal/microservices/terminal/network"
	"shawarma-pos/internal/microservices/terminal/remote"
	"shawarma-pos/internal/microservices/terminal/store"
	"shawarma-pos/internal/microservices/terminal/sync"
)

// Run blocks until ctx is cancelled or a component fails.
func Run(ctx context.Context, cfg *config.Config) error {
	tc := cfg.Terminal
	lg := logger.New("pos-terminal")
	if err := cfg.ValidateTerminal(); err != nil {
		return fmt.Errorf("invalid terminal config: %w", err)
	}

	st, err := store.Open(tc.StorePath)
	if err != nil {
		return fmt.Errorf("open local store: %w", err)
	}
	defer st.Close()

	client := remote.New(tc.APIBaseURL, tc.RequestTimeout, remote.WithCredentials(tc.Username, tc.Password))

	// пока проба не ответила, считаем что сети нет
	mon := network.NewMonitor(false, logger.New("network-monitor"))
	engine := sync.New(st, client, mon, sync.Config{
		RequestTimeout: tc.RequestTimeout,
		MaxAttempts:    tc.MaxAttempts,
	}, logger.New("sync-engine"))

	bg := network.NewOnlineRegistrar(ctx, mon, tc.SettleDelay, func(tag string) {
		if tag == sync.BackgroundTag {
			engine.TriggerSync(ctx)
		}
	})
	defer bg.Close()
	engine.SetBackgroundSync(bg)

	caches, err := edge.NewStorage(st.DB())
	if err != nil {
		return err
	}
	layer, err := edge.New(edge.Config{
		Origin:       tc.APIBaseURL,
		Version:      tc.CacheVersion,
		StaticAssets: tc.StaticAssets,
		Timeout:      tc.RequestTimeout,
	}, caches, logger.New("edge-cache"))
	if err != nil {
		return err
	}
	if err := layer.Activate(ctx); err != nil {
		lg.Error("edge_activate_failed", err, nil)
	}

	refresher := sync.NewRefresher(client, st, layer, mon, logger.New("snapshot-refresher"))
	stopAuto := network.AfterOnline(ctx, mon, tc.SettleDelay, func(ctx context.Context) {
		engine.TriggerSync(ctx)
		if err := refresher.Refresh(ctx); err != nil {
			lg.Warn("snapshot_refresh_skipped", map[string]any{"error": err.Error()})
		}
	})
	defer stopAuto()
	// статику кэшируем один раз, когда origin впервые доступен
	stopInstall := network.AfterOnline(ctx, mon, 0, installOnce(layer, lg))
	defer stopInstall()

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, requestLog(lg))
	localapi.New(st, engine, mon, client, logger.New("local-api")).RegisterRoutes(r)
	layer.RegisterRoutes(r)

	engine.RefreshPendingCount(ctx)
	lg.Info("service_started", map[string]any{
		"port": tc.Port, "origin": tc.APIBaseURL, "store": tc.StorePath, "cache_version": tc.CacheVersion,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return network.NewProber(client, mon, tc.ProbeInterval, logger.New("network-prober")).Run(gctx)
	})
	g.Go(func() error {
		return httpx.New(fmt.Sprintf(":%d", tc.Port), r).Run(gctx)
	})
	err = g.Wait()
	lg.Info("service_stopped", nil)
	return err
}

func installOnce(layer *edge.Layer, lg *logger.Logger) func(context.Context) {
	var done atomic.Bool
	return func(ctx context.Context) {
		if done.Load() {
			return
		}
		if err := layer.Install(ctx); err != nil {
			lg.Error("edge_install_failed", err, nil)
			return
		}
		done.Store(true)
	}
}

func requestLog(lg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			lg.WithRequestID(middleware.GetReqID(r.Context())).Debug("http_request", map[string]any{
				"method": r.Method, "path": r.URL.Path, "status": ww.Status(), "duration_ms": time.Since(start).Milliseconds(),
			})
		})
	}
}
