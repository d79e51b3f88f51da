package sync

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"shawarma-pos/internal/common/logger"
	"shawarma-pos/internal/domain"
)

type SnapshotSource interface {
	Menu(ctx context.Context) ([]domain.MenuItem, error)
	Staff(ctx context.Context) ([]domain.StaffMember, error)
}

type SnapshotStore interface {
	SaveMenu(ctx context.Context, items []domain.MenuItem) error
	SaveStaff(ctx context.Context, list []domain.StaffMember) error
}

// MenuCache receives the fresh menu so offline GETs of /api/menu are served from it.
type MenuCache interface {
	PutMenu(ctx context.Context, menu []domain.MenuItem) error
}

// Refresher overwrites the local menu and staff snapshots from the backend.
type Refresher struct {
	source SnapshotSource
	store  SnapshotStore
	cache  MenuCache
	net    Connectivity
	lg     *logger.Logger
}

func NewRefresher(source SnapshotSource, store SnapshotStore, cache MenuCache, net Connectivity, lg *logger.Logger) *Refresher {
	if lg == nil {
		lg = logger.New("snapshot-refresher")
	}
	return &Refresher{source: source, store: store, cache: cache, net: net, lg: lg}
}

// Refresh fetches both snapshots concurrently and replaces them only when both fetches succeeded.
func (r *Refresher) Refresh(ctx context.Context) error {
	if !r.net.Status() {
		return nil
	}
	var (
		menu  []domain.MenuItem
		staff []domain.StaffMember
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := r.source.Menu(gctx)
		if err != nil {
			return fmt.Errorf("fetch menu: %w", err)
		}
		menu = m
		return nil
	})
	g.Go(func() error {
		s, err := r.source.Staff(gctx)
		if err != nil {
			return fmt.Errorf("fetch staff: %w", err)
		}
		staff = s
		return nil
	})
	if err := g.Wait(); err != nil {
		r.lg.Warn("snapshot_refresh_failed", map[string]any{"error": err.Error()})
		return err
	}

	if err := r.store.SaveMenu(ctx, menu); err != nil {
		return err
	}
	if err := r.store.SaveStaff(ctx, staff); err != nil {
		return err
	}
	if r.cache != nil {
		if err := r.cache.PutMenu(ctx, menu); err != nil {
			r.lg.Warn("menu_cache_prime_failed", map[string]any{"error": err.Error()})
		}
	}
	r.lg.Debug("snapshot_refreshed", map[string]any{"menu_items": len(menu), "staff": len(staff)})
	return nil
}
