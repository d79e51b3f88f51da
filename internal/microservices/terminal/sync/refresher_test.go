package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"shawarma-pos/internal/domain"
)

type stubSource struct {
	menu     []domain.MenuItem
	staff    []domain.StaffMember
	menuErr  error
	staffErr error
}

func (s stubSource) Menu(context.Context) ([]domain.MenuItem, error)     { return s.menu, s.menuErr }
func (s stubSource) Staff(context.Context) ([]domain.StaffMember, error) { return s.staff, s.staffErr }

type stubCache struct {
	got []domain.MenuItem
	err error
}

func (c *stubCache) PutMenu(_ context.Context, menu []domain.MenuItem) error {
	c.got = menu
	return c.err
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	fresh := []domain.MenuItem{
		{ID: "m-1", Name: "Shawarma Wrap", Price: decimal.NewFromInt(20), Stock: 25},
		{ID: "m-2", Name: "Falafel Wrap", Price: decimal.NewFromInt(18), Stock: 12},
	}
	staff := []domain.StaffMember{{Username: "admin", Role: domain.RoleAdmin}}

	tests := []struct {
		name      string
		online    bool
		source    stubSource
		cacheErr  error
		wantErr   bool
		wantMenu  int
		wantCache bool
	}{
		{name: "replaces_both", online: true, source: stubSource{menu: fresh, staff: staff}, wantMenu: 2, wantCache: true},
		{name: "cache_failure_is_not_fatal", online: true, source: stubSource{menu: fresh, staff: staff}, cacheErr: errors.New("disk full"), wantMenu: 2, wantCache: true},
		{name: "staff_fetch_fails_keeps_old", online: true, source: stubSource{menu: fresh, staffErr: &domain.NetworkFailure{Op: "get_staff", Err: errors.New("down")}}, wantErr: true, wantMenu: 1},
		{name: "offline_is_noop", online: false, source: stubSource{menu: fresh, staff: staff}, wantMenu: 1},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			st := openStore(t)
			if err := st.SaveMenu(ctx, []domain.MenuItem{{ID: "old", Name: "Old", Price: decimal.NewFromInt(1)}}); err != nil {
				t.Fatalf("seed menu: %v", err)
			}

			cache := &stubCache{err: tt.cacheErr}
			err := NewRefresher(tt.source, st, cache, staticNet{online: tt.online}, quiet()).Refresh(ctx)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			menu, _ := st.GetMenu(ctx)
			if len(menu) != tt.wantMenu {
				t.Fatalf("expected %d menu items, got %+v", tt.wantMenu, menu)
			}
			if (cache.got != nil) != tt.wantCache {
				t.Fatalf("cache primed = %v, want %v", cache.got != nil, tt.wantCache)
			}
		})
	}
}
