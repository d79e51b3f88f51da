// Package edge is the terminal's caching proxy in front of the backend origin.
// It keeps the UI usable while the backend is unreachable.
package edge

import (
	"context"
	"net/http"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shawarma-pos/internal/domain"
)

type entryRecord struct {
	ID        uint        `gorm:"primaryKey;autoIncrement"`
	CacheName string      `gorm:"uniqueIndex:idx_edge_cache_key,priority:1;type:varchar(128)"`
	CacheKey  string      `gorm:"uniqueIndex:idx_edge_cache_key,priority:2;type:varchar(1024)"`
	Status    int
	Header    http.Header `gorm:"serializer:json"`
	Body      []byte
	StoredAt  time.Time
}

func (entryRecord) TableName() string { return "edge_cache_entries" }

// CachedResponse is a stored copy of an origin response.
type CachedResponse struct {
	Status   int
	Header   http.Header
	Body     []byte
	StoredAt time.Time
}

// Storage keeps named caches of responses, keyed by request URI.
type Storage struct {
	db *gorm.DB
}

func NewStorage(db *gorm.DB) (*Storage, error) {
	if err := db.AutoMigrate(&entryRecord{}); err != nil {
		return nil, &domain.StorageUnavailable{Op: "edge_migrate", Err: err}
	}
	return &Storage{db: db}, nil
}

func (s *Storage) Match(ctx context.Context, cache, key string) (CachedResponse, bool, error) {
	var rec entryRecord
	res := s.db.WithContext(ctx).
		Where("cache_name = ? AND cache_key = ?", cache, key).
		Limit(1).
		Find(&rec)
	if res.Error != nil {
		return CachedResponse{}, false, &domain.StorageUnavailable{Op: "edge_match", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return CachedResponse{}, false, nil
	}
	return CachedResponse{Status: rec.Status, Header: rec.Header, Body: rec.Body, StoredAt: rec.StoredAt}, true, nil
}

// Put overwrites the entry for key in cache.
func (s *Storage) Put(ctx context.Context, cache, key string, r CachedResponse) error {
	if r.StoredAt.IsZero() {
		r.StoredAt = time.Now().UTC()
	}
	rec := entryRecord{CacheName: cache, CacheKey: key, Status: r.Status, Header: r.Header, Body: r.Body, StoredAt: r.StoredAt}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_name"}, {Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "header", "body", "stored_at"}),
	}).Create(&rec).Error
	if err != nil {
		return &domain.StorageUnavailable{Op: "edge_put", Err: err}
	}
	return nil
}

func (s *Storage) Keys(ctx context.Context, cache string) ([]string, error) {
	var keys []string
	if err := s.db.WithContext(ctx).Model(&entryRecord{}).
		Where("cache_name = ?", cache).
		Order("cache_key").
		Pluck("cache_key", &keys).Error; err != nil {
		return nil, &domain.StorageUnavailable{Op: "edge_keys", Err: err}
	}
	return keys, nil
}

// Caches lists every cache name that holds at least one entry.
func (s *Storage) Caches(ctx context.Context) ([]string, error) {
	var names []string
	if err := s.db.WithContext(ctx).Model(&entryRecord{}).
		Distinct("cache_name").
		Order("cache_name").
		Pluck("cache_name", &names).Error; err != nil {
		return nil, &domain.StorageUnavailable{Op: "edge_caches", Err: err}
	}
	return names, nil
}

func (s *Storage) DeleteCache(ctx context.Context, cache string) error {
	if err := s.db.WithContext(ctx).Where("cache_name = ?", cache).Delete(&entryRecord{}).Error; err != nil {
		return &domain.StorageUnavailable{Op: "edge_delete", Err: err}
	}
	return nil
}
