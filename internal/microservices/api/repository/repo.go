package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/gorm"
)

type Repository struct {
	OrderRepo   OrderRepositoryInterface
	CatalogRepo CatalogRepositoryInterface
}

func New(pool *pgxpool.Pool, db *gorm.DB) *Repository {
	return &Repository{
		OrderRepo:   NewOrderRepository(pool),
		CatalogRepo: NewCatalogRepository(db),
	}
}
