package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"shawarma-pos/internal/domain"
)

const pgUniqueViolation = "23505"

var ErrAlreadyExists = errors.New("already exists")

type menuRow struct {
	ID        string          `gorm:"primaryKey;type:varchar(50)"`
	Name      string          `gorm:"type:varchar(255);not null"`
	Price     decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Stock     int             `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (menuRow) TableName() string { return "menu" }

type userRow struct {
	Username  string `gorm:"primaryKey;type:varchar(50)"`
	Password  string `gorm:"type:varchar(255);not null"`
	Role      string `gorm:"type:varchar(20)"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (userRow) TableName() string { return "users" }

// Credentials is a users row including the bcrypt hash. It never leaves the service layer.
type Credentials struct {
	Username     string
	PasswordHash string
	Role         string
}

type CatalogRepositoryInterface interface {
	ListMenu(ctx context.Context) ([]domain.MenuItem, error)
	CreateMenuItem(ctx context.Context, item domain.MenuItem) error
	UpdateStock(ctx context.Context, id string, stock int) (bool, error)
	ListStaff(ctx context.Context) ([]domain.StaffMember, error)
	GetCredentials(ctx context.Context, username string) (Credentials, bool, error)
	CreateUser(ctx context.Context, c Credentials) error
}

type CatalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) CatalogRepositoryInterface {
	return &CatalogRepository{db: db}
}

func (cr *CatalogRepository) ListMenu(ctx context.Context) ([]domain.MenuItem, error) {
	var rows []menuRow
	if err := cr.db.WithContext(ctx).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, classify("list menu", err)
	}
	out := make([]domain.MenuItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.MenuItem{ID: r.ID, Name: r.Name, Price: r.Price, Stock: r.Stock, LastUpdated: r.UpdatedAt})
	}
	return out, nil
}

func (cr *CatalogRepository) CreateMenuItem(ctx context.Context, item domain.MenuItem) error {
	row := menuRow{ID: item.ID, Name: item.Name, Price: item.Price, Stock: item.Stock}
	if err := cr.db.WithContext(ctx).Create(&row).Error; err != nil {
		return duplicate("create menu item", err)
	}
	return nil
}

func (cr *CatalogRepository) UpdateStock(ctx context.Context, id string, stock int) (bool, error) {
	res := cr.db.WithContext(ctx).Model(&menuRow{}).Where("id = ?", id).
		Updates(map[string]any{"stock": stock, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, classify("update stock", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (cr *CatalogRepository) ListStaff(ctx context.Context) ([]domain.StaffMember, error) {
	var rows []userRow
	if err := cr.db.WithContext(ctx).Select("username", "role").Order("created_at, username").Find(&rows).Error; err != nil {
		return nil, classify("list staff", err)
	}
	out := make([]domain.StaffMember, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.StaffMember{Username: r.Username, Role: r.Role})
	}
	return out, nil
}

func (cr *CatalogRepository) GetCredentials(ctx context.Context, username string) (Credentials, bool, error) {
	var row userRow
	err := cr.db.WithContext(ctx).Where("username = ?", username).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Credentials{}, false, nil
	}
	if err != nil {
		return Credentials{}, false, classify("get user", err)
	}
	return Credentials{Username: row.Username, PasswordHash: row.Password, Role: row.Role}, true, nil
}

func (cr *CatalogRepository) CreateUser(ctx context.Context, c Credentials) error {
	row := userRow{Username: c.Username, Password: c.PasswordHash, Role: c.Role}
	if err := cr.db.WithContext(ctx).Create(&row).Error; err != nil {
		return duplicate("create user", err)
	}
	return nil
}

func duplicate(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%s: %w", op, ErrAlreadyExists)
	}
	return classify(op, err)
}
