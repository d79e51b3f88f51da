package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"shawarma-pos/internal/common/logger"
	"shawarma-pos/internal/domain"
	"shawarma-pos/internal/microservices/api/repository"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrInvalidRole = errors.New("role must be admin or staff")
	ErrInvalidMenu = errors.New("name, price, and stock required")
)

type MenuServiceInterface interface {
	ListMenu(ctx context.Context) ([]domain.MenuItem, error)
	CreateMenuItem(ctx context.Context, req domain.CreateMenuItemRequest) (domain.MenuItem, error)
	UpdateStock(ctx context.Context, id string, stock int) error
}

type StaffServiceInterface interface {
	ListStaff(ctx context.Context) ([]domain.StaffMember, error)
	CreateStaff(ctx context.Context, req domain.CreateStaffRequest) (domain.StaffMember, error)
}

type CatalogService struct {
	repo repository.CatalogRepositoryInterface
	lg   *logger.Logger
}

func NewCatalogService(repo repository.CatalogRepositoryInterface, lg *logger.Logger) *CatalogService {
	return &CatalogService{repo: repo, lg: lg}
}

func (s *CatalogService) ListMenu(ctx context.Context) ([]domain.MenuItem, error) {
	return s.repo.ListMenu(ctx)
}

func (s *CatalogService) CreateMenuItem(ctx context.Context, req domain.CreateMenuItemRequest) (domain.MenuItem, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || req.Price == nil || req.Stock == nil || req.Price.IsNegative() || *req.Stock < 0 {
		return domain.MenuItem{}, ErrInvalidMenu
	}
	item := domain.MenuItem{
		ID:    "m-" + uuid.NewString(),
		Name:  name,
		Price: *req.Price,
		Stock: *req.Stock,
	}
	if err := s.repo.CreateMenuItem(ctx, item); err != nil {
		return domain.MenuItem{}, err
	}
	s.lg.Info("menu_item_created", map[string]any{"id": item.ID, "name": item.Name})
	return item, nil
}

func (s *CatalogService) UpdateStock(ctx context.Context, id string, stock int) error {
	if stock < 0 {
		return fmt.Errorf("%w: stock must not be negative", domain.ErrInvalidItem)
	}
	found, err := s.repo.UpdateStock(ctx, id, stock)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("menu item %q: %w", id, ErrNotFound)
	}
	s.lg.Info("stock_updated", map[string]any{"id": id, "stock": stock})
	return nil
}

func (s *CatalogService) ListStaff(ctx context.Context) ([]domain.StaffMember, error) {
	return s.repo.ListStaff(ctx)
}

func (s *CatalogService) CreateStaff(ctx context.Context, req domain.CreateStaffRequest) (domain.StaffMember, error) {
	role := req.Role
	if role == "" {
		role = domain.RoleStaff
	}
	if role != domain.RoleStaff && role != domain.RoleAdmin {
		return domain.StaffMember{}, ErrInvalidRole
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.StaffMember{}, fmt.Errorf("hash password: %w", err)
	}
	c := repository.Credentials{Username: strings.TrimSpace(req.Username), PasswordHash: string(hash), Role: role}
	if err := s.repo.CreateUser(ctx, c); err != nil {
		return domain.StaffMember{}, err
	}
	s.lg.Info("staff_created", map[string]any{"username": c.Username, "role": role})
	return domain.StaffMember{Username: c.Username, Role: role}, nil
}
