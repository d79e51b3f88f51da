package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"shawarma-pos/internal/domain"
	"shawarma-pos/internal/microservices/api/repository"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid token")
)

type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type AuthServiceInterface interface {
	Login(ctx context.Context, username, password string) (domain.LoginResponse, error)
	ValidateToken(token string) (domain.StaffMember, error)
}

type AuthService struct {
	repo   repository.CatalogRepositoryInterface
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthService(repo repository.CatalogRepositoryInterface, secret []byte, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &AuthService{repo: repo, secret: secret, ttl: ttl, now: time.Now}
}

// Login checks the bcrypt hash and issues an HS256 token.
func (s *AuthService) Login(ctx context.Context, username, password string) (domain.LoginResponse, error) {
	c, found, err := s.repo.GetCredentials(ctx, username)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	if !found || bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)) != nil {
		return domain.LoginResponse{}, ErrInvalidCredentials
	}
	user := domain.StaffMember{Username: c.Username, Role: c.Role}
	token, err := s.issue(user)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	return domain.LoginResponse{OK: true, Token: token, User: user}, nil
}

func (s *AuthService) issue(u domain.StaffMember) (string, error) {
	now := s.now()
	claims := &Claims{
		Username: u.Username,
		Role:     u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *AuthService) ValidateToken(token string) (domain.StaffMember, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid || claims.Username == "" {
		return domain.StaffMember{}, ErrInvalidToken
	}
	return domain.StaffMember{Username: claims.Username, Role: claims.Role}, nil
}
