package api

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"shawarma-pos/internal/common/httpx"
	"shawarma-pos/internal/common/logger"
	"shawarma-pos/internal/config"
	"shawarma-pos/internal/connections/database"
	"shawarma-pos/internal/connections/rabbitmq"
	"shawarma-pos/internal/microservices/api/handlers"
	"shawarma-pos/internal/microservices/api/repository"
	"shawarma-pos/internal/microservices/api/service"
)

// Run serves the backend REST API until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config) error {
	lg := logger.New("api-server")
	if err := cfg.ValidateServer(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	if cfg.Server.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	// 1. Postgres
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()
	gdb, err := database.Gorm(pool)
	if err != nil {
		return err
	}

	// 2. RabbitMQ; orders are still accepted without it
	checks := handlers.HealthChecks{Database: pool.Ping}
	var pub service.Publisher
	rmq, err := rabbitmq.Dial(cfg.RabbitMQ)
	if err != nil {
		lg.Warn("rabbitmq_unavailable", map[string]any{"reason": err.Error()})
	} else {
		defer rmq.Close()
		if err := rmq.DeclareTopology(); err != nil {
			return fmt.Errorf("declare topology: %w", err)
		}
		pub = rmq
		checks.RabbitMQ = func(context.Context) error { return rmq.Ping() }
	}

	// 3. Layers
	repo := repository.New(pool, gdb)
	svc, err := service.New(repo, pub, []byte(cfg.Server.JWTSecret), cfg.Server.TokenTTL, lg)
	if err != nil {
		return err
	}
	h := handlers.New(svc, checks, lg)

	addr := ":" + strconv.Itoa(cfg.Server.Port)
	lg.Info("service_started", map[string]any{"addr": addr, "production": cfg.Server.Production})
	return httpx.New(addr, handlers.Router(h, svc, lg)).Run(ctx)
}

// InitDB creates the schema and, outside production, seeds demo users.
func InitDB(ctx context.Context, cfg *config.Config) error {
	lg := logger.New("init-db")
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()
	return repository.InitSchema(ctx, pool, cfg.Server.Production, lg)
}
