package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const healthTimeout = 2 * time.Second

// HealthChecks are optional probes; a nil check reports "not_configured".
type HealthChecks struct {
	Database func(ctx context.Context) error
	RabbitMQ func(ctx context.Context) error
}

type HealthHandler struct {
	checks HealthChecks
	now    func() time.Time
}

func NewHealthHandler(checks HealthChecks) *HealthHandler {
	return &HealthHandler{checks: checks, now: time.Now}
}

type healthResponse struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	RabbitMQ  string    `json:"rabbitmq"`
	Timestamp time.Time `json:"timestamp"`
}

// Health answers 200 while the database is reachable. The broker only degrades the status:
// orders are still accepted without it.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	resp := healthResponse{
		Status:    "ok",
		Database:  probe(ctx, h.checks.Database),
		RabbitMQ:  probe(ctx, h.checks.RabbitMQ),
		Timestamp: h.now().UTC(),
	}
	code := http.StatusOK
	switch {
	case resp.Database != "connected":
		resp.Status = "unavailable"
		code = http.StatusServiceUnavailable
	case resp.RabbitMQ != "connected":
		resp.Status = "degraded"
	}
	c.JSON(code, resp)
}

func probe(ctx context.Context, check func(context.Context) error) string {
	if check == nil {
		return "not_configured"
	}
	if err := check(ctx); err != nil {
		return "disconnected"
	}
	return "connected"
}
