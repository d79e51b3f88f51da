package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"shawarma-pos/internal/common/logger"
	"shawarma-pos/internal/domain"
	"shawarma-pos/internal/microservices/api/service"
)

const (
	HeaderRequestID = "X-Request-ID"

	ctxRequestID = "request_id"
	ctxUser      = "user"
)

// RequestID reuses an incoming X-Request-ID or assigns a fresh uuid.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

func AccessLog(lg *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logFor(c, lg).Info("http_request", map[string]any{
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"client_ip":   c.ClientIP(),
		})
	}
}

func logFor(c *gin.Context, lg *logger.Logger) *logger.Logger {
	if id := c.GetString(ctxRequestID); id != "" {
		return lg.WithRequestID(id)
	}
	return lg
}

// Authenticate requires a valid bearer token and stores the staff member in the context.
func Authenticate(auth service.AuthServiceInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			abortProblem(c, http.StatusUnauthorized, "unauthorized", "authorization header required")
			return
		}
		user, err := auth.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			abortProblem(c, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}
		c.Set(ctxUser, user)
		c.Next()
	}
}

func UserFromContext(c *gin.Context) (domain.StaffMember, bool) {
	v, ok := c.Get(ctxUser)
	if !ok {
		return domain.StaffMember{}, false
	}
	u, ok := v.(domain.StaffMember)
	return u, ok
}

// RequirePermission checks the caller's role against the RBAC policy.
func RequirePermission(authz service.AuthorizationServiceInterface, lg *logger.Logger, resource, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := UserFromContext(c)
		if !ok {
			abortProblem(c, http.StatusUnauthorized, "unauthorized", "user not found in context")
			return
		}
		allowed, err := authz.CheckPermission(user.Role, resource, action)
		if err != nil {
			logFor(c, lg).Error("authorization_check_failed", err, map[string]any{"role": user.Role})
			abortProblem(c, http.StatusInternalServerError, "internal", "authorization check failed")
			return
		}
		if !allowed {
			logFor(c, lg).Warn("access_denied", map[string]any{
				"username": user.Username, "role": user.Role, "resource": resource, "action": action,
			})
			abortProblem(c, http.StatusForbidden, "forbidden", "access denied")
			return
		}
		c.Next()
	}
}
