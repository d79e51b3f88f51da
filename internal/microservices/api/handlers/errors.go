package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"shawarma-pos/internal/common/httpx"
	"shawarma-pos/internal/common/logger"
	"shawarma-pos/internal/domain"
	"shawarma-pos/internal/microservices/api/repository"
	"shawarma-pos/internal/microservices/api/service"
)

type errorMapping struct {
	target  error
	code    int
	typ     string
	message string // empty: use err.Error()
}

var errorMappings = []errorMapping{
	{repository.ErrUnknownStaff, http.StatusUnprocessableEntity, "unknown_staff", "User not found. Please log in again."},
	{repository.ErrSchemaNotCreated, http.StatusServiceUnavailable, "schema_missing", "Database schema not initialized. Run with --mode init-db."},
	{repository.ErrAlreadyExists, http.StatusConflict, "conflict", ""},
	{service.ErrOrderIDRequired, http.StatusBadRequest, "bad_request", ""},
	{service.ErrDeleteTarget, http.StatusBadRequest, "bad_request", ""},
	{service.ErrInvalidMenu, http.StatusBadRequest, "bad_request", ""},
	{service.ErrInvalidRole, http.StatusBadRequest, "bad_request", ""},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "unauthorized", ""},
	{service.ErrInvalidToken, http.StatusUnauthorized, "unauthorized", ""},
	{service.ErrNotFound, http.StatusNotFound, "not_found", ""},
}

// respondError writes the problem body extended with {ok:false, error} so terminals can read
// either field.
func respondError(c *gin.Context, lg *logger.Logger, action string, err error) {
	code, typ, msg := http.StatusInternalServerError, "internal", "internal server error"
	matched := false
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			code, typ, msg = m.code, m.typ, m.message
			if msg == "" {
				msg = m.target.Error()
			}
			matched = true
			break
		}
	}
	if !matched && domain.Kind(err) == "bad_request" {
		code, typ, msg = http.StatusBadRequest, "bad_request", err.Error()
	}
	if code >= 500 {
		lg.Error(action, err, map[string]any{"status": code})
	} else {
		lg.Debug(action, map[string]any{"status": code, "reason": err.Error()})
	}
	abortProblem(c, code, typ, msg)
}

func abortProblem(c *gin.Context, code int, typ, msg string) {
	body := httpx.Problem(code, typ, msg)
	body["ok"] = false
	body["error"] = msg
	c.AbortWithStatusJSON(code, body)
}
