package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shawarma-pos/internal/common/logger"
	"shawarma-pos/internal/domain"
	"shawarma-pos/internal/microservices/api/service"
)

type AuthHandler struct {
	service service.AuthServiceInterface
	lg      *logger.Logger
}

func NewAuthHandler(s service.AuthServiceInterface, lg *logger.Logger) *AuthHandler {
	return &AuthHandler{service: s, lg: lg}
}

func (ah *AuthHandler) Login(c *gin.Context) {
	var req domain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortProblem(c, http.StatusBadRequest, "bad_request", "username and password required")
		return
	}
	resp, err := ah.service.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, ah.lg, "login_failed", err)
		return
	}
	ah.lg.Info("login", map[string]any{"username": resp.User.Username, "role": resp.User.Role})
	c.JSON(http.StatusOK, resp)
}
