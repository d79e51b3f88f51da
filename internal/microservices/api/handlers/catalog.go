package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shawarma-pos/internal/common/logger"
	"shawarma-pos/internal/domain"
	"shawarma-pos/internal/microservices/api/service"
)

type MenuHandler struct {
	service service.MenuServiceInterface
	lg      *logger.Logger
}

func NewMenuHandler(s service.MenuServiceInterface, lg *logger.Logger) *MenuHandler {
	return &MenuHandler{service: s, lg: lg}
}

func (mh *MenuHandler) List(c *gin.Context) {
	items, err := mh.service.ListMenu(c.Request.Context())
	if err != nil {
		respondError(c, mh.lg, "menu_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (mh *MenuHandler) Create(c *gin.Context) {
	var req domain.CreateMenuItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, mh.lg, "menu_create_rejected", service.ErrInvalidMenu)
		return
	}
	item, err := mh.service.CreateMenuItem(c.Request.Context(), req)
	if err != nil {
		respondError(c, mh.lg, "menu_create_failed", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "item": item})
}

func (mh *MenuHandler) UpdateStock(c *gin.Context) {
	var req domain.UpdateStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortProblem(c, http.StatusBadRequest, "bad_request", "stock required")
		return
	}
	id := c.Param("id")
	if err := mh.service.UpdateStock(c.Request.Context(), id, *req.Stock); err != nil {
		respondError(c, mh.lg, "stock_update_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "id": id, "stock": *req.Stock})
}

type StaffHandler struct {
	service service.StaffServiceInterface
	lg      *logger.Logger
}

func NewStaffHandler(s service.StaffServiceInterface, lg *logger.Logger) *StaffHandler {
	return &StaffHandler{service: s, lg: lg}
}

func (sh *StaffHandler) List(c *gin.Context) {
	staff, err := sh.service.ListStaff(c.Request.Context())
	if err != nil {
		respondError(c, sh.lg, "staff_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, staff)
}

func (sh *StaffHandler) Create(c *gin.Context) {
	var req domain.CreateStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortProblem(c, http.StatusBadRequest, "bad_request", "username and password required")
		return
	}
	member, err := sh.service.CreateStaff(c.Request.Context(), req)
	if err != nil {
		respondError(c, sh.lg, "staff_create_failed", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "user": member})
}
