package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shawarma-pos/internal/common/logger"
	"shawarma-pos/internal/domain"
	"shawarma-pos/internal/microservices/api/service"
)

type OrderHandler struct {
	service service.OrderServiceInterface
	lg      *logger.Logger
}

func NewOrderHandler(s service.OrderServiceInterface, lg *logger.Logger) *OrderHandler {
	return &OrderHandler{service: s, lg: lg}
}

// Create answers 201 for a new order and 200 for a replay of a known id.
func (oh *OrderHandler) Create(c *gin.Context) {
	var req domain.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortProblem(c, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	res, err := oh.service.CreateOrder(c.Request.Context(), req)
	if err != nil {
		respondError(c, logFor(c, oh.lg), "order_create_failed", err)
		return
	}
	code := http.StatusCreated
	if res.Duplicate {
		code = http.StatusOK
	}
	c.JSON(code, res)
}

func (oh *OrderHandler) List(c *gin.Context) {
	orders, err := oh.service.ListOrders(c.Request.Context())
	if err != nil {
		respondError(c, logFor(c, oh.lg), "orders_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (oh *OrderHandler) Delete(c *gin.Context) {
	var req domain.DeleteOrdersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortProblem(c, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	res, err := oh.service.DeleteOrders(c.Request.Context(), req)
	if err != nil {
		respondError(c, logFor(c, oh.lg), "orders_delete_failed", err)
		return
	}
	c.JSON(http.StatusOK, res)
}
