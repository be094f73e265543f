package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sai-karthik-k/ecommerce-microservices/internal/httpx"
	"github.com/sai-karthik-k/ecommerce-microservices/internal/orders"
)

// OrderUseCaseInterface is what the handlers need from orders.OrderUseCase
type OrderUseCaseInterface interface {
	GetAll(ctx context.Context) ([]orders.Order, error)
	GetByID(ctx context.Context, id int64) (*orders.Order, error)
	Create(ctx context.Context, order orders.Order) (*orders.Order, error)
	Update(ctx context.Context, id int64, order orders.Order) (*orders.Order, error)
	Delete(ctx context.Context, id int64) error
}

// OrderRequest is the body of POST /orders and PUT /orders/:id
type OrderRequest struct {
	ProductID int64 `json:"prodId" binding:"required,gt=0"`
	Quantity  int   `json:"quantity" binding:"required,gt=0"`
}

// OrderHandler holds the HTTP handlers
type OrderHandler struct {
	useCase OrderUseCaseInterface
	logger  *zap.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(useCase OrderUseCaseInterface, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{useCase: useCase, logger: logger}
}

// Register mounts the order routes on r
func (h *OrderHandler) Register(r gin.IRouter) {
	r.GET("/health", h.HealthCheck)

	r.GET("/orders", h.GetAll)
	r.GET("/orders/:id", h.GetByID)
	r.POST("/orders", h.Create)
	r.PUT("/orders/:id", h.Update)
	r.DELETE("/orders/:id", h.Delete)
}

func (h *OrderHandler) GetAll(c *gin.Context) {
	list, err := h.useCase.GetAll(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *OrderHandler) GetByID(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}

	order, err := h.useCase.GetByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) Create(c *gin.Context) {
	req, ok := bindOrder(c)
	if !ok {
		return
	}

	order, err := h.useCase.Create(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) Update(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	req, ok := bindOrder(c)
	if !ok {
		return
	}

	order, err := h.useCase.Update(c.Request.Context(), id, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) Delete(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}

	if err := h.useCase.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// HealthCheck reports service liveness
func (h *OrderHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "orders-service",
	})
}

// fail maps the orchestrator's error kinds to HTTP statuses
func (h *OrderHandler) fail(c *gin.Context, err error) {
	_ = c.Error(err)

	switch {
	case errors.Is(err, orders.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, orders.ErrInsufficientQuantity):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, orders.ErrProductServiceUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Product service error: " + err.Error()})
	default:
		h.logger.Error("unexpected error",
			zap.String("request_id", httpx.RequestIDFrom(c)),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An unexpected error occurred: " + err.Error()})
	}
}

func orderID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id: " + c.Param("id")})
		return 0, false
	}
	return id, true
}

func bindOrder(c *gin.Context) (orders.Order, bool) {
	var req OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if fields, ok := httpx.FieldErrors(err); ok {
			c.JSON(http.StatusBadRequest, fields)
			return orders.Order{}, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return orders.Order{}, false
	}
	return orders.Order{ProductID: req.ProductID, Quantity: req.Quantity}, true
}
