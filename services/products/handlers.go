package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sai-karthik-k/ecommerce-microservices/internal/httpx"
	"github.com/sai-karthik-k/ecommerce-microservices/internal/products"
)

// ProductRequest is the body of the create and replace endpoints
type ProductRequest struct {
	Name     string           `json:"name" binding:"required"`
	Price    *decimal.Decimal `json:"price" binding:"required"`
	Quantity *int             `json:"quantity" binding:"required,gte=0"`
}

func (r ProductRequest) product() products.Product {
	return products.Product{Name: r.Name, Price: *r.Price, Quantity: *r.Quantity}
}

// ProductHandler holds the HTTP handlers for the catalog
type ProductHandler struct {
	useCase *products.ProductUseCase
	tracer  trace.Tracer
	logger  *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(useCase *products.ProductUseCase, tracer trace.Tracer, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{useCase: useCase, tracer: tracer, logger: logger}
}

// Register mounts the product routes on r
func (h *ProductHandler) Register(r gin.IRouter) {
	r.GET("/health", h.HealthCheck)

	r.GET("/products", h.GetAll)
	r.GET("/products/:id", h.GetByID)
	r.POST("/products/single", h.CreateSingle)
	r.POST("/products/bulk", h.CreateBulk)
	r.PUT("/products/:id", h.Update)
	r.DELETE("/products/:id", h.Delete)
}

func (h *ProductHandler) GetAll(c *gin.Context) {
	list, err := h.useCase.GetAll(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *ProductHandler) GetByID(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}

	product, err := h.useCase.GetByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) CreateSingle(c *gin.Context) {
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	product, err := h.useCase.Create(c.Request.Context(), req.product())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// CreateBulk takes a JSON array of products and stores all of them or none
func (h *ProductHandler) CreateBulk(c *gin.Context) {
	var items []ProductRequest
	if err := c.ShouldBindJSON(&items); err != nil {
		badRequest(c, err)
		return
	}

	list := make([]products.Product, 0, len(items))
	for _, item := range items {
		list = append(list, item.product())
	}

	saved, err := h.useCase.CreateBulk(c.Request.Context(), list)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

// Update replaces the product; the orders service calls it for every stock adjustment
func (h *ProductHandler) Update(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "products.replace")
	defer span.End()

	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		badRequest(c, err)
		return
	}

	span.SetAttributes(
		attribute.Int64("product_id", id),
		attribute.Int("quantity", *req.Quantity),
	)

	product, err := h.useCase.Update(ctx, id, req.product())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) Delete(c *gin.Context) {
	id, ok := productID(c)
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
func (h *ProductHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "products-service",
	})
}

func (h *ProductHandler) fail(c *gin.Context, err error) {
	_ = c.Error(err)

	switch {
	case errors.Is(err, products.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, products.ErrInvalidProduct):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("unexpected error",
			zap.String("request_id", httpx.RequestIDFrom(c)),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An unexpected error occurred: " + err.Error()})
	}
}

func badRequest(c *gin.Context, err error) {
	if fields, ok := httpx.FieldErrors(err); ok {
		c.JSON(http.StatusBadRequest, fields)
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func productID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id: " + c.Param("id")})
		return 0, false
	}
	return id, true
}
