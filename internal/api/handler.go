package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"energy-store/internal/auth"
	"energy-store/internal/cart"
	"energy-store/internal/models"
	"energy-store/internal/service"
	"energy-store/internal/store"
	"energy-store/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const idempotencyTTL = 24 * time.Hour

// IdempotencyStore remembers checkout responses by Idempotency-Key
type IdempotencyStore interface {
	GetIdempotencyKey(ctx context.Context, key string) ([]byte, bool, error)
	SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Services bundles what the handlers call
type Services struct {
	Catalog      *service.CatalogService
	Carts        *service.CartService
	Checkout     *service.CheckoutService
	Reservations *service.ReservationService
}

// Handler contains HTTP handlers
type Handler struct {
	catalog      *service.CatalogService
	carts        *service.CartService
	checkout     *service.CheckoutService
	reservations *service.ReservationService
	authorizer   *auth.Authorizer
	idempotency  IdempotencyStore
	checks       map[string]func(context.Context) error
	logger       *zap.Logger
}

// NewHandler creates a new HTTP handler. idempotency may be nil.
func NewHandler(svc Services, authorizer *auth.Authorizer, idempotency IdempotencyStore) *Handler {
	return &Handler{
		catalog:      svc.Catalog,
		carts:        svc.Carts,
		checkout:     svc.Checkout,
		reservations: svc.Reservations,
		authorizer:   authorizer,
		idempotency:  idempotency,
		checks:       make(map[string]func(context.Context) error),
		logger:       util.GetLogger(),
	}
}

// AddReadinessCheck registers a dependency probed by /ready
func (h *Handler) AddReadinessCheck(name string, check func(context.Context) error) {
	h.checks[name] = check
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/products", h.listCatalog)

		carts := v1.Group("/carts/:session")
		carts.GET("", h.getCart)
		carts.DELETE("", h.clearCart)
		carts.POST("/items", h.addCartItem)
		carts.PUT("/items/:productId", h.updateCartItem)
		carts.DELETE("/items/:productId", h.removeCartItem)
		carts.POST("/checkout", h.checkoutCart)

		admin := v1.Group("/admin", h.authorizer.RequireAdmin())
		admin.GET("/products", h.listAllProducts)
		admin.POST("/products", h.createProduct)
		admin.PUT("/products/:id/stock", h.updateStock)
		admin.DELETE("/products/:id", h.deleteProduct)
		admin.POST("/reservations/sweep", h.sweepReservations)
		admin.GET("/reservations/:token", h.getReservation)
		admin.POST("/reservations/:token/complete", h.completeReservation)
		admin.POST("/reservations/:token/cancel", h.cancelReservation)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck probes every registered dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "not ready",
			"failing": failed,
			"time":    time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) listCatalog(c *gin.Context) {
	entries, err := h.catalog.ListCatalog(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": entries})
}

func (h *Handler) getCart(c *gin.Context) {
	ct, err := h.carts.Get(c.Request.Context(), c.Param("session"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ct.Snapshot())
}

type addItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) addCartItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	ct, err := h.carts.AddItem(c.Request.Context(), c.Param("session"), req.ProductID, req.Quantity)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ct.Snapshot())
}

type updateItemRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

func (h *Handler) updateCartItem(c *gin.Context) {
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	ct, err := h.carts.UpdateItem(c.Request.Context(), c.Param("session"), c.Param("productId"), *req.Quantity)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ct.Snapshot())
}

func (h *Handler) removeCartItem(c *gin.Context) {
	ct, err := h.carts.RemoveItem(c.Request.Context(), c.Param("session"), c.Param("productId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ct.Snapshot())
}

func (h *Handler) clearCart(c *gin.Context) {
	if err := h.carts.Clear(c.Request.Context(), c.Param("session")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// checkoutCart reserves the cart. A repeated Idempotency-Key replays the first response.
func (h *Handler) checkoutCart(c *gin.Context) {
	ctx := c.Request.Context()
	session := c.Param("session")

	key := c.GetHeader("Idempotency-Key")
	if key != "" && h.idempotency != nil {
		key = "checkout:" + session + ":" + key
		raw, ok, err := h.idempotency.GetIdempotencyKey(ctx, key)
		if err != nil {
			h.logger.Warn("Idempotency lookup failed", zap.Error(err))
		}
		if ok {
			c.Header("Idempotent-Replay", "true")
			c.Data(http.StatusCreated, "application/json; charset=utf-8", raw)
			return
		}
	}

	result, err := h.checkout.Checkout(ctx, session)
	if err != nil {
		h.writeError(c, err)
		return
	}

	if key != "" && h.idempotency != nil {
		raw, err := json.Marshal(result)
		if err == nil {
			err = h.idempotency.SetIdempotencyKey(ctx, key, raw, idempotencyTTL)
		}
		if err != nil {
			h.logger.Warn("Failed to store idempotency key", zap.Error(err))
		}
	}

	c.JSON(http.StatusCreated, result)
}

func (h *Handler) listAllProducts(c *gin.Context) {
	products, err := h.catalog.ListProducts(c.Request.Context(), false)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

type createProductRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
	Price       int64   `json:"price"`
	Stock       int     `json:"stock"`
	ImageURL    *string `json:"image_url"`
	IsActive    *bool   `json:"is_active"`
	IsSugarFree bool    `json:"is_sugar_free"`
}

func (h *Handler) createProduct(c *gin.Context) {
	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	p := &models.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		ImageURL:    req.ImageURL,
		IsActive:    req.IsActive == nil || *req.IsActive,
		IsSugarFree: req.IsSugarFree,
	}
	if err := h.catalog.CreateProduct(c.Request.Context(), p); err != nil {
		h.writeError(c, err)
		return
	}

	h.logger.Info("Admin created product", zap.String("admin", auth.Identity(c)), zap.String("product_id", p.ID))
	c.JSON(http.StatusCreated, p)
}

type updateStockRequest struct {
	Stock *int `json:"stock" binding:"required"`
}

func (h *Handler) updateStock(c *gin.Context) {
	var req updateStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	id := c.Param("id")
	if err := h.catalog.UpdateStock(c.Request.Context(), id, *req.Stock); err != nil {
		h.writeError(c, err)
		return
	}

	p, err := h.catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) deleteProduct(c *gin.Context) {
	if err := h.catalog.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) getReservation(c *gin.Context) {
	ctx := c.Request.Context()
	token := c.Param("token")

	rows, err := h.reservations.List(ctx, token)
	if err != nil {
		h.writeError(c, err)
		return
	}
	sales, err := h.reservations.Sales(ctx, token)
	if err != nil {
		h.writeError(c, err)
		return
	}

	now := time.Now().UTC()
	lines := make([]gin.H, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, gin.H{
			"reservation": r,
			"status":      r.Status(now),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"lines": lines,
		"sales": sales,
	})
}

type completeRequest struct {
	CustomerContact string `json:"customer_contact"`
}

func (h *Handler) completeReservation(c *gin.Context) {
	var req completeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid request body",
				"details": err.Error(),
			})
			return
		}
	}

	token := c.Param("token")
	if err := h.reservations.CompleteToken(c.Request.Context(), token, req.CustomerContact); err != nil {
		h.writeError(c, err)
		return
	}

	sales, err := h.reservations.Sales(c.Request.Context(), token)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "sales": sales})
}

func (h *Handler) cancelReservation(c *gin.Context) {
	token := c.Param("token")
	if err := h.reservations.CancelToken(c.Request.Context(), token); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "status": "cancelled"})
}

func (h *Handler) sweepReservations(c *gin.Context) {
	released, err := h.reservations.ReleaseExpired(c.Request.Context(), time.Now().UTC())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"released": released})
}

// writeError maps domain errors to HTTP responses
func (h *Handler) writeError(c *gin.Context, err error) {
	var stockErr *cart.InsufficientStockError

	switch {
	case errors.As(err, &stockErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":     "Insufficient stock",
			"available": stockErr.Available,
		})
	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, models.ErrProductNameRequired),
		errors.Is(err, models.ErrNegativePrice),
		errors.Is(err, models.ErrNegativeStock):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cart is empty"})
	case errors.Is(err, service.ErrCheckoutInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "Checkout already in progress"})
	case errors.Is(err, store.ErrInsufficientStock):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "Insufficient stock",
			"details": err.Error(),
		})
	case errors.Is(err, service.ErrReservationNotFound),
		errors.Is(err, service.ErrProductUnavailable),
		errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Not found",
			"details": err.Error(),
		})
	default:
		h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal error",
			"details": err.Error(),
		})
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
