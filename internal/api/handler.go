package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"storefront/internal/models"
	"storefront/internal/service"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/text/currency"
)

// Identity headers set by the upstream auth layer
const (
	HeaderAccountID      = "X-Account-ID"
	HeaderSessionToken   = "X-Session-Token"
	HeaderIdempotencyKey = "Idempotency-Key"

	ownerKey = "owner"
)

// Pinger reports whether the backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	carts     *service.CartService
	finalizer *service.OrderFinalizer
	lifecycle *service.OrderLifecycle
	query     *service.OrderQuery
	catalog   *service.CatalogService
	store     Pinger
	currency  currency.Unit
	logger    *zap.Logger
}

// Services groups the core services the handler exposes
type Services struct {
	Carts     *service.CartService
	Finalizer *service.OrderFinalizer
	Lifecycle *service.OrderLifecycle
	Query     *service.OrderQuery
	Catalog   *service.CatalogService
}

// NewHandler creates a new HTTP handler
func NewHandler(svc Services, store Pinger, unit currency.Unit) *Handler {
	return &Handler{
		carts:     svc.Carts,
		finalizer: svc.Finalizer,
		lifecycle: svc.Lifecycle,
		query:     svc.Query,
		catalog:   svc.Catalog,
		store:     store,
		currency:  unit,
		logger:    util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/session", h.newSession)
		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)

		shopper := v1.Group("", h.identify)
		shopper.GET("/cart", h.getCart)
		shopper.POST("/cart/items", h.addCartItem)
		shopper.PATCH("/cart/items/:id", h.updateCartItem)
		shopper.DELETE("/cart/items/:id", h.removeCartItem)
		shopper.DELETE("/cart", h.clearCart)
		shopper.POST("/cart/link", h.linkCart)
		shopper.POST("/checkout", h.checkout)
		shopper.GET("/orders", h.orderHistory)
		shopper.GET("/orders/:id", h.getOrder)
		shopper.POST("/orders/:id/cancel", h.cancelOrder)

		// admin routes are expected to sit behind the upstream gateway's admin check
		admin := v1.Group("/admin")
		admin.GET("/orders", h.adminListOrders)
		admin.GET("/orders/:id", h.adminGetOrder)
		admin.POST("/orders/:id/status", h.adminAdvanceOrder)
		admin.GET("/cancellations", h.adminListCancellations)
		admin.POST("/products", h.adminCreateProduct)
		admin.PUT("/products/:id", h.adminUpdateProduct)
		admin.DELETE("/products/:id", h.adminDeleteProduct)
		admin.POST("/products/:id/stock", h.adminAdjustStock)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready only when the store answers
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("Readiness check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// identify resolves the caller's owner identity from the auth headers
func (h *Handler) identify(c *gin.Context) {
	var owner models.Owner

	if raw := strings.TrimSpace(c.GetHeader(HeaderAccountID)); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.writeError(c, models.ErrInvalidOwner)
			c.Abort()
			return
		}
		owner.AccountID = &id
	}
	owner.SessionToken = models.SessionToken(strings.TrimSpace(c.GetHeader(HeaderSessionToken)))

	if err := owner.Validate(); err != nil {
		h.writeError(c, err)
		c.Abort()
		return
	}

	c.Set(ownerKey, owner)
	c.Next()
}

func ownerFrom(c *gin.Context) models.Owner {
	return c.MustGet(ownerKey).(models.Owner)
}

// accountFrom returns the caller's account id; guests get false
func accountFrom(c *gin.Context) (int64, bool) {
	owner := ownerFrom(c)
	if owner.AccountID == nil {
		return 0, false
	}
	return *owner.AccountID, true
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid ID",
		})
		return 0, false
	}
	return id, true
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request body",
		"details": err.Error(),
	})
}

// writeError maps a failure to a status code. Causes of internal errors are
// logged and never sent to the client.
func (h *Handler) writeError(c *gin.Context, err error) {
	e, ok := models.AsError(err)
	if !ok {
		if errors.Is(err, context.DeadlineExceeded) {
			e = models.ErrTimeout
		} else {
			e = &models.Error{Kind: models.KindInternal, Code: "internal", Message: "Internal server error", Err: err}
		}
	}

	status := statusFor(e.Kind)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("code", e.Code),
			zap.Error(err))
	}

	body := gin.H{
		"error":     e.Message,
		"code":      e.Code,
		"retryable": e.Retryable(),
	}
	if e.ProductID != 0 {
		body["product_id"] = e.ProductID
	}
	c.JSON(status, body)
}

func statusFor(kind models.ErrorKind) int {
	switch kind {
	case models.KindValidation:
		return http.StatusBadRequest
	case models.KindNotFound, models.KindForbidden:
		return http.StatusNotFound
	case models.KindStockConflict, models.KindConflict:
		return http.StatusConflict
	case models.KindInvalidTransition:
		return http.StatusUnprocessableEntity
	case models.KindTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
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
