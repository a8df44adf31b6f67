package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"storefront/internal/gateway"
	"storefront/internal/models"
	"storefront/internal/service"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// CartService is the cart surface the handlers need
type CartService interface {
	AddItem(ctx context.Context, ownerKey string, line models.CartLine) (*models.CartItem, error)
	RemoveItem(ctx context.Context, ownerKey string, productID int64, size string) error
	GetCart(ctx context.Context, ownerKey string) (*service.CartView, error)
	MergeAnonymousCart(ctx context.Context, customerID string, snapshot models.AnonymousCartSnapshot) (*service.MergeResult, error)
}

// CheckoutService is the checkout surface the handlers need
type CheckoutService interface {
	InitiateGatewayCheckout(ctx context.Context, req *service.CheckoutRequest) (*service.GatewayCheckout, error)
	PlaceCODOrder(ctx context.Context, req *service.CheckoutRequest) (*service.PlacedOrder, error)
}

// FulfillmentService is the order surface the handlers need
type FulfillmentService interface {
	SetOrderStatus(ctx context.Context, orderID int64, status string) (*models.Order, error)
	DeleteOrder(ctx context.Context, orderID int64) error
	GetOrder(ctx context.Context, orderID int64) (*service.OrderView, error)
	ListOrders(ctx context.Context, filter store.OrderListFilter) ([]models.Order, error)
	ListCustomerOrders(ctx context.Context, customerID string) ([]models.Order, error)
}

// AnalyticsService computes dashboard snapshots
type AnalyticsService interface {
	ComputeAnalytics(ctx context.Context, rangeCode string) (*service.AnalyticsSnapshot, error)
}

// WebhookParser verifies and maps gateway webhook deliveries
type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (gateway.Confirmation, error)
}

// ConfirmationPublisher hands confirmations to the worker
type ConfirmationPublisher interface {
	PublishPaymentConfirmed(ctx context.Context, event *models.PaymentConfirmedEvent) error
}

// IdempotencyGuard dedupes webhook deliveries
type IdempotencyGuard interface {
	ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseIdempotencyKey(ctx context.Context, key string) error
}

// Dependencies wires the handler. Webhooks is nil when no gateway is configured.
type Dependencies struct {
	Cart          CartService
	Checkout      CheckoutService
	Fulfillment   FulfillmentService
	Analytics     AnalyticsService
	Webhooks      WebhookParser
	Confirmations ConfirmationPublisher
	Idempotency   IdempotencyGuard
	JWTSecret     string
	Readiness     []func(context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	deps   Dependencies
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(deps Dependencies) *Handler {
	return &Handler{
		deps:   deps,
		logger: util.GetLogger(),
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
	v1.POST("/payments/webhook", h.paymentWebhook)

	authed := v1.Group("", principalMiddleware(h.deps.JWTSecret))
	{
		authed.GET("/cart", h.getCart)
		authed.POST("/cart/items", h.addCartItem)
		authed.DELETE("/cart/items/:productId", h.removeCartItem)
		authed.POST("/cart/merge", h.mergeCart)

		authed.POST("/checkout/gateway", h.gatewayCheckout)
		authed.POST("/checkout/cod", h.codCheckout)

		authed.GET("/orders", h.listMyOrders)
		authed.GET("/orders/:id", h.getMyOrder)
	}

	admin := authed.Group("/admin", requireRole(models.RoleAdmin))
	{
		admin.GET("/orders", h.listOrders)
		admin.GET("/orders/:id", h.getOrder)
		admin.PUT("/orders/:id/status", h.setOrderStatus)
		admin.DELETE("/orders/:id", h.deleteOrder)
		admin.GET("/analytics", h.getAnalytics)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready only when every dependency answers
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	for _, check := range h.deps.Readiness {
		if err := check(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not ready",
				"details": err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// writeError maps service errors to HTTP responses
func (h *Handler) writeError(c *gin.Context, msg string, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   msg,
			"details": err.Error(),
			"fields":  verr.Fields,
		})
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, gin.H{"error": msg, "details": err.Error()})
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrPaymentNotFound),
		errors.Is(err, service.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": msg, "details": err.Error()})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": msg, "details": err.Error()})
	case errors.Is(err, service.ErrGatewayUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":     msg,
			"details":   err.Error(),
			"retriable": true,
		})
	default:
		h.logger.Error(msg, zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg, "details": err.Error()})
	}
}

func parseID(c *gin.Context, param string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid " + param,
		})
		return 0, false
	}
	return id, true
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
