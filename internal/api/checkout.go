package api

import (
	"errors"
	"net/http"
	"time"

	"storefront/internal/gateway"
	"storefront/internal/models"
	"storefront/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const webhookDedupeTTL = 72 * time.Hour

func (h *Handler) bindCheckout(c *gin.Context) (*service.CheckoutRequest, bool) {
	var req service.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return nil, false
	}
	req.CustomerID = principalFrom(c).ID
	return &req, true
}

// gatewayCheckout starts a hosted gateway checkout
func (h *Handler) gatewayCheckout(c *gin.Context) {
	req, ok := h.bindCheckout(c)
	if !ok {
		return
	}

	checkout, err := h.deps.Checkout.InitiateGatewayCheckout(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, "Failed to start checkout", err)
		return
	}
	c.JSON(http.StatusCreated, checkout)
}

// codCheckout places a cash-on-delivery order
func (h *Handler) codCheckout(c *gin.Context) {
	req, ok := h.bindCheckout(c)
	if !ok {
		return
	}

	placed, err := h.deps.Checkout.PlaceCODOrder(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, "Failed to place order", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"order": gin.H{
			"id":                 placed.Order.ID,
			"order_number":       placed.Order.OrderNumber,
			"external_reference": placed.Payment.ExternalReference,
			"status":             placed.Order.Status,
			"total_amount":       placed.Order.TotalAmount,
		},
		"items":   placed.Items,
		"payment": placed.Payment,
	})
}

// paymentWebhook verifies a gateway delivery and queues the confirmation
func (h *Handler) paymentWebhook(c *gin.Context) {
	if h.deps.Webhooks == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Payment gateway not configured"})
		return
	}

	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable body", "details": err.Error()})
		return
	}

	conf, err := h.deps.Webhooks.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
	if errors.Is(err, gateway.ErrIgnoredEvent) {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}
	if err != nil {
		h.logger.Warn("Rejected webhook delivery", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid webhook", "details": err.Error()})
		return
	}

	ctx := c.Request.Context()
	key := "webhook:" + conf.EventID
	if h.deps.Idempotency != nil {
		claimed, err := h.deps.Idempotency.ClaimIdempotencyKey(ctx, key, webhookDedupeTTL)
		if err != nil {
			h.writeError(c, "Failed to record webhook", err)
			return
		}
		if !claimed {
			c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
			return
		}
	}

	event := &models.PaymentConfirmedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   conf.EventID,
			EventType: models.EventTypePaymentConfirmed,
			Timestamp: time.Now().UTC(),
		},
		ExternalReference: conf.ExternalReference,
		Outcome:           conf.Outcome,
	}
	if err := h.deps.Confirmations.PublishPaymentConfirmed(ctx, event); err != nil {
		if h.deps.Idempotency != nil {
			if relErr := h.deps.Idempotency.ReleaseIdempotencyKey(ctx, key); relErr != nil {
				h.logger.Error("Failed to release webhook key", zap.Error(relErr))
			}
		}
		h.writeError(c, "Failed to queue confirmation", err)
		return
	}

	h.logger.Info("Payment confirmation queued",
		zap.String("event_id", conf.EventID),
		zap.String("external_reference", conf.ExternalReference),
		zap.String("outcome", conf.Outcome))
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}
