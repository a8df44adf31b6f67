package api

import (
	"net/http"
	"strconv"

	"storefront/internal/service"
	"storefront/internal/store"

	"github.com/gin-gonic/gin"
)

type setStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// listMyOrders lists the caller's orders
func (h *Handler) listMyOrders(c *gin.Context) {
	orders, err := h.deps.Fulfillment.ListCustomerOrders(c.Request.Context(), principalFrom(c).ID)
	if err != nil {
		h.writeError(c, "Failed to list orders", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// getMyOrder returns one of the caller's orders
func (h *Handler) getMyOrder(c *gin.Context) {
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}

	view, err := h.deps.Fulfillment.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		h.writeError(c, "Order not found", err)
		return
	}

	p := principalFrom(c)
	if !p.IsAdmin() && view.Order.CustomerID != p.ID {
		h.writeError(c, "Order not found", service.ErrForbidden)
		return
	}
	c.JSON(http.StatusOK, view)
}

// listOrders lists all orders for administrators
func (h *Handler) listOrders(c *gin.Context) {
	filter := store.OrderListFilter{Status: c.Query("status")}
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	filter.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	orders, err := h.deps.Fulfillment.ListOrders(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, "Failed to list orders", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// getOrder returns any order for administrators
func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}

	view, err := h.deps.Fulfillment.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		h.writeError(c, "Order not found", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// setOrderStatus stores a new status and returns the server's copy
func (h *Handler) setOrderStatus(c *gin.Context) {
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	order, err := h.deps.Fulfillment.SetOrderStatus(c.Request.Context(), orderID, req.Status)
	if err != nil {
		h.writeError(c, "Failed to update order status", err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// deleteOrder hard-deletes an order
func (h *Handler) deleteOrder(c *gin.Context) {
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.deps.Fulfillment.DeleteOrder(c.Request.Context(), orderID); err != nil {
		h.writeError(c, "Failed to delete order", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// getAnalytics returns the dashboard snapshot for ?range=
func (h *Handler) getAnalytics(c *gin.Context) {
	snap, err := h.deps.Analytics.ComputeAnalytics(c.Request.Context(), c.DefaultQuery("range", "30d"))
	if err != nil {
		h.writeError(c, "Failed to compute analytics", err)
		return
	}
	c.JSON(http.StatusOK, snap)
}
