package api

import (
	"net/http"
	"strconv"

	"storefront/internal/models"

	"github.com/gin-gonic/gin"
)

type addCartItemRequest struct {
	ProductID int64  `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
	Size      string `json:"size"`
}

// getCart returns the caller's priced cart
func (h *Handler) getCart(c *gin.Context) {
	view, err := h.deps.Cart.GetCart(c.Request.Context(), principalFrom(c).ID)
	if err != nil {
		h.writeError(c, "Failed to load cart", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// addCartItem adds to the caller's cart
func (h *Handler) addCartItem(c *gin.Context) {
	var req addCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	item, err := h.deps.Cart.AddItem(c.Request.Context(), principalFrom(c).ID, models.CartLine{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Size:      req.Size,
	})
	if err != nil {
		h.writeError(c, "Failed to add cart item", err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// removeCartItem removes one line; size comes from the query string
func (h *Handler) removeCartItem(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Param("productId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	if err := h.deps.Cart.RemoveItem(c.Request.Context(), principalFrom(c).ID, productID, c.Query("size")); err != nil {
		h.writeError(c, "Failed to remove cart item", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// mergeCart folds the client-held anonymous cart into the caller's cart
func (h *Handler) mergeCart(c *gin.Context) {
	var snapshot models.AnonymousCartSnapshot
	if err := c.ShouldBindJSON(&snapshot); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	result, err := h.deps.Cart.MergeAnonymousCart(c.Request.Context(), principalFrom(c).ID, snapshot)
	if err != nil {
		h.writeError(c, "Failed to merge cart", err)
		return
	}
	c.JSON(http.StatusOK, result)
}
