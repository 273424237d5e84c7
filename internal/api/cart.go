package api

import (
	"net/http"

	"storefront/internal/models"
	"storefront/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type addItemRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required"`
}

type updateItemRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

type linkCartRequest struct {
	SessionToken string `json:"session_token" binding:"required"`
}

func (h *Handler) money(d decimal.Decimal) gin.H {
	return gin.H{
		"amount":   d.StringFixed(2),
		"currency": h.currency.String(),
	}
}

// newSession mints a guest token for shoppers who are not logged in
func (h *Handler) newSession(c *gin.Context) {
	c.JSON(http.StatusCreated, gin.H{
		"session_token": models.NewSessionToken(),
	})
}

func (h *Handler) getCart(c *gin.Context) {
	view, err := h.carts.GetCartView(c.Request.Context(), ownerFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cart_id":    view.Cart.ID,
		"lines":      view.Lines,
		"item_count": len(view.Lines),
		"total":      h.money(view.Total),
	})
}

func (h *Handler) addCartItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	cart, err := h.carts.GetOrCreateCart(ctx, ownerFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	lineID, err := h.carts.AddItem(ctx, cart.ID, req.ProductID, req.Quantity)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"cart_id": cart.ID,
		"line_id": lineID,
	})
}

func (h *Handler) updateCartItem(c *gin.Context) {
	lineID, ok := pathID(c)
	if !ok {
		return
	}

	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	cart, err := h.carts.GetOrCreateCart(ctx, ownerFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	if err := h.carts.UpdateQuantity(ctx, cart.ID, lineID, *req.Quantity); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) removeCartItem(c *gin.Context) {
	lineID, ok := pathID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	cart, err := h.carts.GetOrCreateCart(ctx, ownerFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	if err := h.carts.RemoveItem(ctx, cart.ID, lineID); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) clearCart(c *gin.Context) {
	ctx := c.Request.Context()
	cart, err := h.carts.GetOrCreateCart(ctx, ownerFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	if err := h.carts.Clear(ctx, cart.ID); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// linkCart moves the guest cart to the logged-in account
func (h *Handler) linkCart(c *gin.Context) {
	accountID, ok := accountFrom(c)
	if !ok {
		h.writeError(c, models.ErrInvalidOwner)
		return
	}

	var req linkCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.carts.LinkToAccount(c.Request.Context(), models.SessionToken(req.SessionToken), accountID); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) checkout(c *gin.Context) {
	ctx := c.Request.Context()
	owner := ownerFrom(c)

	cart, err := h.carts.GetOrCreateCart(ctx, owner)
	if err != nil {
		h.writeError(c, err)
		return
	}

	result, err := h.finalizer.Finalize(ctx, service.CheckoutRequest{
		CartID:         cart.ID,
		Owner:          owner,
		IdempotencyKey: c.GetHeader(HeaderIdempotencyKey),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"order_id": result.OrderID,
		"status":   result.Status,
		"total":    h.money(result.Total),
		"replayed": result.Replayed,
	})
}
