package api

import (
	"net/http"

	"storefront/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type cancelRequest struct {
	Reason string `json:"reason"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

type productRequest struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Featured    bool            `json:"featured"`
	Stock       int             `json:"stock"`
}

func (r productRequest) product() *models.Product {
	return &models.Product{
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Category:    r.Category,
		Featured:    r.Featured,
		Stock:       r.Stock,
	}
}

type stockRequest struct {
	Delta int `json:"delta" binding:"required"`
}

func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.catalog.ListProducts(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products, "currency": h.currency.String()})
}

func (h *Handler) getProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	product, err := h.catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": product, "currency": h.currency.String()})
}

// orderHistory lists the account's orders; guests have no history
func (h *Handler) orderHistory(c *gin.Context) {
	accountID, ok := accountFrom(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"orders": []models.OrderSummary{}})
		return
	}

	orders, err := h.query.GetOrderHistory(c.Request.Context(), accountID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "currency": h.currency.String()})
}

func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}
	accountID, ok := accountFrom(c)
	if !ok {
		h.writeError(c, models.ErrForbidden)
		return
	}

	details, err := h.query.GetAccountOrderDetails(c.Request.Context(), accountID, orderID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.writeDetails(c, details)
}

func (h *Handler) cancelOrder(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}
	accountID, ok := accountFrom(c)
	if !ok {
		h.writeError(c, models.ErrForbidden)
		return
	}

	var req cancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	order, err := h.lifecycle.CancelOwn(c.Request.Context(), accountID, orderID, req.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

func (h *Handler) writeDetails(c *gin.Context, details *models.OrderDetails) {
	c.JSON(http.StatusOK, gin.H{
		"order":    details.Order,
		"items":    details.Lines,
		"total":    h.money(details.Order.Total),
		"currency": h.currency.String(),
	})
}

func (h *Handler) adminListOrders(c *gin.Context) {
	var status *models.OrderStatus
	if raw := c.Query("status"); raw != "" {
		parsed, err := models.ParseOrderStatus(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		status = &parsed
	}

	orders, err := h.query.ListOrders(c.Request.Context(), status)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "currency": h.currency.String()})
}

func (h *Handler) adminGetOrder(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	details, err := h.query.GetOrderDetails(c.Request.Context(), orderID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.writeDetails(c, details)
}

func (h *Handler) adminAdvanceOrder(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	target, err := models.ParseOrderStatus(req.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var order *models.Order
	if target == models.OrderStatusCancelled {
		order, err = h.lifecycle.Cancel(c.Request.Context(), orderID, req.Reason)
	} else {
		order, err = h.lifecycle.Advance(c.Request.Context(), orderID, target)
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

func (h *Handler) adminListCancellations(c *gin.Context) {
	cancellations, err := h.query.ListCancellations(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancellations": cancellations})
}

func (h *Handler) adminCreateProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	product := req.product()
	if err := h.catalog.CreateProduct(c.Request.Context(), product); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"product": product})
}

func (h *Handler) adminUpdateProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	product := req.product()
	product.ID = id
	updated, err := h.catalog.UpdateProduct(c.Request.Context(), product)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": updated})
}

func (h *Handler) adminDeleteProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.catalog.DeleteProduct(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) adminAdjustStock(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req stockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	product, err := h.catalog.AdjustStock(c.Request.Context(), id, req.Delta)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": product})
}
