package service

import (
	"context"
	"time"

	"storefront/internal/models"
	"storefront/internal/port"
	"storefront/internal/util"
)

// OrderQuery serves read-only views of orders for shoppers and admins
type OrderQuery struct {
	repo    port.Repository
	timeout time.Duration
}

// NewOrderQuery creates a new order query façade
func NewOrderQuery(repo port.Repository, timeout time.Duration) *OrderQuery {
	return &OrderQuery{repo: repo, timeout: timeout}
}

// GetOrderHistory lists an account's orders, newest first
func (s *OrderQuery) GetOrderHistory(ctx context.Context, accountID int64) ([]models.OrderSummary, error) {
	ctx, span := util.StartSpan(ctx, "OrderQuery.GetOrderHistory")
	defer span.End()

	if err := models.AccountOwner(accountID).Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	orders, err := s.repo.GetOrderHistory(ctx, accountID)
	if err != nil {
		return nil, classify(ctx, err)
	}
	return orders, nil
}

// GetOrderDetails returns an order with its lines at their historical prices
func (s *OrderQuery) GetOrderDetails(ctx context.Context, orderID int64) (*models.OrderDetails, error) {
	ctx, span := util.StartSpan(ctx, "OrderQuery.GetOrderDetails")
	defer span.End()

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	return s.details(ctx, orderID, nil)
}

// GetAccountOrderDetails is GetOrderDetails restricted to the account's own orders
func (s *OrderQuery) GetAccountOrderDetails(ctx context.Context, accountID, orderID int64) (*models.OrderDetails, error) {
	ctx, span := util.StartSpan(ctx, "OrderQuery.GetAccountOrderDetails")
	defer span.End()

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	return s.details(ctx, orderID, &accountID)
}

func (s *OrderQuery) details(ctx context.Context, orderID int64, accountID *int64) (*models.OrderDetails, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, classify(ctx, err)
	}
	if accountID != nil && (order.AccountID == nil || *order.AccountID != *accountID) {
		return nil, models.ErrForbidden
	}

	lines, err := s.repo.GetOrderLines(ctx, orderID)
	if err != nil {
		return nil, classify(ctx, err)
	}
	return &models.OrderDetails{Order: *order, Lines: lines}, nil
}

// ListOrders lists every order, optionally only those in status
func (s *OrderQuery) ListOrders(ctx context.Context, status *models.OrderStatus) ([]models.OrderSummary, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	orders, err := s.repo.ListOrders(ctx, status)
	return orders, classify(ctx, err)
}

// ListCancellations returns the cancellation history, newest first
func (s *OrderQuery) ListCancellations(ctx context.Context) ([]models.Cancellation, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	cancellations, err := s.repo.ListCancellations(ctx)
	return cancellations, classify(ctx, err)
}
