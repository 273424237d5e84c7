package service

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/models"
	"storefront/internal/port"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// InventoryLedger is the single gate for reading and mutating product stock.
// Decrement and Restore take the caller's Querier so they join its transaction.
type InventoryLedger struct {
	repo    port.Repository
	logger  *zap.Logger
	timeout time.Duration
}

// NewInventoryLedger creates a new inventory ledger
func NewInventoryLedger(repo port.Repository, timeout time.Duration) *InventoryLedger {
	return &InventoryLedger{
		repo:    repo,
		logger:  util.GetLogger(),
		timeout: timeout,
	}
}

// CheckAvailable reports whether qty units of the product are in stock right now.
// The answer can be stale by the time the caller acts on it; commits re-check.
func (l *InventoryLedger) CheckAvailable(ctx context.Context, productID int64, qty int) (bool, error) {
	ctx, span := util.StartSpan(ctx, "InventoryLedger.CheckAvailable")
	defer span.End()

	ctx, cancel := withTimeout(ctx, l.timeout)
	defer cancel()

	ok, err := l.checkAvailable(ctx, l.repo, productID, qty)
	return ok, classify(ctx, err)
}

func (l *InventoryLedger) checkAvailable(ctx context.Context, q port.Querier, productID int64, qty int) (bool, error) {
	if qty < 1 {
		return false, models.ErrInvalidQuantity
	}

	product, err := q.GetProduct(ctx, productID)
	if err != nil {
		return false, err
	}

	if qty > product.Stock {
		util.StockConflictsTotal.WithLabelValues("check").Inc()
		return false, nil
	}
	return true, nil
}

// Decrement removes qty units. The stock check and the subtraction are one
// conditional update, so concurrent decrements can never drive stock negative.
func (l *InventoryLedger) Decrement(ctx context.Context, q port.Querier, productID int64, qty int) error {
	if qty < 1 {
		return models.ErrInvalidQuantity
	}

	ok, err := q.DecrementStock(ctx, productID, qty)
	if err != nil {
		return fmt.Errorf("failed to decrement stock for product %d: %w", productID, err)
	}
	if !ok {
		util.StockConflictsTotal.WithLabelValues("decrement").Inc()
		l.logger.Info("Insufficient stock",
			zap.Int64("product_id", productID),
			zap.Int("requested", qty))
		return models.InsufficientStock(productID)
	}

	util.StockUnitsAdjusted.WithLabelValues("decrement").Add(float64(qty))
	return nil
}

// Restore adds qty units back without an upper bound
func (l *InventoryLedger) Restore(ctx context.Context, q port.Querier, productID int64, qty int) error {
	if qty < 1 {
		return models.ErrInvalidQuantity
	}

	if err := q.IncrementStock(ctx, productID, qty); err != nil {
		return fmt.Errorf("failed to restore stock for product %d: %w", productID, err)
	}

	util.StockUnitsAdjusted.WithLabelValues("restore").Add(float64(qty))
	return nil
}

// Adjust applies an administrative restock (delta > 0) or write-off (delta < 0)
// in its own transaction and returns the updated product
func (l *InventoryLedger) Adjust(ctx context.Context, productID int64, delta int) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "InventoryLedger.Adjust")
	defer span.End()

	if delta == 0 {
		return nil, models.ErrInvalidQuantity
	}

	ctx, cancel := withTimeout(ctx, l.timeout)
	defer cancel()

	var product *models.Product
	err := l.repo.InTx(ctx, func(q port.Querier) error {
		if _, err := q.GetProduct(ctx, productID); err != nil {
			return err
		}

		var err error
		if delta > 0 {
			err = l.Restore(ctx, q, productID, delta)
		} else {
			err = l.Decrement(ctx, q, productID, -delta)
		}
		if err != nil {
			return err
		}

		product, err = q.GetProduct(ctx, productID)
		return err
	})
	if err != nil {
		err = classify(ctx, err)
		span.RecordError(err)
		return nil, err
	}

	l.logger.Info("Stock adjusted",
		zap.Int64("product_id", productID),
		zap.Int("delta", delta),
		zap.Int("stock", product.Stock))
	return product, nil
}
