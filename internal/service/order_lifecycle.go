package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"storefront/internal/models"
	"storefront/internal/port"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// OrderLifecycle owns every status change of an order. Inventory side effects
// run in the same transaction as the status write.
type OrderLifecycle struct {
	repo      port.Repository
	ledger    *InventoryLedger
	publisher port.EventPublisher
	logger    *zap.Logger
	timeout   time.Duration
}

// NewOrderLifecycle creates a new lifecycle; publisher may be nil
func NewOrderLifecycle(repo port.Repository, ledger *InventoryLedger, publisher port.EventPublisher, timeout time.Duration) *OrderLifecycle {
	return &OrderLifecycle{
		repo:      repo,
		ledger:    ledger,
		publisher: publisher,
		logger:    util.GetLogger(),
		timeout:   timeout,
	}
}

// Advance moves an order to target. Cancelling through Advance records the
// default reason.
func (l *OrderLifecycle) Advance(ctx context.Context, orderID int64, target models.OrderStatus) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderLifecycle.Advance")
	defer span.End()

	order, err := l.transition(ctx, orderID, target, models.DefaultCancellationReason, nil)
	if err != nil {
		span.RecordError(err)
	}
	return order, err
}

// Cancel cancels an order, restoring its stock and recording reason
func (l *OrderLifecycle) Cancel(ctx context.Context, orderID int64, reason string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderLifecycle.Cancel")
	defer span.End()

	order, err := l.transition(ctx, orderID, models.OrderStatusCancelled, reason, nil)
	if err != nil {
		span.RecordError(err)
	}
	return order, err
}

// CancelOwn cancels an order on behalf of the account that placed it. Orders
// of other accounts are reported as not found.
func (l *OrderLifecycle) CancelOwn(ctx context.Context, accountID, orderID int64, reason string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderLifecycle.CancelOwn")
	defer span.End()

	order, err := l.transition(ctx, orderID, models.OrderStatusCancelled, reason, func(o *models.Order) error {
		if o.AccountID == nil || *o.AccountID != accountID {
			return models.ErrForbidden
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
	}
	return order, err
}

// Activate moves a pending order to processing. It reports false without error
// when the order has already left pending, so redelivered events are harmless.
func (l *OrderLifecycle) Activate(ctx context.Context, orderID int64) (bool, error) {
	ctx, span := util.StartSpan(ctx, "OrderLifecycle.Activate")
	defer span.End()

	_, err := l.transition(ctx, orderID, models.OrderStatusProcessing, "", func(o *models.Order) error {
		if o.Status != models.OrderStatusPending {
			return errNotPending
		}
		return nil
	})
	if errors.Is(err, errNotPending) {
		return false, nil
	}
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	return true, nil
}

var errNotPending = errors.New("order is not pending")

func (l *OrderLifecycle) transition(
	ctx context.Context,
	orderID int64,
	target models.OrderStatus,
	reason string,
	check func(*models.Order) error,
) (*models.Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = models.DefaultCancellationReason
	}

	txCtx, cancel := withTimeout(ctx, l.timeout)
	defer cancel()

	var (
		order *models.Order
		from  models.OrderStatus
	)
	err := l.repo.InTx(txCtx, func(q port.Querier) error {
		var err error
		order, err = q.LockOrder(txCtx, orderID)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(order); err != nil {
				return err
			}
		}

		from = order.Status
		if target == models.OrderStatusCancelled && from == models.OrderStatusCancelled {
			return models.ErrAlreadyCancelled
		}
		if !from.CanTransitionTo(target) {
			return models.ErrInvalidTransition
		}

		applied, err := l.applySideEffects(txCtx, q, order, target, reason)
		if err != nil {
			return err
		}

		if err := q.UpdateOrderStatus(txCtx, orderID, target, applied); err != nil {
			return err
		}
		order.Status = target
		order.StockApplied = applied
		return nil
	})
	if err != nil {
		if errors.Is(err, errNotPending) {
			return nil, err
		}
		err = l.fail(txCtx, orderID, target, err)
		return nil, err
	}

	util.OrderTransitionsTotal.WithLabelValues(target.String()).Inc()
	if target == models.OrderStatusCancelled {
		util.OrdersCancelledTotal.Inc()
	}
	l.logger.Info("Order status changed",
		zap.Int64("order_id", orderID),
		zap.String("from", from.String()),
		zap.String("to", target.String()))

	l.publish(ctx, orderID, from, target, reason)
	return order, nil
}

// applySideEffects runs the inventory hook for entering target and returns the
// order's new stock_applied flag
func (l *OrderLifecycle) applySideEffects(ctx context.Context, q port.Querier, order *models.Order, target models.OrderStatus, reason string) (bool, error) {
	switch target {
	case models.OrderStatusProcessing:
		if order.StockApplied {
			return true, nil
		}
		lines, err := q.GetOrderLines(ctx, order.ID)
		if err != nil {
			return false, err
		}
		for _, line := range lines {
			if line.ProductID == nil {
				continue
			}
			if err := l.ledger.Decrement(ctx, q, *line.ProductID, line.Quantity); err != nil {
				return false, err
			}
		}
		return true, nil

	case models.OrderStatusCancelled:
		if order.StockApplied {
			lines, err := q.GetOrderLines(ctx, order.ID)
			if err != nil {
				return false, err
			}
			for _, line := range lines {
				if line.ProductID == nil {
					continue
				}
				if err := l.ledger.Restore(ctx, q, *line.ProductID, line.Quantity); err != nil {
					return false, err
				}
			}
		}
		orderID := order.ID
		return false, q.CreateCancellation(ctx, &models.Cancellation{
			OrderID: &orderID,
			Reason:  reason,
		})
	}

	return order.StockApplied, nil
}

func (l *OrderLifecycle) fail(ctx context.Context, orderID int64, target models.OrderStatus, err error) error {
	err = classify(ctx, err)
	if _, ok := models.AsError(err); !ok {
		l.logger.Error("Order transition failed",
			zap.Int64("order_id", orderID),
			zap.String("to", target.String()),
			zap.Error(err))
		err = models.Wrap(models.ErrTransitionFailed, err)
	}

	util.OrderTransitionsFailedTotal.WithLabelValues(target.String(), reason(err)).Inc()
	return err
}

func (l *OrderLifecycle) publish(ctx context.Context, orderID int64, from, to models.OrderStatus, reason string) {
	if l.publisher == nil {
		return
	}

	changed := &models.OrderStatusChangedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeOrderStatusChanged),
		OrderID:   orderID,
		From:      from,
		To:        to,
	}
	if err := l.publisher.PublishOrderStatusChanged(ctx, changed); err != nil {
		l.logger.Error("Failed to publish OrderStatusChanged event",
			zap.Int64("order_id", orderID),
			zap.Error(err))
	}

	if to != models.OrderStatusCancelled {
		return
	}
	cancelled := &models.OrderCancelledEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeOrderCancelled),
		OrderID:   orderID,
		Reason:    reason,
	}
	if err := l.publisher.PublishOrderCancelled(ctx, cancelled); err != nil {
		l.logger.Error("Failed to publish OrderCancelled event",
			zap.Int64("order_id", orderID),
			zap.Error(err))
	}
}
