package worker

import (
	"context"
	"errors"
	"time"

	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/service"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// OrderWorker activates orders that finalize left pending. It consumes
// ORDER_FINALIZED events and also sweeps for stale pending orders, which
// covers deployments running without Kafka.
type OrderWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	lifecycle    *service.OrderLifecycle
	query        *service.OrderQuery
	logger       *zap.Logger
}

// NewOrderWorker creates a new order worker; consumer may be nil
func NewOrderWorker(
	consumer *broker.Consumer,
	lifecycle *service.OrderLifecycle,
	query *service.OrderQuery,
) *OrderWorker {
	w := &OrderWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		lifecycle:    lifecycle,
		query:        query,
		logger:       util.GetLogger(),
	}
	w.eventHandler.OnOrderFinalized(w.HandleOrderFinalized)
	return w
}

// Handler returns the message handler the consumer drives
func (w *OrderWorker) Handler() broker.MessageHandler {
	return w.eventHandler.HandleMessage
}

// Start consumes events until ctx is done
func (w *OrderWorker) Start(ctx context.Context) error {
	if w.consumer == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	w.logger.Info("Starting order worker")
	return w.consumer.StartConsuming(ctx, w.Handler())
}

// Stop stops the worker
func (w *OrderWorker) Stop() error {
	w.logger.Info("Stopping order worker")
	if w.consumer == nil {
		return nil
	}
	return w.consumer.Close()
}

// HandleOrderFinalized activates the order if it is still pending. Orders that
// no longer exist are acknowledged; other failures are returned so the message
// is not committed.
func (w *OrderWorker) HandleOrderFinalized(ctx context.Context, event *models.OrderFinalizedEvent) error {
	activated, err := w.lifecycle.Activate(ctx, event.OrderID)
	if errors.Is(err, models.ErrOrderNotFound) {
		w.logger.Warn("Finalized order not found", zap.Int64("order_id", event.OrderID))
		return nil
	}
	if err != nil {
		return err
	}

	if activated {
		w.logger.Info("Pending order activated", zap.Int64("order_id", event.OrderID))
	}
	return nil
}

// Sweep activates pending orders older than minAge and returns how many moved
func (w *OrderWorker) Sweep(ctx context.Context, minAge time.Duration) (moved int, err error) {
	ctx, span := util.StartSpan(ctx, "OrderWorker.Sweep")
	defer func() { util.EndSpan(span, err) }()

	status := models.OrderStatusPending
	pending, err := w.query.ListOrders(ctx, &status)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-minAge)
	for _, order := range pending {
		if order.Date.After(cutoff) {
			continue
		}
		activated, err := w.lifecycle.Activate(ctx, order.OrderID)
		if err != nil {
			w.logger.Warn("Sweep could not activate order",
				zap.Int64("order_id", order.OrderID),
				zap.Error(err))
			continue
		}
		if activated {
			moved++
		}
	}
	return moved, nil
}

// RunSweeper calls Sweep every interval until ctx is done
func (w *OrderWorker) RunSweeper(ctx context.Context, interval, minAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			moved, err := w.Sweep(ctx, minAge)
			if err != nil {
				w.logger.Warn("Pending order sweep failed", zap.Error(err))
				continue
			}
			if moved > 0 {
				w.logger.Info("Pending orders activated by sweep", zap.Int("count", moved))
			}
		}
	}
}
