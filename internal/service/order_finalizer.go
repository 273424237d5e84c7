package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"storefront/internal/models"
	"storefront/internal/port"
	"storefront/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// FinalizerConfig holds checkout tunables
type FinalizerConfig struct {
	Timeout        time.Duration
	LockTTL        time.Duration
	IdempotencyTTL time.Duration
}

// OrderFinalizer turns a cart into an order in a single transaction
type OrderFinalizer struct {
	repo      port.Repository
	ledger    *InventoryLedger
	lifecycle *OrderLifecycle
	guard     port.CheckoutGuard
	publisher port.EventPublisher
	cfg       FinalizerConfig
	logger    *zap.Logger
}

// NewOrderFinalizer creates a new finalizer. guard and publisher may be nil.
func NewOrderFinalizer(
	repo port.Repository,
	ledger *InventoryLedger,
	lifecycle *OrderLifecycle,
	guard port.CheckoutGuard,
	publisher port.EventPublisher,
	cfg FinalizerConfig,
) *OrderFinalizer {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 24 * time.Hour
	}
	return &OrderFinalizer{
		repo:      repo,
		ledger:    ledger,
		lifecycle: lifecycle,
		guard:     guard,
		publisher: publisher,
		cfg:       cfg,
		logger:    util.GetLogger(),
	}
}

// CheckoutRequest identifies the cart to finalize and who is asking
type CheckoutRequest struct {
	CartID         int64
	Owner          models.Owner
	IdempotencyKey string
}

// FinalizeResult describes the order a checkout produced
type FinalizeResult struct {
	OrderID  int64              `json:"order_id"`
	Status   models.OrderStatus `json:"status"`
	Total    decimal.Decimal    `json:"total"`
	Replayed bool               `json:"replayed,omitempty"`
}

// Finalize converts the cart into a pending order, decrements stock for every
// line and empties the cart, all in one transaction. On commit the order is
// advanced to processing as a separate step; if that step fails the order is
// left pending for the order worker to activate.
func (f *OrderFinalizer) Finalize(ctx context.Context, req CheckoutRequest) (*FinalizeResult, error) {
	ctx, span := util.StartSpan(ctx, "OrderFinalizer.Finalize")
	defer span.End()

	if err := req.Owner.Validate(); err != nil {
		util.OrdersFinalizeFailedTotal.WithLabelValues(reason(err)).Inc()
		return nil, err
	}

	if err := f.authorize(ctx, req); err != nil {
		util.OrdersFinalizeFailedTotal.WithLabelValues(reason(err)).Inc()
		span.RecordError(err)
		return nil, err
	}

	if result, ok := f.replay(ctx, req); ok {
		return result, nil
	}

	release, err := f.lockCart(ctx, req.CartID)
	if err != nil {
		util.OrdersFinalizeFailedTotal.WithLabelValues(reason(err)).Inc()
		return nil, err
	}
	defer release()

	start := time.Now()
	order, lines, err := f.commit(ctx, req)
	util.FinalizeLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	util.OrdersFinalizedTotal.Inc()
	f.logger.Info("Order finalized",
		zap.Int64("order_id", order.ID),
		zap.Int64("cart_id", req.CartID),
		zap.Stringer("owner", req.Owner),
		zap.String("total", order.Total.StringFixed(2)))

	f.publishFinalized(ctx, order, lines)
	f.remember(ctx, req, order.ID)

	status := order.Status
	if activated, err := f.lifecycle.Activate(ctx, order.ID); err != nil {
		f.logger.Warn("Order left pending after finalize",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
	} else if activated {
		status = models.OrderStatusProcessing
	}

	return &FinalizeResult{OrderID: order.ID, Status: status, Total: order.Total}, nil
}

func (f *OrderFinalizer) commit(ctx context.Context, req CheckoutRequest) (*models.Order, []models.OrderLine, error) {
	ctx, cancel := withTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	var (
		order *models.Order
		lines []models.OrderLine
	)
	err := f.repo.InTx(ctx, func(q port.Querier) error {
		cart, err := q.LockCart(ctx, req.CartID)
		if err != nil {
			return err
		}
		if !cart.Owner().Equal(req.Owner) {
			return models.ErrForbidden
		}

		cartLines, err := q.GetCartLines(ctx, cart.ID)
		if err != nil {
			return fmt.Errorf("failed to load cart lines: %w", err)
		}
		if len(cartLines) == 0 {
			return models.ErrEmptyCart
		}

		ids := make([]int64, 0, len(cartLines))
		for _, line := range cartLines {
			ids = append(ids, line.ProductID)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		products, err := q.LockProducts(ctx, ids)
		if err != nil {
			return fmt.Errorf("failed to lock products: %w", err)
		}

		total := decimal.Zero
		for _, line := range cartLines {
			product, ok := products[line.ProductID]
			if !ok {
				return models.ErrProductNotFound
			}
			if line.Quantity > product.Stock {
				util.StockConflictsTotal.WithLabelValues("finalize").Inc()
				return models.InsufficientStock(line.ProductID)
			}
			total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}

		order = &models.Order{
			AccountID:    req.Owner.AccountID,
			Status:       models.OrderStatusPending,
			Total:        total,
			StockApplied: true,
		}
		if err := q.CreateOrder(ctx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		lines = make([]models.OrderLine, 0, len(cartLines))
		for _, line := range cartLines {
			product := products[line.ProductID]
			productID := product.ID
			orderLine := models.OrderLine{
				OrderID:     order.ID,
				ProductID:   &productID,
				ProductName: product.Name,
				Quantity:    line.Quantity,
				UnitPrice:   product.Price,
			}
			if err := q.CreateOrderLine(ctx, &orderLine); err != nil {
				return fmt.Errorf("failed to create order line: %w", err)
			}
			lines = append(lines, orderLine)
		}

		for _, line := range cartLines {
			if err := f.ledger.Decrement(ctx, q, line.ProductID, line.Quantity); err != nil {
				return err
			}
		}

		if _, err := q.ClearCart(ctx, cart.ID); err != nil {
			return fmt.Errorf("failed to clear cart: %w", err)
		}
		return nil
	})
	if err != nil {
		err = classify(ctx, err)
		if _, ok := models.AsError(err); !ok {
			f.logger.Error("Finalize transaction failed",
				zap.Int64("cart_id", req.CartID),
				zap.Error(err))
			err = models.Wrap(models.ErrFinalizationFailed, err)
		}
		util.OrdersFinalizeFailedTotal.WithLabelValues(reason(err)).Inc()
		return nil, nil, err
	}

	return order, lines, nil
}

// authorize rejects checkouts of a cart the caller does not own before any
// shared state (idempotency keys, the checkout lock) is consulted. commit
// re-checks ownership under the cart row lock.
func (f *OrderFinalizer) authorize(ctx context.Context, req CheckoutRequest) error {
	ctx, cancel := withTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	cart, err := f.repo.GetCart(ctx, req.CartID)
	if err != nil {
		err = classify(ctx, err)
		if _, ok := models.AsError(err); !ok {
			err = models.Wrap(models.ErrFinalizationFailed, err)
		}
		return err
	}
	if !cart.Owner().Equal(req.Owner) {
		return models.ErrForbidden
	}
	return nil
}

// idempotencyKey scopes the caller's key to the owner and cart, so the same
// key sent by another shopper never resolves to this shopper's order
func idempotencyKey(req CheckoutRequest) string {
	owner := "guest:" + string(req.Owner.SessionToken)
	if req.Owner.AccountID != nil {
		owner = fmt.Sprintf("account:%d", *req.Owner.AccountID)
	}
	return fmt.Sprintf("%s:cart:%d:%s", owner, req.CartID, req.IdempotencyKey)
}

// ownsOrder reports whether order was placed by owner. Guest orders carry no
// account, so for guests the owner-scoped key is the binding.
func ownsOrder(order *models.Order, owner models.Owner) bool {
	if owner.AccountID == nil {
		return order.AccountID == nil
	}
	return order.AccountID != nil && *order.AccountID == *owner.AccountID
}

// replay returns the order an earlier checkout with the same key produced
func (f *OrderFinalizer) replay(ctx context.Context, req CheckoutRequest) (*FinalizeResult, bool) {
	if f.guard == nil || req.IdempotencyKey == "" {
		return nil, false
	}

	key := idempotencyKey(req)
	orderID, ok, err := f.guard.GetIdempotentOrder(ctx, key)
	if err != nil {
		f.logger.Warn("Idempotency lookup failed", zap.String("idempotency_key", req.IdempotencyKey), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	order, err := f.repo.GetOrder(ctx, orderID)
	if err != nil {
		f.logger.Warn("Idempotent order lookup failed", zap.Int64("order_id", orderID), zap.Error(err))
		return nil, false
	}
	if !ownsOrder(order, req.Owner) {
		f.logger.Warn("Idempotency key resolved to another owner's order",
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.Int64("order_id", orderID))
		return nil, false
	}

	f.logger.Info("Duplicate checkout request detected",
		zap.String("idempotency_key", req.IdempotencyKey),
		zap.Int64("order_id", orderID))
	return &FinalizeResult{OrderID: order.ID, Status: order.Status, Total: order.Total, Replayed: true}, true
}

func (f *OrderFinalizer) remember(ctx context.Context, req CheckoutRequest, orderID int64) {
	if f.guard == nil || req.IdempotencyKey == "" {
		return
	}
	if err := f.guard.SetIdempotentOrder(ctx, idempotencyKey(req), orderID, f.cfg.IdempotencyTTL); err != nil {
		f.logger.Warn("Failed to store idempotency key",
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.Error(err))
	}
}

// lockCart takes the per-cart checkout lock. A guard outage degrades to the
// database row lock alone.
func (f *OrderFinalizer) lockCart(ctx context.Context, cartID int64) (func(), error) {
	noop := func() {}
	if f.guard == nil {
		return noop, nil
	}

	key := fmt.Sprintf("checkout:cart:%d", cartID)
	token, ok, err := f.guard.AcquireLock(ctx, key, f.cfg.LockTTL)
	if err != nil {
		f.logger.Warn("Checkout lock unavailable", zap.Int64("cart_id", cartID), zap.Error(err))
		return noop, nil
	}
	if !ok {
		return nil, models.ErrCheckoutInProgress
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := f.guard.ReleaseLock(releaseCtx, key, token); err != nil {
			f.logger.Warn("Failed to release checkout lock", zap.Int64("cart_id", cartID), zap.Error(err))
		}
	}, nil
}

func (f *OrderFinalizer) publishFinalized(ctx context.Context, order *models.Order, lines []models.OrderLine) {
	if f.publisher == nil {
		return
	}

	items := make([]models.OrderItemData, 0, len(lines))
	for _, line := range lines {
		items = append(items, models.OrderItemData{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}

	event := &models.OrderFinalizedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeOrderFinalized),
		OrderID:   order.ID,
		AccountID: order.AccountID,
		Total:     order.Total,
		Items:     items,
	}
	if err := f.publisher.PublishOrderFinalized(ctx, event); err != nil {
		f.logger.Error("Failed to publish OrderFinalized event",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
	}
}
