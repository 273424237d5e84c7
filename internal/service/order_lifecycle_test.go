package service

import (
	"context"
	"testing"

	"storefront/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderLifecycle_AdvanceThenCancelRestoresStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	accountID := f.account(t)
	p1 := f.product(t, "10.00", 6)
	p2 := f.product(t, "5.00", 6)
	order := f.pendingOrder(t, accountID, map[*models.Product]int{p1: 2, p2: 1})

	advanced, err := f.lifecycle.Advance(ctx, order.ID, models.OrderStatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusProcessing, advanced.Status)
	assert.Equal(t, 4, f.stock(t, p1.ID))
	assert.Equal(t, 5, f.stock(t, p2.ID))

	cancelled, err := f.lifecycle.Cancel(ctx, order.ID, "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, 6, f.stock(t, p1.ID))
	assert.Equal(t, 6, f.stock(t, p2.ID))

	records, err := f.query.ListCancellations(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, order.ID, *records[0].OrderID)
	assert.Equal(t, "changed my mind", records[0].Reason)
	assert.False(t, records[0].CanceledAt.IsZero())

	require.Len(t, f.events.cancelled, 1)
	assert.Len(t, f.events.statusChanged, 2)
}

func TestOrderLifecycle_CancelTwiceRestoresOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "1.00", 4)
	order := f.pendingOrder(t, f.account(t), map[*models.Product]int{p: 3})

	_, err := f.lifecycle.Advance(ctx, order.ID, models.OrderStatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, 1, f.stock(t, p.ID))

	_, err = f.lifecycle.Cancel(ctx, order.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 4, f.stock(t, p.ID))

	_, err = f.lifecycle.Cancel(ctx, order.ID, "")
	require.ErrorIs(t, err, models.ErrAlreadyCancelled)
	assert.False(t, models.IsRetryable(err))
	assert.Equal(t, 4, f.stock(t, p.ID))

	records, err := f.query.ListCancellations(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.DefaultCancellationReason, records[0].Reason)
}

func TestOrderLifecycle_CancelPendingWithoutStockApplied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "1.00", 4)
	order := f.pendingOrder(t, f.account(t), map[*models.Product]int{p: 3})

	_, err := f.lifecycle.Cancel(ctx, order.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 4, f.stock(t, p.ID))
}

func TestOrderLifecycle_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		path    []models.OrderStatus
		target  models.OrderStatus
		wantErr error
	}{
		{name: "pending to shipped skips processing", target: models.OrderStatusShipped, wantErr: models.ErrInvalidTransition},
		{name: "pending to delivered", target: models.OrderStatusDelivered, wantErr: models.ErrInvalidTransition},
		{name: "pending to pending", target: models.OrderStatusPending, wantErr: models.ErrInvalidTransition},
		{name: "processing to shipped", path: []models.OrderStatus{models.OrderStatusProcessing}, target: models.OrderStatusShipped},
		{name: "processing back to pending", path: []models.OrderStatus{models.OrderStatusProcessing}, target: models.OrderStatusPending, wantErr: models.ErrInvalidTransition},
		{name: "shipped to delivered", path: []models.OrderStatus{models.OrderStatusProcessing, models.OrderStatusShipped}, target: models.OrderStatusDelivered},
		{name: "shipped cannot be cancelled", path: []models.OrderStatus{models.OrderStatusProcessing, models.OrderStatusShipped}, target: models.OrderStatusCancelled, wantErr: models.ErrInvalidTransition},
		{name: "delivered is terminal", path: []models.OrderStatus{models.OrderStatusProcessing, models.OrderStatusShipped, models.OrderStatusDelivered}, target: models.OrderStatusCancelled, wantErr: models.ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			p := f.product(t, "2.00", 10)
			order := f.pendingOrder(t, f.account(t), map[*models.Product]int{p: 2})

			for _, step := range tt.path {
				_, err := f.lifecycle.Advance(ctx, order.ID, step)
				require.NoError(t, err)
			}
			stockBefore := f.stock(t, p.ID)

			_, err := f.lifecycle.Advance(ctx, order.ID, tt.target)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, stockBefore, f.stock(t, p.ID))
				return
			}
			require.NoError(t, err)

			got, err := f.repo.GetOrder(ctx, order.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.target, got.Status)
			assert.Equal(t, stockBefore, f.stock(t, p.ID))
		})
	}
}

func TestOrderLifecycle_ActivationShortOfStockStaysPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p1 := f.product(t, "1.00", 5)
	p2 := f.product(t, "1.00", 1)
	order := f.pendingOrder(t, f.account(t), map[*models.Product]int{p1: 2, p2: 2})

	_, err := f.lifecycle.Advance(ctx, order.ID, models.OrderStatusProcessing)
	require.ErrorIs(t, err, models.ErrInsufficientStock)
	assert.True(t, models.IsRetryable(err))

	got, err := f.repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, got.Status)
	assert.False(t, got.StockApplied)
	assert.Equal(t, 5, f.stock(t, p1.ID))
	assert.Equal(t, 1, f.stock(t, p2.ID))

	_, err = f.ledger.Adjust(ctx, p2.ID, 1)
	require.NoError(t, err)

	activated, err := f.lifecycle.Activate(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, activated)
	assert.Equal(t, 3, f.stock(t, p1.ID))
	assert.Equal(t, 0, f.stock(t, p2.ID))
}

func TestOrderLifecycle_ActivateSkipsNonPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "1.00", 5)
	order := f.pendingOrder(t, f.account(t), map[*models.Product]int{p: 1})

	activated, err := f.lifecycle.Activate(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, activated)

	activated, err = f.lifecycle.Activate(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, activated)
	assert.Equal(t, 4, f.stock(t, p.ID))

	_, err = f.lifecycle.Activate(ctx, order.ID+100)
	require.ErrorIs(t, err, models.ErrOrderNotFound)
}

func TestOrderLifecycle_CancelOwn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.account(t)
	stranger := f.account(t)
	p := f.product(t, "1.00", 5)
	order := f.pendingOrder(t, owner, map[*models.Product]int{p: 1})

	_, err := f.lifecycle.CancelOwn(ctx, stranger, order.ID, "")
	require.ErrorIs(t, err, models.ErrForbidden)

	got, err := f.repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, got.Status)

	_, err = f.lifecycle.CancelOwn(ctx, owner, order.ID, "")
	require.NoError(t, err)
}

func TestOrderLifecycle_CancelAfterProductDeleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	kept := f.product(t, "1.00", 5)
	gone := f.product(t, "1.00", 5)
	order := f.pendingOrder(t, f.account(t), map[*models.Product]int{kept: 2, gone: 2})

	_, err := f.lifecycle.Advance(ctx, order.ID, models.OrderStatusProcessing)
	require.NoError(t, err)
	require.NoError(t, f.catalog.DeleteProduct(ctx, gone.ID))

	_, err = f.lifecycle.Cancel(ctx, order.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 5, f.stock(t, kept.ID))

	details, err := f.query.GetOrderDetails(ctx, order.ID)
	require.NoError(t, err)
	names := []string{}
	for _, line := range details.Lines {
		if line.ProductID == nil {
			names = append(names, line.ProductName)
		}
	}
	assert.Equal(t, []string{gone.Name}, names)
}
