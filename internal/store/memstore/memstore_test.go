package memstore

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/models"
	"storefront/internal/port"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProduct(t *testing.T, s *Store, stock int) *models.Product {
	t.Helper()
	p := &models.Product{Name: "Widget", Price: decimal.RequireFromString("5.00"), Stock: stock}
	require.NoError(t, s.CreateProduct(t.Context(), p))
	return p
}

func TestInTxRollsBackOnError(t *testing.T) {
	s := New()
	p := newProduct(t, s, 3)
	boom := errors.New("boom")

	err := s.InTx(t.Context(), func(q port.Querier) error {
		ok, err := q.DecrementStock(t.Context(), p.ID, 3)
		require.NoError(t, err)
		require.True(t, ok)
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetProduct(t.Context(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stock)
}

func TestInTxRollsBackOnPanic(t *testing.T) {
	s := New()
	p := newProduct(t, s, 3)

	assert.Panics(t, func() {
		_ = s.InTx(t.Context(), func(q port.Querier) error {
			_, _ = q.DecrementStock(t.Context(), p.ID, 1)
			panic("boom")
		})
	})

	got, err := s.GetProduct(t.Context(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stock)
}

func TestInTxRollsBackWhenContextEnds(t *testing.T) {
	s := New()
	p := newProduct(t, s, 3)
	ctx, cancel := context.WithCancel(t.Context())

	err := s.InTx(ctx, func(q port.Querier) error {
		_, err := q.DecrementStock(ctx, p.ID, 1)
		cancel()
		return err
	})
	require.ErrorIs(t, err, context.Canceled)

	got, err := s.GetProduct(t.Context(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stock)
}

func TestDeleteProductCascades(t *testing.T) {
	s := New()
	ctx := t.Context()
	p := newProduct(t, s, 3)

	cart, err := s.CreateCart(ctx, models.GuestOwner("token"))
	require.NoError(t, err)
	_, err = s.InsertCartLine(ctx, cart.ID, p.ID, 1)
	require.NoError(t, err)

	order := &models.Order{Status: models.OrderStatusPending, Total: p.Price}
	require.NoError(t, s.CreateOrder(ctx, order))
	require.NoError(t, s.CreateOrderLine(ctx, &models.OrderLine{
		OrderID: order.ID, ProductID: &p.ID, ProductName: p.Name, Quantity: 1, UnitPrice: p.Price,
	}))

	deleted, err := s.DeleteProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	lines, err := s.GetCartLines(ctx, cart.ID)
	require.NoError(t, err)
	assert.Empty(t, lines)

	orderLines, err := s.GetOrderLines(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, orderLines, 1)
	assert.Nil(t, orderLines[0].ProductID)
	assert.Equal(t, "Widget", orderLines[0].ProductName)
}

func TestSeed(t *testing.T) {
	s := New()
	require.NoError(t, Seed(t.Context(), s))

	products, err := s.ListProducts(t.Context())
	require.NoError(t, err)
	assert.Len(t, products, 8)
	assert.Equal(t, "Smartphone X Pro", products[0].Name)
}
