package service

import (
	"context"
	"testing"

	"storefront/internal/models"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartService_GetOrCreateCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	accountID := f.account(t)
	token := models.NewSessionToken()

	first, err := f.carts.GetOrCreateCart(ctx, models.AccountOwner(accountID))
	require.NoError(t, err)
	second, err := f.carts.GetOrCreateCart(ctx, models.AccountOwner(accountID))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	guest, err := f.carts.GetOrCreateCart(ctx, models.GuestOwner(token))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, guest.ID)
	assert.Nil(t, guest.AccountID)

	both := models.Owner{AccountID: &accountID, SessionToken: token}
	_, err = f.carts.GetOrCreateCart(ctx, both)
	require.ErrorIs(t, err, models.ErrInvalidOwner)

	_, err = f.carts.GetOrCreateCart(ctx, models.Owner{})
	require.ErrorIs(t, err, models.ErrInvalidOwner)
}

func TestCartService_AddItemMergesLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "2.50", 10)
	cart := f.cartWith(t, models.GuestOwner(models.NewSessionToken()), nil)

	firstID, err := f.carts.AddItem(ctx, cart.ID, p.ID, 2)
	require.NoError(t, err)
	secondID, err := f.carts.AddItem(ctx, cart.ID, p.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, firstID, secondID)

	lines, err := f.repo.GetCartLines(ctx, cart.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 5, lines[0].Quantity)
}

func TestCartService_AddItemChecksMergedQuantity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "7.00", 3)
	cart := f.cartWith(t, models.AccountOwner(f.account(t)), nil)

	_, err := f.carts.AddItem(ctx, cart.ID, p.ID, 2)
	require.NoError(t, err)

	_, err = f.carts.AddItem(ctx, cart.ID, p.ID, 2)
	require.ErrorIs(t, err, models.ErrOutOfStock)
	e, ok := models.AsError(err)
	require.True(t, ok)
	assert.Equal(t, p.ID, e.ProductID)

	lines, err := f.repo.GetCartLines(ctx, cart.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, 3, f.stock(t, p.ID))
}

func TestCartService_AddItemValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "1.00", 1)
	cart := f.cartWith(t, models.GuestOwner(models.NewSessionToken()), nil)

	_, err := f.carts.AddItem(ctx, cart.ID, p.ID, 0)
	require.ErrorIs(t, err, models.ErrInvalidQuantity)

	_, err = f.carts.AddItem(ctx, cart.ID, p.ID+100, 1)
	require.ErrorIs(t, err, models.ErrProductNotFound)

	_, err = f.carts.AddItem(ctx, cart.ID+100, p.ID, 1)
	require.ErrorIs(t, err, models.ErrCartNotFound)
}

func TestCartService_UpdateQuantity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "1.25", 4)
	cart := f.cartWith(t, models.GuestOwner(models.NewSessionToken()), nil)
	other := f.cartWith(t, models.GuestOwner(models.NewSessionToken()), nil)

	lineID, err := f.carts.AddItem(ctx, cart.ID, p.ID, 1)
	require.NoError(t, err)

	require.NoError(t, f.carts.UpdateQuantity(ctx, cart.ID, lineID, 4))
	line, err := f.repo.GetCartLine(ctx, lineID)
	require.NoError(t, err)
	assert.Equal(t, 4, line.Quantity)

	err = f.carts.UpdateQuantity(ctx, cart.ID, lineID, 5)
	require.ErrorIs(t, err, models.ErrOutOfStock)

	err = f.carts.UpdateQuantity(ctx, other.ID, lineID, 2)
	require.ErrorIs(t, err, models.ErrForbidden)

	require.NoError(t, f.carts.UpdateQuantity(ctx, cart.ID, lineID, 0))
	_, err = f.repo.GetCartLine(ctx, lineID)
	require.ErrorIs(t, err, models.ErrCartLineNotFound)
}

func TestCartService_RemoveItemIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "1.00", 5)
	cart := f.cartWith(t, models.GuestOwner(models.NewSessionToken()), nil)

	lineID, err := f.carts.AddItem(ctx, cart.ID, p.ID, 1)
	require.NoError(t, err)

	require.NoError(t, f.carts.RemoveItem(ctx, cart.ID, lineID))
	require.NoError(t, f.carts.RemoveItem(ctx, cart.ID, lineID))

	n, err := f.carts.ItemCount(ctx, cart.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCartService_TotalUsesLivePrices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p1 := f.product(t, "10.00", 5)
	p2 := f.product(t, "5.00", 5)
	cart := f.cartWith(t, models.GuestOwner(models.NewSessionToken()), map[*models.Product]int{p1: 2, p2: 1})

	total, err := f.carts.Total(ctx, cart.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("25.00").Equal(total), total.String())

	p1.Price = decimal.RequireFromString("12.00")
	_, err = f.catalog.UpdateProduct(ctx, p1)
	require.NoError(t, err)

	total, err = f.carts.Total(ctx, cart.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("29.00").Equal(total), total.String())

	n, err := f.carts.ItemCount(ctx, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCartService_Clear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "1.00", 5)
	cart := f.cartWith(t, models.GuestOwner(models.NewSessionToken()), map[*models.Product]int{p: 2})

	require.NoError(t, f.carts.Clear(ctx, cart.ID))

	total, err := f.carts.Total(ctx, cart.ID)
	require.NoError(t, err)
	assert.True(t, total.IsZero())
	assert.Equal(t, 5, f.stock(t, p.ID))
}

func TestCartService_GetCartView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "3.10", 5)
	owner := models.GuestOwner(models.NewSessionToken())

	empty, err := f.carts.GetCartView(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, empty.Lines)
	assert.True(t, empty.Total.IsZero())

	cart := f.cartWith(t, owner, map[*models.Product]int{p: 2})

	view, err := f.carts.GetCartView(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, cart.ID, view.Cart.ID)

	want := []models.CartLine{{
		CartID:      cart.ID,
		ProductID:   p.ID,
		Quantity:    2,
		ProductName: p.Name,
		Price:       p.Price,
		Stock:       5,
	}}
	diff := cmp.Diff(want, view.Lines,
		cmpopts.IgnoreFields(models.CartLine{}, "ID"),
		cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) }))
	assert.Empty(t, diff)
	assert.True(t, decimal.RequireFromString("6.20").Equal(view.Total))
}

func TestCartService_LinkToAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("no guest cart is a no-op", func(t *testing.T) {
		f := newFixture(t)
		accountID := f.account(t)

		require.NoError(t, f.carts.LinkToAccount(ctx, models.NewSessionToken(), accountID))

		_, err := f.repo.FindCart(ctx, models.AccountOwner(accountID))
		require.ErrorIs(t, err, models.ErrCartNotFound)
	})

	t.Run("guest cart is re-parented", func(t *testing.T) {
		f := newFixture(t)
		accountID := f.account(t)
		p := f.product(t, "1.00", 5)
		token := models.NewSessionToken()
		guest := f.cartWith(t, models.GuestOwner(token), map[*models.Product]int{p: 2})

		require.NoError(t, f.carts.LinkToAccount(ctx, token, accountID))

		cart, err := f.repo.FindCart(ctx, models.AccountOwner(accountID))
		require.NoError(t, err)
		assert.Equal(t, guest.ID, cart.ID)
		assert.Nil(t, cart.SessionToken)

		_, err = f.repo.FindCart(ctx, models.GuestOwner(token))
		require.ErrorIs(t, err, models.ErrCartNotFound)
	})

	t.Run("guest lines merge into the account cart", func(t *testing.T) {
		f := newFixture(t)
		accountID := f.account(t)
		shared := f.product(t, "1.00", 4)
		only := f.product(t, "2.00", 4)
		token := models.NewSessionToken()

		account := f.cartWith(t, models.AccountOwner(accountID), map[*models.Product]int{shared: 3})
		f.cartWith(t, models.GuestOwner(token), map[*models.Product]int{shared: 3, only: 1})

		require.NoError(t, f.carts.LinkToAccount(ctx, token, accountID))

		lines, err := f.repo.GetCartLines(ctx, account.ID)
		require.NoError(t, err)
		got := map[int64]int{}
		for _, l := range lines {
			got[l.ProductID] = l.Quantity
		}
		assert.Equal(t, map[int64]int{shared.ID: 4, only.ID: 1}, got)

		_, err = f.repo.FindCart(ctx, models.GuestOwner(token))
		require.ErrorIs(t, err, models.ErrCartNotFound)
	})
}
