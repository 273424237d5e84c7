package models

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatusTransitions(t *testing.T) {
	all := []OrderStatus{
		OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled,
	}
	legal := map[[2]OrderStatus]bool{
		{OrderStatusPending, OrderStatusProcessing}:   true,
		{OrderStatusPending, OrderStatusCancelled}:    true,
		{OrderStatusProcessing, OrderStatusShipped}:   true,
		{OrderStatusProcessing, OrderStatusCancelled}: true,
		{OrderStatusShipped, OrderStatusDelivered}:    true,
	}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, legal[[2]OrderStatus{from, to}], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
	assert.True(t, OrderStatusDelivered.IsTerminal())
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.False(t, OrderStatusShipped.IsTerminal())
}

func TestParseOrderStatus(t *testing.T) {
	st, err := ParseOrderStatus("shipped")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusShipped, st)

	_, err = ParseOrderStatus("lost")
	assert.Error(t, err)
}

func TestOwnerValidate(t *testing.T) {
	zero := int64(0)
	tests := []struct {
		name  string
		owner Owner
		valid bool
	}{
		{name: "account", owner: AccountOwner(1), valid: true},
		{name: "guest", owner: GuestOwner("abc"), valid: true},
		{name: "neither", owner: Owner{}},
		{name: "both", owner: Owner{AccountID: new(int64), SessionToken: "abc"}},
		{name: "non-positive account", owner: Owner{AccountID: &zero}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.owner.Validate()
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidOwner)
		})
	}
}

func TestOwnerEqual(t *testing.T) {
	assert.True(t, AccountOwner(3).Equal(AccountOwner(3)))
	assert.False(t, AccountOwner(3).Equal(AccountOwner(4)))
	assert.False(t, AccountOwner(3).Equal(GuestOwner("abc")))
	assert.True(t, GuestOwner("abc").Equal(GuestOwner("abc")))
	assert.NotEqual(t, NewSessionToken(), NewSessionToken())
}

func TestErrorMatching(t *testing.T) {
	err := fmt.Errorf("checkout: %w", InsufficientStock(9))
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.NotErrorIs(t, err, ErrOutOfStock)

	e, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, int64(9), e.ProductID)
	assert.True(t, IsRetryable(err))

	cause := errors.New("connection reset")
	wrapped := Wrap(ErrFinalizationFailed, cause)
	assert.ErrorIs(t, wrapped, ErrFinalizationFailed)
	assert.ErrorIs(t, wrapped, cause)
	assert.False(t, IsRetryable(wrapped))
	assert.Nil(t, ErrFinalizationFailed.Err)

	assert.True(t, IsRetryable(context.DeadlineExceeded))
}

func TestLineSubtotals(t *testing.T) {
	cartLine := CartLine{Quantity: 3, Price: decimal.RequireFromString("9.99")}
	assert.Equal(t, "29.97", cartLine.Subtotal().StringFixed(2))

	orderLine := OrderLine{Quantity: 2, UnitPrice: decimal.RequireFromString("12.50")}
	assert.Equal(t, "25.00", orderLine.Subtotal().StringFixed(2))
}
