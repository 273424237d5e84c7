package service

import (
	"context"
	"testing"

	"storefront/internal/models"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogService_CreateProduct(t *testing.T) {
	tests := []struct {
		name    string
		product models.Product
		wantErr error
	}{
		{
			name:    "valid product",
			product: models.Product{Name: gofakeit.ProductName(), Price: decimal.RequireFromString("19.999"), Stock: 3},
		},
		{
			name:    "blank name",
			product: models.Product{Name: "  ", Price: decimal.RequireFromString("1.00")},
			wantErr: models.ErrInvalidProduct,
		},
		{
			name:    "negative price",
			product: models.Product{Name: gofakeit.ProductName(), Price: decimal.RequireFromString("-1.00")},
			wantErr: models.ErrInvalidProduct,
		},
		{
			name:    "negative stock",
			product: models.Product{Name: gofakeit.ProductName(), Price: decimal.RequireFromString("1.00"), Stock: -1},
			wantErr: models.ErrInvalidProduct,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			product := tt.product

			err := f.catalog.CreateProduct(context.Background(), &product)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotZero(t, product.ID)
			assert.True(t, decimal.RequireFromString("20.00").Equal(product.Price))
		})
	}
}

func TestCatalogService_UpdateNeverTouchesStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "5.00", 7)

	change := *p
	change.Name = "Renamed"
	change.Stock = 100

	updated, err := f.catalog.UpdateProduct(ctx, &change)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, 7, updated.Stock)

	missing := models.Product{ID: p.ID + 100, Name: "x", Price: decimal.RequireFromString("1.00")}
	_, err = f.catalog.UpdateProduct(ctx, &missing)
	require.ErrorIs(t, err, models.ErrProductNotFound)
}

func TestCatalogService_DeleteProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "5.00", 7)
	cart := f.cartWith(t, models.GuestOwner(models.NewSessionToken()), map[*models.Product]int{p: 1})

	require.NoError(t, f.catalog.DeleteProduct(ctx, p.ID))

	n, err := f.carts.ItemCount(ctx, cart.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	err = f.catalog.DeleteProduct(ctx, p.ID)
	require.ErrorIs(t, err, models.ErrProductNotFound)

	_, err = f.catalog.GetProduct(ctx, p.ID)
	require.ErrorIs(t, err, models.ErrProductNotFound)
}

func TestCatalogService_AdjustStock(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "5.00", 1)

	updated, err := f.catalog.AdjustStock(context.Background(), p.ID, 9)
	require.NoError(t, err)
	assert.Equal(t, 10, updated.Stock)

	products, err := f.catalog.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, 10, products[0].Stock)
}
