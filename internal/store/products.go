package store

import (
	"context"
	"fmt"

	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const productColumns = "id, name, description, price, category, featured, stock, created_at"

// CreateAccount inserts a shopper account
func (q *Queries) CreateAccount(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (name, email, is_admin)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	return sqlx.GetContext(ctx, q.ext, account, query, account.Name, account.Email, account.IsAdmin)
}

// GetProduct retrieves a product by ID
func (q *Queries) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := sqlx.GetContext(ctx, q.ext, &product,
		"SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if err != nil {
		return nil, notFound(err, models.ErrProductNotFound)
	}
	return &product, nil
}

// ListProducts retrieves all products
func (q *Queries) ListProducts(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	err := sqlx.SelectContext(ctx, q.ext, &products,
		"SELECT "+productColumns+" FROM products ORDER BY id")
	return products, err
}

// CreateProduct inserts a product with its initial stock
func (q *Queries) CreateProduct(ctx context.Context, product *models.Product) error {
	query := `
		INSERT INTO products (name, description, price, category, featured, stock)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	return sqlx.GetContext(ctx, q.ext, product, query,
		product.Name, product.Description, product.Price, product.Category, product.Featured, product.Stock)
}

// UpdateProduct updates everything except stock
func (q *Queries) UpdateProduct(ctx context.Context, product *models.Product) error {
	res, err := q.ext.ExecContext(ctx, `
		UPDATE products
		SET name = $1, description = $2, price = $3, category = $4, featured = $5
		WHERE id = $6`,
		product.Name, product.Description, product.Price, product.Category, product.Featured, product.ID)
	if err != nil {
		return err
	}
	return requireAffected(res, models.ErrProductNotFound)
}

// DeleteProduct removes a product; cart lines cascade, order lines keep their copy
func (q *Queries) DeleteProduct(ctx context.Context, id int64) (bool, error) {
	res, err := q.ext.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// LockProducts locks product rows (FOR UPDATE) in id order so concurrent
// checkouts over overlapping products cannot deadlock
func (q *Queries) LockProducts(ctx context.Context, ids []int64) (map[int64]*models.Product, error) {
	products := []models.Product{}
	err := sqlx.SelectContext(ctx, q.ext, &products,
		"SELECT "+productColumns+" FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE",
		pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to lock products: %w", err)
	}

	locked := make(map[int64]*models.Product, len(products))
	for i := range products {
		locked[products[i].ID] = &products[i]
	}
	return locked, nil
}

// DecrementStock is a conditional update guarded by the current value
func (q *Queries) DecrementStock(ctx context.Context, productID int64, qty int) (bool, error) {
	res, err := q.ext.ExecContext(ctx,
		"UPDATE products SET stock = stock - $1 WHERE id = $2 AND stock >= $1",
		qty, productID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		if _, err := q.GetProduct(ctx, productID); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// IncrementStock adds qty back unconditionally
func (q *Queries) IncrementStock(ctx context.Context, productID int64, qty int) error {
	res, err := q.ext.ExecContext(ctx,
		"UPDATE products SET stock = stock + $1 WHERE id = $2", qty, productID)
	if err != nil {
		return err
	}
	return requireAffected(res, models.ErrProductNotFound)
}
