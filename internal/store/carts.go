package store

import (
	"context"
	"database/sql"

	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
)

const cartLineQuery = `
	SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity, p.name, p.price, p.stock
	FROM cart_items ci
	JOIN products p ON ci.product_id = p.id`

// GetCart retrieves a cart by ID
func (q *Queries) GetCart(ctx context.Context, id int64) (*models.Cart, error) {
	var cart models.Cart
	err := sqlx.GetContext(ctx, q.ext, &cart,
		"SELECT id, account_id, session_token, created_at FROM carts WHERE id = $1", id)
	if err != nil {
		return nil, notFound(err, models.ErrCartNotFound)
	}
	return &cart, nil
}

// LockCart retrieves a cart and holds its row lock until the transaction ends
func (q *Queries) LockCart(ctx context.Context, id int64) (*models.Cart, error) {
	var cart models.Cart
	err := sqlx.GetContext(ctx, q.ext, &cart,
		"SELECT id, account_id, session_token, created_at FROM carts WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		return nil, notFound(err, models.ErrCartNotFound)
	}
	return &cart, nil
}

// FindCart retrieves the cart owned by an account or a guest session
func (q *Queries) FindCart(ctx context.Context, owner models.Owner) (*models.Cart, error) {
	var (
		cart models.Cart
		err  error
	)
	if owner.AccountID != nil {
		err = sqlx.GetContext(ctx, q.ext, &cart,
			"SELECT id, account_id, session_token, created_at FROM carts WHERE account_id = $1", *owner.AccountID)
	} else {
		err = sqlx.GetContext(ctx, q.ext, &cart,
			"SELECT id, account_id, session_token, created_at FROM carts WHERE session_token = $1", owner.SessionToken)
	}
	if err != nil {
		return nil, notFound(err, models.ErrCartNotFound)
	}
	return &cart, nil
}

// CreateCart inserts an empty cart for owner; a concurrent insert for the same
// owner is absorbed by the unique constraint and the existing row is returned
func (q *Queries) CreateCart(ctx context.Context, owner models.Owner) (*models.Cart, error) {
	var err error
	if owner.AccountID != nil {
		_, err = q.ext.ExecContext(ctx,
			"INSERT INTO carts (account_id) VALUES ($1) ON CONFLICT (account_id) DO NOTHING", *owner.AccountID)
	} else {
		_, err = q.ext.ExecContext(ctx,
			"INSERT INTO carts (session_token) VALUES ($1) ON CONFLICT (session_token) DO NOTHING", owner.SessionToken)
	}
	if err != nil {
		return nil, err
	}
	return q.FindCart(ctx, owner)
}

// ReassignCart moves a guest cart to an account
func (q *Queries) ReassignCart(ctx context.Context, cartID, accountID int64) error {
	res, err := q.ext.ExecContext(ctx,
		"UPDATE carts SET account_id = $1, session_token = NULL WHERE id = $2", accountID, cartID)
	if err != nil {
		return err
	}
	return requireAffected(res, models.ErrCartNotFound)
}

// DeleteCart removes a cart and its lines
func (q *Queries) DeleteCart(ctx context.Context, cartID int64) error {
	_, err := q.ext.ExecContext(ctx, "DELETE FROM carts WHERE id = $1", cartID)
	return err
}

// GetCartLines retrieves all lines of a cart with live product data
func (q *Queries) GetCartLines(ctx context.Context, cartID int64) ([]models.CartLine, error) {
	lines := []models.CartLine{}
	err := sqlx.SelectContext(ctx, q.ext, &lines,
		cartLineQuery+" WHERE ci.cart_id = $1 ORDER BY ci.id", cartID)
	return lines, err
}

// GetCartLine retrieves a single cart line
func (q *Queries) GetCartLine(ctx context.Context, lineID int64) (*models.CartLine, error) {
	var line models.CartLine
	err := sqlx.GetContext(ctx, q.ext, &line, cartLineQuery+" WHERE ci.id = $1", lineID)
	if err != nil {
		return nil, notFound(err, models.ErrCartLineNotFound)
	}
	return &line, nil
}

// FindCartLine retrieves the line for a product in a cart
func (q *Queries) FindCartLine(ctx context.Context, cartID, productID int64) (*models.CartLine, error) {
	var line models.CartLine
	err := sqlx.GetContext(ctx, q.ext, &line,
		cartLineQuery+" WHERE ci.cart_id = $1 AND ci.product_id = $2", cartID, productID)
	if err != nil {
		return nil, notFound(err, models.ErrCartLineNotFound)
	}
	return &line, nil
}

// InsertCartLine adds a new line
func (q *Queries) InsertCartLine(ctx context.Context, cartID, productID int64, qty int) (int64, error) {
	var id int64
	err := sqlx.GetContext(ctx, q.ext, &id,
		"INSERT INTO cart_items (cart_id, product_id, quantity) VALUES ($1, $2, $3) RETURNING id",
		cartID, productID, qty)
	return id, err
}

// SetCartLineQuantity overwrites a line's quantity
func (q *Queries) SetCartLineQuantity(ctx context.Context, lineID int64, qty int) error {
	res, err := q.ext.ExecContext(ctx, "UPDATE cart_items SET quantity = $1 WHERE id = $2", qty, lineID)
	if err != nil {
		return err
	}
	return requireAffected(res, models.ErrCartLineNotFound)
}

// DeleteCartLine removes a line if it belongs to the cart
func (q *Queries) DeleteCartLine(ctx context.Context, cartID, lineID int64) (bool, error) {
	res, err := q.ext.ExecContext(ctx,
		"DELETE FROM cart_items WHERE id = $1 AND cart_id = $2", lineID, cartID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ClearCart removes all lines of a cart
func (q *Queries) ClearCart(ctx context.Context, cartID int64) (int64, error) {
	res, err := q.ext.ExecContext(ctx, "DELETE FROM cart_items WHERE cart_id = $1", cartID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountCartLines returns the number of lines in a cart
func (q *Queries) CountCartLines(ctx context.Context, cartID int64) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, q.ext, &count,
		"SELECT COUNT(*) FROM cart_items WHERE cart_id = $1", cartID)
	return count, err
}

func requireAffected(res sql.Result, domainErr error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domainErr
	}
	return nil
}
