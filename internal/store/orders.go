package store

import (
	"context"

	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
)

const orderColumns = "id, account_id, status, total, stock_applied, created_at, updated_at"

const orderSummaryQuery = `
	SELECT
		o.id AS order_id,
		o.account_id,
		a.name AS customer_name,
		o.created_at AS order_date,
		o.status,
		o.total,
		COUNT(oi.id) AS item_count
	FROM orders o
	LEFT JOIN accounts a ON o.account_id = a.id
	LEFT JOIN order_items oi ON o.id = oi.order_id`

const orderSummaryGroup = `
	GROUP BY o.id, o.account_id, a.name, o.created_at, o.status, o.total
	ORDER BY o.created_at DESC, o.id DESC`

// CreateOrder creates a new order
func (q *Queries) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (account_id, status, total, stock_applied)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	return sqlx.GetContext(ctx, q.ext, order, query,
		order.AccountID, order.Status, order.Total, order.StockApplied)
}

// CreateOrderLine creates a new order item
func (q *Queries) CreateOrderLine(ctx context.Context, line *models.OrderLine) error {
	query := `
		INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	return sqlx.GetContext(ctx, q.ext, &line.ID, query,
		line.OrderID, line.ProductID, line.ProductName, line.Quantity, line.UnitPrice)
}

// GetOrder retrieves an order by ID
func (q *Queries) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := sqlx.GetContext(ctx, q.ext, &order,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	if err != nil {
		return nil, notFound(err, models.ErrOrderNotFound)
	}
	return &order, nil
}

// LockOrder retrieves an order and holds its row lock until the transaction ends
func (q *Queries) LockOrder(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := sqlx.GetContext(ctx, q.ext, &order,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		return nil, notFound(err, models.ErrOrderNotFound)
	}
	return &order, nil
}

// GetOrderLines retrieves all items for an order
func (q *Queries) GetOrderLines(ctx context.Context, orderID int64) ([]models.OrderLine, error) {
	lines := []models.OrderLine{}
	err := sqlx.SelectContext(ctx, q.ext, &lines, `
		SELECT id, order_id, product_id, product_name, quantity, unit_price
		FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	return lines, err
}

// UpdateOrderStatus updates order status together with the stock flag
func (q *Queries) UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus, stockApplied bool) error {
	res, err := q.ext.ExecContext(ctx,
		"UPDATE orders SET status = $1, stock_applied = $2, updated_at = NOW() WHERE id = $3",
		status, stockApplied, orderID)
	if err != nil {
		return err
	}
	return requireAffected(res, models.ErrOrderNotFound)
}

// CreateCancellation appends a cancellation record
func (q *Queries) CreateCancellation(ctx context.Context, c *models.Cancellation) error {
	query := `
		INSERT INTO canceled_orders (order_id, reason)
		VALUES ($1, $2)
		RETURNING id, canceled_at`

	return sqlx.GetContext(ctx, q.ext, c, query, c.OrderID, c.Reason)
}

// GetOrderHistory retrieves order summaries for an account, newest first
func (q *Queries) GetOrderHistory(ctx context.Context, accountID int64) ([]models.OrderSummary, error) {
	orders := []models.OrderSummary{}
	err := sqlx.SelectContext(ctx, q.ext, &orders,
		orderSummaryQuery+" WHERE o.account_id = $1"+orderSummaryGroup, accountID)
	return orders, err
}

// ListOrders retrieves all order summaries, optionally filtered by status
func (q *Queries) ListOrders(ctx context.Context, status *models.OrderStatus) ([]models.OrderSummary, error) {
	orders := []models.OrderSummary{}
	if status != nil {
		err := sqlx.SelectContext(ctx, q.ext, &orders,
			orderSummaryQuery+" WHERE o.status = $1"+orderSummaryGroup, *status)
		return orders, err
	}
	err := sqlx.SelectContext(ctx, q.ext, &orders, orderSummaryQuery+orderSummaryGroup)
	return orders, err
}

// ListCancellations retrieves the cancellation history, newest first
func (q *Queries) ListCancellations(ctx context.Context) ([]models.Cancellation, error) {
	cancellations := []models.Cancellation{}
	err := sqlx.SelectContext(ctx, q.ext, &cancellations, `
		SELECT
			co.id, co.order_id, co.reason, co.canceled_at,
			o.total AS order_total,
			o.created_at AS order_date,
			a.name AS customer_name
		FROM canceled_orders co
		LEFT JOIN orders o ON co.order_id = o.id
		LEFT JOIN accounts a ON o.account_id = a.id
		ORDER BY co.canceled_at DESC, co.id DESC`)
	return cancellations, err
}
