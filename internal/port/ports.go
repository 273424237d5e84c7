package port

import (
	"context"
	"time"

	"storefront/internal/models"
)

// Querier is the data access surface shared by the Postgres and in-memory stores.
// Lookups of a missing row return the matching models.Err*NotFound error.
type Querier interface {
	CreateAccount(ctx context.Context, account *models.Account) error

	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) error
	// UpdateProduct writes descriptive fields and price; stock is left untouched.
	UpdateProduct(ctx context.Context, product *models.Product) error
	DeleteProduct(ctx context.Context, id int64) (bool, error)
	// LockProducts row-locks the given products in ascending id order.
	LockProducts(ctx context.Context, ids []int64) (map[int64]*models.Product, error)
	// DecrementStock subtracts qty only if stock >= qty; false means it did not.
	DecrementStock(ctx context.Context, productID int64, qty int) (bool, error)
	IncrementStock(ctx context.Context, productID int64, qty int) error

	GetCart(ctx context.Context, id int64) (*models.Cart, error)
	LockCart(ctx context.Context, id int64) (*models.Cart, error)
	FindCart(ctx context.Context, owner models.Owner) (*models.Cart, error)
	// CreateCart inserts a cart for owner, or returns the existing one.
	CreateCart(ctx context.Context, owner models.Owner) (*models.Cart, error)
	ReassignCart(ctx context.Context, cartID, accountID int64) error
	DeleteCart(ctx context.Context, cartID int64) error
	GetCartLines(ctx context.Context, cartID int64) ([]models.CartLine, error)
	GetCartLine(ctx context.Context, lineID int64) (*models.CartLine, error)
	FindCartLine(ctx context.Context, cartID, productID int64) (*models.CartLine, error)
	InsertCartLine(ctx context.Context, cartID, productID int64, qty int) (int64, error)
	SetCartLineQuantity(ctx context.Context, lineID int64, qty int) error
	DeleteCartLine(ctx context.Context, cartID, lineID int64) (bool, error)
	ClearCart(ctx context.Context, cartID int64) (int64, error)
	CountCartLines(ctx context.Context, cartID int64) (int, error)

	CreateOrder(ctx context.Context, order *models.Order) error
	CreateOrderLine(ctx context.Context, line *models.OrderLine) error
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	LockOrder(ctx context.Context, id int64) (*models.Order, error)
	GetOrderLines(ctx context.Context, orderID int64) ([]models.OrderLine, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus, stockApplied bool) error
	CreateCancellation(ctx context.Context, c *models.Cancellation) error
	GetOrderHistory(ctx context.Context, accountID int64) ([]models.OrderSummary, error)
	ListOrders(ctx context.Context, status *models.OrderStatus) ([]models.OrderSummary, error)
	ListCancellations(ctx context.Context) ([]models.Cancellation, error)
}

// Repository is a Querier that can also open a unit of work. Everything fn does
// through q commits together or not at all.
type Repository interface {
	Querier
	InTx(ctx context.Context, fn func(q Querier) error) error
	Ping(ctx context.Context) error
}

// CheckoutGuard rejects duplicate concurrent checkouts and replays idempotent ones.
type CheckoutGuard interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (token string, ok bool, err error)
	ReleaseLock(ctx context.Context, lockKey, token string) error
	GetIdempotentOrder(ctx context.Context, key string) (int64, bool, error)
	SetIdempotentOrder(ctx context.Context, key string, orderID int64, ttl time.Duration) error
}

// EventPublisher emits order events after their transaction commits.
type EventPublisher interface {
	PublishOrderFinalized(ctx context.Context, event *models.OrderFinalizedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
	PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
}
