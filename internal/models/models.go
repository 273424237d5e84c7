package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a product in the catalog
type Product struct {
	ID          int64           `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Description string          `db:"description" json:"description"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Category    string          `db:"category" json:"category"`
	Featured    bool            `db:"featured" json:"featured"`
	Stock       int             `db:"stock" json:"stock"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// Account is the minimal shopper record orders and carts point at.
// Authentication lives outside this service.
type Account struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	IsAdmin   bool      `db:"is_admin" json:"is_admin"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Cart is a shopper's staging area, owned by an account or a guest session
type Cart struct {
	ID           int64         `db:"id" json:"id"`
	AccountID    *int64        `db:"account_id" json:"account_id,omitempty"`
	SessionToken *SessionToken `db:"session_token" json:"-"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
}

// Owner returns the identity that owns the cart.
func (c *Cart) Owner() Owner {
	if c.AccountID != nil {
		return AccountOwner(*c.AccountID)
	}
	if c.SessionToken != nil {
		return GuestOwner(*c.SessionToken)
	}
	return Owner{}
}

// CartLine is one (product, quantity) pairing joined with live product data
type CartLine struct {
	ID          int64           `db:"id" json:"id"`
	CartID      int64           `db:"cart_id" json:"cart_id"`
	ProductID   int64           `db:"product_id" json:"product_id"`
	Quantity    int             `db:"quantity" json:"quantity"`
	ProductName string          `db:"name" json:"name"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Stock       int             `db:"stock" json:"stock"`
}

// Subtotal uses the live product price.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CartView is a cart with its lines and live total
type CartView struct {
	Cart  Cart            `json:"cart"`
	Lines []CartLine      `json:"lines"`
	Total decimal.Decimal `json:"total"`
}

// Order represents a customer order. Only Status and StockApplied change after creation.
type Order struct {
	ID           int64           `db:"id" json:"id"`
	AccountID    *int64          `db:"account_id" json:"account_id,omitempty"`
	Status       OrderStatus     `db:"status" json:"status"`
	Total        decimal.Decimal `db:"total" json:"total"`
	StockApplied bool            `db:"stock_applied" json:"-"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// OrderLine holds the quantity and the unit price captured at order time.
// ProductID is nil once the product has been deleted.
type OrderLine struct {
	ID          int64           `db:"id" json:"id"`
	OrderID     int64           `db:"order_id" json:"order_id"`
	ProductID   *int64          `db:"product_id" json:"product_id,omitempty"`
	ProductName string          `db:"product_name" json:"product_name"`
	Quantity    int             `db:"quantity" json:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unit_price"`
}

// Subtotal uses the historical unit price.
func (l OrderLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// OrderSummary is one row of an order history or admin listing
type OrderSummary struct {
	OrderID      int64           `db:"order_id" json:"order_id"`
	AccountID    *int64          `db:"account_id" json:"account_id,omitempty"`
	CustomerName *string         `db:"customer_name" json:"customer_name,omitempty"`
	Date         time.Time       `db:"order_date" json:"date"`
	Status       OrderStatus     `db:"status" json:"status"`
	Total        decimal.Decimal `db:"total" json:"total"`
	ItemCount    int             `db:"item_count" json:"item_count"`
}

// OrderDetails is an order with its full line breakdown
type OrderDetails struct {
	Order Order       `json:"order"`
	Lines []OrderLine `json:"lines"`
}

// Cancellation is the append-only record written when an order is cancelled
type Cancellation struct {
	ID           int64            `db:"id" json:"id"`
	OrderID      *int64           `db:"order_id" json:"order_id,omitempty"`
	Reason       string           `db:"reason" json:"reason"`
	CanceledAt   time.Time        `db:"canceled_at" json:"canceled_at"`
	OrderTotal   *decimal.Decimal `db:"order_total" json:"order_total,omitempty"`
	OrderDate    *time.Time       `db:"order_date" json:"order_date,omitempty"`
	CustomerName *string          `db:"customer_name" json:"customer_name,omitempty"`
}

// DefaultCancellationReason is recorded when the caller gives none.
const DefaultCancellationReason = "Order cancelled"
