package models

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a failure for callers deciding whether to retry
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindNotFound
	KindStockConflict
	KindInvalidTransition
	KindForbidden
	KindTimeout
	KindConflict
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindStockConflict:
		return "stock_conflict"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindForbidden:
		return "forbidden"
	case KindTimeout:
		return "timeout"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a typed domain failure. Message is safe to show to a shopper; Err is the
// underlying cause and is only logged.
type Error struct {
	Kind      ErrorKind
	Code      string
	Message   string
	ProductID int64
	Err       error
}

func (e *Error) Error() string {
	msg := e.Code
	if e.ProductID != 0 {
		msg = fmt.Sprintf("%s (product %d)", msg, e.ProductID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code, so wrapped copies of a sentinel still match.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Retryable reports whether the same request may succeed later.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindStockConflict, KindTimeout, KindConflict:
		return true
	}
	return false
}

// Domain errors
var (
	ErrInvalidOwner       = &Error{Kind: KindValidation, Code: "invalid_owner", Message: "Exactly one of account or session token is required"}
	ErrInvalidQuantity    = &Error{Kind: KindValidation, Code: "invalid_quantity", Message: "Quantity must be at least 1"}
	ErrInvalidProduct     = &Error{Kind: KindValidation, Code: "invalid_product", Message: "Product data is invalid"}
	ErrEmptyCart          = &Error{Kind: KindValidation, Code: "empty_cart", Message: "Cart is empty"}
	ErrCartNotFound       = &Error{Kind: KindNotFound, Code: "cart_not_found", Message: "Cart not found"}
	ErrCartLineNotFound   = &Error{Kind: KindNotFound, Code: "cart_line_not_found", Message: "Cart item not found"}
	ErrProductNotFound    = &Error{Kind: KindNotFound, Code: "product_not_found", Message: "Product not found"}
	ErrOrderNotFound      = &Error{Kind: KindNotFound, Code: "order_not_found", Message: "Order not found"}
	ErrOutOfStock         = &Error{Kind: KindStockConflict, Code: "out_of_stock", Message: "Not enough stock available"}
	ErrInsufficientStock  = &Error{Kind: KindStockConflict, Code: "insufficient_stock", Message: "Insufficient stock available for this product"}
	ErrInvalidTransition  = &Error{Kind: KindInvalidTransition, Code: "invalid_transition", Message: "Order status change is not allowed"}
	ErrAlreadyCancelled   = &Error{Kind: KindInvalidTransition, Code: "already_cancelled", Message: "Order is already cancelled"}
	ErrForbidden          = &Error{Kind: KindForbidden, Code: "forbidden", Message: "Not found"}
	ErrTimeout            = &Error{Kind: KindTimeout, Code: "timeout", Message: "The operation timed out, please retry"}
	ErrCheckoutInProgress = &Error{Kind: KindConflict, Code: "checkout_in_progress", Message: "Checkout is already in progress for this cart"}
	ErrFinalizationFailed = &Error{Kind: KindInternal, Code: "finalization_failed", Message: "Checkout failed, please try again"}
	ErrTransitionFailed   = &Error{Kind: KindInternal, Code: "transition_failed", Message: "Order status could not be changed"}
)

// OutOfStock names the product whose cart quantity cannot be satisfied.
func OutOfStock(productID int64) *Error {
	return withProduct(ErrOutOfStock, productID)
}

// InsufficientStock names the product whose stock ran out at commit time.
func InsufficientStock(productID int64) *Error {
	return withProduct(ErrInsufficientStock, productID)
}

// Wrap returns a copy of sentinel carrying cause.
func Wrap(sentinel *Error, cause error) *Error {
	e := *sentinel
	e.Err = cause
	return &e
}

func withProduct(sentinel *Error, productID int64) *Error {
	e := *sentinel
	e.ProductID = productID
	return &e
}

// AsError extracts a domain error from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsRetryable reports whether err is classified as retryable.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable()
	}
	return errors.Is(err, context.DeadlineExceeded)
}
