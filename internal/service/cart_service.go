package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"
	"storefront/internal/port"
	"storefront/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CartService manages carts and their lines
type CartService struct {
	repo    port.Repository
	ledger  *InventoryLedger
	logger  *zap.Logger
	timeout time.Duration
}

// NewCartService creates a new cart service
func NewCartService(repo port.Repository, ledger *InventoryLedger, timeout time.Duration) *CartService {
	return &CartService{
		repo:    repo,
		ledger:  ledger,
		logger:  util.GetLogger(),
		timeout: timeout,
	}
}

// GetOrCreateCart returns the cart for owner, creating an empty one on first use
func (s *CartService) GetOrCreateCart(ctx context.Context, owner models.Owner) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.GetOrCreateCart")
	defer span.End()

	if err := owner.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	cart, err := s.repo.FindCart(ctx, owner)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, models.ErrCartNotFound) {
		return nil, classify(ctx, err)
	}

	cart, err = s.repo.CreateCart(ctx, owner)
	if err != nil {
		return nil, classify(ctx, fmt.Errorf("failed to create cart: %w", err))
	}

	s.logger.Debug("Cart created",
		zap.Int64("cart_id", cart.ID),
		zap.Stringer("owner", owner))
	return cart, nil
}

// GetCartView returns the owner's cart with its lines and live total.
// A shopper with no cart yet sees an empty view without one being created.
func (s *CartService) GetCartView(ctx context.Context, owner models.Owner) (*models.CartView, error) {
	ctx, span := util.StartSpan(ctx, "CartService.GetCartView")
	defer span.End()

	if err := owner.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	cart, err := s.repo.FindCart(ctx, owner)
	if errors.Is(err, models.ErrCartNotFound) {
		return &models.CartView{Lines: []models.CartLine{}, Total: decimal.Zero}, nil
	}
	if err != nil {
		return nil, classify(ctx, err)
	}

	lines, err := s.repo.GetCartLines(ctx, cart.ID)
	if err != nil {
		return nil, classify(ctx, err)
	}

	return &models.CartView{Cart: *cart, Lines: lines, Total: sumLines(lines)}, nil
}

// AddItem adds qty units of a product, merging into an existing line. The stock
// check covers the merged quantity, not just the increment.
func (s *CartService) AddItem(ctx context.Context, cartID, productID int64, qty int) (int64, error) {
	ctx, span := util.StartSpan(ctx, "CartService.AddItem")
	defer span.End()

	if qty < 1 {
		s.recordMutation("add", models.ErrInvalidQuantity)
		return 0, models.ErrInvalidQuantity
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var lineID int64
	err := s.repo.InTx(ctx, func(q port.Querier) error {
		if _, err := q.GetCart(ctx, cartID); err != nil {
			return err
		}

		existing, err := q.FindCartLine(ctx, cartID, productID)
		if err != nil && !errors.Is(err, models.ErrCartLineNotFound) {
			return err
		}

		merged := qty
		if existing != nil {
			merged += existing.Quantity
		}

		ok, err := s.ledger.checkAvailable(ctx, q, productID, merged)
		if err != nil {
			return err
		}
		if !ok {
			return models.OutOfStock(productID)
		}

		if existing != nil {
			lineID = existing.ID
			return q.SetCartLineQuantity(ctx, existing.ID, merged)
		}

		lineID, err = q.InsertCartLine(ctx, cartID, productID, qty)
		return err
	})
	err = classify(ctx, err)
	s.recordMutation("add", err)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	s.logger.Debug("Item added to cart",
		zap.Int64("cart_id", cartID),
		zap.Int64("product_id", productID),
		zap.Int("quantity", qty))
	return lineID, nil
}

// UpdateQuantity overwrites a line's quantity; qty <= 0 removes the line
func (s *CartService) UpdateQuantity(ctx context.Context, cartID, lineID int64, qty int) error {
	ctx, span := util.StartSpan(ctx, "CartService.UpdateQuantity")
	defer span.End()

	if qty <= 0 {
		return s.RemoveItem(ctx, cartID, lineID)
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	err := s.repo.InTx(ctx, func(q port.Querier) error {
		line, err := q.GetCartLine(ctx, lineID)
		if err != nil {
			return err
		}
		if line.CartID != cartID {
			return models.ErrForbidden
		}

		ok, err := s.ledger.checkAvailable(ctx, q, line.ProductID, qty)
		if err != nil {
			return err
		}
		if !ok {
			return models.OutOfStock(line.ProductID)
		}

		return q.SetCartLineQuantity(ctx, lineID, qty)
	})
	err = classify(ctx, err)
	s.recordMutation("update", err)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// RemoveItem deletes a line from the cart; a missing line is not an error
func (s *CartService) RemoveItem(ctx context.Context, cartID, lineID int64) error {
	ctx, span := util.StartSpan(ctx, "CartService.RemoveItem")
	defer span.End()

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	removed, err := s.repo.DeleteCartLine(ctx, cartID, lineID)
	err = classify(ctx, err)
	s.recordMutation("remove", err)
	if err != nil {
		return err
	}

	if !removed {
		s.logger.Debug("Cart line already absent",
			zap.Int64("cart_id", cartID),
			zap.Int64("line_id", lineID))
	}
	return nil
}

// Clear empties the cart
func (s *CartService) Clear(ctx context.Context, cartID int64) error {
	ctx, span := util.StartSpan(ctx, "CartService.Clear")
	defer span.End()

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.repo.ClearCart(ctx, cartID)
	err = classify(ctx, err)
	s.recordMutation("clear", err)
	if err != nil {
		return err
	}

	s.logger.Debug("Cart cleared", zap.Int64("cart_id", cartID), zap.Int64("lines", n))
	return nil
}

// Total sums the cart at live product prices
func (s *CartService) Total(ctx context.Context, cartID int64) (decimal.Decimal, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	lines, err := s.repo.GetCartLines(ctx, cartID)
	if err != nil {
		return decimal.Zero, classify(ctx, err)
	}
	return sumLines(lines), nil
}

// ItemCount returns the number of distinct lines in the cart
func (s *CartService) ItemCount(ctx context.Context, cartID int64) (int, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.repo.CountCartLines(ctx, cartID)
	return n, classify(ctx, err)
}

// LinkToAccount hands a guest cart over to an account on login. When the
// account already has a cart the guest lines are merged into it, capped at
// current stock. It is a no-op when the token has no cart.
func (s *CartService) LinkToAccount(ctx context.Context, token models.SessionToken, accountID int64) error {
	ctx, span := util.StartSpan(ctx, "CartService.LinkToAccount")
	defer span.End()

	guestOwner := models.GuestOwner(token)
	if err := guestOwner.Validate(); err != nil {
		return err
	}
	if err := models.AccountOwner(accountID).Validate(); err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	err := s.repo.InTx(ctx, func(q port.Querier) error {
		guest, err := q.FindCart(ctx, guestOwner)
		if errors.Is(err, models.ErrCartNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		target, err := q.FindCart(ctx, models.AccountOwner(accountID))
		if errors.Is(err, models.ErrCartNotFound) {
			return q.ReassignCart(ctx, guest.ID, accountID)
		}
		if err != nil {
			return err
		}

		return s.mergeLines(ctx, q, guest.ID, target.ID)
	})
	err = classify(ctx, err)
	s.recordMutation("link", err)
	if err != nil {
		span.RecordError(err)
		return err
	}

	s.logger.Info("Guest cart linked to account", zap.Int64("account_id", accountID))
	return nil
}

func (s *CartService) mergeLines(ctx context.Context, q port.Querier, fromID, toID int64) error {
	lines, err := q.GetCartLines(ctx, fromID)
	if err != nil {
		return err
	}

	for _, line := range lines {
		existing, err := q.FindCartLine(ctx, toID, line.ProductID)
		if err != nil && !errors.Is(err, models.ErrCartLineNotFound) {
			return err
		}

		qty := line.Quantity
		if existing != nil {
			qty += existing.Quantity
		}
		if qty > line.Stock {
			qty = line.Stock
		}

		switch {
		case existing != nil:
			if qty > existing.Quantity {
				if err := q.SetCartLineQuantity(ctx, existing.ID, qty); err != nil {
					return err
				}
			}
		case qty > 0:
			if _, err := q.InsertCartLine(ctx, toID, line.ProductID, qty); err != nil {
				return err
			}
		}
	}

	return q.DeleteCart(ctx, fromID)
}

func (s *CartService) recordMutation(operation string, err error) {
	result := "ok"
	if err != nil {
		result = reason(err)
	}
	util.CartMutationsTotal.WithLabelValues(operation, result).Inc()
}

func sumLines(lines []models.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal())
	}
	return total
}
