package service

import (
	"context"
	"strings"
	"time"

	"storefront/internal/models"
	"storefront/internal/port"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// CatalogService is the admin surface over products. Stock only changes
// through the inventory ledger.
type CatalogService struct {
	repo    port.Repository
	ledger  *InventoryLedger
	logger  *zap.Logger
	timeout time.Duration
}

// NewCatalogService creates a new catalog service
func NewCatalogService(repo port.Repository, ledger *InventoryLedger, timeout time.Duration) *CatalogService {
	return &CatalogService{
		repo:    repo,
		ledger:  ledger,
		logger:  util.GetLogger(),
		timeout: timeout,
	}
}

func validateProduct(p *models.Product) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" || p.Price.IsNegative() {
		return models.ErrInvalidProduct
	}
	p.Price = p.Price.Round(2)
	return nil
}

// CreateProduct adds a product with its initial stock
func (s *CatalogService) CreateProduct(ctx context.Context, product *models.Product) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.CreateProduct")
	defer span.End()

	if err := validateProduct(product); err != nil {
		return err
	}
	if product.Stock < 0 {
		return models.ErrInvalidProduct
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return classify(ctx, err)
	}

	s.logger.Info("Product created",
		zap.Int64("product_id", product.ID),
		zap.String("name", product.Name),
		zap.Int("stock", product.Stock))
	return nil
}

// GetProduct returns the product with its latest committed stock
func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	product, err := s.repo.GetProduct(ctx, id)
	return product, classify(ctx, err)
}

// ListProducts returns the catalogue ordered by id
func (s *CatalogService) ListProducts(ctx context.Context) ([]models.Product, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	products, err := s.repo.ListProducts(ctx)
	return products, classify(ctx, err)
}

// UpdateProduct rewrites descriptive fields and price. Stock in product is ignored.
func (s *CatalogService) UpdateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.UpdateProduct")
	defer span.End()

	if err := validateProduct(product); err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.repo.UpdateProduct(ctx, product); err != nil {
		return nil, classify(ctx, err)
	}

	updated, err := s.repo.GetProduct(ctx, product.ID)
	if err != nil {
		return nil, classify(ctx, err)
	}

	s.logger.Info("Product updated", zap.Int64("product_id", product.ID))
	return updated, nil
}

// DeleteProduct removes a product. Carts lose their lines for it; past orders
// keep the copied name and price.
func (s *CatalogService) DeleteProduct(ctx context.Context, id int64) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.DeleteProduct")
	defer span.End()

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	deleted, err := s.repo.DeleteProduct(ctx, id)
	if err != nil {
		return classify(ctx, err)
	}
	if !deleted {
		return models.ErrProductNotFound
	}

	s.logger.Info("Product deleted", zap.Int64("product_id", id))
	return nil
}

// AdjustStock restocks (delta > 0) or writes off (delta < 0) units
func (s *CatalogService) AdjustStock(ctx context.Context, id int64, delta int) (*models.Product, error) {
	return s.ledger.Adjust(ctx, id, delta)
}
