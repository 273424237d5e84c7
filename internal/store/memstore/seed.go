package memstore

import (
	"context"

	"storefront/internal/models"

	"github.com/shopspring/decimal"
)

// Seed loads the sample accounts and catalogue used in development
func Seed(ctx context.Context, s *Store) error {
	accounts := []models.Account{
		{Name: "John Doe", Email: "user@example.com"},
		{Name: "Admin User", Email: "admin@example.com", IsAdmin: true},
	}
	for i := range accounts {
		if err := s.CreateAccount(ctx, &accounts[i]); err != nil {
			return err
		}
	}

	products := []models.Product{
		{Name: "Smartphone X Pro", Description: "The latest smartphone with advanced camera and long battery life.", Price: decimal.RequireFromString("899.99"), Category: "smartphones", Featured: true, Stock: 15},
		{Name: "Laptop UltraBook", Description: "Thin and light laptop with powerful performance for professionals.", Price: decimal.RequireFromString("1299.99"), Category: "laptops", Featured: true, Stock: 10},
		{Name: "Wireless Headphones", Description: "Premium noise-cancelling headphones with crystal clear sound.", Price: decimal.RequireFromString("249.99"), Category: "audio", Featured: true, Stock: 20},
		{Name: "Smart Watch", Description: "Track your fitness and stay connected with this feature-packed smartwatch.", Price: decimal.RequireFromString("199.99"), Category: "wearables", Featured: true, Stock: 18},
		{Name: "4K Smart TV", Description: "Ultra HD smart TV with stunning picture quality and smart features.", Price: decimal.RequireFromString("799.99"), Category: "tvs", Stock: 8},
		{Name: "Wireless Earbuds", Description: "Compact earbuds with great sound quality and long battery life.", Price: decimal.RequireFromString("129.99"), Category: "audio", Featured: true, Stock: 25},
		{Name: "Digital Camera", Description: "Professional-grade camera for stunning photos and videos.", Price: decimal.RequireFromString("699.99"), Category: "cameras", Stock: 12},
		{Name: "Gaming Console", Description: "Next-generation gaming with incredible graphics and performance.", Price: decimal.RequireFromString("499.99"), Category: "gaming", Featured: true, Stock: 7},
	}
	for i := range products {
		if err := s.CreateProduct(ctx, &products[i]); err != nil {
			return err
		}
	}
	return nil
}
