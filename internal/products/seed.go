package products

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/avilesdev/storefront-backend/pkg/db/models"
	pkgerrors "github.com/avilesdev/storefront-backend/pkg/errors"
)

func strPtr(s string) *string { return &s }

// seedCatalog is the starter inventory loaded into an empty catalog.
func seedCatalog() []models.Product {
	return []models.Product{
		{
			Title:       "Fjallraven Foldsack No. 1 Backpack",
			Description: "Fits 15 inch laptops with a padded sleeve and everyday storage.",
			Brand:       strPtr("Fjallraven"),
			Category:    "men's clothing",
			Image:       "https://cdn.storefront.dev/img/backpack-foldsack.jpg",
			Price:       decimal.RequireFromString("109.95"),
			Stock:       10,
		},
		{
			Title:       "Mens Casual Premium Slim Fit T-Shirt",
			Description: "Slim-fitting style with a contrast raglan long sleeve.",
			Brand:       strPtr("Rover"),
			Category:    "men's clothing",
			Image:       "https://cdn.storefront.dev/img/tshirt-slim.jpg",
			Price:       decimal.RequireFromString("22.30"),
			Stock:       10,
		},
		{
			Title:       "Mens Cotton Jacket",
			Description: "Great outerwear for spring, autumn, and working outdoors.",
			Brand:       strPtr("Rover"),
			Category:    "men's clothing",
			Image:       "https://cdn.storefront.dev/img/jacket-cotton.jpg",
			Price:       decimal.RequireFromString("55.99"),
			Stock:       10,
		},
		{
			Title:       "John Hardy Legends Naga Bracelet",
			Description: "Gold and silver dragon station chain bracelet.",
			Brand:       strPtr("John Hardy"),
			Category:    "jewelery",
			Image:       "https://cdn.storefront.dev/img/bracelet-naga.jpg",
			Price:       decimal.RequireFromString("695.00"),
			Stock:       10,
		},
		{
			Title:       "Solid Gold Petite Micropave Ring",
			Description: "Satisfaction guaranteed. Designed and sold by Hafeez Center.",
			Brand:       strPtr("Hafeez Center"),
			Category:    "jewelery",
			Image:       "https://cdn.storefront.dev/img/ring-micropave.jpg",
			Price:       decimal.RequireFromString("168.00"),
			Stock:       10,
		},
		{
			Title:       "WD 2TB Elements Portable External Hard Drive",
			Description: "USB 3.0 compatibility, plug-and-play storage on the go.",
			Brand:       strPtr("Western Digital"),
			Category:    "electronics",
			Image:       "https://cdn.storefront.dev/img/hdd-elements-2tb.jpg",
			Price:       decimal.RequireFromString("64.00"),
			Stock:       10,
		},
		{
			Title:       "SanDisk SSD PLUS 1TB Internal SSD",
			Description: "Easy upgrade for faster boot-up, shutdown, and application load.",
			Brand:       strPtr("SanDisk"),
			Category:    "electronics",
			Image:       "https://cdn.storefront.dev/img/ssd-plus-1tb.jpg",
			Price:       decimal.RequireFromString("109.00"),
			Stock:       10,
		},
		{
			Title:       "Acer SB220Q 21.5 inch Full HD IPS Monitor",
			Description: "Ultra-thin 1920 x 1080 display with Radeon FreeSync.",
			Brand:       strPtr("Acer"),
			Category:    "electronics",
			Image:       "https://cdn.storefront.dev/img/monitor-sb220q.jpg",
			Price:       decimal.RequireFromString("599.00"),
			Stock:       10,
		},
		{
			Title:       "BIYLACLESEN Womens 3-in-1 Snowboard Jacket",
			Description: "Detachable liner, stand collar, and zippered hand pockets.",
			Brand:       strPtr("BIYLACLESEN"),
			Category:    "women's clothing",
			Image:       "https://cdn.storefront.dev/img/jacket-snowboard.jpg",
			Price:       decimal.RequireFromString("56.99"),
			Stock:       10,
		},
		{
			Title:       "DANVOUY Womens Casual Cotton T-Shirt",
			Description: "Short sleeve letter-print v-neck in soft stretch cotton.",
			Brand:       strPtr("DANVOUY"),
			Category:    "women's clothing",
			Image:       "https://cdn.storefront.dev/img/tshirt-danvouy.jpg",
			Price:       decimal.RequireFromString("12.99"),
			Stock:       10,
		},
	}
}

// Seed loads the starter catalog when the products table is empty. It is a
// no-op on a populated catalog, so reruns are safe.
func (s *service) Seed(ctx context.Context) (int, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count products")
	}
	if count > 0 {
		return 0, nil
	}

	rows := seedCatalog()
	batchSize := s.cfg.SeedBatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	if err := s.repo.InsertBatch(ctx, rows, batchSize); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "seed products")
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "count", len(rows)), "seeded product catalog")
	}
	return len(rows), nil
}
