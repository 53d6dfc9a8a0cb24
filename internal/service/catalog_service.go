package service

import (
	"context"
	"fmt"

	"energy-store/internal/models"
	"energy-store/internal/store"
	"energy-store/internal/util"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CatalogService serves the product listing through the Redis cache and handles admin edits
type CatalogService struct {
	repo           store.Repository
	cache          StockCache
	referencePrice int64
	group          singleflight.Group
	logger         *zap.Logger
}

// NewCatalogService creates a new catalog service. cache may be nil.
func NewCatalogService(repo store.Repository, cache StockCache, referencePrice int64) *CatalogService {
	if cache == nil {
		cache = NopStockCache{}
	}
	return &CatalogService{
		repo:           repo,
		cache:          cache,
		referencePrice: referencePrice,
		logger:         util.GetLogger(),
	}
}

// CatalogEntry is a product as shown on the storefront
type CatalogEntry struct {
	models.Product
	Savings        int64 `json:"savings"`
	SavingsPercent int   `json:"savings_percent"`
}

// ListProducts returns products in catalog order. Concurrent misses share one repository read.
func (s *CatalogService) ListProducts(ctx context.Context, activeOnly bool) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListProducts")
	defer span.End()

	products, ok, err := s.cache.GetCatalog(ctx, activeOnly)
	if err != nil {
		s.logger.Warn("Catalog cache read failed", zap.Error(err))
	}
	if ok {
		util.CatalogCacheTotal.WithLabelValues("hit").Inc()
		return products, nil
	}
	util.CatalogCacheTotal.WithLabelValues("miss").Inc()

	key := "catalog:all"
	if activeOnly {
		key = "catalog:active"
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		products, err := s.repo.ListProducts(ctx, store.ProductFilter{ActiveOnly: activeOnly})
		if err != nil {
			return nil, err
		}
		if err := s.cache.SetCatalog(ctx, activeOnly, products); err != nil {
			s.logger.Warn("Failed to cache catalog", zap.Error(err))
		}
		return products, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return v.([]models.Product), nil
}

// ListCatalog returns the active products with their savings against the regional reference price
func (s *CatalogService) ListCatalog(ctx context.Context) ([]CatalogEntry, error) {
	products, err := s.ListProducts(ctx, true)
	if err != nil {
		return nil, err
	}

	entries := make([]CatalogEntry, 0, len(products))
	for _, p := range products {
		savings, percent := p.Savings(s.referencePrice)
		entries = append(entries, CatalogEntry{Product: p, Savings: savings, SavingsPercent: percent})
	}
	return entries, nil
}

// GetProduct reads a product from the repository, bypassing the cache
func (s *CatalogService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// GetActiveProduct reads a product that can be sold. Stock comes from the cached
// counter when one exists; reservations and admin edits keep it in step with the repository.
func (s *CatalogService) GetActiveProduct(ctx context.Context, id string) (*models.Product, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, fmt.Errorf("%w: %s", ErrProductUnavailable, id)
	}

	stock, ok, err := s.cache.GetStock(ctx, id)
	switch {
	case err != nil:
		s.logger.Warn("Cached stock read failed", zap.String("product_id", id), zap.Error(err))
	case ok:
		util.CatalogCacheTotal.WithLabelValues("stock_hit").Inc()
		p.Stock = stock
	}
	return p, nil
}

// CreateProduct validates and stores a new product
func (s *CatalogService) CreateProduct(ctx context.Context, p *models.Product) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.CreateProduct")
	defer span.End()

	if err := p.Validate(); err != nil {
		return err
	}
	if err := s.repo.InsertProduct(ctx, p); err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	s.invalidate(ctx, "")
	s.logger.Info("Product created", zap.String("product_id", p.ID), zap.String("name", p.Name))
	return nil
}

// UpdateStock overwrites the stock of a product (admin edit, last writer wins)
func (s *CatalogService) UpdateStock(ctx context.Context, id string, stock int) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.UpdateStock")
	defer span.End()

	if stock < 0 {
		return models.ErrNegativeStock
	}
	if err := s.repo.UpdateStock(ctx, id, stock); err != nil {
		return fmt.Errorf("failed to update stock: %w", err)
	}

	s.invalidate(ctx, id)
	s.logger.Info("Stock updated", zap.String("product_id", id), zap.Int("stock", stock))
	return nil
}

// DeleteProduct removes a product together with its reservations
func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.DeleteProduct")
	defer span.End()

	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	s.invalidate(ctx, id)
	s.logger.Info("Product deleted", zap.String("product_id", id))
	return nil
}

func (s *CatalogService) invalidate(ctx context.Context, productID string) {
	if err := s.cache.InvalidateCatalog(ctx); err != nil {
		s.logger.Warn("Failed to invalidate catalog cache", zap.Error(err))
	}
	if productID == "" {
		return
	}
	if err := s.cache.DropStock(ctx, productID); err != nil {
		s.logger.Warn("Failed to drop cached stock", zap.String("product_id", productID), zap.Error(err))
	}
}
