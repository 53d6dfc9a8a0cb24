package service

import (
	"context"
	"fmt"

	"energy-store/internal/cart"
	"energy-store/internal/util"

	"go.uber.org/zap"
)

// CartService applies cart mutations to the cart stored for a session
type CartService struct {
	carts   cart.Store
	catalog *CatalogService
	logger  *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(carts cart.Store, catalog *CatalogService) *CartService {
	return &CartService{
		carts:   carts,
		catalog: catalog,
		logger:  util.GetLogger(),
	}
}

// Get returns the session cart
func (s *CartService) Get(ctx context.Context, sessionID string) (*cart.Cart, error) {
	c, err := s.carts.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return c, nil
}

// AddItem adds quantity units of a product, validated against the product as read now
func (s *CartService) AddItem(ctx context.Context, sessionID, productID string, quantity int) (*cart.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.AddItem")
	defer span.End()

	if quantity <= 0 {
		util.CartOperationsTotal.WithLabelValues("add", "invalid").Inc()
		return nil, cart.ErrInvalidQuantity
	}

	product, err := s.catalog.GetActiveProduct(ctx, productID)
	if err != nil {
		util.CartOperationsTotal.WithLabelValues("add", "error").Inc()
		return nil, err
	}

	return s.mutate(ctx, sessionID, "add", func(c *cart.Cart) error {
		return c.Add(*product, quantity)
	})
}

// UpdateItem sets the quantity of a line; zero or less removes it
func (s *CartService) UpdateItem(ctx context.Context, sessionID, productID string, quantity int) (*cart.Cart, error) {
	return s.mutate(ctx, sessionID, "update", func(c *cart.Cart) error {
		return c.UpdateQuantity(productID, quantity)
	})
}

// RemoveItem drops a line; removing an absent product is not an error
func (s *CartService) RemoveItem(ctx context.Context, sessionID, productID string) (*cart.Cart, error) {
	return s.mutate(ctx, sessionID, "remove", func(c *cart.Cart) error {
		c.Remove(productID)
		return nil
	})
}

// Clear empties the session cart
func (s *CartService) Clear(ctx context.Context, sessionID string) error {
	if err := s.carts.Delete(ctx, sessionID); err != nil {
		util.CartOperationsTotal.WithLabelValues("clear", "error").Inc()
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	util.CartOperationsTotal.WithLabelValues("clear", "ok").Inc()
	return nil
}

func (s *CartService) mutate(ctx context.Context, sessionID, operation string, fn func(*cart.Cart) error) (*cart.Cart, error) {
	c, err := s.Get(ctx, sessionID)
	if err != nil {
		util.CartOperationsTotal.WithLabelValues(operation, "error").Inc()
		return nil, err
	}

	if err := fn(c); err != nil {
		util.CartOperationsTotal.WithLabelValues(operation, "rejected").Inc()
		return nil, err
	}

	if err := s.carts.Save(ctx, sessionID, c); err != nil {
		util.CartOperationsTotal.WithLabelValues(operation, "error").Inc()
		return nil, fmt.Errorf("failed to save cart: %w", err)
	}

	util.CartOperationsTotal.WithLabelValues(operation, "ok").Inc()
	s.logger.Debug("Cart updated",
		zap.String("session", sessionID),
		zap.String("operation", operation),
		zap.Int("item_count", c.ItemCount()))
	return c, nil
}
