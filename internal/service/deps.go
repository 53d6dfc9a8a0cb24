package service

import (
	"context"
	"errors"
	"fmt"

	"energy-store/internal/models"
)

// Errors surfaced by the storefront services
var (
	ErrEmptyCart           = errors.New("cart is empty")
	ErrReservationFailed   = errors.New("reservation failed")
	ErrCompletionFailed    = errors.New("reservation completion failed")
	ErrCancellationFailed  = errors.New("reservation cancellation failed")
	ErrCheckoutFailed      = errors.New("checkout failed")
	ErrCheckoutInProgress  = errors.New("checkout already in progress")
	ErrProductUnavailable  = errors.New("product unavailable")
	ErrReservationNotFound = errors.New("reservation not found")
)

// ReservationError describes where a multi-line reservation stopped.
// Lines before the failing one keep their stock decrement unless Compensated is set.
type ReservationError struct {
	Token       string
	ProductID   string
	Applied     int
	Total       int
	Compensated bool
	Err         error
}

func (e *ReservationError) Error() string {
	return fmt.Sprintf("reservation %s failed at product %s (%d of %d lines applied, compensated=%t): %v",
		e.Token, e.ProductID, e.Applied, e.Total, e.Compensated, e.Err)
}

func (e *ReservationError) Unwrap() []error {
	return []error{ErrReservationFailed, e.Err}
}

// StockCache is the cache surface of redisclient.Client used by the services
type StockCache interface {
	GetCatalog(ctx context.Context, activeOnly bool) ([]models.Product, bool, error)
	SetCatalog(ctx context.Context, activeOnly bool, products []models.Product) error
	InvalidateCatalog(ctx context.Context) error
	GetStock(ctx context.Context, productID string) (int, bool, error)
	AdjustStock(ctx context.Context, productID string, delta int) (int, error)
	DropStock(ctx context.Context, productID string) error
}

// EventPublisher is the publishing surface of broker.EventPublisher used by the services
type EventPublisher interface {
	PublishReservationCreated(ctx context.Context, event *models.ReservationCreatedEvent) error
	PublishReservationCompleted(ctx context.Context, event *models.ReservationCompletedEvent) error
	PublishReservationCancelled(ctx context.Context, event *models.ReservationCancelledEvent) error
}

// NopStockCache is used when no Redis is configured
type NopStockCache struct{}

func (NopStockCache) GetCatalog(ctx context.Context, activeOnly bool) ([]models.Product, bool, error) {
	return nil, false, nil
}

func (NopStockCache) SetCatalog(ctx context.Context, activeOnly bool, products []models.Product) error {
	return nil
}

func (NopStockCache) InvalidateCatalog(ctx context.Context) error { return nil }

func (NopStockCache) GetStock(ctx context.Context, productID string) (int, bool, error) {
	return 0, false, nil
}

func (NopStockCache) AdjustStock(ctx context.Context, productID string, delta int) (int, error) {
	return -1, nil
}

func (NopStockCache) DropStock(ctx context.Context, productID string) error { return nil }

// NopEventPublisher is used when no Kafka is configured
type NopEventPublisher struct{}

func (NopEventPublisher) PublishReservationCreated(ctx context.Context, event *models.ReservationCreatedEvent) error {
	return nil
}

func (NopEventPublisher) PublishReservationCompleted(ctx context.Context, event *models.ReservationCompletedEvent) error {
	return nil
}

func (NopEventPublisher) PublishReservationCancelled(ctx context.Context, event *models.ReservationCancelledEvent) error {
	return nil
}
