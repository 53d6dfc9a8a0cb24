package store

import (
	"context"
	"errors"
	"time"

	"energy-store/internal/models"
)

var (
	// ErrNotFound is returned when a product or reservation does not exist
	ErrNotFound = errors.New("not found")
	// ErrInsufficientStock is returned when a stock adjustment would go below zero
	ErrInsufficientStock = errors.New("insufficient stock")
)

// ProductFilter narrows product listings
type ProductFilter struct {
	ActiveOnly bool
}

// Repository is the data-access surface used by the storefront services.
// Store (Postgres) and MemoryStore implement it.
type Repository interface {
	ListProducts(ctx context.Context, f ProductFilter) ([]models.Product, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	UpdateStock(ctx context.Context, id string, stock int) error
	// AdjustStock adds delta to the stored stock atomically and returns the new value.
	AdjustStock(ctx context.Context, id string, delta int) (int, error)
	InsertProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id string) error

	InsertReservations(ctx context.Context, rows []models.Reservation) error
	UpdateReservation(ctx context.Context, token string, completed bool) error
	DeleteReservation(ctx context.Context, token string) error
	ListReservations(ctx context.Context, checkoutToken string) ([]models.Reservation, error)
	ListExpiredReservations(ctx context.Context, now time.Time) ([]models.Reservation, error)

	InsertSale(ctx context.Context, sale *models.Sale) error
	ListSales(ctx context.Context, checkoutToken string) ([]models.Sale, error)

	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}
