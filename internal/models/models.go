package models

import (
	"errors"
	"math"
	"strings"
	"time"
)

// Product represents a product in the catalog
type Product struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description"`
	Price       int64     `db:"price" json:"price"`
	Stock       int       `db:"stock" json:"stock"`
	ImageURL    *string   `db:"image_url" json:"image_url"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	IsSugarFree bool      `db:"is_sugar_free" json:"is_sugar_free"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Validation errors returned by Product.Validate
var (
	ErrProductNameRequired = errors.New("product name is required")
	ErrNegativePrice       = errors.New("product price must not be negative")
	ErrNegativeStock       = errors.New("product stock must not be negative")
)

// Validate checks the fields every stored product must satisfy
func (p *Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrProductNameRequired
	}
	if p.Price < 0 {
		return ErrNegativePrice
	}
	if p.Stock < 0 {
		return ErrNegativeStock
	}
	return nil
}

// DescriptionText returns the description or an empty string
func (p *Product) DescriptionText() string {
	if p.Description == nil {
		return ""
	}
	return *p.Description
}

// Savings compares the price against a regional reference price.
// Percent is rounded to the nearest integer; both values are zero when there is no discount.
func (p *Product) Savings(referencePrice int64) (savings int64, percent int) {
	if referencePrice <= 0 || p.Price >= referencePrice {
		return 0, 0
	}
	savings = referencePrice - p.Price
	percent = int(math.Round(float64(savings) / float64(referencePrice) * 100))
	if percent == 0 {
		return 0, 0
	}
	return savings, percent
}

// Reservation is a time-bounded hold on one product line of a checkout
type Reservation struct {
	Token         string    `db:"reservation_token" json:"reservation_token"`
	CheckoutToken string    `db:"checkout_token" json:"checkout_token"`
	ProductID     string    `db:"product_id" json:"product_id"`
	Quantity      int       `db:"quantity" json:"quantity"`
	UnitPrice     int64     `db:"unit_price" json:"unit_price"`
	ExpiresAt     time.Time `db:"expires_at" json:"expires_at"`
	Completed     bool      `db:"is_completed" json:"is_completed"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Reservation statuses
const (
	ReservationStatusPending   = "PENDING"
	ReservationStatusExpired   = "EXPIRED"
	ReservationStatusCompleted = "COMPLETED"
)

// Status derives the reservation state at the given instant
func (r *Reservation) Status(now time.Time) string {
	if r.Completed {
		return ReservationStatusCompleted
	}
	if !now.Before(r.ExpiresAt) {
		return ReservationStatusExpired
	}
	return ReservationStatusPending
}

// LineToken builds the per-line reservation token for a checkout
func LineToken(checkoutToken, productID string) string {
	return checkoutToken + "-" + productID
}

// Sale is the append-only record written when a reservation completes
type Sale struct {
	ID               int64     `db:"id" json:"id"`
	ProductID        string    `db:"product_id" json:"product_id"`
	Quantity         int       `db:"quantity" json:"quantity"`
	UnitPrice        int64     `db:"unit_price" json:"unit_price"`
	TotalPrice       int64     `db:"total_price" json:"total_price"`
	CustomerContact  *string   `db:"customer_phone" json:"customer_phone,omitempty"`
	ReservationToken string    `db:"reservation_token" json:"reservation_token"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
