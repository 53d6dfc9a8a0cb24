// Package cart holds the per-session shopping cart. A Cart never talks to the
// repository: stock bounds are checked against the product snapshot it was given.
package cart

import (
	"errors"
	"fmt"

	"energy-store/internal/models"
)

// ErrInvalidQuantity is returned when a non-positive quantity is added
var ErrInvalidQuantity = errors.New("invalid quantity")

// InsufficientStockError reports the stock known to the cart when a line would exceed it
type InsufficientStockError struct {
	ProductID string
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %d", e.ProductID, e.Available)
}

// Item is one cart line
type Item struct {
	Product  models.Product `json:"product"`
	Quantity int            `json:"quantity"`
}

// Subtotal returns price times quantity
func (i Item) Subtotal() int64 {
	return i.Product.Price * int64(i.Quantity)
}

// Cart is not safe for concurrent use; each session owns its own cart.
type Cart struct {
	items []Item
}

// New creates a cart, optionally restoring lines
func New(items ...Item) *Cart {
	c := &Cart{}
	c.items = append(c.items, items...)
	return c
}

func (c *Cart) find(productID string) int {
	for i := range c.items {
		if c.items[i].Product.ID == productID {
			return i
		}
	}
	return -1
}

// Add adds quantity units of product, merging with an existing line
func (c *Cart) Add(product models.Product, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	idx := c.find(product.ID)
	total := quantity
	if idx >= 0 {
		total += c.items[idx].Quantity
	}
	if total > product.Stock {
		return &InsufficientStockError{ProductID: product.ID, Available: product.Stock}
	}

	if idx >= 0 {
		c.items[idx] = Item{Product: product, Quantity: total}
		return nil
	}
	c.items = append(c.items, Item{Product: product, Quantity: quantity})
	return nil
}

// Remove drops the line for productID; removing an absent product is a no-op
func (c *Cart) Remove(productID string) {
	idx := c.find(productID)
	if idx < 0 {
		return
	}
	c.items = append(c.items[:idx], c.items[idx+1:]...)
}

// UpdateQuantity sets the quantity of an existing line. quantity <= 0 removes it.
func (c *Cart) UpdateQuantity(productID string, quantity int) error {
	if quantity <= 0 {
		c.Remove(productID)
		return nil
	}

	idx := c.find(productID)
	if idx < 0 {
		return nil
	}
	product := c.items[idx].Product
	if quantity > product.Stock {
		return &InsufficientStockError{ProductID: productID, Available: product.Stock}
	}
	c.items[idx].Quantity = quantity
	return nil
}

// Clear empties the cart
func (c *Cart) Clear() {
	c.items = nil
}

// Items returns a copy of the lines in insertion order
func (c *Cart) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// IsEmpty reports whether the cart has no lines
func (c *Cart) IsEmpty() bool {
	return len(c.items) == 0
}

// Total is the sum of all line subtotals, in centavos
func (c *Cart) Total() int64 {
	var total int64
	for _, item := range c.items {
		total += item.Subtotal()
	}
	return total
}

// ItemCount is the sum of all quantities
func (c *Cart) ItemCount() int {
	count := 0
	for _, item := range c.items {
		count += item.Quantity
	}
	return count
}

// Snapshot is the serializable view of a cart
type Snapshot struct {
	Items     []Item `json:"items"`
	Total     int64  `json:"total"`
	ItemCount int    `json:"item_count"`
}

// Snapshot captures the current lines and derived values
func (c *Cart) Snapshot() Snapshot {
	return Snapshot{
		Items:     c.Items(),
		Total:     c.Total(),
		ItemCount: c.ItemCount(),
	}
}
