package cart

import (
	"context"
	"errors"
	"testing"

	"energy-store/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func product(id string, price int64, stock int) models.Product {
	return models.Product{ID: id, Name: "Product " + id, Price: price, Stock: stock, IsActive: true}
}

func TestCart_AddAndTotals(t *testing.T) {
	c := New()
	require.NoError(t, c.Add(product("a", 950, 10), 2))
	require.NoError(t, c.Add(product("b", 1200, 10), 1))
	require.NoError(t, c.Add(product("a", 950, 10), 1))

	items := c.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].Product.ID)
	assert.Equal(t, 3, items[0].Quantity)

	var want int64
	wantCount := 0
	for _, item := range items {
		want += item.Product.Price * int64(item.Quantity)
		wantCount += item.Quantity
	}
	assert.Equal(t, want, c.Total())
	assert.Equal(t, int64(3*950+1200), c.Total())
	assert.Equal(t, wantCount, c.ItemCount())
	assert.Equal(t, 4, c.ItemCount())
}

func TestCart_AddInvalidQuantity(t *testing.T) {
	c := New()
	require.NoError(t, c.Add(product("a", 950, 10), 1))
	before := c.Items()

	for _, q := range []int{0, -1, -50} {
		err := c.Add(product("a", 950, 10), q)
		assert.ErrorIs(t, err, ErrInvalidQuantity)
		assert.Equal(t, before, c.Items())
	}
}

func TestCart_AddBeyondStock(t *testing.T) {
	a := product("a", 950, 5)
	c := New()
	require.NoError(t, c.Add(a, 3))

	err := c.Add(a, 3)
	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 5, stockErr.Available)
	assert.Equal(t, 3, c.Items()[0].Quantity)

	err = New().Add(a, 6)
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 5, stockErr.Available)
}

func TestCart_UpdateQuantity(t *testing.T) {
	c := New()
	require.NoError(t, c.Add(product("a", 950, 5), 1))

	require.NoError(t, c.UpdateQuantity("a", 5))
	assert.Equal(t, 5, c.Items()[0].Quantity)

	err := c.UpdateQuantity("a", 6)
	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 5, stockErr.Available)
	assert.Equal(t, 5, c.Items()[0].Quantity, "line untouched on violation")

	require.NoError(t, c.UpdateQuantity("missing", 2))
	assert.Len(t, c.Items(), 1)
}

func TestCart_UpdateToZeroEqualsRemove(t *testing.T) {
	build := func() *Cart {
		c := New()
		require.NoError(t, c.Add(product("a", 950, 5), 2))
		require.NoError(t, c.Add(product("b", 500, 5), 1))
		return c
	}

	updated := build()
	require.NoError(t, updated.UpdateQuantity("a", 0))
	removed := build()
	removed.Remove("a")
	assert.Equal(t, removed.Items(), updated.Items())

	negative := build()
	require.NoError(t, negative.UpdateQuantity("a", -3))
	assert.Equal(t, removed.Items(), negative.Items())
}

func TestCart_RemoveIsIdempotent(t *testing.T) {
	once := New(Item{Product: product("a", 950, 5), Quantity: 1}, Item{Product: product("b", 500, 5), Quantity: 2})
	twice := New(once.Items()...)

	once.Remove("a")
	twice.Remove("a")
	twice.Remove("a")
	assert.Equal(t, once.Items(), twice.Items())

	twice.Remove("never-there")
	assert.Equal(t, once.Items(), twice.Items())
}

func TestCart_Clear(t *testing.T) {
	c := New()
	require.NoError(t, c.Add(product("a", 950, 5), 2))
	c.Clear()
	assert.True(t, c.IsEmpty())
	assert.Zero(t, c.Total())
	assert.Zero(t, c.ItemCount())
}

func TestCart_ItemsReturnsCopy(t *testing.T) {
	c := New()
	require.NoError(t, c.Add(product("a", 950, 5), 2))
	items := c.Items()
	items[0].Quantity = 99
	assert.Equal(t, 2, c.Items()[0].Quantity)
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	c, err := s.Load(ctx, "session-1")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())

	require.NoError(t, c.Add(product("a", 950, 5), 2))
	require.NoError(t, s.Save(ctx, "session-1", c))

	loaded, err := s.Load(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, c.Snapshot(), loaded.Snapshot())

	other, err := s.Load(ctx, "session-2")
	require.NoError(t, err)
	assert.True(t, other.IsEmpty())

	require.NoError(t, s.Delete(ctx, "session-1"))
	loaded, err = s.Load(ctx, "session-1")
	require.NoError(t, err)
	assert.True(t, loaded.IsEmpty())
}
