package store

import (
	"context"
	"testing"
	"time"

	"energy-store/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProduct(t *testing.T, m *MemoryStore, name string, stock int, active bool) models.Product {
	t.Helper()
	p := models.Product{Name: name, Price: 950, Stock: stock, IsActive: active}
	require.NoError(t, m.InsertProduct(context.Background(), &p))
	return p
}

func TestMemoryStore_ListProducts(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	a := newProduct(t, m, "A", 5, true)
	b := newProduct(t, m, "B", 5, false)
	c := newProduct(t, m, "C", 5, true)

	all, err := m.ListProducts(ctx, ProductFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	active, err := m.ListProducts(ctx, ProductFilter{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, a.ID, active[0].ID)
	assert.Equal(t, c.ID, active[1].ID)
}

func TestMemoryStore_InsertProductValidates(t *testing.T) {
	m := NewMemoryStore()

	err := m.InsertProduct(context.Background(), &models.Product{Name: " ", Price: 1})
	assert.ErrorIs(t, err, models.ErrProductNameRequired)

	err = m.InsertProduct(context.Background(), &models.Product{Name: "X", Price: -1})
	assert.ErrorIs(t, err, models.ErrNegativePrice)
}

func TestMemoryStore_AdjustStock(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	p := newProduct(t, m, "A", 5, true)

	stock, err := m.AdjustStock(ctx, p.ID, -3)
	require.NoError(t, err)
	assert.Equal(t, 2, stock)

	_, err = m.AdjustStock(ctx, p.ID, -3)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	stock, err = m.AdjustStock(ctx, p.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 6, stock)

	_, err = m.AdjustStock(ctx, "missing", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_UpdateAndDeleteProduct(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	p := newProduct(t, m, "A", 5, true)

	require.NoError(t, m.UpdateStock(ctx, p.ID, 12))
	got, err := m.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, got.Stock)

	assert.ErrorIs(t, m.UpdateStock(ctx, p.ID, -1), models.ErrNegativeStock)
	assert.ErrorIs(t, m.UpdateStock(ctx, "missing", 1), ErrNotFound)

	require.NoError(t, m.DeleteProduct(ctx, p.ID))
	_, err = m.GetProduct(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.DeleteProduct(ctx, p.ID), ErrNotFound)
}

func TestMemoryStore_Reservations(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	p := newProduct(t, m, "A", 5, true)
	now := time.Now().UTC()

	rows := []models.Reservation{
		{Token: models.LineToken("old", p.ID), CheckoutToken: "old", ProductID: p.ID, Quantity: 1, ExpiresAt: now.Add(-time.Minute)},
		{Token: models.LineToken("new", p.ID), CheckoutToken: "new", ProductID: p.ID, Quantity: 2, ExpiresAt: now.Add(time.Minute)},
	}
	require.NoError(t, m.InsertReservations(ctx, rows))
	assert.Error(t, m.InsertReservations(ctx, rows[:1]), "duplicate token must be rejected")

	expired, err := m.ListExpiredReservations(ctx, now)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "old", expired[0].CheckoutToken)

	require.NoError(t, m.UpdateReservation(ctx, rows[0].Token, true))
	expired, err = m.ListExpiredReservations(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, expired, "completed rows never expire")

	assert.ErrorIs(t, m.UpdateReservation(ctx, "missing", true), ErrNotFound)

	require.NoError(t, m.DeleteReservation(ctx, rows[1].Token))
	require.NoError(t, m.DeleteReservation(ctx, rows[1].Token))
	left, err := m.ListReservations(ctx, "new")
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestMemoryStore_Sales(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, m.InsertSale(ctx, &models.Sale{ProductID: "p1", Quantity: 2, UnitPrice: 950, TotalPrice: 1900, ReservationToken: "tok-p1"}))
	require.NoError(t, m.InsertSale(ctx, &models.Sale{ProductID: "p1", Quantity: 1, UnitPrice: 950, TotalPrice: 950, ReservationToken: "other-p1"}))

	sales, err := m.ListSales(ctx, "tok")
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, int64(1), sales[0].ID)
	assert.Equal(t, int64(1900), sales[0].TotalPrice)
}

func TestMemoryStore_ProcessedEvents(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	done, err := m.IsEventProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, m.MarkEventProcessed(ctx, "evt-1", models.EventTypeReservationConfirmed))
	require.NoError(t, m.MarkEventProcessed(ctx, "evt-1", models.EventTypeReservationConfirmed))

	done, err = m.IsEventProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestSeed(t *testing.T) {
	m := NewMemoryStore()
	require.NoError(t, Seed(context.Background(), m, DefaultProducts()))

	products, err := m.ListProducts(context.Background(), ProductFilter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, products, 3)
}
