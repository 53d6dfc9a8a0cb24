package store

import (
	"context"
	"os"
	"testing"
	"time"

	"energy-store/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Integration test - requires database (set TEST_DATABASE_URL)")
	}

	store, err := NewStore(url)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_AdjustStock(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	p := &models.Product{Name: "Integration", Price: 950, Stock: 3, IsActive: true}
	require.NoError(t, store.InsertProduct(ctx, p))
	defer store.DeleteProduct(ctx, p.ID)

	stock, err := store.AdjustStock(ctx, p.ID, -2)
	require.NoError(t, err)
	assert.Equal(t, 1, stock)

	_, err = store.AdjustStock(ctx, p.ID, -2)
	assert.ErrorIs(t, err, ErrInsufficientStock)
}

func TestStore_ReservationLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	p := &models.Product{Name: "Integration", Price: 950, Stock: 3, IsActive: true}
	require.NoError(t, store.InsertProduct(ctx, p))
	defer store.DeleteProduct(ctx, p.ID)

	token := "it-" + time.Now().Format("150405.000000")
	row := models.Reservation{
		Token:         models.LineToken(token, p.ID),
		CheckoutToken: token,
		ProductID:     p.ID,
		Quantity:      1,
		ExpiresAt:     time.Now().Add(-time.Second),
	}
	require.NoError(t, store.InsertReservations(ctx, []models.Reservation{row}))

	expired, err := store.ListExpiredReservations(ctx, time.Now())
	require.NoError(t, err)
	assert.NotEmpty(t, expired)

	require.NoError(t, store.UpdateReservation(ctx, row.Token, true))
	require.NoError(t, store.DeleteReservation(ctx, row.Token))
	assert.ErrorIs(t, store.UpdateReservation(ctx, row.Token, true), ErrNotFound)
}
