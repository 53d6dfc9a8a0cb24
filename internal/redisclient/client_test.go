package redisclient

import (
	"context"
	"os"
	"testing"
	"time"

	"energy-store/internal/cart"
	"energy-store/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestClient connects to TEST_REDIS_ADDR; the tests are skipped without it
func openTestClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	c, err := NewClient(addr, "", 0, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClient_CatalogAndStock(t *testing.T) {
	c := openTestClient(t)
	ctx := context.Background()
	id := uuid.New().String()
	t.Cleanup(func() {
		_ = c.InvalidateCatalog(ctx)
		_ = c.DropStock(ctx, id)
	})

	require.NoError(t, c.SetCatalog(ctx, true, []models.Product{{ID: id, Name: "Monster", Price: 950, Stock: 5}}))

	products, ok, err := c.GetCatalog(ctx, true)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, products, 1)

	stock, err := c.AdjustStock(ctx, id, -3)
	require.NoError(t, err)
	assert.Equal(t, 2, stock)

	// going negative drops the cached value instead of storing it
	stock, err = c.AdjustStock(ctx, id, -3)
	require.NoError(t, err)
	assert.Equal(t, -1, stock)
	_, ok, err = c.GetStock(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.InvalidateCatalog(ctx))
	_, ok, err = c.GetCatalog(ctx, true)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClient_Lock(t *testing.T) {
	c := openTestClient(t)
	ctx := context.Background()
	key := "test-" + uuid.New().String()

	ok, err := c.AcquireLock(ctx, key, "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.AcquireLock(ctx, key, "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// only the owner can release
	require.NoError(t, c.ReleaseLock(ctx, key, "b"))
	ok, err = c.AcquireLock(ctx, key, "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.ReleaseLock(ctx, key, "a"))
	ok, err = c.AcquireLock(ctx, key, "b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, c.ReleaseLock(ctx, key, "b"))
}

func TestCartStore_RoundTrip(t *testing.T) {
	c := openTestClient(t)
	ctx := context.Background()
	s := NewCartStore(c, time.Minute)
	session := uuid.New().String()

	ct := cart.New()
	require.NoError(t, ct.Add(models.Product{ID: "p1", Name: "Monster", Price: 950, Stock: 5}, 2))
	require.NoError(t, s.Save(ctx, session, ct))

	loaded, err := s.Load(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.ItemCount())
	assert.Equal(t, int64(1900), loaded.Total())

	loaded.Clear()
	require.NoError(t, s.Save(ctx, session, loaded))
	loaded, err = s.Load(ctx, session)
	require.NoError(t, err)
	assert.True(t, loaded.IsEmpty())
}
