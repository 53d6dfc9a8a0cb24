package redisclient

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"energy-store/internal/models"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/adjust_stock.lua
var adjustStockScript string

//go:embed scripts/release_lock.lua
var releaseLockScript string

const catalogKeyPrefix = "catalog:"

type Client struct {
	rdb           *redis.Client
	adjustScript  *redis.Script
	releaseScript *redis.Script
	catalogTTL    time.Duration
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int, catalogTTL time.Duration) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:           rdb,
		adjustScript:  redis.NewScript(adjustStockScript),
		releaseScript: redis.NewScript(releaseLockScript),
		catalogTTL:    catalogTTL,
	}, nil
}

// Ping checks the connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func stockKey(productID string) string {
	return fmt.Sprintf("stock:%s", productID)
}

func catalogKey(activeOnly bool) string {
	if activeOnly {
		return catalogKeyPrefix + "active"
	}
	return catalogKeyPrefix + "all"
}

// GetCatalog returns the cached product listing; ok is false on a cache miss
func (c *Client) GetCatalog(ctx context.Context, activeOnly bool) ([]models.Product, bool, error) {
	raw, err := c.rdb.Get(ctx, catalogKey(activeOnly)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var products []models.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached catalog: %w", err)
	}
	return products, true, nil
}

// SetCatalog caches a product listing and primes the per-product stock keys
func (c *Client) SetCatalog(ctx context.Context, activeOnly bool, products []models.Product) error {
	raw, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}

	pipe := c.rdb.Pipeline()
	pipe.Set(ctx, catalogKey(activeOnly), raw, c.catalogTTL)
	for _, p := range products {
		pipe.Set(ctx, stockKey(p.ID), p.Stock, c.catalogTTL)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// InvalidateCatalog drops every cached product listing
func (c *Client) InvalidateCatalog(ctx context.Context) error {
	return c.rdb.Del(ctx, catalogKey(true), catalogKey(false)).Err()
}

// AdjustStock atomically applies delta to the cached stock of a product.
// Returns -1 when the product has no cached stock.
func (c *Client) AdjustStock(ctx context.Context, productID string, delta int) (int, error) {
	result, err := c.adjustScript.Run(ctx, c.rdb, []string{stockKey(productID)}, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("adjust stock script failed: %w", err)
	}

	stock, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected script result type")
	}
	return int(stock), nil
}

// GetStock retrieves the cached stock for a product; ok is false on a cache miss
func (c *Client) GetStock(ctx context.Context, productID string) (int, bool, error) {
	stock, err := c.rdb.Get(ctx, stockKey(productID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return stock, true, nil
}

// DropStock forgets the cached stock of a product
func (c *Client) DropStock(ctx context.Context, productID string) error {
	return c.rdb.Del(ctx, stockKey(productID)).Err()
}

// SetIdempotencyKey stores an idempotency key with TTL
func (c *Client) SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("idempotency:%s", key), value, ttl).Err()
}

// GetIdempotencyKey returns the stored value; ok is false when the key is unknown
func (c *Client) GetIdempotencyKey(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := c.rdb.Get(ctx, fmt.Sprintf("idempotency:%s", key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

// AcquireLock acquires a distributed lock owned by owner
func (c *Client) AcquireLock(ctx context.Context, lockKey, owner string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), owner, ttl).Result()
}

// ReleaseLock releases a distributed lock if owner still holds it
func (c *Client) ReleaseLock(ctx context.Context, lockKey, owner string) error {
	return c.releaseScript.Run(ctx, c.rdb, []string{fmt.Sprintf("lock:%s", lockKey)}, owner).Err()
}
