package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"energy-store/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

var _ Repository = (*Store)(nil)

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ListProducts retrieves products in creation order
func (s *Store) ListProducts(ctx context.Context, f ProductFilter) ([]models.Product, error) {
	query := "SELECT * FROM products"
	if f.ActiveOnly {
		query += " WHERE is_active"
	}
	query += " ORDER BY created_at ASC"

	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products, query)
	return products, err
}

// checkID rejects ids the uuid column could never hold, so callers see ErrNotFound
// rather than a Postgres syntax error
func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetProduct retrieves a product by ID
func (s *Store) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}

	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// UpdateStock overwrites the stored stock (admin edit, last writer wins)
func (s *Store) UpdateStock(ctx context.Context, id string, stock int) error {
	if stock < 0 {
		return models.ErrNegativeStock
	}
	if err := checkID(id); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE products SET stock = $1, updated_at = NOW() WHERE id = $2",
		stock, id)
	if err != nil {
		return err
	}
	return expectAffected(res, "product "+id)
}

// AdjustStock applies a stock delta in a single statement so concurrent
// writers never lose each other's changes
func (s *Store) AdjustStock(ctx context.Context, id string, delta int) (int, error) {
	if err := checkID(id); err != nil {
		return 0, err
	}

	var stock int
	err := s.db.GetContext(ctx, &stock, `
		UPDATE products SET stock = stock + $1, updated_at = NOW()
		WHERE id = $2 AND stock + $1 >= 0
		RETURNING stock`, delta, id)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := s.db.GetContext(ctx, &exists,
			"SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)", id); err != nil {
			return 0, err
		}
		if !exists {
			return 0, fmt.Errorf("product %s: %w", id, ErrNotFound)
		}
		return 0, fmt.Errorf("product %s, delta %d: %w", id, delta, ErrInsufficientStock)
	}
	if err != nil {
		return 0, err
	}
	return stock, nil
}

// InsertProduct creates a new product
func (s *Store) InsertProduct(ctx context.Context, p *models.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO products (name, description, price, stock, image_url, is_active, is_sugar_free)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		p.Name, p.Description, p.Price, p.Stock, p.ImageURL, p.IsActive, p.IsSugarFree,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// DeleteProduct removes a product
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return err
	}
	return expectAffected(res, "product "+id)
}

func expectAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
