package store

import (
	"context"
	"fmt"

	"energy-store/internal/models"
)

func strPtr(s string) *string { return &s }

// DefaultProducts is the starter catalog loaded into an empty memory store
func DefaultProducts() []models.Product {
	return []models.Product{
		{
			Name:        "Monster Energy Ultra",
			Description: strPtr("Lata 473ml (sem açúcar)"),
			Price:       950,
			Stock:       50,
			ImageURL:    strPtr("https://images.unsplash.com/photo-1622543925917-763c34d1a86e?w=400"),
			IsActive:    true,
			IsSugarFree: true,
		},
		{
			Name:        "Monster Energy Tradicional",
			Description: strPtr("Lata 473ml"),
			Price:       950,
			Stock:       50,
			ImageURL:    strPtr("https://images.unsplash.com/photo-1551538827-9c037cb4f32a?w=400"),
			IsActive:    true,
		},
		{
			Name:        "Monster Energy Tradicional",
			Description: strPtr("Lata 473ml (sem açúcar)"),
			Price:       950,
			Stock:       50,
			ImageURL:    strPtr("https://images.unsplash.com/photo-1527960471264-932f39eb5846?w=400"),
			IsActive:    true,
			IsSugarFree: true,
		},
	}
}

// Seed inserts products into the repository
func Seed(ctx context.Context, repo Repository, products []models.Product) error {
	for i := range products {
		if err := repo.InsertProduct(ctx, &products[i]); err != nil {
			return fmt.Errorf("failed to seed product %q: %w", products[i].Name, err)
		}
	}
	return nil
}
