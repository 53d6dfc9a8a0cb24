package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"energy-store/internal/models"

	"github.com/google/uuid"
)

// MemoryStore keeps everything in process memory. Used for local runs
// (STORE_DRIVER=memory) and as the repository in tests.
type MemoryStore struct {
	mu           sync.RWMutex
	order        []string
	products     map[string]models.Product
	reservations map[string]models.Reservation
	sales        []models.Sale
	nextSaleID   int64
	processed    map[string]string
	now          func() time.Time
}

var _ Repository = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products:     make(map[string]models.Product),
		reservations: make(map[string]models.Reservation),
		processed:    make(map[string]string),
		nextSaleID:   1,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) ListProducts(ctx context.Context, f ProductFilter) ([]models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Product, 0, len(m.order))
	for _, id := range m.order {
		p := m.products[id]
		if f.ActiveOnly && !p.IsActive {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *MemoryStore) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.products[id]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	cp := p
	return &cp, nil
}

func (m *MemoryStore) UpdateStock(ctx context.Context, id string, stock int) error {
	if stock < 0 {
		return models.ErrNegativeStock
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[id]
	if !ok {
		return fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	p.Stock = stock
	p.UpdatedAt = m.now()
	m.products[id] = p
	return nil
}

func (m *MemoryStore) AdjustStock(ctx context.Context, id string, delta int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[id]
	if !ok {
		return 0, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	if p.Stock+delta < 0 {
		return 0, fmt.Errorf("product %s, delta %d: %w", id, delta, ErrInsufficientStock)
	}
	p.Stock += delta
	p.UpdatedAt = m.now()
	m.products[id] = p
	return p.Stock, nil
}

func (m *MemoryStore) InsertProduct(ctx context.Context, p *models.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if _, exists := m.products[p.ID]; exists {
		return fmt.Errorf("product %s already exists", p.ID)
	}
	p.CreatedAt = m.now()
	p.UpdatedAt = p.CreatedAt
	m.products[p.ID] = *p
	m.order = append(m.order, p.ID)
	return nil
}

func (m *MemoryStore) DeleteProduct(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[id]; !ok {
		return fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	delete(m.products, id)
	for i, pid := range m.order {
		if pid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	// mirrors ON DELETE CASCADE
	for token, r := range m.reservations {
		if r.ProductID == id {
			delete(m.reservations, token)
		}
	}
	return nil
}

func (m *MemoryStore) InsertReservations(ctx context.Context, rows []models.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range rows {
		if _, exists := m.reservations[r.Token]; exists {
			return fmt.Errorf("reservation %s already exists", r.Token)
		}
		if _, ok := m.products[r.ProductID]; !ok {
			return fmt.Errorf("reservation %s references product %s: %w", r.Token, r.ProductID, ErrNotFound)
		}
	}
	now := m.now()
	for _, r := range rows {
		r.CreatedAt = now
		m.reservations[r.Token] = r
	}
	return nil
}

func (m *MemoryStore) UpdateReservation(ctx context.Context, token string, completed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reservations[token]
	if !ok {
		return fmt.Errorf("reservation %s: %w", token, ErrNotFound)
	}
	r.Completed = completed
	m.reservations[token] = r
	return nil
}

func (m *MemoryStore) DeleteReservation(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.reservations, token)
	return nil
}

func (m *MemoryStore) ListReservations(ctx context.Context, checkoutToken string) ([]models.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Reservation, 0)
	for _, r := range m.reservations {
		if r.CheckoutToken == checkoutToken {
			out = append(out, r)
		}
	}
	sortReservations(out)
	return out, nil
}

func (m *MemoryStore) ListExpiredReservations(ctx context.Context, now time.Time) ([]models.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Reservation, 0)
	for _, r := range m.reservations {
		if !r.Completed && !r.ExpiresAt.After(now) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ExpiresAt.Equal(out[j].ExpiresAt) {
			return out[i].Token < out[j].Token
		}
		return out[i].ExpiresAt.Before(out[j].ExpiresAt)
	})
	return out, nil
}

func (m *MemoryStore) InsertSale(ctx context.Context, sale *models.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sale.ID = m.nextSaleID
	m.nextSaleID++
	sale.CreatedAt = m.now()
	m.sales = append(m.sales, *sale)
	return nil
}

func (m *MemoryStore) ListSales(ctx context.Context, checkoutToken string) ([]models.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Sale, 0)
	for _, s := range m.sales {
		if strings.HasPrefix(s.ReservationToken, checkoutToken+"-") {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MemoryStore) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.processed[eventID]
	return ok, nil
}

func (m *MemoryStore) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.processed[eventID]; !ok {
		m.processed[eventID] = eventType
	}
	return nil
}

func sortReservations(rows []models.Reservation) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].Token < rows[j].Token
		}
		return rows[i].CreatedAt.Before(rows[j].CreatedAt)
	})
}
