package store

import (
	"context"
	"time"

	"energy-store/internal/models"
)

// InsertReservations writes all reservation rows of a checkout in one transaction
func (s *Store) InsertReservations(ctx context.Context, rows []models.Reservation) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, r := range rows {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO stock_reservations (reservation_token, checkout_token, product_id, quantity, unit_price, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			r.Token, r.CheckoutToken, r.ProductID, r.Quantity, r.UnitPrice, r.ExpiresAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// UpdateReservation sets the completed flag of a reservation line
func (s *Store) UpdateReservation(ctx context.Context, token string, completed bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE stock_reservations SET is_completed = $1 WHERE reservation_token = $2",
		completed, token)
	if err != nil {
		return err
	}
	return expectAffected(res, "reservation "+token)
}

// DeleteReservation removes a reservation line
func (s *Store) DeleteReservation(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM stock_reservations WHERE reservation_token = $1", token)
	return err
}

// ListReservations retrieves the lines of one checkout
func (s *Store) ListReservations(ctx context.Context, checkoutToken string) ([]models.Reservation, error) {
	rows := []models.Reservation{}
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM stock_reservations WHERE checkout_token = $1 ORDER BY created_at, reservation_token",
		checkoutToken)
	return rows, err
}

// ListExpiredReservations retrieves pending lines whose expiry has passed
func (s *Store) ListExpiredReservations(ctx context.Context, now time.Time) ([]models.Reservation, error) {
	rows := []models.Reservation{}
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM stock_reservations WHERE NOT is_completed AND expires_at <= $1 ORDER BY expires_at",
		now)
	return rows, err
}

// InsertSale appends a sale record
func (s *Store) InsertSale(ctx context.Context, sale *models.Sale) error {
	query := `
		INSERT INTO sales (product_id, quantity, unit_price, total_price, customer_phone, reservation_token)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	return s.db.QueryRowxContext(ctx, query,
		sale.ProductID, sale.Quantity, sale.UnitPrice, sale.TotalPrice, sale.CustomerContact, sale.ReservationToken,
	).Scan(&sale.ID, &sale.CreatedAt)
}

// ListSales retrieves the sales recorded for one checkout
func (s *Store) ListSales(ctx context.Context, checkoutToken string) ([]models.Sale, error) {
	sales := []models.Sale{}
	err := s.db.SelectContext(ctx, &sales,
		"SELECT * FROM sales WHERE reservation_token LIKE $1 || '-%' ORDER BY id",
		checkoutToken)
	return sales, err
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
