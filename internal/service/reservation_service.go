package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"energy-store/internal/cart"
	"energy-store/internal/models"
	"energy-store/internal/store"
	"energy-store/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultReservationTTL is how long checkout holds stock before the sweeper reclaims it
const DefaultReservationTTL = 15 * time.Minute

// ReservationOptions tunes the reservation service
type ReservationOptions struct {
	TTL time.Duration
	// Compensate rolls back already-applied lines when a later line fails.
	// Off by default: a failed create leaves earlier decrements in place.
	Compensate bool
}

// ReservationService places, completes and releases stock holds
type ReservationService struct {
	repo       store.Repository
	cache      StockCache
	events     EventPublisher
	ttl        time.Duration
	compensate bool
	now        func() time.Time
	newToken   func() string
	logger     *zap.Logger
}

// NewReservationService creates a new reservation service. cache and events may be nil.
func NewReservationService(repo store.Repository, cache StockCache, events EventPublisher, opts ReservationOptions) *ReservationService {
	if cache == nil {
		cache = NopStockCache{}
	}
	if events == nil {
		events = NopEventPublisher{}
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultReservationTTL
	}

	return &ReservationService{
		repo:       repo,
		cache:      cache,
		events:     events,
		ttl:        opts.TTL,
		compensate: opts.Compensate,
		now:        func() time.Time { return time.Now().UTC() },
		newToken:   func() string { return uuid.New().String() },
		logger:     util.GetLogger(),
	}
}

// ReservationResult is returned by Create
type ReservationResult struct {
	Token        string               `json:"token"`
	ExpiresAt    time.Time            `json:"expires_at"`
	Reservations []models.Reservation `json:"reservations"`
}

// Create writes one pending reservation per line and decrements live stock line by line.
// The first repository error aborts the remaining lines and drops their rows.
func (s *ReservationService) Create(ctx context.Context, items []cart.Item) (*ReservationResult, error) {
	ctx, span := util.StartSpan(ctx, "ReservationService.Create")
	defer span.End()

	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	start := time.Now()
	defer func() {
		util.ReservationLatency.Observe(time.Since(start).Seconds())
	}()

	token := s.newToken()
	expiresAt := s.now().Add(s.ttl)

	rows := make([]models.Reservation, 0, len(items))
	for _, item := range items {
		rows = append(rows, models.Reservation{
			Token:         models.LineToken(token, item.Product.ID),
			CheckoutToken: token,
			ProductID:     item.Product.ID,
			Quantity:      item.Quantity,
			UnitPrice:     item.Product.Price,
			ExpiresAt:     expiresAt,
		})
	}

	if err := s.repo.InsertReservations(ctx, rows); err != nil {
		util.ReservationsFailedTotal.WithLabelValues("create", "insert_failed").Inc()
		return nil, &ReservationError{Token: token, Total: len(items), Err: err}
	}

	for i, item := range items {
		if _, err := s.repo.AdjustStock(ctx, item.Product.ID, -item.Quantity); err != nil {
			rerr := &ReservationError{
				Token:     token,
				ProductID: item.Product.ID,
				Applied:   i,
				Total:     len(items),
				Err:       err,
			}
			util.ReservationsFailedTotal.WithLabelValues("create", failureReason(err)).Inc()

			if s.compensate {
				rerr.Compensated = s.rollback(ctx, rows, items[:i])
			} else {
				// rows from i on never took stock; leaving them would let a release add it back
				s.discard(ctx, rows[i:])
				s.refreshCache(ctx, linesOf(items[:i]), -1)
			}

			s.logger.Error("Reservation aborted",
				zap.String("token", token),
				zap.String("product_id", item.Product.ID),
				zap.Int("applied", i),
				zap.Int("total", len(items)),
				zap.Bool("compensated", rerr.Compensated),
				zap.Error(err))
			return nil, rerr
		}
	}

	s.refreshCache(ctx, linesOf(items), -1)

	util.ReservationsCreatedTotal.Inc()
	for _, item := range items {
		util.ReservedUnitsTotal.Add(float64(item.Quantity))
	}
	s.logger.Info("Reservation created",
		zap.String("token", token),
		zap.Int("lines", len(items)),
		zap.Time("expires_at", expiresAt))

	event := &models.ReservationCreatedEvent{
		BaseEvent: newBaseEvent(models.EventTypeReservationCreated),
		Token:     token,
		ExpiresAt: expiresAt,
		Total:     cart.New(items...).Total(),
		Lines:     lineData(items),
	}
	if err := s.events.PublishReservationCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish ReservationCreated event", zap.Error(err))
	}

	return &ReservationResult{Token: token, ExpiresAt: expiresAt, Reservations: rows}, nil
}

// rollback restores the decrements of applied lines and deletes every inserted row.
// Reports whether the rollback fully succeeded.
func (s *ReservationService) rollback(ctx context.Context, rows []models.Reservation, applied []cart.Item) bool {
	ok := true
	for _, item := range applied {
		if _, err := s.repo.AdjustStock(ctx, item.Product.ID, item.Quantity); err != nil {
			ok = false
			s.logger.Error("Failed to compensate stock decrement",
				zap.String("product_id", item.Product.ID),
				zap.Error(err))
		}
	}
	return s.discard(ctx, rows) && ok
}

// discard deletes reservation rows without touching stock
func (s *ReservationService) discard(ctx context.Context, rows []models.Reservation) bool {
	ok := true
	for _, row := range rows {
		if err := s.repo.DeleteReservation(ctx, row.Token); err != nil {
			ok = false
			s.logger.Error("Failed to delete reservation row",
				zap.String("reservation_token", row.Token),
				zap.Error(err))
		}
	}
	return ok
}

// Complete marks every line completed and records one sale per line.
// Prices come from the items, not from the current catalog.
func (s *ReservationService) Complete(ctx context.Context, token string, items []cart.Item, customerContact string) error {
	ctx, span := util.StartSpan(ctx, "ReservationService.Complete")
	defer span.End()

	rows, err := s.rowsByLine(ctx, token)
	if err != nil {
		util.ReservationsFailedTotal.WithLabelValues("complete", "repository_error").Inc()
		return fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	}

	sold, err := s.soldLines(ctx, token)
	if err != nil {
		util.ReservationsFailedTotal.WithLabelValues("complete", "repository_error").Inc()
		return fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	}

	var contact *string
	if customerContact != "" {
		contact = &customerContact
	}

	// the sale goes in before the row is flagged, so a retry after any failure
	// finishes the line without recording it twice
	for _, item := range items {
		lineToken := models.LineToken(token, item.Product.ID)
		row, found := rows[lineToken]
		if !found {
			util.ReservationsFailedTotal.WithLabelValues("complete", "not_found").Inc()
			return fmt.Errorf("%w: line %s: %w", ErrCompletionFailed, lineToken, store.ErrNotFound)
		}

		if !sold[lineToken] {
			sale := &models.Sale{
				ProductID:        item.Product.ID,
				Quantity:         item.Quantity,
				UnitPrice:        item.Product.Price,
				TotalPrice:       item.Subtotal(),
				CustomerContact:  contact,
				ReservationToken: lineToken,
			}
			if err := s.repo.InsertSale(ctx, sale); err != nil {
				util.ReservationsFailedTotal.WithLabelValues("complete", "sale_failed").Inc()
				return fmt.Errorf("%w: sale for line %s: %w", ErrCompletionFailed, lineToken, err)
			}
			util.SalesRecordedTotal.Inc()
		}

		if row.Completed {
			continue
		}
		if err := s.repo.UpdateReservation(ctx, lineToken, true); err != nil {
			util.ReservationsFailedTotal.WithLabelValues("complete", failureReason(err)).Inc()
			return fmt.Errorf("%w: line %s: %w", ErrCompletionFailed, lineToken, err)
		}
	}

	util.ReservationsCompletedTotal.Inc()
	s.logger.Info("Reservation completed", zap.String("token", token), zap.Int("lines", len(items)))

	event := &models.ReservationCompletedEvent{
		BaseEvent:       newBaseEvent(models.EventTypeReservationCompleted),
		Token:           token,
		CustomerContact: customerContact,
		Total:           cart.New(items...).Total(),
		Lines:           lineData(items),
	}
	if err := s.events.PublishReservationCompleted(ctx, event); err != nil {
		s.logger.Error("Failed to publish ReservationCompleted event", zap.Error(err))
	}
	return nil
}

// Cancel restores the held stock of every pending line and deletes the rows.
// Lines that are already gone or completed are skipped, so repeating a cancel never restores twice.
func (s *ReservationService) Cancel(ctx context.Context, token string, items []cart.Item) error {
	ctx, span := util.StartSpan(ctx, "ReservationService.Cancel")
	defer span.End()

	rows, err := s.rowsByLine(ctx, token)
	if err != nil {
		util.ReservationsFailedTotal.WithLabelValues("cancel", "repository_error").Inc()
		return fmt.Errorf("%w: %w", ErrCancellationFailed, err)
	}

	released := make([]lineDelta, 0, len(items))
	for _, item := range items {
		lineToken := models.LineToken(token, item.Product.ID)
		row, found := rows[lineToken]
		if !found || row.Completed {
			continue
		}

		if err := s.releaseLine(ctx, row); err != nil {
			util.ReservationsFailedTotal.WithLabelValues("cancel", failureReason(err)).Inc()
			s.refreshCache(ctx, released, 1)
			return fmt.Errorf("%w: line %s: %w", ErrCancellationFailed, lineToken, err)
		}
		released = append(released, lineDelta{productID: row.ProductID, quantity: row.Quantity})
		util.ReservationsCancelledTotal.WithLabelValues("cancelled").Inc()
	}

	s.refreshCache(ctx, released, 1)
	s.logger.Info("Reservation cancelled", zap.String("token", token), zap.Int("released_lines", len(released)))

	event := &models.ReservationCancelledEvent{
		BaseEvent: newBaseEvent(models.EventTypeReservationCancelled),
		Token:     token,
		Lines:     lineData(items),
	}
	if err := s.events.PublishReservationCancelled(ctx, event); err != nil {
		s.logger.Error("Failed to publish ReservationCancelled event", zap.Error(err))
	}
	return nil
}

// releaseLine adds the held quantity back to live stock, then deletes the row.
// A product deleted in the meantime has no stock to restore.
func (s *ReservationService) releaseLine(ctx context.Context, row models.Reservation) error {
	if _, err := s.repo.AdjustStock(ctx, row.ProductID, row.Quantity); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return s.repo.DeleteReservation(ctx, row.Token)
}

// ReleaseExpired reclaims pending lines whose expiry is at or before now, using the same
// restore-and-delete step as Cancel. Returns the number of lines released.
func (s *ReservationService) ReleaseExpired(ctx context.Context, now time.Time) (int, error) {
	ctx, span := util.StartSpan(ctx, "ReservationService.ReleaseExpired")
	defer span.End()

	rows, err := s.repo.ListExpiredReservations(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCancellationFailed, err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	var errs []error
	released := make([]lineDelta, 0, len(rows))
	byToken := make(map[string][]models.ReservationLineData)
	var tokens []string

	for _, row := range rows {
		if err := s.releaseLine(ctx, row); err != nil {
			util.ReservationsFailedTotal.WithLabelValues("expire", failureReason(err)).Inc()
			errs = append(errs, fmt.Errorf("line %s: %w", row.Token, err))
			continue
		}
		released = append(released, lineDelta{productID: row.ProductID, quantity: row.Quantity})
		util.ReservationsCancelledTotal.WithLabelValues("expired").Inc()

		if _, seen := byToken[row.CheckoutToken]; !seen {
			tokens = append(tokens, row.CheckoutToken)
		}
		byToken[row.CheckoutToken] = append(byToken[row.CheckoutToken], models.ReservationLineData{
			ProductID: row.ProductID,
			Quantity:  row.Quantity,
			UnitPrice: row.UnitPrice,
		})
	}

	s.refreshCache(ctx, released, 1)

	for _, token := range tokens {
		event := &models.ReservationCancelledEvent{
			BaseEvent: newBaseEvent(models.EventTypeReservationExpired),
			Token:     token,
			Lines:     byToken[token],
		}
		if err := s.events.PublishReservationCancelled(ctx, event); err != nil {
			s.logger.Error("Failed to publish ReservationExpired event", zap.Error(err))
		}
	}

	s.logger.Info("Expired reservations released",
		zap.Int("released", len(released)),
		zap.Int("failed", len(errs)))

	if len(errs) > 0 {
		return len(released), fmt.Errorf("%w: %w", ErrCancellationFailed, errors.Join(errs...))
	}
	return len(released), nil
}

// List returns the reservation lines of a checkout
func (s *ReservationService) List(ctx context.Context, token string) ([]models.Reservation, error) {
	rows, err := s.repo.ListReservations(ctx, token)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrReservationNotFound, token)
	}
	return rows, nil
}

// Sales returns the sales recorded for a checkout
func (s *ReservationService) Sales(ctx context.Context, token string) ([]models.Sale, error) {
	return s.repo.ListSales(ctx, token)
}

// ItemsFor rebuilds cart lines from the stored rows of a checkout, with the
// prices captured at reservation time. Used by follow-ups that have no cart.
func (s *ReservationService) ItemsFor(ctx context.Context, token string) ([]cart.Item, error) {
	rows, err := s.List(ctx, token)
	if err != nil {
		return nil, err
	}

	items := make([]cart.Item, 0, len(rows))
	for _, row := range rows {
		product := models.Product{ID: row.ProductID, Price: row.UnitPrice}
		if p, err := s.repo.GetProduct(ctx, row.ProductID); err == nil {
			product.Name = p.Name
			product.Description = p.Description
		}
		items = append(items, cart.Item{Product: product, Quantity: row.Quantity})
	}
	return items, nil
}

// CompleteToken completes a checkout using its stored lines
func (s *ReservationService) CompleteToken(ctx context.Context, token, customerContact string) error {
	items, err := s.ItemsFor(ctx, token)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	}
	return s.Complete(ctx, token, items, customerContact)
}

// CancelToken cancels a checkout using its stored lines
func (s *ReservationService) CancelToken(ctx context.Context, token string) error {
	items, err := s.ItemsFor(ctx, token)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCancellationFailed, err)
	}
	return s.Cancel(ctx, token, items)
}

func (s *ReservationService) rowsByLine(ctx context.Context, token string) (map[string]models.Reservation, error) {
	rows, err := s.repo.ListReservations(ctx, token)
	if err != nil {
		return nil, err
	}
	byLine := make(map[string]models.Reservation, len(rows))
	for _, row := range rows {
		byLine[row.Token] = row
	}
	return byLine, nil
}

// soldLines returns the line tokens of a checkout that already have a sale
func (s *ReservationService) soldLines(ctx context.Context, token string) (map[string]bool, error) {
	sales, err := s.repo.ListSales(ctx, token)
	if err != nil {
		return nil, err
	}
	sold := make(map[string]bool, len(sales))
	for _, sale := range sales {
		sold[sale.ReservationToken] = true
	}
	return sold, nil
}

type lineDelta struct {
	productID string
	quantity  int
}

func linesOf(items []cart.Item) []lineDelta {
	out := make([]lineDelta, 0, len(items))
	for _, item := range items {
		out = append(out, lineDelta{productID: item.Product.ID, quantity: item.Quantity})
	}
	return out
}

// refreshCache drops cached listings and moves cached stock by sign*quantity.
// Cache errors are logged only; the repository stays the source of truth.
func (s *ReservationService) refreshCache(ctx context.Context, lines []lineDelta, sign int) {
	if len(lines) == 0 {
		return
	}
	if err := s.cache.InvalidateCatalog(ctx); err != nil {
		s.logger.Warn("Failed to invalidate catalog cache", zap.Error(err))
	}
	for _, line := range lines {
		if _, err := s.cache.AdjustStock(ctx, line.productID, sign*line.quantity); err != nil {
			s.logger.Warn("Failed to adjust cached stock",
				zap.String("product_id", line.productID),
				zap.Error(err))
			_ = s.cache.DropStock(ctx, line.productID)
		}
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, store.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	default:
		return "repository_error"
	}
}

func lineData(items []cart.Item) []models.ReservationLineData {
	out := make([]models.ReservationLineData, 0, len(items))
	for _, item := range items {
		out = append(out, models.ReservationLineData{
			ProductID: item.Product.ID,
			Quantity:  item.Quantity,
			UnitPrice: item.Product.Price,
		})
	}
	return out
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}
