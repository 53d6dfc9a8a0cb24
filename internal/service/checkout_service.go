package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"energy-store/internal/cart"
	"energy-store/internal/handoff"
	"energy-store/internal/util"

	"go.uber.org/zap"
)

const handoffTimeout = 10 * time.Second

// CheckoutService turns a session cart into a stock hold and a WhatsApp handoff.
// It only creates the hold; completing or cancelling it is a separate follow-up.
type CheckoutService struct {
	carts        cart.Store
	reservations *ReservationService
	composer     *handoff.Composer
	emitter      handoff.Emitter
	inFlight     sync.Map
	emits        sync.WaitGroup
	logger       *zap.Logger
}

// NewCheckoutService creates a new checkout service. emitter may be nil.
func NewCheckoutService(
	carts cart.Store,
	reservations *ReservationService,
	composer *handoff.Composer,
	emitter handoff.Emitter,
) *CheckoutService {
	if emitter == nil {
		emitter = handoff.LogEmitter{}
	}
	return &CheckoutService{
		carts:        carts,
		reservations: reservations,
		composer:     composer,
		emitter:      emitter,
		logger:       util.GetLogger(),
	}
}

// CheckoutResult is returned to the storefront after a successful checkout
type CheckoutResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Link      string    `json:"link"`
	Message   string    `json:"message"`
	Total     int64     `json:"total"`
	ItemCount int       `json:"item_count"`
}

// Checkout reserves the cart, hands the order off and clears the cart.
// A failed reservation leaves the cart as it was.
func (s *CheckoutService) Checkout(ctx context.Context, sessionID string) (*CheckoutResult, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.Checkout")
	defer span.End()

	if _, busy := s.inFlight.LoadOrStore(sessionID, struct{}{}); busy {
		util.CheckoutsTotal.WithLabelValues("in_progress").Inc()
		return nil, ErrCheckoutInProgress
	}
	defer s.inFlight.Delete(sessionID)

	c, err := s.carts.Load(ctx, sessionID)
	if err != nil {
		util.CheckoutsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: load cart: %w", ErrCheckoutFailed, err)
	}
	if c.IsEmpty() {
		util.CheckoutsTotal.WithLabelValues("empty").Inc()
		return nil, ErrEmptyCart
	}

	items := c.Items()
	reservation, err := s.reservations.Create(ctx, items)
	if err != nil {
		util.CheckoutsTotal.WithLabelValues("failed").Inc()
		s.logger.Error("Checkout failed", zap.String("session", sessionID), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrCheckoutFailed, err)
	}

	msg := s.composer.Message(items)
	link := s.composer.Link(msg)
	s.emit(handoff.Request{
		Token:   reservation.Token,
		Phone:   s.composer.Phone(),
		Message: msg,
		Link:    link,
	})

	result := &CheckoutResult{
		Token:     reservation.Token,
		ExpiresAt: reservation.ExpiresAt,
		Link:      link,
		Message:   msg,
		Total:     c.Total(),
		ItemCount: c.ItemCount(),
	}

	c.Clear()
	if err := s.carts.Delete(ctx, sessionID); err != nil {
		// the hold exists already; a stale cart is the lesser problem
		s.logger.Warn("Failed to clear cart after checkout",
			zap.String("session", sessionID),
			zap.String("token", reservation.Token),
			zap.Error(err))
	}

	util.CheckoutsTotal.WithLabelValues("success").Inc()
	s.logger.Info("Checkout completed",
		zap.String("session", sessionID),
		zap.String("token", reservation.Token),
		zap.Int64("total", result.Total))
	return result, nil
}

// emit sends the handoff without waiting for it
func (s *CheckoutService) emit(req handoff.Request) {
	s.emits.Add(1)
	go func() {
		defer s.emits.Done()

		ctx, cancel := context.WithTimeout(context.Background(), handoffTimeout)
		defer cancel()

		if err := s.emitter.Emit(ctx, req); err != nil {
			s.logger.Error("Failed to emit handoff",
				zap.String("token", req.Token),
				zap.Error(err))
		}
	}()
}

// Wait blocks until in-flight handoffs have been emitted
func (s *CheckoutService) Wait() {
	s.emits.Wait()
}
