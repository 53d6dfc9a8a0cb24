package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"energy-store/internal/broker"
	"energy-store/internal/models"
	"energy-store/internal/service"
	"energy-store/internal/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const sweeperLockKey = "reservation-sweeper"

// Releaser reclaims expired holds
type Releaser interface {
	ReleaseExpired(ctx context.Context, now time.Time) (int, error)
}

// Locker serializes the sweeper across instances
type Locker interface {
	AcquireLock(ctx context.Context, lockKey, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey, owner string) error
}

// ExpirySweeper periodically releases reservations whose hold window has passed
type ExpirySweeper struct {
	releaser Releaser
	locker   Locker
	interval time.Duration
	owner    string
	now      func() time.Time
	logger   *zap.Logger
}

// NewExpirySweeper creates a sweeper. locker may be nil for a single instance.
func NewExpirySweeper(releaser Releaser, locker Locker, interval time.Duration) *ExpirySweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ExpirySweeper{
		releaser: releaser,
		locker:   locker,
		interval: interval,
		owner:    uuid.New().String(),
		now:      func() time.Time { return time.Now().UTC() },
		logger:   util.GetLogger(),
	}
}

// Start runs the sweeper until ctx is cancelled
func (s *ExpirySweeper) Start(ctx context.Context) error {
	s.logger.Info("Starting expiry sweeper", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping expiry sweeper")
			return nil
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.Error("Expiry sweep failed", zap.Error(err))
			}
		}
	}
}

// RunOnce performs a single sweep. Returns zero without sweeping when another instance holds the lock.
func (s *ExpirySweeper) RunOnce(ctx context.Context) (int, error) {
	if s.locker != nil {
		acquired, err := s.locker.AcquireLock(ctx, sweeperLockKey, s.owner, s.interval)
		if err != nil {
			util.SweeperRunsTotal.WithLabelValues("lock_error").Inc()
			return 0, fmt.Errorf("failed to acquire sweeper lock: %w", err)
		}
		if !acquired {
			util.SweeperRunsTotal.WithLabelValues("skipped").Inc()
			return 0, nil
		}
		defer func() {
			if err := s.locker.ReleaseLock(context.Background(), sweeperLockKey, s.owner); err != nil {
				s.logger.Warn("Failed to release sweeper lock", zap.Error(err))
			}
		}()
	}

	released, err := s.releaser.ReleaseExpired(ctx, s.now())
	if err != nil {
		util.SweeperRunsTotal.WithLabelValues("failed").Inc()
		return released, err
	}

	util.SweeperRunsTotal.WithLabelValues("ok").Inc()
	if released > 0 {
		s.logger.Info("Expired reservations swept", zap.Int("released", released))
	}
	return released, nil
}

// Follower completes or cancels a checkout by token
type Follower interface {
	CompleteToken(ctx context.Context, token, customerContact string) error
	CancelToken(ctx context.Context, token string) error
}

// EventLog records consumed command ids
type EventLog interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// ConfirmationWorker applies confirmations and rejections coming back from the order channel
type ConfirmationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	follower     Follower
	events       EventLog
	logger       *zap.Logger
}

// NewConfirmationWorker creates a new confirmation worker. consumer may be nil when messages are fed through Handle.
func NewConfirmationWorker(consumer *broker.Consumer, follower Follower, events EventLog) *ConfirmationWorker {
	w := &ConfirmationWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		follower:     follower,
		events:       events,
		logger:       util.GetLogger(),
	}

	w.eventHandler.OnReservationConfirmed(w.handleConfirmed)
	w.eventHandler.OnReservationRejected(w.handleRejected)
	return w
}

// Start starts the worker
func (w *ConfirmationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting confirmation worker")
	return w.consumer.StartConsuming(ctx, w.Handle)
}

// Stop stops the worker
func (w *ConfirmationWorker) Stop() error {
	w.logger.Info("Stopping confirmation worker")
	if w.consumer == nil {
		return nil
	}
	return w.consumer.Close()
}

// Handle processes one command message
func (w *ConfirmationWorker) Handle(ctx context.Context, msg kafka.Message) error {
	return w.eventHandler.HandleMessage(ctx, msg)
}

func (w *ConfirmationWorker) handleConfirmed(ctx context.Context, event *models.ReservationCommandEvent) error {
	return w.once(ctx, event, func(ctx context.Context) error {
		return w.follower.CompleteToken(ctx, event.Token, event.CustomerContact)
	})
}

func (w *ConfirmationWorker) handleRejected(ctx context.Context, event *models.ReservationCommandEvent) error {
	return w.once(ctx, event, func(ctx context.Context) error {
		return w.follower.CancelToken(ctx, event.Token)
	})
}

// once runs apply unless the event id was already processed
func (w *ConfirmationWorker) once(ctx context.Context, event *models.ReservationCommandEvent, apply func(context.Context) error) error {
	ctx, span := util.StartSpan(ctx, "ConfirmationWorker."+event.EventType)
	defer span.End()

	processed, err := w.events.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event idempotency: %w", err)
	}
	if processed {
		w.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	if err := apply(ctx); err != nil {
		if !errors.Is(err, service.ErrReservationNotFound) {
			return err
		}
		// swept or cancelled before the command arrived
		w.logger.Warn("Reservation no longer exists",
			zap.String("token", event.Token),
			zap.String("type", event.EventType))
	}

	if err := w.events.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		w.logger.Error("Failed to mark event processed", zap.String("event_id", event.EventID), zap.Error(err))
	}
	return nil
}
