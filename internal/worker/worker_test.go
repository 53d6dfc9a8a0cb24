package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"energy-store/internal/cart"
	"energy-store/internal/models"
	"energy-store/internal/service"
	"energy-store/internal/store"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLocker struct {
	mu      sync.Mutex
	holder  string
	fail    error
	release int
}

func (l *fakeLocker) AcquireLock(ctx context.Context, lockKey, owner string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return false, l.fail
	}
	if l.holder != "" && l.holder != owner {
		return false, nil
	}
	l.holder = owner
	return true, nil
}

func (l *fakeLocker) ReleaseLock(ctx context.Context, lockKey, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder == owner {
		l.holder = ""
	}
	l.release++
	return nil
}

func seedReservation(t *testing.T, repo store.Repository, svc *service.ReservationService, stock, qty int) (models.Product, string) {
	t.Helper()
	p := models.Product{Name: "Monster", Price: 950, Stock: stock, IsActive: true}
	require.NoError(t, repo.InsertProduct(context.Background(), &p))

	res, err := svc.Create(context.Background(), []cart.Item{{Product: p, Quantity: qty}})
	require.NoError(t, err)
	return p, res.Token
}

func stockOf(t *testing.T, repo store.Repository, id string) int {
	t.Helper()
	p, err := repo.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func TestExpirySweeper_RunOnce(t *testing.T) {
	repo := store.NewMemoryStore()
	svc := service.NewReservationService(repo, nil, nil, service.ReservationOptions{TTL: time.Minute})
	p, _ := seedReservation(t, repo, svc, 10, 4)
	assert.Equal(t, 6, stockOf(t, repo, p.ID))

	locker := &fakeLocker{}
	sweeper := NewExpirySweeper(svc, locker, time.Minute)

	released, err := sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, released)

	sweeper.now = func() time.Time { return time.Now().UTC().Add(2 * time.Minute) }
	released, err = sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, released)
	assert.Equal(t, 10, stockOf(t, repo, p.ID))
	assert.Equal(t, 2, locker.release)
	assert.Empty(t, locker.holder)
}

func TestExpirySweeper_SkipsWhenLockHeld(t *testing.T) {
	repo := store.NewMemoryStore()
	svc := service.NewReservationService(repo, nil, nil, service.ReservationOptions{TTL: time.Minute})
	p, _ := seedReservation(t, repo, svc, 10, 4)

	locker := &fakeLocker{holder: "other-instance"}
	sweeper := NewExpirySweeper(svc, locker, time.Minute)
	sweeper.now = func() time.Time { return time.Now().UTC().Add(time.Hour) }

	released, err := sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, released)
	assert.Equal(t, 6, stockOf(t, repo, p.ID))

	locker.holder = ""
	locker.fail = errors.New("redis down")
	_, err = sweeper.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestExpirySweeper_StartStopsOnCancel(t *testing.T) {
	repo := store.NewMemoryStore()
	svc := service.NewReservationService(repo, nil, nil, service.ReservationOptions{})
	sweeper := NewExpirySweeper(svc, nil, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sweeper.Start(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func commandMessage(t *testing.T, eventID, eventType, token, contact string) kafka.Message {
	t.Helper()
	raw, err := json.Marshal(models.ReservationCommandEvent{
		BaseEvent:       models.BaseEvent{EventID: eventID, EventType: eventType, Timestamp: time.Now()},
		Token:           token,
		CustomerContact: contact,
	})
	require.NoError(t, err)
	return kafka.Message{Key: []byte("reservation-" + token), Value: raw}
}

func TestConfirmationWorker_Confirm(t *testing.T) {
	repo := store.NewMemoryStore()
	svc := service.NewReservationService(repo, nil, nil, service.ReservationOptions{})
	p, token := seedReservation(t, repo, svc, 10, 3)
	w := NewConfirmationWorker(nil, svc, repo)
	ctx := context.Background()

	msg := commandMessage(t, "evt-1", models.EventTypeReservationConfirmed, token, "5511988887777")
	require.NoError(t, w.Handle(ctx, msg))
	require.NoError(t, w.Handle(ctx, msg))

	sales, err := svc.Sales(ctx, token)
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, int64(2850), sales[0].TotalPrice)
	assert.Equal(t, 7, stockOf(t, repo, p.ID))

	processed, err := repo.IsEventProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestConfirmationWorker_Reject(t *testing.T) {
	repo := store.NewMemoryStore()
	svc := service.NewReservationService(repo, nil, nil, service.ReservationOptions{})
	p, token := seedReservation(t, repo, svc, 10, 3)
	w := NewConfirmationWorker(nil, svc, repo)
	ctx := context.Background()

	require.NoError(t, w.Handle(ctx, commandMessage(t, "evt-2", models.EventTypeReservationRejected, token, "")))
	assert.Equal(t, 10, stockOf(t, repo, p.ID))

	// a second rejection with a new id finds nothing left to cancel
	require.NoError(t, w.Handle(ctx, commandMessage(t, "evt-3", models.EventTypeReservationRejected, token, "")))
	assert.Equal(t, 10, stockOf(t, repo, p.ID))
}

func TestConfirmationWorker_IgnoresOtherEvents(t *testing.T) {
	repo := store.NewMemoryStore()
	svc := service.NewReservationService(repo, nil, nil, service.ReservationOptions{})
	w := NewConfirmationWorker(nil, svc, repo)

	err := w.Handle(context.Background(), commandMessage(t, "evt-4", models.EventTypeReservationCreated, "x", ""))
	require.NoError(t, err)

	err = w.Handle(context.Background(), commandMessage(t, "evt-5", models.EventTypeReservationConfirmed, "", ""))
	assert.Error(t, err)

	err = w.Handle(context.Background(), kafka.Message{Value: []byte("not json")})
	assert.Error(t, err)
}
