package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func testConsumer() *Consumer {
	return &Consumer{attempts: 3, backoff: time.Millisecond, logger: zap.NewNop()}
}

func TestConsumer_HandleRetriesUntilSuccess(t *testing.T) {
	c := testConsumer()
	calls := 0
	err := c.handle(context.Background(), func(ctx context.Context, msg kafka.Message) error {
		calls++
		if calls < 3 {
			return errors.New("database busy")
		}
		return nil
	}, kafka.Message{Offset: 7})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestConsumer_HandleGivesUp(t *testing.T) {
	c := testConsumer()
	calls := 0
	err := c.handle(context.Background(), func(ctx context.Context, msg kafka.Message) error {
		calls++
		return errors.New("database down")
	}, kafka.Message{})

	assert.EqualError(t, err, "database down")
	assert.Equal(t, 3, calls)
}

func TestConsumer_HandleStopsOnCancel(t *testing.T) {
	c := testConsumer()
	c.backoff = time.Hour
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := c.handle(ctx, func(ctx context.Context, msg kafka.Message) error {
		calls++
		cancel()
		return errors.New("database down")
	}, kafka.Message{})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
