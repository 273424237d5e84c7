package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"storefront/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublishKeysEventsByOrder(t *testing.T) {
	writer := &captureWriter{}
	producer := NewProducerWithWriter(writer)
	publisher := NewEventPublisher(producer)

	err := publisher.PublishOrderFinalized(t.Context(), &models.OrderFinalizedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeOrderFinalized),
		OrderID:   7,
		Total:     decimal.RequireFromString("25.00"),
	})
	require.NoError(t, err)
	err = publisher.PublishOrderCancelled(t.Context(), &models.OrderCancelledEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeOrderCancelled),
		OrderID:   7,
		Reason:    "changed mind",
	})
	require.NoError(t, err)

	require.Len(t, writer.msgs, 2)
	for _, msg := range writer.msgs {
		assert.Equal(t, "order-7", string(msg.Key))
	}

	var decoded models.OrderFinalizedEvent
	require.NoError(t, json.Unmarshal(writer.msgs[0].Value, &decoded))
	assert.Equal(t, models.EventTypeOrderFinalized, decoded.EventType)
	assert.True(t, decoded.Total.Equal(decimal.RequireFromString("25")))

	require.NoError(t, producer.Close())
	assert.True(t, writer.closed)
}

func TestPublishWrapsWriterError(t *testing.T) {
	boom := errors.New("broker down")
	publisher := NewEventPublisher(NewProducerWithWriter(&captureWriter{err: boom}))

	err := publisher.PublishOrderStatusChanged(t.Context(), &models.OrderStatusChangedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeOrderStatusChanged),
		OrderID:   1,
		From:      models.OrderStatusPending,
		To:        models.OrderStatusProcessing,
	})
	assert.ErrorIs(t, err, boom)
}

func TestHandleMessageRoutesFinalized(t *testing.T) {
	handler := NewEventHandler()
	var got int64
	handler.OnOrderFinalized(func(_ context.Context, e *models.OrderFinalizedEvent) error {
		got = e.OrderID
		return nil
	})

	value, err := json.Marshal(models.OrderFinalizedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeOrderFinalized),
		OrderID:   42,
	})
	require.NoError(t, err)

	require.NoError(t, handler.HandleMessage(t.Context(), kafka.Message{Value: value}))
	assert.Equal(t, int64(42), got)

	assert.Error(t, handler.HandleMessage(t.Context(), kafka.Message{Value: []byte("{")}))
}
