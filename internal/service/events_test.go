package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"storefront-service/internal/entity"
)

type recordingWriter struct {
	msgs []kafka.Message
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestKafkaPublisherKeysByKindAndQuote(t *testing.T) {
	w := &recordingWriter{}
	p := &KafkaPublisher{writer: w}

	err := p.Publish(context.Background(), entity.CheckoutEvent{ID: "e1", Kind: entity.EventOrderPaid, QuoteID: "q1", OrderID: "o1"})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "checkout.paid.q1", string(w.msgs[0].Key))

	var got entity.CheckoutEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, "o1", got.OrderID)
}
