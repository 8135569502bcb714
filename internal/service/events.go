package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"storefront-service/internal/entity"
)

// Publisher receives every settled checkout transition.
type Publisher interface {
	Publish(ctx context.Context, event entity.CheckoutEvent) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher writes checkout events keyed "checkout.<kind>.<quoteID>".
type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(writer *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event entity.CheckoutEvent) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(EventKey(event.Kind, event.QuoteID)),
		Value: eventJSON,
	}
	return p.writer.WriteMessages(ctx, msg)
}

func EventKey(kind, quoteID string) string {
	return fmt.Sprintf("checkout.%s.%s", kind, quoteID)
}
