package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"storefront-service/internal/entity"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// AttemptSaver persists checkout events.
type AttemptSaver interface {
	SaveAttempt(ctx context.Context, event entity.CheckoutEvent) error
}

// Consumer copies checkout events from Kafka into the attempts ledger.
type Consumer struct {
	reader messageReader
	saver  AttemptSaver
}

func NewConsumer(reader *kafka.Reader, saver AttemptSaver) *Consumer {
	return &Consumer{reader: reader, saver: saver}
}

// Start reads until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				log.Info().Msg("Checkout ledger consumer stopped")
				return
			}
			log.Error().Msgf("Error reading message: %v", err)
			continue
		}

		c.processMessage(ctx, msg)
	}
}

// processMessage handles one message keyed "checkout.<kind>.<quoteID>".
func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) {
	var event entity.CheckoutEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		log.Error().Msgf("Error unmarshalling message: %v", err)
		return
	}

	parts := strings.SplitN(string(msg.Key), ".", 3)
	if len(parts) != 3 || parts[0] != "checkout" {
		log.Error().Msgf("Unknown message key: %s", msg.Key)
		return
	}
	if event.Kind == "" {
		event.Kind = parts[1]
	}
	if event.QuoteID == "" {
		event.QuoteID = parts[2]
	}

	if err := c.saver.SaveAttempt(ctx, event); err != nil {
		log.Error().Msgf("Error saving %s event for quote %s: %v", event.Kind, event.QuoteID, err)
	}
}
