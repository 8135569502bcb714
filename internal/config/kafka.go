package config

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// NewKafkaWriter returns an async writer; delivery errors are logged, never
// returned to the caller.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &QuoteBalancer{},
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
		Async:                  true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Error().Err(err).Msgf("Error delivering %d message(s) to %s", len(messages), topic)
			}
		},
	}
}

func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
}

// QuoteBalancer hashes only the quote id of a "checkout.<kind>.<quoteID>" key,
// so every event of one quote lands on the same partition in order.
type QuoteBalancer struct {
	hash kafka.Hash
}

func (b *QuoteBalancer) Balance(msg kafka.Message, partitions ...int) int {
	if parts := strings.SplitN(string(msg.Key), ".", 3); len(parts) == 3 {
		msg.Key = []byte(parts[2])
	}
	return b.hash.Balance(msg, partitions...)
}
