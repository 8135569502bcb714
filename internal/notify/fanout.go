package notify

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
)

type envelope struct {
	UserID  string          `json:"user_id"`
	Payload json.RawMessage `json:"payload"`
}

// Fanout relays notifications through Redis so a user's sockets receive them
// whichever replica they are connected to.
type Fanout struct {
	rdb     *redis.Client
	channel string
}

func NewFanout(rdb *redis.Client, channel string) *Fanout {
	return &Fanout{rdb: rdb, channel: channel}
}

// Send publishes a message for userID to every replica.
func (f *Fanout) Send(userID, typ string, data interface{}) {
	payload, err := encode(typ, data)
	if err != nil {
		logger.Error().Err(err).Msg("Error encoding notification")
		return
	}
	msg, err := json.Marshal(envelope{UserID: userID, Payload: payload})
	if err != nil {
		logger.Error().Err(err).Msg("Error encoding notification envelope")
		return
	}
	if err := f.rdb.Publish(context.Background(), f.channel, msg).Err(); err != nil {
		logger.Error().Err(err).Msgf("Error publishing notification for user %s", userID)
	}
}

// Run delivers published messages to hub until ctx is cancelled. ready, when
// not nil, is closed once the subscription is live.
func (f *Fanout) Run(ctx context.Context, hub *Hub, ready chan<- struct{}) error {
	pubsub := f.rdb.Subscribe(ctx, f.channel)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	if ready != nil {
		close(ready)
	}

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-messages:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
				logger.Warn().Err(err).Msg("Invalid notification envelope")
				continue
			}
			hub.deliver(env.UserID, env.Payload)
		}
	}
}
