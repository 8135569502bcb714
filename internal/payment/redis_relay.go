package payment

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Str("component", "payment").Logger()

// deliverScript closes a session owned by ARGV[1] (any owner when empty) and
// publishes ARGV[2] to its waiter. It returns the number of waiters reached,
// -1 for an unknown session and -2 for a foreign one.
var deliverScript = redis.NewScript(`
local owner = redis.call("get", KEYS[1])
if not owner then
	return -1
end
if ARGV[1] ~= "" and owner ~= "" and owner ~= ARGV[1] then
	return -2
end
redis.call("del", KEYS[1])
return redis.call("publish", KEYS[2], ARGV[2])
`)

// RedisRelay shares payment sessions between replicas: the session key holds
// the owner, and results travel over a per-session pub/sub channel.
type RedisRelay struct {
	rdb *redis.Client
}

func NewRedisRelay(rdb *redis.Client) *RedisRelay {
	return &RedisRelay{rdb: rdb}
}

func sessionKey(gatewayOrderID string) string {
	return "payment-session:" + gatewayOrderID
}

func resultChannel(gatewayOrderID string) string {
	return "payment-result:" + gatewayOrderID
}

func (r *RedisRelay) Register(ctx context.Context, c Checkout, ttl time.Duration) (<-chan Result, func(), error) {
	id := c.Options.OrderID

	// subscribe first so a fast callback cannot publish into the void
	pubsub := r.rdb.Subscribe(ctx, resultChannel(id))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, err
	}

	ok, err := r.rdb.SetNX(ctx, sessionKey(id), c.UserID, ttl).Result()
	if err != nil {
		pubsub.Close()
		return nil, nil, err
	}
	if !ok {
		pubsub.Close()
		return nil, nil, ErrSessionExists
	}

	results := make(chan Result, 1)
	messages := pubsub.Channel()
	go func() {
		for msg := range messages {
			var res Result
			if err := json.Unmarshal([]byte(msg.Payload), &res); err != nil {
				logger.Error().Err(err).Msgf("Invalid payment result for %s", id)
				continue
			}
			results <- res
			return
		}
	}()

	return results, func() { pubsub.Close() }, nil
}

func (r *RedisRelay) Deliver(ctx context.Context, gatewayOrderID, userID string, res Result) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return err
	}
	n, err := deliverScript.Run(ctx, r.rdb,
		[]string{sessionKey(gatewayOrderID), resultChannel(gatewayOrderID)},
		userID, string(payload)).Int64()
	if err != nil {
		return err
	}
	switch {
	case n == -2:
		return ErrNotOwner
	case n <= 0:
		// -1, or the waiting flow is already gone
		return ErrUnknownSession
	}
	return nil
}

func (r *RedisRelay) Forget(ctx context.Context, gatewayOrderID string) {
	if err := r.rdb.Del(ctx, sessionKey(gatewayOrderID)).Err(); err != nil {
		logger.Warn().Err(err).Msgf("Error dropping payment session %s", gatewayOrderID)
	}
}
