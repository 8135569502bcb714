package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("DB_DSNS", "")

	cfg := Load()
	assert.Equal(t, ":8084", cfg.Port)
	assert.Equal(t, []string{"localhost:9092", "localhost:9093", "localhost:9094"}, cfg.KafkaBrokers)
	assert.Empty(t, cfg.DBDSNs)
	assert.Equal(t, 30*time.Minute, cfg.PaymentSessionTTL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " k1:9092 , ,k2:9092")
	t.Setenv("DB_DSNS", "root:@tcp(db1:3306)/ledger,root:@tcp(db2:3306)/ledger")
	t.Setenv("PAYMENT_SESSION_TTL", "90")
	t.Setenv("INFLIGHT_TTL", "2m")

	cfg := Load()
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Len(t, cfg.DBDSNs, 2)
	assert.Equal(t, 90*time.Second, cfg.PaymentSessionTTL)
	assert.Equal(t, 2*time.Minute, cfg.InFlightTTL)
}

func TestInvalidDurationFallsBack(t *testing.T) {
	t.Setenv("PAYMENT_SESSION_TTL", "soon")
	assert.Equal(t, 30*time.Minute, Load().PaymentSessionTTL)
}

func TestRateLimitSettings(t *testing.T) {
	t.Setenv("RATE_LIMIT", "0.5")
	t.Setenv("RATE_BURST", "abc")

	cfg := Load()
	assert.Equal(t, 0.5, cfg.RateLimit)
	assert.Equal(t, 10, cfg.RateBurst)
}

func TestNonPositiveDurationsFallBack(t *testing.T) {
	t.Setenv("PAYMENT_SESSION_TTL", "0")
	t.Setenv("INFLIGHT_TTL", "-5m")

	cfg := Load()
	assert.Equal(t, 30*time.Minute, cfg.PaymentSessionTTL)
	assert.Equal(t, 35*time.Minute, cfg.InFlightTTL)
}
