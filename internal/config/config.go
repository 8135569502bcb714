package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port              string
	BackendURL        string
	JWTSecret         string
	RedisAddr         string
	KafkaBrokers      []string
	CheckoutTopic     string
	NotifyChannel     string
	LedgerGroupID     string
	DBDSNs            []string
	RazorpayKeyID     string
	StoreName         string
	ThemeColor        string
	PaymentSessionTTL time.Duration
	InFlightTTL       time.Duration
	CORSOrigins       []string
	RateLimit         float64
	RateBurst         int
}

// Load reads the configuration from the environment, after loading a .env
// file when one exists.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found; using system environment")
	}

	return Config{
		Port:              getEnv("PORT", ":8084"),
		BackendURL:        getEnv("BACKEND_URL", "http://localhost:5000/api"),
		JWTSecret:         getEnv("JWT_SECRET", "secret"),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers:      getList("KAFKA_BROKERS", "localhost:9092,localhost:9093,localhost:9094"),
		CheckoutTopic:     getEnv("CHECKOUT_TOPIC", "checkout-topic"),
		NotifyChannel:     getEnv("NOTIFY_CHANNEL", "storefront-notify"),
		LedgerGroupID:     getEnv("LEDGER_GROUP_ID", "storefront-ledger"),
		DBDSNs:            getList("DB_DSNS", ""),
		RazorpayKeyID:     getEnv("RAZORPAY_KEY_ID", ""),
		StoreName:         getEnv("STORE_NAME", "Telecom Store"),
		ThemeColor:        getEnv("THEME_COLOR", "#3399cc"),
		PaymentSessionTTL: getDuration("PAYMENT_SESSION_TTL", 30*time.Minute),
		InFlightTTL:       getDuration("INFLIGHT_TTL", 35*time.Minute),
		CORSOrigins:       getList("CORS_ORIGINS", "*"),
		RateLimit:         getFloat("RATE_LIMIT", 5),
		RateBurst:         int(getFloat("RATE_BURST", 10)),
	}
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getDuration accepts positive Go durations ("90s") or plain seconds.
func getDuration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		secs, aerr := strconv.Atoi(raw)
		if aerr != nil {
			log.Warn().Msgf("Invalid duration %q for %s, using %s", raw, key, fallback)
			return fallback
		}
		d = time.Duration(secs) * time.Second
	}
	if d <= 0 {
		log.Warn().Msgf("%s must be positive, using %s", key, fallback)
		return fallback
	}
	return d
}

func getFloat(key string, fallback float64) float64 {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Warn().Msgf("Invalid number %q for %s, using %v", raw, key, fallback)
		return fallback
	}
	return v
}
