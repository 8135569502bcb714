package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
	"storefront-service/internal/api"
	"storefront-service/internal/backend"
	"storefront-service/internal/config"
	"storefront-service/internal/consumer"
	"storefront-service/internal/notify"
	"storefront-service/internal/payment"
	"storefront-service/internal/repository"
	"storefront-service/internal/service"
	"storefront-service/internal/sharding"
	"storefront-service/migrations"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

func connectDB(dsn string) (*sql.DB, error) {
	var db *sql.DB
	var err error
	for i := 0; i < 10; i++ {
		db, err = sql.Open("mysql", dsn)
		if err == nil {
			err = db.Ping()
			if err == nil {
				return db, nil
			}
		}
		logger.Warn().Err(err).Msgf("Retry %d: failed to connect to ledger shard", i+1)
		time.Sleep(3 * time.Second)
	}
	return nil, fmt.Errorf("failed to connect to ledger shard after retries: %v", err)
}

// openLedger connects every shard; nil means the ledger is disabled.
func openLedger(dsns []string) (*repository.AttemptRepository, []*sql.DB, error) {
	if len(dsns) == 0 {
		return nil, nil, nil
	}
	dbs := make([]*sql.DB, 0, len(dsns))
	for _, dsn := range dsns {
		db, err := connectDB(dsn)
		if err != nil {
			return nil, dbs, err
		}
		dbs = append(dbs, db)
	}
	if err := migrations.AutoMigrateCheckoutAttempts(3, dbs...); err != nil {
		return nil, dbs, fmt.Errorf("migrate checkout_attempts: %w", err)
	}
	return repository.NewAttemptRepository(dbs, sharding.NewShardRouter(len(dbs))), dbs, nil
}

func main() {
	cfg := config.Load()

	ledger, dbs, err := openLedger(cfg.DBDSNs)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open checkout ledger")
	}
	defer func() {
		for _, db := range dbs {
			db.Close()
		}
	}()

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	defer rdb.Close()

	kafkaWriter := config.NewKafkaWriter(cfg.KafkaBrokers, cfg.CheckoutTopic)
	defer kafkaWriter.Close()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	var attempts service.AttemptReader
	if ledger != nil {
		attempts = ledger
		reader := config.NewKafkaReader(cfg.KafkaBrokers, cfg.CheckoutTopic, cfg.LedgerGroupID)
		defer reader.Close()
		go consumer.NewConsumer(reader, ledger).Start(ctx)
	} else {
		logger.Info().Msg("DB_DSNS not set; checkout ledger disabled")
	}

	hub := notify.NewHub()
	go hub.Run()

	// replicas share notifications and payment sessions through Redis
	fanout := notify.NewFanout(rdb, cfg.NotifyChannel)
	go func() {
		if err := fanout.Run(ctx, hub, nil); err != nil {
			logger.Error().Err(err).Msg("Notification fanout stopped")
		}
	}()

	client := backend.NewClient(cfg.BackendURL, nil)
	dashboards := service.NewDashboardStore(client)
	dashboards.OnChange(func(d service.Dashboard) {
		fanout.Send(d.UserID, notify.TypeDashboard, d)
	})

	bridge := payment.NewBridge(cfg.PaymentSessionTTL, payment.NewRedisRelay(rdb))
	bridge.OnOpen(func(c payment.Checkout) {
		fanout.Send(c.UserID, notify.TypePaymentOpen, c)
	})

	merchant := payment.Merchant{Key: cfg.RazorpayKeyID, Name: cfg.StoreName, ThemeColor: cfg.ThemeColor}
	checkoutService := service.NewCheckoutService(
		client,
		bridge,
		merchant,
		service.NewRedisGuard(rdb, cfg.InFlightTTL),
		dashboards,
		dashboards,
		service.NewKafkaPublisher(kafkaWriter),
	)
	adminService := service.NewAdminService(client, dashboards, attempts)
	handler := api.NewStorefrontHandler(client, checkoutService, adminService, dashboards, bridge, hub)

	e := api.NewRouter(handler, api.RouterConfig{
		JWTSecret: cfg.JWTSecret,
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
	})

	server := &http.Server{
		Addr:              cfg.Port,
		Handler:           api.WithCORS(e, cfg.CORSOrigins),
		ReadTimeout:       7 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}
	server.RegisterOnShutdown(func() {
		hub.Stop()
		stop()
	})

	go func() {
		logger.Info().Msgf("storefront-service listening on %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("ListenAndServe error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("Shutdown signal received; shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
		return
	}
	logger.Info().Msg("Server stopped cleanly")
}
