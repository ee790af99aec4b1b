package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/careslot/careslot/internal/config"
	"github.com/careslot/careslot/internal/db"
	"github.com/careslot/careslot/internal/events"
	"github.com/careslot/careslot/internal/logging"
	"github.com/careslot/careslot/internal/metrics"
	"github.com/careslot/careslot/internal/notify"
	redisclient "github.com/careslot/careslot/internal/redis"
)

// The dispatcher drains the transactional outbox: booking and status-change
// events committed alongside their appointment rows are picked up here and
// fanned out to email, whatsapp and the realtime channels.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("load config")
	}
	logger := logging.New(cfg.Env, cfg.LogLevel).With().Str("service", "dispatcher").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	var realtime redisclient.Publisher
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, realtime events disabled")
	} else {
		defer rdb.Close()
		realtime = redisclient.NewRedisPublisher(rdb)
	}

	email, whatsapp := notify.SendersFromConfig(cfg, logger)
	handler := notify.NewService(email, whatsapp, realtime, logger).
		WithMetrics(metrics.NewBookingMetrics(nil))

	dispatcher := events.NewDispatcher(events.NewPgStore(pool), handler, logger).
		WithBatchSize(int32(cfg.DispatchBatch)).
		WithInterval(cfg.DispatchInterval)

	logger.Info().
		Dur("interval", cfg.DispatchInterval).
		Int("batch", cfg.DispatchBatch).
		Msg("dispatcher started")

	dispatcher.Run(ctx)
	logger.Info().Msg("dispatcher stopping")
}
