package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/careslot/careslot/internal/config"
	"github.com/careslot/careslot/internal/db"
	"github.com/careslot/careslot/internal/logging"
	"github.com/careslot/careslot/internal/metrics"
	"github.com/careslot/careslot/internal/notify"
	redisclient "github.com/careslot/careslot/internal/redis"
	"github.com/careslot/careslot/internal/schedule"
)

// The reminder worker wakes on an interval, sweeps upcoming appointments and
// sends 24h and 1h reminders. Each send is guarded by a per-appointment flag
// that is set before the attempt, so a crashed send is skipped rather than
// repeated.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("load config")
	}
	logger := logging.New(cfg.Env, cfg.LogLevel).With().Str("service", "reminder-worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()
	repo := schedule.NewPgRepository(pool)

	var realtime redisclient.Publisher
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, realtime events disabled")
	} else {
		defer rdb.Close()
		realtime = redisclient.NewRedisPublisher(rdb)
	}

	email, whatsapp := notify.SendersFromConfig(cfg, logger)
	sender := notify.NewService(email, whatsapp, realtime, logger)

	sweep := schedule.NewReminderSweep(repo, sender, logger).
		WithMetrics(metrics.NewBookingMetrics(nil))

	logger.Info().Dur("interval", cfg.ReminderInterval).Msg("reminder worker started")

	ticker := time.NewTicker(cfg.ReminderInterval)
	defer ticker.Stop()

	runSweep(ctx, sweep, cfg.ReminderInterval, logger)
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("reminder worker stopping")
			return
		case <-ticker.C:
			runSweep(ctx, sweep, cfg.ReminderInterval, logger)
		}
	}
}

func runSweep(ctx context.Context, sweep *schedule.ReminderSweep, timeout time.Duration, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := sweep.Run(runCtx); err != nil {
		logger.Error().Err(err).Msg("reminder sweep failed")
	}
}
