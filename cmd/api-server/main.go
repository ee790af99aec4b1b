package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/careslot/careslot/internal/api"
	"github.com/careslot/careslot/internal/config"
	"github.com/careslot/careslot/internal/db"
	"github.com/careslot/careslot/internal/events"
	"github.com/careslot/careslot/internal/logging"
	"github.com/careslot/careslot/internal/metrics"
	"github.com/careslot/careslot/internal/notify"
	redisclient "github.com/careslot/careslot/internal/redis"
	"github.com/careslot/careslot/internal/schedule"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("load config")
	}
	logger := logging.New(cfg.Env, cfg.LogLevel).With().Str("service", "api-server").Logger()

	if cfg.JWTSecret == "" {
		logger.Fatal().Msg("JWT_SECRET is required, provider dashboard tokens would be forgeable without it")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		repo      schedule.Repository
		pool      *pgxpool.Pool
		memOutbox *events.MemoryStore
	)
	switch cfg.StorageDriver {
	case "postgres":
		pool, err = db.ConnectPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect postgres")
		}
		defer pool.Close()
		repo = schedule.NewPgRepository(pool)
	case "memory":
		memOutbox = events.NewMemoryStore()
		mem := schedule.NewMemoryRepository(memOutbox)
		seedMemoryFixtures(mem, logger)
		repo = mem
	}

	var (
		rdb    *goredis.Client
		locker redisclient.Locker
	)
	rdb, err = redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		// The partial unique index is the final arbiter of slot conflicts,
		// so the API can run without the Redis fast path.
		logger.Warn().Err(err).Msg("redis unavailable, slot locking disabled")
		rdb = nil
	} else {
		defer rdb.Close()
		locker = redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
	}

	bookingMetrics := metrics.NewBookingMetrics(nil)
	svc := schedule.NewService(repo, locker, cfg, logger).WithMetrics(bookingMetrics)

	// The memory driver has no external dispatcher process, so its outbox is
	// drained in-process. Without this, fixture-mode bookings would queue
	// events forever and never notify anyone.
	if memOutbox != nil {
		email, whatsapp := notify.SendersFromConfig(cfg, logger)
		var realtime redisclient.Publisher
		if rdb != nil {
			realtime = redisclient.NewRedisPublisher(rdb)
		}
		handler := notify.NewService(email, whatsapp, realtime, logger).WithMetrics(bookingMetrics)
		go events.NewDispatcher(memOutbox, handler, logger).
			WithInterval(cfg.DispatchInterval).
			Run(ctx)
		logger.Info().Msg("in-process outbox dispatcher started")
	}

	router := api.NewRouter(api.RouterDeps{
		Config:  cfg,
		Logger:  logger,
		Service: svc,
		Pool:    pool,
		Redis:   rdb,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Str("storage", cfg.StorageDriver).Msg("api server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
