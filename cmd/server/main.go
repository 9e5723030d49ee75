package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cubomagico/memoria/internal/api"
	"github.com/cubomagico/memoria/internal/buildconfig"
	"github.com/cubomagico/memoria/internal/config"
	"github.com/cubomagico/memoria/internal/ingest"
	"github.com/cubomagico/memoria/internal/lock"
	"github.com/cubomagico/memoria/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := config.Load(); err != nil {
		panic(err)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(config.LogLevel())
	logger, err := zcfg.Build()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.String("version", buildconfig.Version()))

	dbURL := config.DatabaseURL()
	if dbURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal("failed to ping database", zap.Error(err))
	}
	logger.Info("connected to database")

	if config.MigrateOnStart() {
		if err := store.Migrate(ctx, pool); err != nil {
			logger.Fatal("failed to apply migrations", zap.Error(err))
		}
	}

	locker, closeRedis := contactLocker(ctx, logger)
	defer closeRedis()

	app, err := api.NewApp(pool, locker, logger)
	if err != nil {
		logger.Fatal("failed to build app", zap.Error(err))
	}

	consumer, closeNATS := signalConsumer(ctx, app, logger)
	defer closeNATS()

	addr := config.ServerAddr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	if consumer != nil {
		if err := consumer.Stop(); err != nil {
			logger.Warn("failed to drain signal consumer", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// contactLocker returns a Redis-backed locker when REDIS_ADDR is set, so
// replicas serialize the same contact, and an in-process one otherwise.
func contactLocker(ctx context.Context, logger *zap.Logger) (lock.ContactLocker, func()) {
	addr := config.RedisAddr()
	if addr == "" {
		logger.Info("REDIS_ADDR not set, using in-process contact locks")
		return lock.NewLocalLocker(), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: config.RedisPassword(),
		DB:       config.RedisDB(),
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to ping redis", zap.String("addr", addr), zap.Error(err))
	}
	logger.Info("connected to redis", zap.String("addr", addr))
	return lock.NewRedisLocker(client, config.ContactLockTTL(), logger), func() { _ = client.Close() }
}

// signalConsumer starts the JetStream consumer when NATS_URL is set.
func signalConsumer(ctx context.Context, app *api.App, logger *zap.Logger) (*ingest.Consumer, func()) {
	url := config.NATSURL()
	if url == "" {
		logger.Info("NATS_URL not set, signal consumer disabled")
		return nil, func() {}
	}

	nc, err := nats.Connect(url,
		nats.Name("memoria"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		logger.Fatal("failed to connect to nats", zap.Error(err))
	}
	js, err := nc.JetStream()
	if err != nil {
		logger.Fatal("failed to open jetstream", zap.Error(err))
	}

	consumer := ingest.NewConsumer(js, app.Extraction, ingest.Config{
		Stream:     config.NATSStream(),
		Durable:    config.NATSDurable(),
		MaxDeliver: config.NATSMaxDeliver(),
	}, logger)
	// In-flight passes must survive the shutdown signal until Stop drains them.
	if err := consumer.Start(context.WithoutCancel(ctx)); err != nil {
		logger.Fatal("failed to start signal consumer", zap.Error(err))
	}
	return consumer, nc.Close
}
