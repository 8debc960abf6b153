package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ghuser/inventory/pkg/app"
	"github.com/ghuser/inventory/pkg/cache"
	"github.com/ghuser/inventory/pkg/config"
	"github.com/ghuser/inventory/pkg/database"
	"github.com/ghuser/inventory/pkg/events"
	"github.com/ghuser/inventory/pkg/logger"
	"github.com/ghuser/inventory/pkg/telemetry"
	"github.com/ghuser/inventory/services/inventory/application/relay"
	appsvcs "github.com/ghuser/inventory/services/inventory/application/services"
	"github.com/ghuser/inventory/services/inventory/application/subscribers"
	inventoryEvents "github.com/ghuser/inventory/services/inventory/domain/events"
	"github.com/ghuser/inventory/services/inventory/infrastructure/messaging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := config.ValidateForProduction(cfg); err != nil {
		slog.Error("production config validation failed", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg)

	ctx := context.Background()

	otelShutdown, _, err := telemetry.Setup(ctx, cfg)
	if err != nil {
		log.Error("failed to setup otel", "error", err)
		os.Exit(1)
	}
	defer otelShutdown(ctx) //nolint:errcheck

	if err := telemetry.SetupSentry(cfg); err != nil {
		log.Warn("failed to setup sentry, continuing without crash reporting", "error", err)
	}
	defer telemetry.SentryFlush()

	pool, err := database.NewPool(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1) //nolint:gocritic
	}
	defer pool.Close() //nolint:errcheck
	log.Info("database pool connected")

	eventBus, err := events.NewEventBus(cfg, log)
	if err != nil {
		log.Error("failed to setup event bus", "error", err)
		os.Exit(1) //nolint:gocritic
	}
	defer eventBus.Close() //nolint:errcheck

	redisClient, err := cache.NewRedisClient(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1) //nolint:gocritic
	}
	defer redisClient.Close() //nolint:errcheck
	log.Info("redis connected")

	appConfig := &app.Application{
		Config:   cfg,
		Db:       pool,
		Logger:   log,
		EventBus: eventBus,
		Redis:    redisClient,
	}
	if cfg.EventTransport == config.TransportKafka {
		appConfig.Kafka = messaging.NewKafkaWriter(cfg, log)
		defer appConfig.Kafka.Close() //nolint:errcheck
	}

	runCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup

	if err := registerSubscribers(runCtx, &wg, appConfig); err != nil {
		log.Error("failed to register subscribers", "error", err)
		cancel()
		os.Exit(1) //nolint:gocritic
	}

	svcs := appsvcs.New(appConfig)
	emissionRelay := relay.New(svcs.Pending, svcs.Locker, svcs.Emitter, relay.Config{
		Interval:       cfg.RelayInterval,
		BatchSize:      cfg.RelayBatchSize,
		PublishTimeout: cfg.PublishTimeout,
	}, log)
	wg.Add(1)
	go func() {
		defer wg.Done()
		emissionRelay.Run(runCtx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()
	wg.Wait()

	// EventBus.Close() (via defer) waits up to 30s for in-flight handlers.
	log.Info("worker stopped")
}

// registerSubscribers wires the inventory.updated consumers for the
// configured transport.
func registerSubscribers(ctx context.Context, wg *sync.WaitGroup, a *app.Application) error {
	warmer := subscribers.NewCacheWarmer(cache.NewInventoryCache(a.Redis), a.Logger)

	if a.Config.EventTransport == config.TransportKafka {
		reader := messaging.NewKafkaReader(a.Config)
		consumer := messaging.NewKafkaConsumer(reader, a.Logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer reader.Close() //nolint:errcheck
			if err := consumer.Run(ctx, warmer.Handle); err != nil {
				a.Logger.ErrorContext(ctx, "kafka consumer stopped", "error", err)
			}
		}()
		a.Logger.Info("event subscribers registered", "transport", config.TransportKafka, "topic", a.Config.KafkaTopic)
		return nil
	}

	errCh, err := a.EventBus.Subscribe(ctx, inventoryEvents.TopicInventoryUpdated, warmer.Handle)
	if err != nil {
		return err
	}

	// Drain subscriber errors in background so the channel never blocks.
	go func() {
		for err := range errCh {
			a.Logger.ErrorContext(ctx, "subscriber error",
				"topic", inventoryEvents.TopicInventoryUpdated,
				"error", err,
			)
		}
	}()

	a.Logger.Info("event subscribers registered", "topics", []string{inventoryEvents.TopicInventoryUpdated})
	return nil
}
