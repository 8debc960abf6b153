package services

import (
	"github.com/ghuser/inventory/pkg/app"
	"github.com/ghuser/inventory/pkg/cache"
	"github.com/ghuser/inventory/pkg/config"
	"github.com/ghuser/inventory/services/inventory/domain/events"
	"github.com/ghuser/inventory/services/inventory/domain/repositories"
	domainsvcs "github.com/ghuser/inventory/services/inventory/domain/services"
	"github.com/ghuser/inventory/services/inventory/infrastructure/messaging"
	"github.com/ghuser/inventory/services/inventory/infrastructure/persistence/postgres"
)

// Transport labels for metrics.
const (
	transportOutbox = "outbox"
)

// Services is the application-layer service container for this bounded context.
type Services struct {
	Inventory *InventoryService
	// Locker, Pending and Emitter are exposed for the worker's relay.
	Locker  repositories.InventoryLocker
	Pending repositories.PendingEmissionRepository
	Emitter events.Emitter
}

// New wires the inventory services from the Application container.
//
//   - outbox: the repository stages events in the write transaction and the
//     bus Forwarder delivers them; the inline emitter only records that.
//   - sql: events are published on the SQL bus right after commit.
//   - kafka: events are written to Kafka right after commit.
func New(a *app.Application) *Services {
	cfg := a.Config

	var repoOpts []postgres.Option
	var emitter, relayEmitter events.Emitter
	transport := cfg.EventTransport

	switch {
	case cfg.OutboxEnabled:
		repoOpts = append(repoOpts, postgres.WithOutbox(a.EventBus))
		emitter = messaging.NewRelayedEmitter(a.Logger)
		relayEmitter = messaging.NewBusEmitter(a.EventBus)
		transport = transportOutbox
	case cfg.EventTransport == config.TransportKafka:
		emitter = messaging.NewKafkaEmitter(a.Kafka)
		relayEmitter = emitter
	default:
		emitter = messaging.NewBusEmitter(a.EventBus)
		relayEmitter = emitter
	}

	repo := postgres.NewInventoryRepository(a.Db, repoOpts...)
	pending := postgres.NewPendingEmissionRepository(a.Db)

	var readCache InventoryCache
	if a.Redis != nil {
		readCache = cache.NewInventoryCache(a.Redis)
	}

	svc := NewInventoryService(repo, emitter, pending, readCache, Options{
		StoreTimeout:   cfg.StoreTimeout,
		PublishTimeout: cfg.PublishTimeout,
		Transport:      transport,
		Policy:         domainsvcs.StockPolicy{AllowNegative: cfg.AllowNegativeStock},
	}, a.Logger)

	return &Services{
		Inventory: svc,
		Locker:    repo,
		Pending:   pending,
		Emitter:   relayEmitter,
	}
}
