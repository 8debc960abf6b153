package app

import (
	"github.com/segmentio/kafka-go"

	"github.com/ghuser/inventory/pkg/cache"
	"github.com/ghuser/inventory/pkg/config"
	"github.com/ghuser/inventory/pkg/database"
	"github.com/ghuser/inventory/pkg/events"
	"github.com/ghuser/inventory/pkg/logger"
)

// Application holds shared infrastructure for every bounded context.
// cmd/api and cmd/worker build it once and pass it to each service's wiring.
//
// Logging: Logger is trace-aware. Use the context methods inside requests and
// handlers so trace_id, span_id and request_id are attached:
//
//	a.Logger.InfoContext(ctx, "stock updated", "product_id", id)
//
// Plain Info/Error are for startup and shutdown.
type Application struct {
	Config   *config.Config
	Db       *database.Database
	Logger   logger.Logger
	EventBus *events.EventBus
	Redis    *cache.RedisClient
	// Kafka is nil unless EVENT_TRANSPORT=kafka.
	Kafka *kafka.Writer
}
