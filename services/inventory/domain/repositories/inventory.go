package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ghuser/inventory/services/inventory/domain/events"
	"github.com/ghuser/inventory/services/inventory/domain/models"
)

// InventoryRepository is the persistence interface for inventory records.
// The domain layer owns this interface; infrastructure implements it.
type InventoryRepository interface {
	// GetByProductID returns ErrInventoryNotFound when no record exists.
	GetByProductID(ctx context.Context, id models.ProductID) (*models.Inventory, error)

	// UpdateStock overwrites stock_remain for an existing record in a single
	// transaction that holds the row lock from read to commit, and returns the
	// committed record. Returns ErrInventoryNotFound without writing anything
	// when the record does not exist.
	UpdateStock(ctx context.Context, id models.ProductID, stockRemain int64) (*models.Inventory, error)
}

// InventoryLocker runs work while holding a product's row lock. UpdateStock
// blocks on the same lock, so work done under it cannot interleave with a
// write to that product from any process.
type InventoryLocker interface {
	// WithRowLock passes the committed record to fn. Returns
	// ErrInventoryNotFound without calling fn when no record exists.
	WithRowLock(ctx context.Context, id models.ProductID, fn func(ctx context.Context, current *models.Inventory) error) error
}

// PendingEmission is a committed change whose notification has not been
// delivered yet.
type PendingEmission struct {
	Envelope      events.Envelope
	Attempts      int
	LastError     string
	NextAttemptAt time.Time
	CreatedAt     time.Time
}

// PendingEmissionRepository stores notifications parked after a failed
// publish so a relay can deliver them later.
type PendingEmissionRepository interface {
	// Park records env for later delivery. Parking the same event ID twice is a no-op.
	Park(ctx context.Context, env events.Envelope, cause error) error

	// Due returns up to limit parked emissions whose next attempt is at or
	// before now, oldest revision first per product.
	Due(ctx context.Context, now time.Time, limit int) ([]PendingEmission, error)

	// Reschedule records a failed relay attempt.
	Reschedule(ctx context.Context, eventID uuid.UUID, attempts int, next time.Time, cause error) error

	// Delete removes a delivered or superseded emission.
	Delete(ctx context.Context, eventID uuid.UUID) error
}
