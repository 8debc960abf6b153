package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/ghuser/inventory/pkg/database"
	"github.com/ghuser/inventory/services/inventory/domain"
	domainevents "github.com/ghuser/inventory/services/inventory/domain/events"
	"github.com/ghuser/inventory/services/inventory/domain/models"
	"github.com/ghuser/inventory/services/inventory/domain/repositories"
	"github.com/ghuser/inventory/services/inventory/infrastructure/messaging"
	"github.com/ghuser/inventory/services/inventory/infrastructure/persistence/postgres/db"
)

// TxPublisherFactory returns a publisher whose writes join tx.
// *events.EventBus satisfies it.
type TxPublisherFactory interface {
	NewTxPublisher(tx *sql.Tx) (message.Publisher, error)
}

// InventoryRepository implements repositories.InventoryRepository against PostgreSQL.
type InventoryRepository struct {
	db     *database.Database
	outbox TxPublisherFactory
}

// Option configures an InventoryRepository.
type Option func(*InventoryRepository)

// WithOutbox stages the InventoryChanged message inside the same transaction
// as the stock write. The bus Forwarder delivers it after commit.
func WithOutbox(f TxPublisherFactory) Option {
	return func(r *InventoryRepository) { r.outbox = f }
}

// NewInventoryRepository returns a repository backed by the given pool.
func NewInventoryRepository(d *database.Database, opts ...Option) *InventoryRepository {
	r := &InventoryRepository{db: d}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetByProductID returns ErrInventoryNotFound when no row exists.
func (r *InventoryRepository) GetByProductID(ctx context.Context, id models.ProductID) (*models.Inventory, error) {
	row, err := db.New(r.db.DB()).GetInventory(ctx, id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrInventoryNotFound
		}
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	return rowToInventory(row), nil
}

// UpdateStock locks the row, overwrites stock_remain, bumps revision and
// commits. With an outbox configured the change message is written in the
// same transaction. A missing row returns ErrInventoryNotFound and writes nothing.
//
// When ctx carries a deadline, lock_timeout is set for the transaction so a
// contended row lock fails with SQLSTATE 55P03 instead of blocking past it.
func (r *InventoryRepository) UpdateStock(ctx context.Context, id models.ProductID, stockRemain int64) (*models.Inventory, error) {
	var out *models.Inventory
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		q := db.New(tx)

		if deadline, ok := ctx.Deadline(); ok {
			ms := max(time.Until(deadline).Milliseconds(), 1)
			if err := q.SetLockTimeout(ctx, strconv.FormatInt(ms, 10)); err != nil {
				return fmt.Errorf("set lock timeout: %w", describe(err))
			}
		}

		if _, err := q.LockInventory(ctx, id.String()); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrInventoryNotFound
			}
			return fmt.Errorf("lock inventory row: %w", describe(err))
		}

		row, err := q.UpdateInventoryStock(ctx, db.UpdateInventoryStockParams{
			ProductID:   id.String(),
			StockRemain: stockRemain,
		})
		if err != nil {
			return fmt.Errorf("update stock: %w", describe(err))
		}
		out = rowToInventory(row)

		if r.outbox != nil {
			if err := r.stage(ctx, tx, out); err != nil {
				return fmt.Errorf("stage inventory changed: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// WithRowLock holds the row with SELECT ... FOR UPDATE for the duration of fn.
// The transaction writes nothing; it only serializes fn against UpdateStock.
func (r *InventoryRepository) WithRowLock(ctx context.Context, id models.ProductID, fn func(ctx context.Context, current *models.Inventory) error) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		row, err := db.New(tx).LockInventory(ctx, id.String())
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrInventoryNotFound
			}
			return fmt.Errorf("lock inventory row: %w", describe(err))
		}
		return fn(ctx, rowToInventory(row))
	})
}

func (r *InventoryRepository) stage(ctx context.Context, tx *sql.Tx, inv *models.Inventory) error {
	env := domainevents.NewEnvelope(domainevents.NewInventoryChanged(*inv), inv.Revision, inv.UpdatedAt)
	msg, err := messaging.NewMessage(ctx, env)
	if err != nil {
		return err
	}
	pub, err := r.outbox.NewTxPublisher(tx)
	if err != nil {
		return fmt.Errorf("create publisher: %w", err)
	}
	return pub.Publish(domainevents.TopicInventoryUpdated, msg)
}

// describe annotates lock and cancellation failures with their SQLSTATE.
func describe(err error) error {
	switch database.ErrorCode(err) {
	case database.CodeLockNotAvailable:
		return fmt.Errorf("row lock wait timed out: %w", err)
	case database.CodeQueryCanceled:
		return fmt.Errorf("statement cancelled: %w", err)
	case database.CodeDeadlockDetected, database.CodeSerializationFailure:
		return fmt.Errorf("transaction conflict: %w", err)
	default:
		return err
	}
}

func rowToInventory(row db.Inventory) *models.Inventory {
	return &models.Inventory{
		ProductID:   models.ProductID(row.ProductID),
		StockRemain: row.StockRemain,
		Revision:    row.Revision,
		UpdatedAt:   row.UpdatedAt,
	}
}

var (
	_ repositories.InventoryRepository = (*InventoryRepository)(nil)
	_ repositories.InventoryLocker     = (*InventoryRepository)(nil)
)
