package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ghuser/inventory/pkg/database"
	"github.com/ghuser/inventory/pkg/logger"
	"github.com/ghuser/inventory/pkg/migrator"
	"github.com/ghuser/inventory/services/inventory/domain"
	domainevents "github.com/ghuser/inventory/services/inventory/domain/events"
	"github.com/ghuser/inventory/services/inventory/domain/models"
)

const migrationsDir = "../../../../../migrations/inventory"

// startPostgres runs a disposable PostgreSQL with the inventory schema applied.
// Skips when Docker is unavailable.
func startPostgres(t *testing.T) *database.Database {
	t.Helper()
	d, _ := startPostgresURL(t)
	return d
}

// startPostgresURL is startPostgres that also returns the connection string.
func startPostgresURL(t *testing.T) (*database.Database, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	var container *tcpostgres.PostgresContainer
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				t.Skipf("Skipping integration test due to panic (likely Docker issue): %v", r)
			}
		}()
		container, err = tcpostgres.Run(ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase("inventory"),
			tcpostgres.WithUsername("inventory"),
			tcpostgres.WithPassword("inventory"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
	}()
	if err != nil {
		t.Skipf("Skipping integration test, postgres container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	d, err := database.NewPool(ctx, url, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	_, err = migrator.Up(ctx, d.DB(), os.DirFS(migrationsDir))
	require.NoError(t, err)
	return d, url
}

func seed(t *testing.T, d *database.Database, id string, stock int64) {
	t.Helper()
	_, err := d.DB().ExecContext(context.Background(),
		`INSERT INTO inventory (product_id, stock_remain) VALUES ($1, $2)`, id, stock)
	require.NoError(t, err)
}

// recordingOutbox captures messages staged inside the store transaction.
type recordingOutbox struct {
	mu     sync.Mutex
	staged []*message.Message
	err    error
}

func (o *recordingOutbox) NewTxPublisher(*sql.Tx) (message.Publisher, error) {
	return &recordingPublisher{o: o}, nil
}

type recordingPublisher struct{ o *recordingOutbox }

func (p *recordingPublisher) Publish(_ string, msgs ...*message.Message) error {
	p.o.mu.Lock()
	defer p.o.mu.Unlock()
	if p.o.err != nil {
		return p.o.err
	}
	p.o.staged = append(p.o.staged, msgs...)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func TestInventoryRepository_Integration(t *testing.T) {
	d := startPostgres(t)
	ctx := context.Background()

	seed(t, d, "12345", 50)
	seed(t, d, "67890", 100)

	repo := NewInventoryRepository(d)

	t.Run("UpdateStock overwrites and bumps revision", func(t *testing.T) {
		before, err := repo.GetByProductID(ctx, "12345")
		require.NoError(t, err)

		got, err := repo.UpdateStock(ctx, "12345", 40)
		require.NoError(t, err)
		require.Equal(t, int64(40), got.StockRemain)
		require.Equal(t, before.Revision+1, got.Revision)

		stored, err := repo.GetByProductID(ctx, "12345")
		require.NoError(t, err)
		require.Equal(t, int64(40), stored.StockRemain)
	})

	t.Run("UpdateStock with same value twice", func(t *testing.T) {
		_, err := repo.UpdateStock(ctx, "67890", 70)
		require.NoError(t, err)
		got, err := repo.UpdateStock(ctx, "67890", 70)
		require.NoError(t, err)
		require.Equal(t, int64(70), got.StockRemain)
	})

	t.Run("UpdateStock on missing product writes nothing", func(t *testing.T) {
		_, err := repo.UpdateStock(ctx, "does-not-exist", 1)
		require.ErrorIs(t, err, domain.ErrInventoryNotFound)

		_, err = repo.GetByProductID(ctx, "does-not-exist")
		require.ErrorIs(t, err, domain.ErrInventoryNotFound)
	})

	t.Run("row lock wait honors deadline", func(t *testing.T) {
		tx, err := d.DB().BeginTx(ctx, nil)
		require.NoError(t, err)
		defer tx.Rollback() //nolint:errcheck
		_, err = tx.ExecContext(ctx, `SELECT 1 FROM inventory WHERE product_id = '12345' FOR UPDATE`)
		require.NoError(t, err)

		shortCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
		defer cancel()
		_, err = repo.UpdateStock(shortCtx, "12345", 1)
		require.Error(t, err)
		require.False(t, errors.Is(err, domain.ErrInventoryNotFound))
	})

	t.Run("concurrent writers serialize on the row", func(t *testing.T) {
		seed(t, d, "race", 0)
		var wg sync.WaitGroup
		for i := int64(1); i <= 10; i++ {
			wg.Add(1)
			go func(v int64) {
				defer wg.Done()
				_, err := repo.UpdateStock(ctx, "race", v)
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		got, err := repo.GetByProductID(ctx, "race")
		require.NoError(t, err)
		require.Equal(t, int64(11), got.Revision, "every write must bump revision exactly once")
	})

	t.Run("row lock holds off writers until released", func(t *testing.T) {
		seed(t, d, "locked", 5)

		err := repo.WithRowLock(ctx, "locked", func(ctx context.Context, current *models.Inventory) error {
			require.Equal(t, int64(5), current.StockRemain)

			writeCtx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
			defer cancel()
			_, err := repo.UpdateStock(writeCtx, "locked", 6)
			require.Error(t, err, "write must wait for the row lock")
			return nil
		})
		require.NoError(t, err)

		got, err := repo.UpdateStock(ctx, "locked", 6)
		require.NoError(t, err)
		require.Equal(t, int64(6), got.StockRemain)

		err = repo.WithRowLock(ctx, "no-such-product", func(context.Context, *models.Inventory) error {
			t.Fatal("fn must not run for a missing product")
			return nil
		})
		require.ErrorIs(t, err, domain.ErrInventoryNotFound)
	})

	t.Run("outbox stages the event in the write transaction", func(t *testing.T) {
		seed(t, d, "outbox", 5)
		outbox := &recordingOutbox{}
		outboxRepo := NewInventoryRepository(d, WithOutbox(outbox))

		got, err := outboxRepo.UpdateStock(ctx, "outbox", 3)
		require.NoError(t, err)
		require.Len(t, outbox.staged, 1)

		env, err := domainevents.ParseEnvelope(outbox.staged[0].Payload, outbox.staged[0].Metadata)
		require.NoError(t, err)
		require.Equal(t, domainevents.InventoryChanged{ProductID: "outbox", StockRemain: 3}, env.Event)
		require.Equal(t, got.Revision, env.Revision)
		require.Equal(t, domainevents.EventID("outbox", got.Revision), env.EventID)
	})

	t.Run("failed staging rolls back the write", func(t *testing.T) {
		seed(t, d, "outbox-fail", 5)
		outbox := &recordingOutbox{err: errors.New("queue insert failed")}
		outboxRepo := NewInventoryRepository(d, WithOutbox(outbox))

		_, err := outboxRepo.UpdateStock(ctx, "outbox-fail", 9)
		require.Error(t, err)

		stored, err := repo.GetByProductID(ctx, models.ProductID("outbox-fail"))
		require.NoError(t, err)
		require.Equal(t, int64(5), stored.StockRemain)
	})
}

func TestPendingEmissionRepository_Integration(t *testing.T) {
	d := startPostgres(t)
	ctx := context.Background()
	seed(t, d, "12345", 50)

	repo := NewPendingEmissionRepository(d)
	env := domainevents.NewEnvelope(domainevents.InventoryChanged{ProductID: "12345", StockRemain: 40}, 2, time.Now())

	require.NoError(t, repo.Park(ctx, env, errors.New("broker unavailable")))
	require.NoError(t, repo.Park(ctx, env, errors.New("parked twice")), "parking the same event is a no-op")

	due, err := repo.Due(ctx, time.Now().Add(time.Second), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, env.EventID, due[0].Envelope.EventID)
	require.Equal(t, env.Event, due[0].Envelope.Event)
	require.Equal(t, "broker unavailable", due[0].LastError)

	next := time.Now().Add(time.Hour)
	require.NoError(t, repo.Reschedule(ctx, env.EventID, 1, next, errors.New("still down")))

	due, err = repo.Due(ctx, time.Now().Add(time.Second), 10)
	require.NoError(t, err)
	require.Empty(t, due)

	due, err = repo.Due(ctx, next.Add(time.Second), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, 1, due[0].Attempts)

	require.NoError(t, repo.Delete(ctx, env.EventID))
	due, err = repo.Due(ctx, next.Add(time.Second), 10)
	require.NoError(t, err)
	require.Empty(t, due)
}
