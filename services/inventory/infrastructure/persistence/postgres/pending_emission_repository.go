package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ghuser/inventory/pkg/database"
	domainevents "github.com/ghuser/inventory/services/inventory/domain/events"
	"github.com/ghuser/inventory/services/inventory/domain/repositories"
	"github.com/ghuser/inventory/services/inventory/infrastructure/persistence/postgres/db"
)

// maxErrorLen caps the stored last_error text.
const maxErrorLen = 1024

// PendingEmissionRepository implements repositories.PendingEmissionRepository.
type PendingEmissionRepository struct {
	db  *database.Database
	now func() time.Time
}

// NewPendingEmissionRepository returns a repository backed by the given pool.
func NewPendingEmissionRepository(d *database.Database) *PendingEmissionRepository {
	return &PendingEmissionRepository{db: d, now: time.Now}
}

func (r *PendingEmissionRepository) Park(ctx context.Context, env domainevents.Envelope, cause error) error {
	err := db.New(r.db.DB()).InsertPendingEmission(ctx, db.InsertPendingEmissionParams{
		EventID:       env.EventID,
		ProductID:     env.Event.ProductID,
		StockRemain:   env.Event.StockRemain,
		Revision:      env.Revision,
		EventVersion:  int32(env.Version),
		OccurredAt:    env.OccurredAt,
		LastError:     errorText(cause),
		NextAttemptAt: r.now(),
	})
	if err != nil {
		return fmt.Errorf("park emission: %w", err)
	}
	return nil
}

func (r *PendingEmissionRepository) Due(ctx context.Context, now time.Time, limit int) ([]repositories.PendingEmission, error) {
	rows, err := db.New(r.db.DB()).ListDuePendingEmissions(ctx, db.ListDuePendingEmissionsParams{
		NextAttemptAt: now,
		Limit:         int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("list due emissions: %w", err)
	}

	out := make([]repositories.PendingEmission, len(rows))
	for i, row := range rows {
		out[i] = repositories.PendingEmission{
			Envelope: domainevents.Envelope{
				EventID:    row.EventID,
				Type:       domainevents.TypeInventoryUpdated,
				Version:    int(row.EventVersion),
				Revision:   row.Revision,
				OccurredAt: row.OccurredAt.UTC(),
				Event: domainevents.InventoryChanged{
					ProductID:   row.ProductID,
					StockRemain: row.StockRemain,
				},
			},
			Attempts:      int(row.Attempts),
			LastError:     row.LastError,
			NextAttemptAt: row.NextAttemptAt,
			CreatedAt:     row.CreatedAt,
		}
	}
	return out, nil
}

func (r *PendingEmissionRepository) Reschedule(ctx context.Context, eventID uuid.UUID, attempts int, next time.Time, cause error) error {
	err := db.New(r.db.DB()).ReschedulePendingEmission(ctx, db.ReschedulePendingEmissionParams{
		EventID:       eventID,
		Attempts:      int32(attempts),
		NextAttemptAt: next,
		LastError:     errorText(cause),
	})
	if err != nil {
		return fmt.Errorf("reschedule emission: %w", err)
	}
	return nil
}

func (r *PendingEmissionRepository) Delete(ctx context.Context, eventID uuid.UUID) error {
	if err := db.New(r.db.DB()).DeletePendingEmission(ctx, eventID); err != nil {
		return fmt.Errorf("delete emission: %w", err)
	}
	return nil
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	// last_error is TEXT, which rejects invalid UTF-8.
	s := strings.ToValidUTF8(err.Error(), "\uFFFD")
	if len(s) > maxErrorLen {
		cut := maxErrorLen
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return s
}

var _ repositories.PendingEmissionRepository = (*PendingEmissionRepository)(nil)
