package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const deletePendingEmission = `-- name: DeletePendingEmission :exec
DELETE FROM inventory_pending_emissions
WHERE event_id = $1
`

func (q *Queries) DeletePendingEmission(ctx context.Context, eventID uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, deletePendingEmission, eventID)
	return err
}

const insertPendingEmission = `-- name: InsertPendingEmission :exec
INSERT INTO inventory_pending_emissions (
    event_id, product_id, stock_remain, revision, event_version, occurred_at, last_error, next_attempt_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (event_id) DO NOTHING
`

type InsertPendingEmissionParams struct {
	EventID       uuid.UUID
	ProductID     string
	StockRemain   int64
	Revision      int64
	EventVersion  int32
	OccurredAt    time.Time
	LastError     string
	NextAttemptAt time.Time
}

func (q *Queries) InsertPendingEmission(ctx context.Context, arg InsertPendingEmissionParams) error {
	_, err := q.db.ExecContext(ctx, insertPendingEmission,
		arg.EventID,
		arg.ProductID,
		arg.StockRemain,
		arg.Revision,
		arg.EventVersion,
		arg.OccurredAt,
		arg.LastError,
		arg.NextAttemptAt,
	)
	return err
}

const listDuePendingEmissions = `-- name: ListDuePendingEmissions :many
SELECT event_id, product_id, stock_remain, revision, event_version, occurred_at,
       attempts, last_error, next_attempt_at, created_at
FROM inventory_pending_emissions
WHERE next_attempt_at <= $1
ORDER BY created_at, revision
LIMIT $2
`

type ListDuePendingEmissionsParams struct {
	NextAttemptAt time.Time
	Limit         int32
}

func (q *Queries) ListDuePendingEmissions(ctx context.Context, arg ListDuePendingEmissionsParams) ([]InventoryPendingEmission, error) {
	rows, err := q.db.QueryContext(ctx, listDuePendingEmissions, arg.NextAttemptAt, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []InventoryPendingEmission
	for rows.Next() {
		var i InventoryPendingEmission
		if err := rows.Scan(
			&i.EventID,
			&i.ProductID,
			&i.StockRemain,
			&i.Revision,
			&i.EventVersion,
			&i.OccurredAt,
			&i.Attempts,
			&i.LastError,
			&i.NextAttemptAt,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const reschedulePendingEmission = `-- name: ReschedulePendingEmission :exec
UPDATE inventory_pending_emissions
SET attempts        = $2,
    next_attempt_at = $3,
    last_error      = $4
WHERE event_id = $1
`

type ReschedulePendingEmissionParams struct {
	EventID       uuid.UUID
	Attempts      int32
	NextAttemptAt time.Time
	LastError     string
}

func (q *Queries) ReschedulePendingEmission(ctx context.Context, arg ReschedulePendingEmissionParams) error {
	_, err := q.db.ExecContext(ctx, reschedulePendingEmission,
		arg.EventID,
		arg.Attempts,
		arg.NextAttemptAt,
		arg.LastError,
	)
	return err
}
