package db

import (
	"context"
)

const getInventory = `-- name: GetInventory :one
SELECT product_id, stock_remain, revision, updated_at
FROM inventory
WHERE product_id = $1
`

func (q *Queries) GetInventory(ctx context.Context, productID string) (Inventory, error) {
	row := q.db.QueryRowContext(ctx, getInventory, productID)
	var i Inventory
	err := row.Scan(
		&i.ProductID,
		&i.StockRemain,
		&i.Revision,
		&i.UpdatedAt,
	)
	return i, err
}

const lockInventory = `-- name: LockInventory :one
SELECT product_id, stock_remain, revision, updated_at
FROM inventory
WHERE product_id = $1
FOR UPDATE
`

func (q *Queries) LockInventory(ctx context.Context, productID string) (Inventory, error) {
	row := q.db.QueryRowContext(ctx, lockInventory, productID)
	var i Inventory
	err := row.Scan(
		&i.ProductID,
		&i.StockRemain,
		&i.Revision,
		&i.UpdatedAt,
	)
	return i, err
}

const setLockTimeout = `-- name: SetLockTimeout :exec
SELECT set_config('lock_timeout', $1::text, true)
`

func (q *Queries) SetLockTimeout(ctx context.Context, dollar_1 string) error {
	_, err := q.db.ExecContext(ctx, setLockTimeout, dollar_1)
	return err
}

const updateInventoryStock = `-- name: UpdateInventoryStock :one
UPDATE inventory
SET stock_remain = $2,
    revision     = revision + 1,
    updated_at   = now()
WHERE product_id = $1
RETURNING product_id, stock_remain, revision, updated_at
`

type UpdateInventoryStockParams struct {
	ProductID   string
	StockRemain int64
}

func (q *Queries) UpdateInventoryStock(ctx context.Context, arg UpdateInventoryStockParams) (Inventory, error) {
	row := q.db.QueryRowContext(ctx, updateInventoryStock, arg.ProductID, arg.StockRemain)
	var i Inventory
	err := row.Scan(
		&i.ProductID,
		&i.StockRemain,
		&i.Revision,
		&i.UpdatedAt,
	)
	return i, err
}
