package models

import "time"

// Inventory is the durable stock record for one product.
type Inventory struct {
	ProductID   ProductID
	StockRemain int64
	// Revision counts committed writes to this row. It orders change events
	// for the same product and lets consumers discard stale ones.
	Revision  int64
	UpdatedAt time.Time
}
