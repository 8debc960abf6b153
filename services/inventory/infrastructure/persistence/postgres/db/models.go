package db

import (
	"time"

	"github.com/google/uuid"
)

type Inventory struct {
	ProductID   string
	StockRemain int64
	Revision    int64
	UpdatedAt   time.Time
}

type InventoryPendingEmission struct {
	EventID       uuid.UUID
	ProductID     string
	StockRemain   int64
	Revision      int64
	EventVersion  int32
	OccurredAt    time.Time
	Attempts      int32
	LastError     string
	NextAttemptAt time.Time
	CreatedAt     time.Time
}
