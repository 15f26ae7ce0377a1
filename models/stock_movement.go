package models

import (
	"time"

	"github.com/shopspring/decimal"

	"gofalre.io/fuelstock/models/enum"
)

// StockMovement 每次帳本變動的紀錄
type StockMovement struct {
	ID            int64                  `json:"id"`
	Product       string                 `json:"product"`
	Type          enum.StockMovementType `json:"type"`
	Delta         decimal.Decimal        `json:"delta"`
	QuantityAfter decimal.Decimal        `json:"quantity_after"`
	ReorderLevel  decimal.Decimal        `json:"reorder_level"`
	ReferenceID   string                 `json:"reference_id,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}
