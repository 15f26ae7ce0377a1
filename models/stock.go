package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// StockItem 一個產品的庫存狀態，數量單位為公升
type StockItem struct {
	ID           int64           `json:"id"`
	Product      string          `json:"product"`
	Quantity     decimal.Decimal `json:"quantity"`
	ReorderLevel decimal.Decimal `json:"reorder_level"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Admit evaluates whether selling requested litres keeps the item at or above its reorder level.
func (s *StockItem) Admit(requested decimal.Decimal) Admission {
	projected := s.Quantity.Sub(requested)
	return Admission{
		Product:      s.Product,
		Requested:    requested,
		Allowed:      projected.GreaterThanOrEqual(s.ReorderLevel),
		Current:      s.Quantity,
		ReorderLevel: s.ReorderLevel,
	}
}

// Debit returns the quantity left after selling sold litres, floored at zero.
func (s *StockItem) Debit(sold decimal.Decimal) decimal.Decimal {
	remaining := s.Quantity.Sub(sold)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

func (s *StockItem) IsLow() bool {
	return s.Quantity.LessThanOrEqual(s.ReorderLevel)
}

// Alert returns the low stock alert for the item, or nil when it is above its reorder level.
func (s *StockItem) Alert() *LowStockAlert {
	if !s.IsLow() {
		return nil
	}
	return &LowStockAlert{
		Product:      s.Product,
		Quantity:     s.Quantity,
		ReorderLevel: s.ReorderLevel,
	}
}

// Admission 銷售准入檢查的結果
type Admission struct {
	Product      string          `json:"product"`
	Requested    decimal.Decimal `json:"requested"`
	Allowed      bool            `json:"allowed"`
	Current      decimal.Decimal `json:"current"`
	ReorderLevel decimal.Decimal `json:"reorder_level"`
}

// Reason explains a refused admission in terms of current stock and reorder level.
func (a Admission) Reason() string {
	if a.Allowed {
		return ""
	}
	return fmt.Sprintf("selling %sL of %s would drop stock below reorder level (current stock: %sL, reorder level: %sL)",
		a.Requested, a.Product, a.Current, a.ReorderLevel)
}

// LowStockAlert 低庫存警示
type LowStockAlert struct {
	Product      string          `json:"product"`
	Quantity     decimal.Decimal `json:"quantity"`
	ReorderLevel decimal.Decimal `json:"reorder_level"`
}

func (a LowStockAlert) String() string {
	return fmt.Sprintf("%s is low: %sL left (Reorder Level: %sL)", a.Product, a.Quantity, a.ReorderLevel)
}
