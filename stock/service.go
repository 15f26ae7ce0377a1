package stock

import (
	"context"

	"github.com/shopspring/decimal"

	"gofalre.io/fuelstock/models"
)

// Service 帳本對外的操作，所有數量與庫存的寫入都必須經過這裡
type Service interface {
	CurrentLevels(ctx context.Context) (map[string]decimal.Decimal, error)
	CheckSaleAdmission(ctx context.Context, product string, requested decimal.Decimal) (models.Admission, error)
	ApplyAtSale(ctx context.Context, product string, sold decimal.Decimal) error
	SellWithAdmission(ctx context.Context, product string, requested decimal.Decimal) (models.Admission, error)
	ApplyAtPurchase(ctx context.Context, product string, purchased, defaultReorderLevel decimal.Decimal) error
	LowStockAlerts(ctx context.Context) ([]models.LowStockAlert, error)
	UpdateReorderLevel(ctx context.Context, product string, level decimal.Decimal) error
	ListItems(ctx context.Context) ([]*models.StockItem, error)
	StockMovements(ctx context.Context, product string, limit, offset uint64) ([]*models.StockMovement, error)
	Bootstrap(ctx context.Context) error
}
