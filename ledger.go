package fuelstock

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gofalre.io/fuelstock/event"
	"gofalre.io/fuelstock/models"
	"gofalre.io/fuelstock/models/enum"
	"gofalre.io/fuelstock/stock"
)

var _ stock.Service = (*Ledger)(nil)

const (
	defaultMovementsLimit = 50
	maxMovementsLimit     = 500
)

// DefaultSeedProducts 系統啟動時必須存在的產品
var DefaultSeedProducts = []string{"PMS", "AGO", "IK", "Gas"}

var (
	// DefaultReorderLevel 進貨時自動建立新產品所用的安全存量
	DefaultReorderLevel = decimal.NewFromInt(450)
	// DefaultSeedReorderLevel 初始產品的安全存量
	DefaultSeedReorderLevel = decimal.NewFromInt(500)
)

// TransactionRunner runs fn inside one database transaction.
type TransactionRunner interface {
	ExecuteTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// Options 未設定（Valid 為 false）的安全存量才套用預設值，設定為 0 仍然有效
type Options struct {
	SeedProducts        []string
	SeedReorderLevel    decimal.NullDecimal
	DefaultReorderLevel decimal.NullDecimal
}

func (o Options) withDefaults() Options {
	if len(o.SeedProducts) == 0 {
		o.SeedProducts = DefaultSeedProducts
	}
	if !o.SeedReorderLevel.Valid {
		o.SeedReorderLevel = decimal.NewNullDecimal(DefaultSeedReorderLevel)
	}
	if !o.DefaultReorderLevel.Valid {
		o.DefaultReorderLevel = decimal.NewNullDecimal(DefaultReorderLevel)
	}
	return o
}

// Ledger is the only writer of stock quantities and reorder levels.
// Every mutation of a product runs under that product's in-process lock and
// inside a transaction that holds the product's row lock, so concurrent sale
// and purchase paths, in this process or another, serialize per product.
type Ledger struct {
	stock    stock.Repository
	messages event.Repository

	transactionManager TransactionRunner
	eventManager       *EventManager
	workerPool         *WorkerPool
	locks              *productLocks

	options Options
	logger  *zap.Logger
}

func NewLedger(
	stockRepo stock.Repository, messages event.Repository, tm TransactionRunner,
	eventManager *EventManager,
	options Options,
	logger *zap.Logger) *Ledger {
	l := &Ledger{
		stock:              stockRepo,
		messages:           messages,
		transactionManager: tm,
		eventManager:       eventManager,
		locks:              newProductLocks(),
		options:            options.withDefaults(),
		logger:             logger,
	}
	if l.eventManager == nil {
		l.eventManager = NewEventManager(nil, logger)
	}
	l.registerMessageHandlers()
	return l
}

func (l *Ledger) DefaultReorderLevel() decimal.Decimal {
	return l.options.DefaultReorderLevel.Decimal
}

func (l *Ledger) CurrentLevels(ctx context.Context) (map[string]decimal.Decimal, error) {
	return l.stock.GetStockLevels(ctx, nil)
}

// CheckSaleAdmission 只讀取不寫入；不允許銷售屬於正常結果，不以錯誤回傳
func (l *Ledger) CheckSaleAdmission(ctx context.Context, product string, requested decimal.Decimal) (models.Admission, error) {
	product, err := validateAmount(product, "requested quantity", requested)
	if err != nil {
		return models.Admission{Product: product, Requested: requested}, err
	}

	item, err := l.stock.GetStockItem(ctx, nil, product)
	if err != nil {
		if stock.IsNotFound(err) {
			return untrackedAdmission(product, requested), nil
		}
		return models.Admission{Product: product, Requested: requested}, err
	}

	return item.Admit(requested), nil
}

// ApplyAtSale debits sold litres, flooring the result at zero. An untracked
// product is logged and ignored; a sale never creates a stock item.
func (l *Ledger) ApplyAtSale(ctx context.Context, product string, sold decimal.Decimal) error {
	return l.applyAtSale(ctx, product, sold, "", nil)
}

func (l *Ledger) applyAtSale(ctx context.Context, product string, sold decimal.Decimal, referenceID string, hook txHook) error {
	product, err := validateAmount(product, "sold quantity", sold)
	if err != nil {
		return err
	}

	unlock := l.locks.Lock(product)
	defer unlock()

	var before, after *models.StockItem
	err = l.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		before, after = nil, nil

		if err := hook.run(tx); err != nil {
			return err
		}

		item, err := l.stock.GetStockItemForUpdate(ctx, tx, product)
		if err != nil {
			if stock.IsNotFound(err) {
				return nil
			}
			return err
		}
		before = item

		if after, err = l.stock.DebitStock(ctx, tx, stock.DebitStockParams{
			Product:  product,
			Quantity: sold,
		}); err != nil {
			return err
		}

		return l.stock.CreateStockMovement(ctx, tx, stock.CreateStockMovementParams{
			Product:       product,
			Type:          enum.StockMovementTypeSale,
			Delta:         after.Quantity.Sub(before.Quantity),
			QuantityAfter: after.Quantity,
			ReorderLevel:  after.ReorderLevel,
			ReferenceID:   referenceID,
		})
	})
	if err != nil {
		return err
	}

	if before == nil {
		l.logger.Warn("sale for untracked product ignored",
			zap.String("product", product),
			zap.String("quantity", sold.String()))
		return nil
	}

	if after.Quantity.IsZero() && sold.GreaterThan(before.Quantity) {
		l.logger.Warn("sale exceeded stock on hand, quantity floored at zero",
			zap.String("product", product),
			zap.String("on_hand", before.Quantity.String()),
			zap.String("sold", sold.String()))
	}

	l.afterWrite(ctx, enum.StockEventTypeSold, after, after.Quantity.Sub(before.Quantity))
	return nil
}

// SellWithAdmission checks admission and debits in one critical section.
// A refused sale leaves stock untouched and returns the admission explaining why.
func (l *Ledger) SellWithAdmission(ctx context.Context, product string, requested decimal.Decimal) (models.Admission, error) {
	product, err := validateAmount(product, "requested quantity", requested)
	if err != nil {
		return models.Admission{Product: product, Requested: requested}, err
	}

	unlock := l.locks.Lock(product)
	defer unlock()

	var admission models.Admission
	var before, after *models.StockItem
	err = l.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		before, after = nil, nil

		item, err := l.stock.GetStockItemForUpdate(ctx, tx, product)
		if err != nil {
			if stock.IsNotFound(err) {
				admission = untrackedAdmission(product, requested)
				return nil
			}
			return err
		}

		admission = item.Admit(requested)
		if !admission.Allowed {
			return nil
		}
		before = item

		if after, err = l.stock.DebitStock(ctx, tx, stock.DebitStockParams{
			Product:  product,
			Quantity: requested,
		}); err != nil {
			return err
		}

		return l.stock.CreateStockMovement(ctx, tx, stock.CreateStockMovementParams{
			Product:       product,
			Type:          enum.StockMovementTypeSale,
			Delta:         after.Quantity.Sub(before.Quantity),
			QuantityAfter: after.Quantity,
			ReorderLevel:  after.ReorderLevel,
		})
	})
	if err != nil {
		return models.Admission{Product: product, Requested: requested}, err
	}

	if !admission.Allowed {
		l.logger.Info("sale refused by reorder level",
			zap.String("product", product),
			zap.String("requested", requested.String()),
			zap.String("current", admission.Current.String()),
			zap.String("reorder_level", admission.ReorderLevel.String()))
		return admission, nil
	}

	l.afterWrite(ctx, enum.StockEventTypeSold, after, after.Quantity.Sub(before.Quantity))
	return admission, nil
}

// ApplyAtPurchase credits purchased litres, creating the item with
// defaultReorderLevel when the product is not tracked yet.
func (l *Ledger) ApplyAtPurchase(ctx context.Context, product string, purchased, defaultReorderLevel decimal.Decimal) error {
	return l.applyAtPurchase(ctx, product, purchased, defaultReorderLevel, "", nil)
}

func (l *Ledger) applyAtPurchase(ctx context.Context, product string, purchased, defaultReorderLevel decimal.Decimal, referenceID string, hook txHook) error {
	product, err := validateAmount(product, "purchased quantity", purchased)
	if err != nil {
		return err
	}
	if err = stock.ValidateQuantity("default reorder level", defaultReorderLevel); err != nil {
		return err
	}

	unlock := l.locks.Lock(product)
	defer unlock()

	var item *models.StockItem
	var created bool
	err = l.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		if err := hook.run(tx); err != nil {
			return err
		}

		var err error
		item, created, err = l.stock.CreditOrCreateStock(ctx, tx, stock.CreditStockParams{
			Product:             product,
			Quantity:            purchased,
			DefaultReorderLevel: defaultReorderLevel,
		})
		if err != nil {
			return err
		}

		return l.stock.CreateStockMovement(ctx, tx, stock.CreateStockMovementParams{
			Product:       product,
			Type:          enum.StockMovementTypePurchase,
			Delta:         purchased,
			QuantityAfter: item.Quantity,
			ReorderLevel:  item.ReorderLevel,
			ReferenceID:   referenceID,
		})
	})
	if err != nil {
		return err
	}

	if created {
		l.logger.Info("new product provisioned by purchase",
			zap.String("product", product),
			zap.String("quantity", item.Quantity.String()),
			zap.String("reorder_level", item.ReorderLevel.String()))
	}

	l.afterWrite(ctx, enum.StockEventTypePurchased, item, purchased)
	return nil
}

// LowStockAlerts 依產品代碼排序，列出數量小於或等於安全存量的產品
func (l *Ledger) LowStockAlerts(ctx context.Context) ([]models.LowStockAlert, error) {
	items, err := l.stock.ListStockItems(ctx, nil)
	if err != nil {
		return nil, err
	}

	alerts := make([]models.LowStockAlert, 0)
	for _, item := range items {
		if alert := item.Alert(); alert != nil {
			alerts = append(alerts, *alert)
		}
	}
	return alerts, nil
}

// UpdateReorderLevel overwrites the reorder level of a tracked product; quantity is untouched.
func (l *Ledger) UpdateReorderLevel(ctx context.Context, product string, level decimal.Decimal) error {
	return l.updateReorderLevel(ctx, product, level, "", nil)
}

func (l *Ledger) updateReorderLevel(ctx context.Context, product string, level decimal.Decimal, referenceID string, hook txHook) error {
	product, err := validateAmount(product, "reorder level", level)
	if err != nil {
		return err
	}

	unlock := l.locks.Lock(product)
	defer unlock()

	var item *models.StockItem
	err = l.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		if err := hook.run(tx); err != nil {
			return err
		}

		var err error
		if item, err = l.stock.UpdateReorderLevel(ctx, tx, stock.UpdateReorderLevelParams{
			Product:      product,
			ReorderLevel: level,
		}); err != nil {
			return err
		}

		return l.stock.CreateStockMovement(ctx, tx, stock.CreateStockMovementParams{
			Product:       product,
			Type:          enum.StockMovementTypeReorder,
			Delta:         decimal.Zero,
			QuantityAfter: item.Quantity,
			ReorderLevel:  item.ReorderLevel,
			ReferenceID:   referenceID,
		})
	})
	if err != nil {
		return err
	}

	l.logger.Info("reorder level updated",
		zap.String("product", product),
		zap.String("reorder_level", level.String()))

	l.afterWrite(ctx, enum.StockEventTypeReorderUpdated, item, decimal.Zero)
	return nil
}

func (l *Ledger) ListItems(ctx context.Context) ([]*models.StockItem, error) {
	return l.stock.ListStockItems(ctx, nil)
}

func (l *Ledger) StockMovements(ctx context.Context, product string, limit, offset uint64) ([]*models.StockMovement, error) {
	product, err := stock.ValidateProduct(product)
	if err != nil {
		return nil, err
	}
	if limit == 0 {
		limit = defaultMovementsLimit
	}
	if limit > maxMovementsLimit {
		limit = maxMovementsLimit
	}
	return l.stock.ListStockMovements(ctx, nil, product, limit, offset)
}

// Bootstrap seeds the fixed product set with zero quantity. Existing products are left as they are.
func (l *Ledger) Bootstrap(ctx context.Context) error {
	var seeded int64
	err := l.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		seeded, err = l.stock.SeedStockItems(ctx, tx, stock.SeedStockParams{
			Products:     l.options.SeedProducts,
			ReorderLevel: l.options.SeedReorderLevel.Decimal,
		})
		return err
	})
	if err != nil {
		return err
	}

	if seeded > 0 {
		l.stock.InvalidateLevels(ctx)
	}
	l.logger.Info("stock bootstrap complete",
		zap.Strings("products", l.options.SeedProducts),
		zap.Int64("seeded", seeded))
	return nil
}

// afterWrite runs once the transaction has committed.
func (l *Ledger) afterWrite(ctx context.Context, eventType enum.StockEventType, item *models.StockItem, delta decimal.Decimal) {
	l.stock.InvalidateLevels(ctx)

	now := time.Now()
	l.eventManager.PublishStockEvent(ctx, newStockEvent(eventType, item, delta, now))
	if item.IsLow() {
		l.eventManager.PublishStockEvent(ctx, newStockEvent(enum.StockEventTypeLow, item, delta, now))
	}
}

// txHook runs inside a ledger mutation transaction before the stock row is touched.
type txHook func(tx pgx.Tx) error

func (h txHook) run(tx pgx.Tx) error {
	if h == nil {
		return nil
	}
	return h(tx)
}

func validateAmount(product, field string, amount decimal.Decimal) (string, error) {
	product, err := stock.ValidateProduct(product)
	if err != nil {
		return product, err
	}
	return product, stock.ValidateQuantity(field, amount)
}

func untrackedAdmission(product string, requested decimal.Decimal) models.Admission {
	return models.Admission{
		Product:      product,
		Requested:    requested,
		Allowed:      false,
		Current:      decimal.Zero,
		ReorderLevel: decimal.Zero,
	}
}
