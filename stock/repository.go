package stock

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gofalre.io/fuelstock/driver"
	"gofalre.io/fuelstock/models"
)

var _ Repository = (*repository)(nil)

type Repository interface {
	GetStockItem(ctx context.Context, tx pgx.Tx, product string) (*models.StockItem, error)
	GetStockItemForUpdate(ctx context.Context, tx pgx.Tx, product string) (*models.StockItem, error)
	ListStockItems(ctx context.Context, tx pgx.Tx) ([]*models.StockItem, error)
	GetStockLevels(ctx context.Context, tx pgx.Tx) (map[string]decimal.Decimal, error)
	DebitStock(ctx context.Context, tx pgx.Tx, params DebitStockParams) (*models.StockItem, error)
	CreditOrCreateStock(ctx context.Context, tx pgx.Tx, params CreditStockParams) (*models.StockItem, bool, error)
	UpdateReorderLevel(ctx context.Context, tx pgx.Tx, params UpdateReorderLevelParams) (*models.StockItem, error)
	SeedStockItems(ctx context.Context, tx pgx.Tx, params SeedStockParams) (int64, error)
	CreateStockMovement(ctx context.Context, tx pgx.Tx, params CreateStockMovementParams) error
	ListStockMovements(ctx context.Context, tx pgx.Tx, product string, limit, offset uint64) ([]*models.StockMovement, error)
	InvalidateLevels(ctx context.Context)
}

type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repository struct {
	conn   driver.PostgresPool
	cache  *LevelCache
	logger *zap.Logger
}

// NewRepository cache 可以是 nil，此時 GetStockLevels 一律查資料庫
func NewRepository(conn driver.PostgresPool, cache *LevelCache, logger *zap.Logger) Repository {
	return &repository{
		conn:   conn,
		cache:  cache,
		logger: logger,
	}
}

const stockColumns = `id, product, quantity, reorder_level, created_at, updated_at`

const (
	getStockItemSQL = `SELECT ` + stockColumns + ` FROM stock WHERE product = $1`

	getStockItemForUpdateSQL = getStockItemSQL + ` FOR UPDATE`

	listStockItemsSQL = `SELECT ` + stockColumns + ` FROM stock ORDER BY product ASC`

	listStockLevelsSQL = `SELECT product, quantity FROM stock`

	debitStockSQL = `
		UPDATE stock
		SET quantity = GREATEST(quantity - $2, 0), updated_at = now()
		WHERE product = $1
		RETURNING ` + stockColumns

	creditOrCreateStockSQL = `
		INSERT INTO stock (product, quantity, reorder_level)
		VALUES ($1, $2, $3)
		ON CONFLICT (product) DO UPDATE
		SET quantity = stock.quantity + EXCLUDED.quantity, updated_at = now()
		RETURNING ` + stockColumns + `, (xmax = 0) AS created`

	updateReorderLevelSQL = `
		UPDATE stock
		SET reorder_level = $2, updated_at = now()
		WHERE product = $1
		RETURNING ` + stockColumns

	seedStockItemsSQL = `
		INSERT INTO stock (product, quantity, reorder_level)
		SELECT p, 0, $2 FROM unnest($1::text[]) AS p
		ON CONFLICT (product) DO NOTHING`

	createStockMovementSQL = `
		INSERT INTO stock_movements (product, type, delta, quantity_after, reorder_level, reference_id)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))`

	listStockMovementsSQL = `
		SELECT id, product, type, delta, quantity_after, reorder_level, COALESCE(reference_id, ''), created_at
		FROM stock_movements
		WHERE product = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`
)

func (r *repository) db(tx pgx.Tx) querier {
	if tx != nil {
		return tx
	}
	return r.conn
}

func scanStockItem(row pgx.Row, extra ...any) (*models.StockItem, error) {
	var item models.StockItem
	dest := append([]any{
		&item.ID,
		&item.Product,
		&item.Quantity,
		&item.ReorderLevel,
		&item.CreatedAt,
		&item.UpdatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) getStockItem(ctx context.Context, tx pgx.Tx, query, op, product string) (*models.StockItem, error) {
	item, err := scanStockItem(r.db(tx).QueryRow(ctx, query, product))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Product: product}
	}
	if err != nil {
		r.logger.Error("failed to get stock item", zap.String("product", product), zap.Error(err))
		return nil, &StorageError{Op: op, Err: err}
	}
	return item, nil
}

func (r *repository) GetStockItem(ctx context.Context, tx pgx.Tx, product string) (*models.StockItem, error) {
	return r.getStockItem(ctx, tx, getStockItemSQL, "get stock item", product)
}

// GetStockItemForUpdate 鎖住該產品的資料列直到交易結束，tx 不可為 nil
func (r *repository) GetStockItemForUpdate(ctx context.Context, tx pgx.Tx, product string) (*models.StockItem, error) {
	if tx == nil {
		return nil, &StorageError{Op: "lock stock item", Err: errors.New("row lock requires a transaction")}
	}
	return r.getStockItem(ctx, tx, getStockItemForUpdateSQL, "lock stock item", product)
}

func (r *repository) ListStockItems(ctx context.Context, tx pgx.Tx) ([]*models.StockItem, error) {
	rows, err := r.db(tx).Query(ctx, listStockItemsSQL)
	if err != nil {
		r.logger.Error("failed to list stock items", zap.Error(err))
		return nil, &StorageError{Op: "list stock items", Err: err}
	}
	defer rows.Close()

	items := make([]*models.StockItem, 0)
	for rows.Next() {
		item, err := scanStockItem(rows)
		if err != nil {
			return nil, &StorageError{Op: "scan stock item", Err: err}
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, &StorageError{Op: "list stock items", Err: err}
	}

	return items, nil
}

func (r *repository) GetStockLevels(ctx context.Context, tx pgx.Tx) (map[string]decimal.Decimal, error) {
	// 交易內一律讀資料庫，避免讀到交易外的快取
	var gen int64
	var cacheable bool
	if tx == nil {
		if levels, found := r.cache.Get(ctx); found {
			return levels, nil
		}
		gen, cacheable = r.cache.Generation(ctx)
	}

	rows, err := r.db(tx).Query(ctx, listStockLevelsSQL)
	if err != nil {
		r.logger.Error("failed to list stock levels", zap.Error(err))
		return nil, &StorageError{Op: "list stock levels", Err: err}
	}
	defer rows.Close()

	levels := make(map[string]decimal.Decimal)
	for rows.Next() {
		var product string
		var quantity decimal.Decimal
		if err = rows.Scan(&product, &quantity); err != nil {
			return nil, &StorageError{Op: "scan stock level", Err: err}
		}
		levels[product] = quantity
	}
	if err = rows.Err(); err != nil {
		return nil, &StorageError{Op: "list stock levels", Err: err}
	}

	if cacheable {
		r.cache.Set(ctx, gen, levels)
	}

	return levels, nil
}

func (r *repository) DebitStock(ctx context.Context, tx pgx.Tx, params DebitStockParams) (*models.StockItem, error) {
	item, err := scanStockItem(r.db(tx).QueryRow(ctx, debitStockSQL, params.Product, params.Quantity))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Product: params.Product}
	}
	if err != nil {
		r.logger.Error("failed to debit stock",
			zap.String("product", params.Product),
			zap.String("quantity", params.Quantity.String()),
			zap.Error(err))
		return nil, &StorageError{Op: "debit stock", Err: err}
	}
	return item, nil
}

// CreditOrCreateStock 以單一 upsert 入帳；第二個回傳值表示是否為新建立的產品
func (r *repository) CreditOrCreateStock(ctx context.Context, tx pgx.Tx, params CreditStockParams) (*models.StockItem, bool, error) {
	var created bool
	item, err := scanStockItem(
		r.db(tx).QueryRow(ctx, creditOrCreateStockSQL, params.Product, params.Quantity, params.DefaultReorderLevel),
		&created,
	)
	if err != nil {
		r.logger.Error("failed to credit stock",
			zap.String("product", params.Product),
			zap.String("quantity", params.Quantity.String()),
			zap.Error(err))
		return nil, false, &StorageError{Op: "credit stock", Err: err}
	}
	return item, created, nil
}

func (r *repository) UpdateReorderLevel(ctx context.Context, tx pgx.Tx, params UpdateReorderLevelParams) (*models.StockItem, error) {
	item, err := scanStockItem(r.db(tx).QueryRow(ctx, updateReorderLevelSQL, params.Product, params.ReorderLevel))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Product: params.Product}
	}
	if err != nil {
		r.logger.Error("failed to update reorder level", zap.String("product", params.Product), zap.Error(err))
		return nil, &StorageError{Op: "update reorder level", Err: err}
	}
	return item, nil
}

func (r *repository) SeedStockItems(ctx context.Context, tx pgx.Tx, params SeedStockParams) (int64, error) {
	tag, err := r.db(tx).Exec(ctx, seedStockItemsSQL, params.Products, params.ReorderLevel)
	if err != nil {
		r.logger.Error("failed to seed stock", zap.Strings("products", params.Products), zap.Error(err))
		return 0, &StorageError{Op: "seed stock", Err: err}
	}
	return tag.RowsAffected(), nil
}

func (r *repository) CreateStockMovement(ctx context.Context, tx pgx.Tx, params CreateStockMovementParams) error {
	_, err := r.db(tx).Exec(ctx, createStockMovementSQL,
		params.Product,
		string(params.Type),
		params.Delta,
		params.QuantityAfter,
		params.ReorderLevel,
		params.ReferenceID,
	)
	if err != nil {
		r.logger.Error("failed to create stock movement", zap.String("product", params.Product), zap.Error(err))
		return &StorageError{Op: "create stock movement", Err: err}
	}
	return nil
}

func (r *repository) ListStockMovements(ctx context.Context, tx pgx.Tx, product string, limit, offset uint64) ([]*models.StockMovement, error) {
	rows, err := r.db(tx).Query(ctx, listStockMovementsSQL, product, int64(limit), int64(offset))
	if err != nil {
		r.logger.Error("failed to list stock movements", zap.String("product", product), zap.Error(err))
		return nil, &StorageError{Op: "list stock movements", Err: err}
	}
	defer rows.Close()

	movements := make([]*models.StockMovement, 0, limit)
	for rows.Next() {
		var m models.StockMovement
		if err = rows.Scan(
			&m.ID,
			&m.Product,
			&m.Type,
			&m.Delta,
			&m.QuantityAfter,
			&m.ReorderLevel,
			&m.ReferenceID,
			&m.CreatedAt,
		); err != nil {
			return nil, &StorageError{Op: "scan stock movement", Err: err}
		}
		movements = append(movements, &m)
	}
	if err = rows.Err(); err != nil {
		return nil, &StorageError{Op: "list stock movements", Err: err}
	}

	return movements, nil
}

func (r *repository) InvalidateLevels(ctx context.Context) {
	r.cache.Invalidate(ctx)
}
