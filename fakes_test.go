package fuelstock

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gofalre.io/fuelstock/event"
	"gofalre.io/fuelstock/models"
	"gofalre.io/fuelstock/models/enum"
	"gofalre.io/fuelstock/stock"
)

// fakeStockRepo keeps stock in memory. It offers no row locking of its own,
// so any serialization observed in tests comes from the ledger.
type fakeStockRepo struct {
	mu            sync.Mutex
	items         map[string]*models.StockItem
	movements     []stock.CreateStockMovementParams
	nextID        int64
	err           error
	readDelay     time.Duration
	invalidations int
}

func newFakeStockRepo() *fakeStockRepo {
	return &fakeStockRepo{items: make(map[string]*models.StockItem)}
}

func (r *fakeStockRepo) put(product string, quantity, reorder int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.items[product] = &models.StockItem{
		ID:           r.nextID,
		Product:      product,
		Quantity:     decimal.NewFromInt(quantity),
		ReorderLevel: decimal.NewFromInt(reorder),
	}
}

func (r *fakeStockRepo) item(product string) (models.StockItem, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[product]
	if !ok {
		return models.StockItem{}, false
	}
	return *item, true
}

func (r *fakeStockRepo) snapshot() (map[string]models.StockItem, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make(map[string]models.StockItem, len(r.items))
	for k, v := range r.items {
		items[k] = *v
	}
	return items, len(r.movements)
}

func (r *fakeStockRepo) restore(items map[string]models.StockItem, movements int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = make(map[string]*models.StockItem, len(items))
	for k, v := range items {
		v := v
		r.items[k] = &v
	}
	r.movements = r.movements[:movements]
}

func (r *fakeStockRepo) GetStockItem(_ context.Context, _ pgx.Tx, product string) (*models.StockItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, &stock.StorageError{Op: "get stock item", Err: r.err}
	}
	item, ok := r.items[product]
	if !ok {
		return nil, &stock.NotFoundError{Product: product}
	}
	c := *item
	return &c, nil
}

func (r *fakeStockRepo) GetStockItemForUpdate(ctx context.Context, tx pgx.Tx, product string) (*models.StockItem, error) {
	item, err := r.GetStockItem(ctx, tx, product)
	if r.readDelay > 0 {
		time.Sleep(r.readDelay)
	}
	return item, err
}

func (r *fakeStockRepo) ListStockItems(_ context.Context, _ pgx.Tx) ([]*models.StockItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, &stock.StorageError{Op: "list stock items", Err: r.err}
	}
	items := make([]*models.StockItem, 0, len(r.items))
	for _, item := range r.items {
		c := *item
		items = append(items, &c)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Product < items[j].Product })
	return items, nil
}

func (r *fakeStockRepo) GetStockLevels(_ context.Context, _ pgx.Tx) (map[string]decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, &stock.StorageError{Op: "list stock levels", Err: r.err}
	}
	levels := make(map[string]decimal.Decimal, len(r.items))
	for product, item := range r.items {
		levels[product] = item.Quantity
	}
	return levels, nil
}

func (r *fakeStockRepo) DebitStock(_ context.Context, _ pgx.Tx, params stock.DebitStockParams) (*models.StockItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, &stock.StorageError{Op: "debit stock", Err: r.err}
	}
	item, ok := r.items[params.Product]
	if !ok {
		return nil, &stock.NotFoundError{Product: params.Product}
	}
	item.Quantity = item.Debit(params.Quantity)
	c := *item
	return &c, nil
}

func (r *fakeStockRepo) CreditOrCreateStock(_ context.Context, _ pgx.Tx, params stock.CreditStockParams) (*models.StockItem, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, false, &stock.StorageError{Op: "credit stock", Err: r.err}
	}
	item, ok := r.items[params.Product]
	if !ok {
		r.nextID++
		item = &models.StockItem{
			ID:           r.nextID,
			Product:      params.Product,
			Quantity:     params.Quantity,
			ReorderLevel: params.DefaultReorderLevel,
		}
		r.items[params.Product] = item
	} else {
		item.Quantity = item.Quantity.Add(params.Quantity)
	}
	c := *item
	return &c, !ok, nil
}

func (r *fakeStockRepo) UpdateReorderLevel(_ context.Context, _ pgx.Tx, params stock.UpdateReorderLevelParams) (*models.StockItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, &stock.StorageError{Op: "update reorder level", Err: r.err}
	}
	item, ok := r.items[params.Product]
	if !ok {
		return nil, &stock.NotFoundError{Product: params.Product}
	}
	item.ReorderLevel = params.ReorderLevel
	c := *item
	return &c, nil
}

func (r *fakeStockRepo) SeedStockItems(_ context.Context, _ pgx.Tx, params stock.SeedStockParams) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, &stock.StorageError{Op: "seed stock", Err: r.err}
	}
	var seeded int64
	for _, product := range params.Products {
		if _, ok := r.items[product]; ok {
			continue
		}
		r.nextID++
		r.items[product] = &models.StockItem{
			ID:           r.nextID,
			Product:      product,
			Quantity:     decimal.Zero,
			ReorderLevel: params.ReorderLevel,
		}
		seeded++
	}
	return seeded, nil
}

func (r *fakeStockRepo) CreateStockMovement(_ context.Context, _ pgx.Tx, params stock.CreateStockMovementParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.movements = append(r.movements, params)
	return nil
}

func (r *fakeStockRepo) ListStockMovements(_ context.Context, _ pgx.Tx, product string, limit, offset uint64) ([]*models.StockMovement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.StockMovement
	for i := len(r.movements) - 1; i >= 0; i-- {
		m := r.movements[i]
		if m.Product != product {
			continue
		}
		out = append(out, &models.StockMovement{
			ID:            int64(i + 1),
			Product:       m.Product,
			Type:          m.Type,
			Delta:         m.Delta,
			QuantityAfter: m.QuantityAfter,
			ReorderLevel:  m.ReorderLevel,
			ReferenceID:   m.ReferenceID,
		})
	}
	if offset >= uint64(len(out)) {
		return []*models.StockMovement{}, nil
	}
	out = out[offset:]
	if uint64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeStockRepo) InvalidateLevels(context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidations++
}

func (r *fakeStockRepo) movementsOf(product string) []stock.CreateStockMovementParams {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []stock.CreateStockMovementParams
	for _, m := range r.movements {
		if m.Product == product {
			out = append(out, m)
		}
	}
	return out
}

// fakeTxRunner rolls the fake repositories back when fn fails.
type fakeTxRunner struct {
	stock    *fakeStockRepo
	messages *fakeMessageRepo
	begun    atomic.Int64
}

func (f *fakeTxRunner) ExecuteTransaction(_ context.Context, fn func(tx pgx.Tx) error) error {
	f.begun.Add(1)
	items, movements := f.stock.snapshot()
	claimed := f.messages.snapshot()
	if err := fn(nil); err != nil {
		f.stock.restore(items, movements)
		f.messages.restore(claimed)
		return err
	}
	return nil
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages map[string]*models.ProcessedMessage
	getErr   error
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: make(map[string]*models.ProcessedMessage)}
}

var _ event.Repository = (*fakeMessageRepo)(nil)

func (r *fakeMessageRepo) Claim(_ context.Context, _ pgx.Tx, id string, messageType enum.WorkflowMessageType) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.messages[id]; ok {
		return false, nil
	}
	r.messages[id] = &models.ProcessedMessage{ID: id, Type: messageType}
	return true, nil
}

func (r *fakeMessageRepo) GetByID(_ context.Context, _ pgx.Tx, id string) (*models.ProcessedMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	m, ok := r.messages[id]
	if !ok {
		return nil, event.ErrNotFound
	}
	c := *m
	return &c, nil
}

func (r *fakeMessageRepo) MarkAsProcessed(_ context.Context, _ pgx.Tx, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.messages[id]; ok {
		m.Processed = true
	}
	return nil
}

func (r *fakeMessageRepo) snapshot() map[string]models.ProcessedMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]models.ProcessedMessage, len(r.messages))
	for k, v := range r.messages {
		out[k] = *v
	}
	return out
}

func (r *fakeMessageRepo) restore(messages map[string]models.ProcessedMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = make(map[string]*models.ProcessedMessage, len(messages))
	for k, v := range messages {
		v := v
		r.messages[k] = &v
	}
}

type ledgerFixture struct {
	ledger   *Ledger
	stock    *fakeStockRepo
	messages *fakeMessageRepo
	tm       *fakeTxRunner
}

func newLedgerFixture() *ledgerFixture {
	return newLedgerFixtureWith(nil, Options{})
}

func newLedgerFixtureWith(eventManager *EventManager, options Options) *ledgerFixture {
	stockRepo := newFakeStockRepo()
	messages := newFakeMessageRepo()
	tm := &fakeTxRunner{stock: stockRepo, messages: messages}
	return &ledgerFixture{
		ledger:   NewLedger(stockRepo, messages, tm, eventManager, options, zap.NewNop()),
		stock:    stockRepo,
		messages: messages,
		tm:       tm,
	}
}
