package fuelstock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gofalre.io/fuelstock/event"
	"gofalre.io/fuelstock/models"
	"gofalre.io/fuelstock/models/enum"
	"gofalre.io/fuelstock/stock"
)

const (
	// StockEventSubjectPrefix 帳本變動事件的主題前綴，完整主題為 fuelstock.stock.<type>
	StockEventSubjectPrefix = "fuelstock.stock."
	// WorkflowSubject 外部流程送入訊息的主題
	WorkflowSubject = "fuelstock.workflow.>"

	drainTimeout      = 30 * time.Second
	drainPollInterval = 10 * time.Millisecond
)

var errAlreadyProcessed = errors.New("message already processed")

type MessageHandler func(context.Context, *models.WorkflowMessage) error

type EventManager struct {
	natsConn *nats.Conn
	handlers map[enum.WorkflowMessageType]MessageHandler
	sub      *nats.Subscription
	logger   *zap.Logger
}

// NewEventManager natsConn 為 nil 時不發布也不訂閱
func NewEventManager(natsConn *nats.Conn, logger *zap.Logger) *EventManager {
	return &EventManager{
		natsConn: natsConn,
		handlers: make(map[enum.WorkflowMessageType]MessageHandler),
		logger:   logger,
	}
}

func (em *EventManager) RegisterHandler(messageType enum.WorkflowMessageType, handler MessageHandler) {
	em.handlers[messageType] = handler
}

func (em *EventManager) GetHandler(messageType enum.WorkflowMessageType) (MessageHandler, bool) {
	handler, exists := em.handlers[messageType]
	return handler, exists
}

func (em *EventManager) SubscribeToWorkflows(wp *WorkerPool) error {
	if em.natsConn == nil {
		return errors.New("nats connection not configured")
	}

	sub, err := em.natsConn.QueueSubscribe(WorkflowSubject, "fuelstock-ledger", func(msg *nats.Msg) {
		var message models.WorkflowMessage
		if err := json.Unmarshal(msg.Data, &message); err != nil {
			em.logger.Error("Failed to unmarshal workflow message",
				zap.String("subject", msg.Subject),
				zap.Error(err))
			return
		}

		wp.Submit(context.Background(), &message)
	})
	if err != nil {
		return err
	}

	em.sub = sub
	return nil
}

// Unsubscribe drains the workflow subscription and returns once every pending
// message has been handed to the callback. Drain itself only starts the process.
func (em *EventManager) Unsubscribe() error {
	if em.sub == nil {
		return nil
	}
	sub := em.sub
	em.sub = nil

	if err := sub.Drain(); err != nil {
		return err
	}

	deadline := time.Now().Add(drainTimeout)
	for sub.IsValid() {
		if time.Now().After(deadline) {
			return fmt.Errorf("draining %s: timed out after %s", WorkflowSubject, drainTimeout)
		}
		time.Sleep(drainPollInterval)
	}
	return nil
}

// PublishStockEvent 發布失敗只記錄，不影響已提交的帳本變動
func (em *EventManager) PublishStockEvent(_ context.Context, stockEvent *models.StockEvent) {
	if em.natsConn == nil {
		return
	}

	data, err := json.Marshal(stockEvent)
	if err != nil {
		em.logger.Error("Failed to marshal stock event", zap.String("event_id", stockEvent.ID), zap.Error(err))
		return
	}

	if err = em.natsConn.Publish(StockEventSubjectPrefix+string(stockEvent.Type), data); err != nil {
		em.logger.Error("Failed to publish stock event",
			zap.String("event_id", stockEvent.ID),
			zap.String("event_type", string(stockEvent.Type)),
			zap.String("product", stockEvent.Product),
			zap.Error(err))
	}
}

func newStockEvent(eventType enum.StockEventType, item *models.StockItem, delta decimal.Decimal, at time.Time) *models.StockEvent {
	return &models.StockEvent{
		ID:           uuid.NewString(),
		Type:         eventType,
		Product:      item.Product,
		Delta:        delta,
		Quantity:     item.Quantity,
		ReorderLevel: item.ReorderLevel,
		OccurredAt:   at,
	}
}

func (l *Ledger) registerMessageHandlers() {
	messageHandlers := map[enum.WorkflowMessageType]MessageHandler{
		enum.WorkflowMessageTypeSaleRecorded:     l.handleSaleRecorded,
		enum.WorkflowMessageTypePurchaseRecorded: l.handlePurchaseRecorded,
		enum.WorkflowMessageTypeReorderUpdated:   l.handleReorderUpdated,
	}

	for messageType, handler := range messageHandlers {
		l.eventManager.RegisterHandler(messageType, handler)
	}
}

// Listen 訂閱外部流程訊息並交給 size 個 worker 處理
func (l *Ledger) Listen(size int) error {
	if l.workerPool != nil {
		return errors.New("ledger already listening")
	}
	wp := NewWorkerPool(size, l, l.logger)
	if err := l.eventManager.SubscribeToWorkflows(wp); err != nil {
		wp.Shutdown()
		return fmt.Errorf("subscribe to workflows: %w", err)
	}
	l.workerPool = wp
	return nil
}

// Close drains the workflow subscription and waits for in-flight messages.
func (l *Ledger) Close() error {
	err := l.eventManager.Unsubscribe()
	if l.workerPool != nil {
		l.workerPool.Shutdown()
		l.workerPool = nil
	}
	return err
}

// claim 讓訊息的去重紀錄與帳本變動在同一個交易內提交
func (l *Ledger) claim(ctx context.Context, message *models.WorkflowMessage) txHook {
	return func(tx pgx.Tx) error {
		claimed, err := l.messages.Claim(ctx, tx, message.ID, message.Type)
		if err != nil {
			return fmt.Errorf("claim message: %w", err)
		}
		if !claimed {
			return errAlreadyProcessed
		}
		return l.messages.MarkAsProcessed(ctx, tx, message.ID)
	}
}

func (l *Ledger) handleSaleRecorded(ctx context.Context, message *models.WorkflowMessage) error {
	return l.applyAtSale(ctx, message.Product, message.Quantity, message.ReferenceID, l.claim(ctx, message))
}

func (l *Ledger) handlePurchaseRecorded(ctx context.Context, message *models.WorkflowMessage) error {
	defaultReorderLevel := l.options.DefaultReorderLevel.Decimal
	if message.DefaultReorderLevel != nil {
		defaultReorderLevel = *message.DefaultReorderLevel
	}
	return l.applyAtPurchase(ctx, message.Product, message.Quantity, defaultReorderLevel, message.ReferenceID, l.claim(ctx, message))
}

func (l *Ledger) handleReorderUpdated(ctx context.Context, message *models.WorkflowMessage) error {
	return l.updateReorderLevel(ctx, message.Product, message.ReorderLevel, message.ReferenceID, l.claim(ctx, message))
}

// ProcessMessage applies one workflow message exactly once. Redelivered
// messages are skipped; validation and not-found failures are logged and dropped
// because retrying them cannot succeed.
func (l *Ledger) ProcessMessage(ctx context.Context, message *models.WorkflowMessage) error {
	if message.ID == "" {
		return errors.New("workflow message without id")
	}

	handler, exists := l.eventManager.GetHandler(message.Type)
	if !exists {
		return fmt.Errorf("no handler registered for message type: %s", message.Type)
	}

	// 重送的訊息在這裡就跳過，不必等產品鎖；交易內的 claim 仍是最終保證
	processed, err := l.messages.GetByID(ctx, nil, message.ID)
	switch {
	case err == nil && processed.Processed:
		l.logger.Info("Workflow message already processed", zap.String("message_id", message.ID))
		return nil
	case err != nil && !errors.Is(err, event.ErrNotFound):
		return fmt.Errorf("look up message %s: %w", message.ID, err)
	}

	err = handler(ctx, message)
	switch {
	case err == nil:
		l.logger.Info("Workflow message processed",
			zap.String("message_id", message.ID),
			zap.String("message_type", string(message.Type)),
			zap.String("product", message.Product))
		return nil
	case errors.Is(err, errAlreadyProcessed):
		l.logger.Info("Workflow message already processed", zap.String("message_id", message.ID))
		return nil
	case stock.IsValidation(err), stock.IsNotFound(err):
		l.logger.Warn("Workflow message rejected",
			zap.String("message_id", message.ID),
			zap.String("message_type", string(message.Type)),
			zap.Error(err))
		return nil
	default:
		return err
	}
}
