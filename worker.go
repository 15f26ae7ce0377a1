package fuelstock

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"gofalre.io/fuelstock/models"
)

const taskQueueSize = 1000

type MessageProcessor interface {
	ProcessMessage(ctx context.Context, message *models.WorkflowMessage) error
}

type WorkerPool struct {
	tasks     chan func()
	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
	logger    *zap.Logger
	processor MessageProcessor
}

func NewWorkerPool(size int, processor MessageProcessor, logger *zap.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	wp := &WorkerPool{
		tasks:     make(chan func(), taskQueueSize),
		logger:    logger,
		processor: processor,
	}

	wp.wg.Add(size)
	for i := 0; i < size; i++ {
		go wp.worker()
	}

	return wp
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()
	for task := range wp.tasks {
		task()
	}
}

// Submit 佇列滿時會阻塞，讓 NATS 的訂閱端自然產生背壓。
// Shutdown 之後送進來的訊息會被丟棄並回傳 false。
func (wp *WorkerPool) Submit(ctx context.Context, message *models.WorkflowMessage) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.closed {
		wp.logger.Warn("Worker pool closed, dropping workflow message",
			zap.String("message_type", string(message.Type)),
			zap.String("message_id", message.ID))
		return false
	}

	wp.tasks <- func() {
		if err := wp.processor.ProcessMessage(ctx, message); err != nil {
			wp.logger.Error("Failed to process workflow message",
				zap.Error(err),
				zap.String("message_type", string(message.Type)),
				zap.String("message_id", message.ID))
		}
	}
	return true
}

// Shutdown stops accepting tasks and waits for queued ones to finish.
// Submit calls already blocked on a full queue are let through first.
func (wp *WorkerPool) Shutdown() {
	wp.mu.Lock()
	if !wp.closed {
		wp.closed = true
		close(wp.tasks)
	}
	wp.mu.Unlock()
	wp.wg.Wait()
}
