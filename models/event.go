package models

import (
	"time"

	"github.com/shopspring/decimal"

	"gofalre.io/fuelstock/models/enum"
)

// StockEvent 帳本變動後發布到 NATS 的事件
type StockEvent struct {
	ID           string              `json:"id"`
	Type         enum.StockEventType `json:"type"`
	Product      string              `json:"product"`
	Delta        decimal.Decimal     `json:"delta"`
	Quantity     decimal.Decimal     `json:"quantity"`
	ReorderLevel decimal.Decimal     `json:"reorder_level"`
	OccurredAt   time.Time           `json:"occurred_at"`
}

// WorkflowMessage 外部流程（銷售、進貨、管理）送入帳本的訊息
type WorkflowMessage struct {
	ID                  string                   `json:"id"`
	Type                enum.WorkflowMessageType `json:"type"`
	Product             string                   `json:"product"`
	Quantity            decimal.Decimal          `json:"quantity"`
	DefaultReorderLevel *decimal.Decimal         `json:"default_reorder_level,omitempty"`
	ReorderLevel        decimal.Decimal          `json:"reorder_level"`
	ReferenceID         string                   `json:"reference_id,omitempty"`
}

// ProcessedMessage 已處理過的訊息，避免重送時重複入帳
type ProcessedMessage struct {
	ID          string                   `json:"id"`
	Type        enum.WorkflowMessageType `json:"type"`
	Processed   bool                     `json:"processed"`
	CreatedAt   time.Time                `json:"created_at"`
	ProcessedAt time.Time                `json:"processed_at"`
}
