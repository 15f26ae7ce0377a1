package enum

// StockEventType 對外發布的庫存事件類型
type StockEventType string

const (
	StockEventTypeSold           StockEventType = "sold"
	StockEventTypePurchased      StockEventType = "purchased"
	StockEventTypeReorderUpdated StockEventType = "reorder_updated"
	StockEventTypeLow            StockEventType = "low"
)

// WorkflowMessageType 銷售、進貨等外部流程送入的訊息類型
type WorkflowMessageType string

const (
	WorkflowMessageTypeSaleRecorded     WorkflowMessageType = "sale.recorded"
	WorkflowMessageTypePurchaseRecorded WorkflowMessageType = "purchase.recorded"
	WorkflowMessageTypeReorderUpdated   WorkflowMessageType = "reorder.updated"
)
