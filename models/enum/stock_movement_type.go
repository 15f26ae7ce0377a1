package enum

type StockMovementType string

const (
	StockMovementTypeSale     StockMovementType = "sale"
	StockMovementTypePurchase StockMovementType = "purchase"
	StockMovementTypeReorder  StockMovementType = "reorder"
)
