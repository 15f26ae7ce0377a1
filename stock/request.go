package stock

import (
	"strings"

	"github.com/shopspring/decimal"

	"gofalre.io/fuelstock/models/enum"
)

type DebitStockParams struct {
	Product  string
	Quantity decimal.Decimal
}

type CreditStockParams struct {
	Product             string
	Quantity            decimal.Decimal
	DefaultReorderLevel decimal.Decimal
}

type UpdateReorderLevelParams struct {
	Product      string
	ReorderLevel decimal.Decimal
}

type SeedStockParams struct {
	Products     []string
	ReorderLevel decimal.Decimal
}

type CreateStockMovementParams struct {
	Product       string
	Type          enum.StockMovementType
	Delta         decimal.Decimal
	QuantityAfter decimal.Decimal
	ReorderLevel  decimal.Decimal
	ReferenceID   string
}

// ValidateProduct rejects empty product codes. Codes are case-sensitive and only trimmed.
func ValidateProduct(product string) (string, error) {
	product = strings.TrimSpace(product)
	if product == "" {
		return "", &ValidationError{Field: "product", Reason: "must not be empty"}
	}
	return product, nil
}

// ValidateQuantity rejects negative amounts; zero is accepted.
func ValidateQuantity(field string, q decimal.Decimal) error {
	if q.IsNegative() {
		return &ValidationError{Field: field, Reason: "must not be negative"}
	}
	return nil
}
