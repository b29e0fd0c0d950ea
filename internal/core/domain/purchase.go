package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseRecord is one ledger entry. Once appended it is never updated or
// deleted; every stock decrement maps to exactly one record.
type PurchaseRecord struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	ItemID     string          `json:"item_id"`
	ItemName   string          `json:"item_name,omitempty"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
	CreatedAt  time.Time       `json:"created_at"`
}

// LineTotal is the decimal-exact price of quantity units at unitPrice.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}
