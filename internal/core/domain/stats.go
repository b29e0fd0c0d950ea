package domain

import "github.com/shopspring/decimal"

// Stats is the admin dashboard aggregate over live items and the ledger.
type Stats struct {
	ItemCount     int             `json:"item_count"`
	TotalUnits    int             `json:"total_units"`
	StockValue    decimal.Decimal `json:"stock_value"`
	LowStockItems int             `json:"low_stock_items"`
	PurchaseCount int             `json:"purchase_count"`
	Revenue       decimal.Decimal `json:"revenue"`
}
