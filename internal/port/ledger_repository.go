package port

import (
	"context"

	"github.com/rl1809/sweet-shop/internal/core/domain"
	"github.com/shopspring/decimal"
)

// LedgerTx is the write surface available inside one store transaction.
type LedgerTx interface {
	// ConditionalDecrement subtracts amount from the item's quantity only if
	// quantity >= amount and the price still equals expectedPrice. Otherwise it
	// returns domain.ErrConflict and changes nothing.
	ConditionalDecrement(ctx context.Context, itemID string, amount int, expectedPrice decimal.Decimal) (*domain.Item, error)

	// AppendPurchase adds an immutable ledger entry
	AppendPurchase(ctx context.Context, record domain.PurchaseRecord) error
}

type LedgerRepository interface {
	// Atomically runs fn in a single transaction: every LedgerTx effect commits
	// together when fn returns nil, and none of them is visible otherwise
	Atomically(ctx context.Context, fn func(tx LedgerTx) error) error

	// ListPurchases returns a user's ledger entries, newest first
	ListPurchases(ctx context.Context, userID string) ([]domain.PurchaseRecord, error)
}
