package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"github.com/rl1809/sweet-shop/internal/core/domain"
	"github.com/rl1809/sweet-shop/internal/port"
)

// MySQL server error numbers the adapter translates into domain errors.
const (
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
	errDuplicateEntry  = 1062
	errNoReferencedRow = 1452
	errOutOfRange      = 1264
)

var now = func() time.Time { return time.Now().UTC() }

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) Atomically(ctx context.Context, fn func(tx port.LedgerTx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", mapMySQLError(err))
	}
	defer tx.Rollback()

	if err := fn(&mysqlTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", mapMySQLError(err))
	}
	return nil
}

func (m *MySQLAdapter) ListPurchases(ctx context.Context, userID string) ([]domain.PurchaseRecord, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT p.id, p.user_id, p.item_id, i.name, p.quantity, p.unit_price, p.total_price, p.created_at
		FROM purchases p
		JOIN items i ON i.id = p.item_id
		WHERE p.user_id = ?
		ORDER BY p.created_at DESC, p.id DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query purchases: %w", err)
	}
	defer rows.Close()

	var records []domain.PurchaseRecord
	for rows.Next() {
		var p domain.PurchaseRecord
		if err := rows.Scan(&p.ID, &p.UserID, &p.ItemID, &p.ItemName, &p.Quantity, &p.UnitPrice, &p.TotalPrice, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		records = append(records, p)
	}
	return records, rows.Err()
}

type mysqlTx struct {
	tx *sql.Tx
}

func (t *mysqlTx) ConditionalDecrement(ctx context.Context, itemID string, amount int, expectedPrice decimal.Decimal) (*domain.Item, error) {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE items
		SET quantity = quantity - ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL AND quantity >= ? AND price = CAST(? AS DECIMAL(12,2))`,
		amount, now(), itemID, amount, expectedPrice.StringFixed(2),
	)
	if err != nil {
		return nil, fmt.Errorf("decrement stock: %w", mapMySQLError(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("decrement stock: %w", err)
	}
	if rows == 0 {
		return nil, domain.ErrConflict
	}

	return getItem(ctx, t.tx, itemID)
}

func (t *mysqlTx) AppendPurchase(ctx context.Context, record domain.PurchaseRecord) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO purchases (id, user_id, item_id, quantity, unit_price, total_price, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.UserID, record.ItemID, record.Quantity,
		record.UnitPrice.StringFixed(2), record.TotalPrice.StringFixed(2), record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert purchase: %w", mapMySQLError(err))
	}
	return nil
}

// mapMySQLError turns lock contention into domain.ErrConflict and constraint
// violations into caller errors. Other errors pass through untouched.
func mapMySQLError(err error) error {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return err
	}
	switch myErr.Number {
	case errDeadlock, errLockWaitTimeout:
		return fmt.Errorf("mysql error %d: %w", myErr.Number, domain.ErrConflict)
	case errDuplicateEntry:
		return domain.ErrAlreadyExists
	case errNoReferencedRow:
		return fmt.Errorf("unknown reference: %w", domain.ErrInvalidRequest)
	case errOutOfRange:
		return fmt.Errorf("value out of range: %w", domain.ErrInvalidRequest)
	}
	return err
}
