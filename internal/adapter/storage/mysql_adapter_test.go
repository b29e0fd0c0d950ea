package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"github.com/rl1809/sweet-shop/internal/core/domain"
	"github.com/rl1809/sweet-shop/internal/port"
)

var itemColumns = []string{"id", "name", "description", "category_id", "category_name", "price", "quantity", "image_url", "created_at", "updated_at"}

func newMockAdapter(t *testing.T) (*MySQLAdapter, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("There were unfulfilled expectations: %s", err)
		}
		db.Close()
	})
	return NewMySQLAdapter(db), mock
}

func testRecord() domain.PurchaseRecord {
	return domain.PurchaseRecord{
		ID:         "p-1",
		UserID:     "u-1",
		ItemID:     "item-1",
		Quantity:   3,
		UnitPrice:  decimal.RequireFromString("2.00"),
		TotalPrice: decimal.RequireFromString("6.00"),
		CreatedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func purchaseTx(record domain.PurchaseRecord) func(tx port.LedgerTx) error {
	return func(tx port.LedgerTx) error {
		if _, err := tx.ConditionalDecrement(context.Background(), record.ItemID, record.Quantity, record.UnitPrice); err != nil {
			return err
		}
		return tx.AppendPurchase(context.Background(), record)
	}
}

func TestAtomically_CommitsDecrementAndRecord(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	record := testRecord()
	ts := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE items")).
		WithArgs(3, sqlmock.AnyArg(), "item-1", 3, "2.00").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE i.deleted_at IS NULL AND i.id = ?")).
		WithArgs("item-1").
		WillReturnRows(sqlmock.NewRows(itemColumns).
			AddRow("item-1", "Fudge", "", "cat-1", "Fudge Co", "2.00", 2, "", ts, ts))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO purchases")).
		WithArgs("p-1", "u-1", "item-1", 3, "2.00", "6.00", record.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := adapter.Atomically(context.Background(), purchaseTx(record)); err != nil {
		t.Fatalf("Atomically failed: %v", err)
	}
}

func TestAtomically_ConditionFailsRollsBack(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("AND quantity >= ? AND price = CAST(? AS DECIMAL(12,2))")).
		WithArgs(3, sqlmock.AnyArg(), "item-1", 3, "2.00").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := adapter.Atomically(context.Background(), purchaseTx(testRecord()))
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected ErrConflict, got: %v", err)
	}
}

func TestAtomically_DeadlockOnInsertIsConflict(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	ts := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE items")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM items i")).
		WillReturnRows(sqlmock.NewRows(itemColumns).
			AddRow("item-1", "Fudge", "", "cat-1", "Fudge Co", "2.00", 2, "", ts, ts))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO purchases")).
		WillReturnError(&mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"})
	mock.ExpectRollback()

	err := adapter.Atomically(context.Background(), purchaseTx(testRecord()))
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected ErrConflict, got: %v", err)
	}
}

func TestGetItem_NotFound(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectQuery(regexp.QuoteMeta("AND i.id = ?")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(itemColumns))

	_, err := adapter.GetItem(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}
}

func TestGetItem_ScansDecimalPrice(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("AND i.id = ?")).
		WithArgs("item-1").
		WillReturnRows(sqlmock.NewRows(itemColumns).
			AddRow("item-1", "Toffee", "chewy", "cat-1", "Candy", []byte("0.30"), 5, "", ts, ts))

	item, err := adapter.GetItem(context.Background(), "item-1")
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if !item.Price.Equal(decimal.RequireFromString("0.3")) {
		t.Errorf("expected price 0.30, got %s", item.Price)
	}
	if item.CategoryName != "Candy" || item.Quantity != 5 {
		t.Errorf("unexpected item: %+v", item)
	}
}

func TestListItems_AppliesFilters(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	min := decimal.RequireFromString("1.5")
	max := decimal.RequireFromString("4")

	mock.ExpectQuery(regexp.QuoteMeta("AND i.name LIKE ? AND c.name LIKE ? AND i.price >= CAST(? AS DECIMAL(12,2)) AND i.price <= CAST(? AS DECIMAL(12,2)) ORDER BY i.created_at DESC")).
		WithArgs("%choc\\_%", "%bar%", "1.5", "4").
		WillReturnRows(sqlmock.NewRows(itemColumns))

	items, err := adapter.ListItems(context.Background(), domain.ItemFilter{
		NameContains:     "choc_",
		CategoryContains: "bar",
		MinPrice:         &min,
		MaxPrice:         &max,
	})
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", items)
	}
}

func TestRestock_NotFound(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET quantity = quantity + ?")).
		WithArgs(10, sqlmock.AnyArg(), "gone").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := adapter.Restock(context.Background(), "gone", 10)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}
}

func TestRestock_OutOfRangeIsInvalid(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET quantity = quantity + ?")).
		WithArgs(2, sqlmock.AnyArg(), "item-1").
		WillReturnError(&mysql.MySQLError{Number: 1264, Message: "Out of range value for column 'quantity' at row 1"})
	mock.ExpectRollback()

	_, err := adapter.Restock(context.Background(), "item-1", 2)
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got: %v", err)
	}
}

func TestCreateCategory_Duplicate(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO categories")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'Fudge' for key 'uq_categories_name'"})

	err := adapter.CreateCategory(context.Background(), domain.Category{ID: "c", Name: "Fudge"})
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got: %v", err)
	}
}

func TestCreateItem_UnknownCategory(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO items")).
		WillReturnError(&mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row"})

	err := adapter.CreateItem(context.Background(), domain.Item{ID: "i", CategoryID: "nope"})
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got: %v", err)
	}
}

func TestStats(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM items WHERE deleted_at IS NULL")).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"count", "units", "value", "low"}).
			AddRow(3, []byte("42"), []byte("57.50"), []byte("2")))
	mock.ExpectQuery(regexp.QuoteMeta("FROM purchases")).
		WillReturnRows(sqlmock.NewRows([]string{"count", "revenue"}).
			AddRow(4, []byte("12.25")))

	stats, err := adapter.Stats(context.Background(), 10)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.ItemCount != 3 || stats.TotalUnits != 42 || stats.LowStockItems != 2 || stats.PurchaseCount != 4 {
		t.Errorf("unexpected counts: %+v", stats)
	}
	if !stats.StockValue.Equal(decimal.RequireFromString("57.5")) || !stats.Revenue.Equal(decimal.RequireFromString("12.25")) {
		t.Errorf("unexpected sums: %+v", stats)
	}
}

func TestGetUserByEmail_NotFound(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = ?")).
		WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "name", "password_hash", "role", "created_at"}))

	_, err := adapter.GetUserByEmail(context.Background(), "nobody@example.com")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}
}

func TestGetUserByID_Roles(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	columns := []string{"id", "email", "name", "password_hash", "role", "created_at"}

	t.Run("admin", func(t *testing.T) {
		adapter, mock := newMockAdapter(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = ?")).
			WithArgs("u-1").
			WillReturnRows(sqlmock.NewRows(columns).AddRow("u-1", "a@example.com", "A", "hash", "admin", ts))

		user, err := adapter.GetUserByID(context.Background(), "u-1")
		if err != nil {
			t.Fatalf("GetUserByID: %v", err)
		}
		if !user.Identity().IsAdmin() {
			t.Errorf("expected admin role, got %q", user.Role)
		}
	})

	t.Run("unknown role", func(t *testing.T) {
		adapter, mock := newMockAdapter(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = ?")).
			WithArgs("u-2").
			WillReturnRows(sqlmock.NewRows(columns).AddRow("u-2", "b@example.com", "B", "hash", "superuser", ts))

		user, err := adapter.GetUserByID(context.Background(), "u-2")
		if err == nil {
			t.Fatalf("expected error, got user %+v", user)
		}
		if domain.KindOf(err) != domain.KindInternal {
			t.Errorf("expected internal error, got: %v", err)
		}
	})
}
