package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/sweet-shop/internal/adapter/storage"
	"github.com/rl1809/sweet-shop/internal/core/domain"
	"github.com/rl1809/sweet-shop/internal/core/service"
	"github.com/rl1809/sweet-shop/internal/pkg/logging"
	"github.com/rl1809/sweet-shop/internal/port"
)

type store interface {
	port.CatalogRepository
	port.LedgerRepository
	port.UserRepository
}

func main() {
	initialStock := flag.Int("stock", 20, "initial stock of the contested item")
	totalRequests := flag.Int("requests", 50, "concurrent single-unit purchases")
	dsn := flag.String("mysql-dsn", "", "MySQL DSN; empty runs against the in-memory store")
	attempts := flag.Int("attempts", service.DefaultMaxAttempts, "purchase attempts per request")
	flag.Parse()

	logger := logging.MustNew(logging.Options{Service: "sweet-shop-loadtest", Env: "dev"})
	defer func() { _ = logger.Sync() }()
	ctx := logging.NewContext(context.Background(), zap.NewNop())

	db, err := openStore(context.Background(), *dsn)
	if err != nil {
		logger.Fatal("open_store_failed", zap.Error(err))
	}

	itemID, users, err := seed(ctx, db, *initialStock, *totalRequests)
	if err != nil {
		logger.Fatal("seed_failed", zap.Error(err))
	}

	ledger := service.NewLedgerService(db, db, nil, service.LedgerOptions{MaxAttempts: *attempts})

	var successCount, soldOutCount, conflictCount, otherCount atomic.Int32
	var wg sync.WaitGroup
	start := time.Now()

	for _, userID := range users {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()

			_, err := ledger.Purchase(ctx, userID, itemID, 1)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				soldOutCount.Add(1)
			case errors.Is(err, domain.ErrConflict):
				conflictCount.Add(1)
			default:
				otherCount.Add(1)
				logger.Error("purchase_error", zap.String("user_id", userID), zap.Error(err))
			}
		}(userID)
	}

	wg.Wait()
	elapsed := time.Since(start)

	item, err := db.GetItem(context.Background(), itemID)
	if err != nil {
		logger.Fatal("read_final_stock_failed", zap.Error(err))
	}
	var recorded int
	for _, userID := range users {
		records, err := db.ListPurchases(context.Background(), userID)
		if err != nil {
			logger.Fatal("read_ledger_failed", zap.Error(err))
		}
		for _, r := range records {
			recorded += r.Quantity
		}
	}

	success := int(successCount.Load())
	fmt.Println("========== LOAD TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", *initialStock)
	fmt.Printf("Total Requests:   %d\n", *totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Sold Out:         %d\n", soldOutCount.Load())
	fmt.Printf("Conflicts:        %d\n", conflictCount.Load())
	fmt.Printf("Other Errors:     %d\n", otherCount.Load())
	fmt.Printf("Final Stock:      %d\n", item.Quantity)
	fmt.Printf("Ledger Units:     %d\n", recorded)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("=======================================")

	failed := false
	if item.Quantity < 0 {
		fmt.Printf("FAIL: negative stock %d\n", item.Quantity)
		failed = true
	}
	if item.Quantity != *initialStock-success {
		fmt.Printf("FAIL: stock %d does not match %d - %d\n", item.Quantity, *initialStock, success)
		failed = true
	}
	if recorded != success {
		fmt.Printf("FAIL: ledger holds %d units, %d purchases succeeded\n", recorded, success)
		failed = true
	}
	if success > *initialStock {
		fmt.Printf("FAIL: oversold, %d successes for %d units\n", success, *initialStock)
		failed = true
	}
	if failed {
		os.Exit(1)
	}
	fmt.Println("PASS: stock conserved and ledger matches")
}

func openStore(ctx context.Context, dsn string) (store, error) {
	if dsn == "" {
		return storage.NewMemoryStore(), nil
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	adapter := storage.NewMySQLAdapter(db)
	if err := adapter.Migrate(ctx); err != nil {
		return nil, err
	}
	return adapter, nil
}

func seed(ctx context.Context, db store, stock, buyers int) (string, []string, error) {
	now := time.Now().UTC()
	category := domain.Category{ID: uuid.NewString(), Name: "loadtest-" + uuid.NewString()[:8], CreatedAt: now}
	if err := db.CreateCategory(ctx, category); err != nil {
		return "", nil, fmt.Errorf("create category: %w", err)
	}

	item := domain.Item{
		ID:         uuid.NewString(),
		Name:       "Contested Gobstopper",
		CategoryID: category.ID,
		Price:      decimal.RequireFromString("0.99"),
		Quantity:   stock,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := db.CreateItem(ctx, item); err != nil {
		return "", nil, fmt.Errorf("create item: %w", err)
	}

	users := make([]string, buyers)
	for i := range users {
		user := domain.User{
			ID:           uuid.NewString(),
			Email:        fmt.Sprintf("buyer-%d-%s@loadtest.local", i, uuid.NewString()[:8]),
			Name:         fmt.Sprintf("buyer-%d", i),
			PasswordHash: "-",
			Role:         domain.RoleRegular,
			CreatedAt:    now,
		}
		if err := db.CreateUser(ctx, user); err != nil {
			return "", nil, fmt.Errorf("create user: %w", err)
		}
		users[i] = user.ID
	}
	return item.ID, users, nil
}
