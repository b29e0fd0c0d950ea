package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/rl1809/sweet-shop/internal/core/domain"
	"github.com/rl1809/sweet-shop/internal/observability"
	"github.com/rl1809/sweet-shop/internal/pkg/logging"
	"github.com/rl1809/sweet-shop/internal/port"
)

const (
	DefaultMaxAttempts  = 3
	DefaultRetryBackoff = 10 * time.Millisecond
)

type PurchaseResult struct {
	Record     domain.PurchaseRecord
	TotalPrice decimal.Decimal
	Item       domain.Item
}

type LedgerOptions struct {
	MaxAttempts  int
	RetryBackoff time.Duration
	Metrics      *observability.Metrics
	Now          func() time.Time
}

// LedgerService turns purchase intents into a stock decrement plus a ledger
// entry, all or nothing.
type LedgerService struct {
	catalog      port.CatalogRepository
	ledger       port.LedgerRepository
	idempotency  port.IdempotencyRepository
	maxAttempts  int
	retryBackoff time.Duration
	metrics      *observability.Metrics
	now          func() time.Time
}

func NewLedgerService(catalog port.CatalogRepository, ledger port.LedgerRepository, idempotency port.IdempotencyRepository, opts LedgerOptions) *LedgerService {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = DefaultRetryBackoff
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &LedgerService{
		catalog:      catalog,
		ledger:       ledger,
		idempotency:  idempotency,
		maxAttempts:  opts.MaxAttempts,
		retryBackoff: opts.RetryBackoff,
		metrics:      opts.Metrics,
		now:          opts.Now,
	}
}

// Purchase buys quantity units of itemID for userID. Write conflicts are
// retried with a fresh read up to the configured number of attempts.
func (s *LedgerService) Purchase(ctx context.Context, userID, itemID string, quantity int) (result *PurchaseResult, err error) {
	ctx, span := observability.StartSpan(ctx, "ledger.Purchase",
		attribute.String("user.id", userID),
		attribute.String("item.id", itemID),
		attribute.Int("purchase.quantity", quantity),
	)
	start := time.Now()
	attempts := 0

	defer func() {
		observability.EndSpan(span, err)

		outcome, units := "success", 0
		if err != nil {
			outcome = string(domain.KindOf(err))
		} else {
			units = quantity
		}
		latency := time.Since(start)
		s.metrics.ObservePurchase(outcome, latency.Seconds(), units)

		fields := []zap.Field{
			zap.String("outcome", outcome),
			zap.String("user_id", userID),
			zap.String("item_id", itemID),
			zap.Int("quantity", quantity),
			zap.Int("attempts", attempts),
			zap.Duration("latency", latency),
		}
		logger := logging.WithTrace(ctx, logging.FromContext(ctx))
		switch {
		case err == nil:
			fields = append(fields,
				zap.String("purchase_id", result.Record.ID),
				zap.String("total_price", result.TotalPrice.StringFixed(2)),
			)
			logger.Info("purchase_done", fields...)
		case domain.KindOf(err) == domain.KindInternal:
			logger.Error("purchase_failed", append(fields, zap.Error(err))...)
		default:
			logger.Info("purchase_rejected", append(fields, zap.Error(err))...)
		}
	}()

	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d: %w", quantity, domain.ErrInvalidRequest)
	}
	if userID == "" || itemID == "" {
		return nil, fmt.Errorf("user and item are required: %w", domain.ErrInvalidRequest)
	}

	for {
		attempts++
		result, err = s.attempt(ctx, userID, itemID, quantity)
		if err == nil || !errors.Is(err, domain.ErrConflict) {
			return result, err
		}
		if attempts >= s.maxAttempts {
			return nil, fmt.Errorf("purchase item %s after %d attempts: %w", itemID, attempts, err)
		}

		s.metrics.ObserveRetry()
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("purchase item %s: %w", itemID, ctx.Err())
		case <-time.After(s.retryBackoff * time.Duration(attempts)):
		}
	}
}

func (s *LedgerService) attempt(ctx context.Context, userID, itemID string, quantity int) (*PurchaseResult, error) {
	item, err := s.catalog.GetItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("item %s: %w", itemID, err)
	}

	if item.Quantity < quantity {
		return nil, fmt.Errorf("item %s has %d left, requested %d: %w", itemID, item.Quantity, quantity, domain.ErrInsufficientStock)
	}

	unitPrice := item.Price
	record := domain.PurchaseRecord{
		ID:         uuid.New().String(),
		UserID:     userID,
		ItemID:     itemID,
		ItemName:   item.Name,
		Quantity:   quantity,
		UnitPrice:  unitPrice,
		TotalPrice: domain.LineTotal(unitPrice, quantity),
		CreatedAt:  s.now().UTC(),
	}

	var updated *domain.Item
	err = s.ledger.Atomically(ctx, func(tx port.LedgerTx) error {
		var txErr error
		updated, txErr = tx.ConditionalDecrement(ctx, itemID, quantity, unitPrice)
		if txErr != nil {
			return txErr
		}
		return tx.AppendPurchase(ctx, record)
	})
	if err != nil {
		return nil, fmt.Errorf("commit purchase of item %s: %w", itemID, err)
	}

	return &PurchaseResult{
		Record:     record,
		TotalPrice: record.TotalPrice,
		Item:       *updated,
	}, nil
}

// PurchaseOnce is Purchase guarded by a per-user request id. A request id
// that already succeeded or is still in flight yields
// domain.ErrDuplicateRequest; a failed purchase frees its id for a retry.
func (s *LedgerService) PurchaseOnce(ctx context.Context, requestID, userID, itemID string, quantity int) (*PurchaseResult, error) {
	if requestID == "" || s.idempotency == nil {
		return s.Purchase(ctx, userID, itemID, quantity)
	}

	key := fmt.Sprintf("purchase:%s:%s", userID, requestID)
	ok, err := s.idempotency.AcquireKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("request %s: %w", requestID, domain.ErrDuplicateRequest)
	}

	result, err := s.Purchase(ctx, userID, itemID, quantity)
	if err != nil {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if releaseErr := s.idempotency.ReleaseKey(releaseCtx, key); releaseErr != nil {
			logging.FromContext(ctx).Warn("idempotency_release_failed",
				zap.String("key", key),
				zap.Error(releaseErr),
			)
		}
		return nil, err
	}
	return result, nil
}

// History lists the user's purchases, newest first.
func (s *LedgerService) History(ctx context.Context, userID string) ([]domain.PurchaseRecord, error) {
	if userID == "" {
		return nil, fmt.Errorf("user is required: %w", domain.ErrInvalidRequest)
	}
	records, err := s.ledger.ListPurchases(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	return records, nil
}
