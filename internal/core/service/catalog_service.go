package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/sweet-shop/internal/core/domain"
	"github.com/rl1809/sweet-shop/internal/observability"
	"github.com/rl1809/sweet-shop/internal/pkg/logging"
	"github.com/rl1809/sweet-shop/internal/port"
)

const DefaultLowStockThreshold = 10

type NewItem struct {
	Name        string
	Description string
	CategoryID  string
	Price       decimal.Decimal
	Quantity    int
	ImageURL    string
}

type CatalogService struct {
	catalog           port.CatalogRepository
	lowStockThreshold int
	metrics           *observability.Metrics
	now               func() time.Time
}

func NewCatalogService(catalog port.CatalogRepository, lowStockThreshold int, metrics *observability.Metrics) *CatalogService {
	if lowStockThreshold <= 0 {
		lowStockThreshold = DefaultLowStockThreshold
	}
	return &CatalogService{
		catalog:           catalog,
		lowStockThreshold: lowStockThreshold,
		metrics:           metrics,
		now:               time.Now,
	}
}

func (s *CatalogService) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	item, err := s.catalog.GetItem(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("item %s: %w", id, err)
	}
	return item, nil
}

func (s *CatalogService) ListItems(ctx context.Context) ([]domain.Item, error) {
	return s.SearchItems(ctx, domain.ItemFilter{})
}

func (s *CatalogService) SearchItems(ctx context.Context, filter domain.ItemFilter) ([]domain.Item, error) {
	if filter.MinPrice != nil && filter.MaxPrice != nil && filter.MinPrice.GreaterThan(*filter.MaxPrice) {
		return nil, fmt.Errorf("min price %s above max price %s: %w", filter.MinPrice, filter.MaxPrice, domain.ErrInvalidRequest)
	}
	items, err := s.catalog.ListItems(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

func (s *CatalogService) CreateItem(ctx context.Context, in NewItem) (*domain.Item, error) {
	in.Name = strings.TrimSpace(in.Name)
	switch {
	case in.Name == "":
		return nil, fmt.Errorf("name is required: %w", domain.ErrInvalidRequest)
	case in.CategoryID == "":
		return nil, fmt.Errorf("category is required: %w", domain.ErrInvalidRequest)
	case in.Price.IsNegative():
		return nil, fmt.Errorf("price must not be negative: %w", domain.ErrInvalidRequest)
	case in.Quantity < 0:
		return nil, fmt.Errorf("quantity must not be negative: %w", domain.ErrInvalidRequest)
	case in.Quantity > domain.MaxQuantity:
		return nil, fmt.Errorf("quantity must not exceed %d: %w", domain.MaxQuantity, domain.ErrInvalidRequest)
	}

	now := s.now().UTC()
	in.Price = in.Price.Round(2)
	item := domain.Item{
		ID:          uuid.New().String(),
		Name:        in.Name,
		Description: in.Description,
		CategoryID:  in.CategoryID,
		Price:       in.Price,
		Quantity:    in.Quantity,
		ImageURL:    in.ImageURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.catalog.CreateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}

	logging.FromContext(ctx).Info("item_created",
		zap.String("item_id", item.ID),
		zap.Int("quantity", item.Quantity),
	)
	return s.GetItem(ctx, item.ID)
}

func (s *CatalogService) UpdateItem(ctx context.Context, id string, patch domain.ItemPatch) (*domain.Item, error) {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, fmt.Errorf("name must not be empty: %w", domain.ErrInvalidRequest)
	}
	if patch.CategoryID != nil && *patch.CategoryID == "" {
		return nil, fmt.Errorf("category must not be empty: %w", domain.ErrInvalidRequest)
	}
	if patch.Price != nil && patch.Price.IsNegative() {
		return nil, fmt.Errorf("price must not be negative: %w", domain.ErrInvalidRequest)
	}
	if patch.Empty() {
		return s.GetItem(ctx, id)
	}
	if patch.Price != nil {
		rounded := patch.Price.Round(2)
		patch.Price = &rounded
	}

	item, err := s.catalog.UpdateItem(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("update item %s: %w", id, err)
	}
	return item, nil
}

func (s *CatalogService) DeleteItem(ctx context.Context, id string) error {
	if err := s.catalog.DeleteItem(ctx, id); err != nil {
		return fmt.Errorf("delete item %s: %w", id, err)
	}
	logging.FromContext(ctx).Info("item_deleted", zap.String("item_id", id))
	return nil
}

// Restock unconditionally adds amount units to a live item. The store rejects
// amounts that would push stock past domain.MaxQuantity.
func (s *CatalogService) Restock(ctx context.Context, id string, amount int) (item *domain.Item, err error) {
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = string(domain.KindOf(err))
		}
		s.metrics.ObserveRestock(outcome)
	}()

	if amount <= 0 || amount > domain.MaxQuantity {
		return nil, fmt.Errorf("restock quantity must be between 1 and %d, got %d: %w", domain.MaxQuantity, amount, domain.ErrInvalidRequest)
	}
	item, err = s.catalog.Restock(ctx, id, amount)
	if err != nil {
		return nil, fmt.Errorf("restock item %s: %w", id, err)
	}

	logging.FromContext(ctx).Info("item_restocked",
		zap.String("item_id", id),
		zap.Int("amount", amount),
		zap.Int("quantity", item.Quantity),
	)
	return item, nil
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	categories, err := s.catalog.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

func (s *CatalogService) CreateCategory(ctx context.Context, name, description string) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("category name is required: %w", domain.ErrInvalidRequest)
	}
	category := domain.Category{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.catalog.CreateCategory(ctx, category); err != nil {
		return nil, fmt.Errorf("create category %q: %w", name, err)
	}
	return &category, nil
}

func (s *CatalogService) Stats(ctx context.Context) (*domain.Stats, error) {
	stats, err := s.catalog.Stats(ctx, s.lowStockThreshold)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	return stats, nil
}
