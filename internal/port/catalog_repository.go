package port

import (
	"context"

	"github.com/rl1809/sweet-shop/internal/core/domain"
)

type CatalogRepository interface {
	// GetItem returns a live item, or domain.ErrNotFound
	GetItem(ctx context.Context, id string) (*domain.Item, error)

	// ListItems returns live items matching filter, newest first
	ListItems(ctx context.Context, filter domain.ItemFilter) ([]domain.Item, error)

	// CreateItem inserts a new item; an unknown category is domain.ErrInvalidRequest
	CreateItem(ctx context.Context, item domain.Item) error

	// UpdateItem applies patch and returns the stored item
	UpdateItem(ctx context.Context, id string, patch domain.ItemPatch) (*domain.Item, error)

	// DeleteItem hides the item from reads and purchases; ledger rows keep referencing it
	DeleteItem(ctx context.Context, id string) error

	// Restock unconditionally adds amount to the item's quantity
	Restock(ctx context.Context, id string, amount int) (*domain.Item, error)

	ListCategories(ctx context.Context) ([]domain.Category, error)

	// CreateCategory fails with domain.ErrAlreadyExists on a duplicate name
	CreateCategory(ctx context.Context, category domain.Category) error

	// Stats aggregates live items and the purchase ledger
	Stats(ctx context.Context, lowStockThreshold int) (*domain.Stats, error)
}
