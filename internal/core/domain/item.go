package domain

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MaxQuantity is the largest stock level an item can hold. It matches the
// INT column backing items.quantity.
const MaxQuantity = math.MaxInt32

type Item struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	CategoryID   string          `json:"category_id"`
	CategoryName string          `json:"category_name,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int             `json:"quantity"`
	ImageURL     string          `json:"image_url,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ItemPatch carries the admin-editable fields of an item. Nil fields are left
// untouched. Quantity is absent: stock only moves through
// purchases and restocks.
type ItemPatch struct {
	Name        *string
	Description *string
	CategoryID  *string
	Price       *decimal.Decimal
	ImageURL    *string
}

func (p ItemPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.CategoryID == nil && p.Price == nil && p.ImageURL == nil
}

// Apply returns a copy of item with the patch applied.
func (p ItemPatch) Apply(item Item) Item {
	if p.Name != nil {
		item.Name = *p.Name
	}
	if p.Description != nil {
		item.Description = *p.Description
	}
	if p.CategoryID != nil {
		item.CategoryID = *p.CategoryID
	}
	if p.Price != nil {
		item.Price = *p.Price
	}
	if p.ImageURL != nil {
		item.ImageURL = *p.ImageURL
	}
	return item
}

// ItemFilter narrows a catalog listing. Zero values mean "no constraint".
type ItemFilter struct {
	NameContains     string
	CategoryContains string
	MinPrice         *decimal.Decimal
	MaxPrice         *decimal.Decimal
}

// Match reports whether item passes the filter. Substring checks ignore case.
func (f ItemFilter) Match(item Item) bool {
	if f.NameContains != "" && !containsFold(item.Name, f.NameContains) {
		return false
	}
	if f.CategoryContains != "" && !containsFold(item.CategoryName, f.CategoryContains) {
		return false
	}
	if f.MinPrice != nil && item.Price.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && item.Price.GreaterThan(*f.MaxPrice) {
		return false
	}
	return true
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
