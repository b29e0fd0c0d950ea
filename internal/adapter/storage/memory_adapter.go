package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/rl1809/sweet-shop/internal/core/domain"
	"github.com/rl1809/sweet-shop/internal/port"
)

type memoryItem struct {
	item    domain.Item
	seq     int64
	deleted bool
}

// MemoryStore is a process-local catalog, ledger and user store. A single
// mutex serializes every mutation, so it linearizes purchases only within one
// process; deployments with more than one instance need the MySQL adapter.
type MemoryStore struct {
	mu         sync.RWMutex
	seq        int64
	categories map[string]domain.Category
	items      map[string]*memoryItem
	purchases  []domain.PurchaseRecord
	users      map[string]domain.User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		categories: make(map[string]domain.Category),
		items:      make(map[string]*memoryItem),
		users:      make(map[string]domain.User),
	}
}

func (m *MemoryStore) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mi, ok := m.items[id]
	if !ok || mi.deleted {
		return nil, domain.ErrNotFound
	}
	item := m.withCategory(mi.item)
	return &item, nil
}

func (m *MemoryStore) ListItems(ctx context.Context, filter domain.ItemFilter) ([]domain.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	live := make([]*memoryItem, 0, len(m.items))
	for _, mi := range m.items {
		if !mi.deleted {
			live = append(live, mi)
		}
	}
	sort.Slice(live, func(i, j int) bool {
		if !live[i].item.CreatedAt.Equal(live[j].item.CreatedAt) {
			return live[i].item.CreatedAt.After(live[j].item.CreatedAt)
		}
		return live[i].seq > live[j].seq
	})

	items := make([]domain.Item, 0, len(live))
	for _, mi := range live {
		item := m.withCategory(mi.item)
		if filter.Match(item) {
			items = append(items, item)
		}
	}
	return items, nil
}

func (m *MemoryStore) CreateItem(ctx context.Context, item domain.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.categories[item.CategoryID]; !ok {
		return fmt.Errorf("category %s: %w", item.CategoryID, domain.ErrInvalidRequest)
	}
	if _, ok := m.items[item.ID]; ok {
		return domain.ErrAlreadyExists
	}
	m.seq++
	item.CategoryName = ""
	m.items[item.ID] = &memoryItem{item: item, seq: m.seq}
	return nil
}

func (m *MemoryStore) UpdateItem(ctx context.Context, id string, patch domain.ItemPatch) (*domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mi, ok := m.items[id]
	if !ok || mi.deleted {
		return nil, domain.ErrNotFound
	}
	if patch.CategoryID != nil {
		if _, ok := m.categories[*patch.CategoryID]; !ok {
			return nil, fmt.Errorf("category %s: %w", *patch.CategoryID, domain.ErrInvalidRequest)
		}
	}
	mi.item = patch.Apply(mi.item)
	mi.item.UpdatedAt = now()
	item := m.withCategory(mi.item)
	return &item, nil
}

func (m *MemoryStore) DeleteItem(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mi, ok := m.items[id]
	if !ok || mi.deleted {
		return domain.ErrNotFound
	}
	mi.deleted = true
	return nil
}

func (m *MemoryStore) Restock(ctx context.Context, id string, amount int) (*domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mi, ok := m.items[id]
	if !ok || mi.deleted {
		return nil, domain.ErrNotFound
	}
	if amount > domain.MaxQuantity-mi.item.Quantity {
		return nil, fmt.Errorf("stock of %d plus %d exceeds %d: %w", mi.item.Quantity, amount, domain.MaxQuantity, domain.ErrInvalidRequest)
	}
	mi.item.Quantity += amount
	mi.item.UpdatedAt = now()
	item := m.withCategory(mi.item)
	return &item, nil
}

func (m *MemoryStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	categories := make([]domain.Category, 0, len(m.categories))
	for _, c := range m.categories {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })
	return categories, nil
}

func (m *MemoryStore) CreateCategory(ctx context.Context, category domain.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.categories {
		if strings.EqualFold(c.Name, category.Name) {
			return domain.ErrAlreadyExists
		}
	}
	m.categories[category.ID] = category
	return nil
}

func (m *MemoryStore) Stats(ctx context.Context, lowStockThreshold int) (*domain.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &domain.Stats{StockValue: decimal.Zero, Revenue: decimal.Zero}
	for _, mi := range m.items {
		if mi.deleted {
			continue
		}
		stats.ItemCount++
		stats.TotalUnits += mi.item.Quantity
		stats.StockValue = stats.StockValue.Add(domain.LineTotal(mi.item.Price, mi.item.Quantity))
		if mi.item.Quantity < lowStockThreshold {
			stats.LowStockItems++
		}
	}
	for _, p := range m.purchases {
		stats.PurchaseCount++
		stats.Revenue = stats.Revenue.Add(p.TotalPrice)
	}
	return stats, nil
}

// Atomically holds the store lock while fn runs. fn must only use tx; calling
// back into the store would deadlock.
func (m *MemoryStore) Atomically(ctx context.Context, fn func(tx port.LedgerTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{store: m, decrements: make(map[string]int)}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ts := now()
	for id, amount := range tx.decrements {
		mi := m.items[id]
		mi.item.Quantity -= amount
		mi.item.UpdatedAt = ts
	}
	m.purchases = append(m.purchases, tx.records...)
	return nil
}

func (m *MemoryStore) ListPurchases(ctx context.Context, userID string) ([]domain.PurchaseRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var records []domain.PurchaseRecord
	for i := len(m.purchases) - 1; i >= 0; i-- {
		p := m.purchases[i]
		if p.UserID != userID {
			continue
		}
		if mi, ok := m.items[p.ItemID]; ok {
			p.ItemName = mi.item.Name
		}
		records = append(records, p)
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].CreatedAt.After(records[j].CreatedAt) })
	return records, nil
}

func (m *MemoryStore) CreateUser(ctx context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == user.Email {
			return domain.ErrAlreadyExists
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MemoryStore) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (m *MemoryStore) SetUserRole(ctx context.Context, id string, role domain.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.Role = role
	m.users[id] = u
	return nil
}

// withCategory must be called with m.mu held.
func (m *MemoryStore) withCategory(item domain.Item) domain.Item {
	if c, ok := m.categories[item.CategoryID]; ok {
		item.CategoryName = c.Name
	}
	return item
}

type memoryTx struct {
	store      *MemoryStore
	decrements map[string]int
	records    []domain.PurchaseRecord
}

func (tx *memoryTx) ConditionalDecrement(ctx context.Context, itemID string, amount int, expectedPrice decimal.Decimal) (*domain.Item, error) {
	mi, ok := tx.store.items[itemID]
	if !ok || mi.deleted {
		return nil, domain.ErrConflict
	}
	remaining := mi.item.Quantity - tx.decrements[itemID]
	if amount <= 0 || remaining < amount || !mi.item.Price.Equal(expectedPrice) {
		return nil, domain.ErrConflict
	}
	tx.decrements[itemID] += amount

	item := tx.store.withCategory(mi.item)
	item.Quantity = remaining - amount
	return &item, nil
}

func (tx *memoryTx) AppendPurchase(ctx context.Context, record domain.PurchaseRecord) error {
	if _, ok := tx.store.items[record.ItemID]; !ok {
		return fmt.Errorf("purchase references item %s: %w", record.ItemID, domain.ErrInvalidRequest)
	}
	for _, p := range tx.store.purchases {
		if p.ID == record.ID {
			return domain.ErrAlreadyExists
		}
	}
	record.ItemName = ""
	tx.records = append(tx.records, record)
	return nil
}

// MemoryIdempotency is the process-local counterpart of RedisAdapter's
// idempotency keys. Keys never expire.
type MemoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func NewMemoryIdempotency() *MemoryIdempotency {
	return &MemoryIdempotency{keys: make(map[string]struct{})}
}

func (m *MemoryIdempotency) AcquireKey(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = struct{}{}
	return true, nil
}

func (m *MemoryIdempotency) ReleaseKey(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.keys, key)
	return nil
}
