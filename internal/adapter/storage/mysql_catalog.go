package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rl1809/sweet-shop/internal/core/domain"
)

const selectItems = `
	SELECT i.id, i.name, i.description, i.category_id, COALESCE(c.name, ''), i.price, i.quantity, i.image_url, i.created_at, i.updated_at
	FROM items i
	LEFT JOIN categories c ON c.id = i.category_id
	WHERE i.deleted_at IS NULL`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*domain.Item, error) {
	var item domain.Item
	err := row.Scan(&item.ID, &item.Name, &item.Description, &item.CategoryID, &item.CategoryName,
		&item.Price, &item.Quantity, &item.ImageURL, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func getItem(ctx context.Context, q queryer, id string) (*domain.Item, error) {
	item, err := scanItem(q.QueryRowContext(ctx, selectItems+` AND i.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query item: %w", err)
	}
	return item, nil
}

func (m *MySQLAdapter) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	return getItem(ctx, m.db, id)
}

func (m *MySQLAdapter) ListItems(ctx context.Context, filter domain.ItemFilter) ([]domain.Item, error) {
	query := selectItems
	var args []any

	if filter.NameContains != "" {
		query += ` AND i.name LIKE ?`
		args = append(args, likePattern(filter.NameContains))
	}
	if filter.CategoryContains != "" {
		query += ` AND c.name LIKE ?`
		args = append(args, likePattern(filter.CategoryContains))
	}
	if filter.MinPrice != nil {
		query += ` AND i.price >= CAST(? AS DECIMAL(12,2))`
		args = append(args, filter.MinPrice.String())
	}
	if filter.MaxPrice != nil {
		query += ` AND i.price <= CAST(? AS DECIMAL(12,2))`
		args = append(args, filter.MaxPrice.String())
	}
	query += ` ORDER BY i.created_at DESC, i.id DESC`

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	items := []domain.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (m *MySQLAdapter) CreateItem(ctx context.Context, item domain.Item) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO items (id, name, description, category_id, price, quantity, image_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Name, item.Description, item.CategoryID, item.Price.StringFixed(2),
		item.Quantity, item.ImageURL, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert item: %w", mapMySQLError(err))
	}
	return nil
}

func (m *MySQLAdapter) UpdateItem(ctx context.Context, id string, patch domain.ItemPatch) (*domain.Item, error) {
	var sets []string
	var args []any
	if patch.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.CategoryID != nil {
		sets = append(sets, "category_id = ?")
		args = append(args, *patch.CategoryID)
	}
	if patch.Price != nil {
		sets = append(sets, "price = ?")
		args = append(args, patch.Price.StringFixed(2))
	}
	if patch.ImageURL != nil {
		sets = append(sets, "image_url = ?")
		args = append(args, *patch.ImageURL)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, now(), id)

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE items SET `+strings.Join(sets, ", ")+` WHERE id = ? AND deleted_at IS NULL`, args...)
	if err != nil {
		return nil, fmt.Errorf("update item: %w", mapMySQLError(err))
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, domain.ErrNotFound
	}

	item, err := getItem(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", mapMySQLError(err))
	}
	return item, nil
}

func (m *MySQLAdapter) DeleteItem(ctx context.Context, id string) error {
	result, err := m.db.ExecContext(ctx,
		`UPDATE items SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, now(), id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (m *MySQLAdapter) Restock(ctx context.Context, id string, amount int) (*domain.Item, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE items
		SET quantity = quantity + ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		amount, now(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("restock: %w", mapMySQLError(err))
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, domain.ErrNotFound
	}

	item, err := getItem(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", mapMySQLError(err))
	}
	return item, nil
}

func (m *MySQLAdapter) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT id, name, description, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	categories := []domain.Category{}
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (m *MySQLAdapter) CreateCategory(ctx context.Context, category domain.Category) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, description, created_at) VALUES (?, ?, ?, ?)`,
		category.ID, category.Name, category.Description, category.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert category: %w", mapMySQLError(err))
	}
	return nil
}

func (m *MySQLAdapter) Stats(ctx context.Context, lowStockThreshold int) (*domain.Stats, error) {
	var stats domain.Stats
	err := m.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(quantity), 0), COALESCE(SUM(price * quantity), 0), COALESCE(SUM(quantity < ?), 0)
		FROM items WHERE deleted_at IS NULL`, lowStockThreshold,
	).Scan(&stats.ItemCount, &stats.TotalUnits, &stats.StockValue, &stats.LowStockItems)
	if err != nil {
		return nil, fmt.Errorf("query item stats: %w", err)
	}

	err = m.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(total_price), 0) FROM purchases`,
	).Scan(&stats.PurchaseCount, &stats.Revenue)
	if err != nil {
		return nil, fmt.Errorf("query purchase stats: %w", err)
	}
	return &stats, nil
}

func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

