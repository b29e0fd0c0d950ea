package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/sweet-shop/internal/core/domain"
)

const selectUsers = `SELECT id, email, name, password_hash, role, created_at FROM users`

func (m *MySQLAdapter) CreateUser(ctx context.Context, user domain.User) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, password_hash, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.Name, user.PasswordHash, string(user.Role), user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", mapMySQLError(err))
	}
	return nil
}

func (m *MySQLAdapter) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return m.getUser(ctx, selectUsers+` WHERE email = ?`, email)
}

func (m *MySQLAdapter) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return m.getUser(ctx, selectUsers+` WHERE id = ?`, id)
}

func (m *MySQLAdapter) SetUserRole(ctx context.Context, id string, role domain.Role) error {
	result, err := m.db.ExecContext(ctx, `UPDATE users SET role = ? WHERE id = ?`, string(role), id)
	if err != nil {
		return fmt.Errorf("update user role: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (m *MySQLAdapter) getUser(ctx context.Context, query string, arg string) (*domain.User, error) {
	var u domain.User
	var role string
	err := m.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	u.Role = domain.Role(role)
	if !u.Role.Valid() {
		return nil, fmt.Errorf("user %s has unknown role %q", u.ID, role)
	}
	return &u, nil
}
