package port

import (
	"context"

	"github.com/rl1809/sweet-shop/internal/core/domain"
)

type UserRepository interface {
	// CreateUser fails with domain.ErrAlreadyExists on a duplicate email
	CreateUser(ctx context.Context, user domain.User) error

	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)

	GetUserByID(ctx context.Context, id string) (*domain.User, error)

	SetUserRole(ctx context.Context, id string, role domain.Role) error
}
