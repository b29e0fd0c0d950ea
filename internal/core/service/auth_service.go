package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/rl1809/sweet-shop/internal/core/domain"
	"github.com/rl1809/sweet-shop/internal/pkg/logging"
	"github.com/rl1809/sweet-shop/internal/port"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 72
)

var validate = validator.New()

type Session struct {
	Token     string
	ExpiresAt time.Time
	User      domain.User
}

type AuthService struct {
	users      port.UserRepository
	tokens     port.TokenIssuer
	bcryptCost int
	now        func() time.Time
}

// NewAuthService wires the identity provider. A zero bcryptCost selects
// bcrypt.DefaultCost.
func NewAuthService(users port.UserRepository, tokens port.TokenIssuer, bcryptCost int) *AuthService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		users:      users,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		now:        time.Now,
	}
}

func (s *AuthService) Register(ctx context.Context, email, name, password string) (*Session, error) {
	user, err := s.newUser(email, name, password, domain.RoleRegular)
	if err != nil {
		return nil, err
	}
	if err := s.users.CreateUser(ctx, *user); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return nil, fmt.Errorf("email already registered: %w", domain.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	logging.FromContext(ctx).Info("user_registered", zap.String("user_id", user.ID))
	return s.session(*user)
}

// Authenticate checks credentials and opens a session. Unknown emails and
// wrong passwords are indistinguishable to the caller.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("incorrect email or password: %w", domain.ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, fmt.Errorf("incorrect email or password: %w", domain.ErrUnauthorized)
	}
	return s.session(*user)
}

// Authorize resolves a bearer token to an identity. The role is read from the
// stored user, not from the token.
func (s *AuthService) Authorize(ctx context.Context, token string) (domain.Identity, error) {
	if token == "" {
		return domain.Identity{}, fmt.Errorf("missing bearer token: %w", domain.ErrUnauthorized)
	}
	claimed, err := s.tokens.Verify(token)
	if err != nil {
		return domain.Identity{}, err
	}
	user, err := s.users.GetUserByID(ctx, claimed.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Identity{}, fmt.Errorf("unknown user: %w", domain.ErrUnauthorized)
	}
	if err != nil {
		return domain.Identity{}, fmt.Errorf("lookup user: %w", err)
	}
	return user.Identity(), nil
}

func (s *AuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", userID, err)
	}
	return user, nil
}

// EnsureAdmin creates the admin account, or promotes an existing user with
// that email.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, name, password string) (*domain.User, error) {
	existing, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	switch {
	case err == nil:
		if existing.Role != domain.RoleAdmin {
			if err := s.users.SetUserRole(ctx, existing.ID, domain.RoleAdmin); err != nil {
				return nil, fmt.Errorf("promote admin: %w", err)
			}
			existing.Role = domain.RoleAdmin
		}
		return existing, nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("lookup admin: %w", err)
	}

	user, err := s.newUser(email, name, password, domain.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if err := s.users.CreateUser(ctx, *user); err != nil {
		return nil, fmt.Errorf("create admin: %w", err)
	}
	return user, nil
}

func (s *AuthService) newUser(email, name, password string, role domain.Role) (*domain.User, error) {
	email = strings.TrimSpace(email)
	if err := validate.Var(email, "required,email"); err != nil {
		return nil, fmt.Errorf("malformed email %q: %w", email, domain.ErrInvalidRequest)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("name is required: %w", domain.ErrInvalidRequest)
	}
	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return nil, fmt.Errorf("password must have %d to %d characters: %w", minPasswordLength, maxPasswordLength, domain.ErrInvalidRequest)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return &domain.User{
		ID:           uuid.New().String(),
		Email:        normalizeEmail(email),
		Name:         name,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    s.now().UTC(),
	}, nil
}

func (s *AuthService) session(user domain.User) (*Session, error) {
	token, expiresAt, err := s.tokens.Issue(user.Identity())
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
