package domain

import "time"

type Role string

const (
	RoleRegular Role = "regular"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleRegular || r == RoleAdmin
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u User) Identity() Identity {
	return Identity{UserID: u.ID, Role: u.Role}
}

// Identity is an authenticated actor as seen by the core.
type Identity struct {
	UserID string
	Role   Role
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
