package types

import (
	"time"

	"github.com/google/uuid"
)

// User account statuses.
const (
	UserStatusPending  = "pending"
	UserStatusActive   = "active"
	UserStatusRejected = "rejected"
)

type User struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"` // never exposed
	Role         string     `json:"role"`
	Area         *string    `json:"area,omitempty"` // required for admins
	Status       string     `json:"status"`
	IsOnline     bool       `json:"is_online"`
	LastActive   *time.Time `json:"last_active,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// RegisterUserParams is the payload for user registration.
type RegisterUserParams struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Role     string  `json:"role"`
	Area     *string `json:"area,omitempty"`
}
