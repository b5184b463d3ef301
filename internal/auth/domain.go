package auth

import (
	"time"

	"github.com/parkyard/parkyard/internal/shared"
)

// Account is an operator login record.
type Account struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         shared.Role
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Operator converts the account into the request-scoped identity.
func (a Account) Operator() shared.Operator {
	return shared.Operator{ID: a.ID, Username: a.Username, Role: a.Role}
}

// LoginResult is returned after a successful login.
type LoginResult struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expiresAt"`
	Operator  shared.Operator `json:"operator"`
}
