package domain

import (
	"context"
	"errors"
)

// ErrIllegalTransition is returned by Session methods when a transition is
// attempted out of state machine order.
var ErrIllegalTransition = errors.New("illegal session state transition")

// UserRepository is the user directory contract consumed by the services.
// Username lookups are exact, case-sensitive matches as stored.
type UserRepository interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	UpdateUser(ctx context.Context, user *User) error
}
