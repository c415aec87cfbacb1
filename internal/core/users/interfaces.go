package users

import "context"

// UserService defines the interface for profile lookups and creation
type UserService interface {
	// GetCurrentUser returns the profile linked to an identity-provider account,
	// with its save records attached. Returns ErrUserNotFound when no profile exists.
	GetCurrentUser(ctx context.Context, accountID string) (*User, error)

	// GetUser returns a profile by document ID, with save records attached.
	GetUser(ctx context.Context, id string) (*User, error)

	// CreateUser stores the profile document for an account that already exists
	// at the identity provider.
	CreateUser(ctx context.Context, req NewUser) (*User, error)
}
