// Package repository contains data access layer abstractions.
// Implementations live in subpackages (e.g., postgres) inside this directory.
package repository

import (
	"context"
	"errors"

	"catalogue/internal/model"
)

// ErrDuplicate is returned when an insert violates a unique constraint.
var ErrDuplicate = errors.New("duplicate record")

// UserRepository defines data access for user accounts using SQL queries only.
// Lookups that match nothing return sql.ErrNoRows.
type UserRepository interface {
	// Create inserts the user and links it to the named roles in one transaction.
	Create(ctx context.Context, u *model.User) (*model.User, error)

	// FindByEmail returns a user, with its role names, by email address.
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByID returns a user, with its role names, by ID.
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// RoleRepository defines data access for roles.
type RoleRepository interface {
	// Count returns the number of stored roles.
	Count(ctx context.Context) (int, error)

	// Create inserts a role by name.
	Create(ctx context.Context, name string) (*model.Role, error)

	// FindByNames returns the roles whose names are in the given list. Unknown names are skipped.
	FindByNames(ctx context.Context, names []string) ([]model.Role, error)
}
