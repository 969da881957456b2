package model

import "time"

// Role names seeded into an empty roles table.
const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// DefaultRoles lists the roles created on first start, in insertion order.
var DefaultRoles = []string{RoleUser, RoleModerator, RoleAdmin}

// Departments a user may belong to.
var Departments = []string{"IT", "TECH", "ACCOUNTS", "COMMUNICATION", "HR", "DNI"}

// Role is a named permission bucket.
type Role struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// User is a registered account. PasswordHash never leaves the service layer.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Department   string    `json:"department"`
	Roles        []string  `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

