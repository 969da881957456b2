package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"catalogue/internal/model"
	"catalogue/internal/repository"
)

// UserPostgres is a PostgreSQL implementation of repository.UserRepository.
type UserPostgres struct {
	db *sql.DB
}

// NewUserPostgres creates a new UserPostgres repository.
func NewUserPostgres(db *sql.DB) *UserPostgres {
	return &UserPostgres{db: db}
}

var _ repository.UserRepository = (*UserPostgres)(nil)

// Create inserts the user row and one user_roles row per role name.
func (r *UserPostgres) Create(ctx context.Context, u *model.User) (*model.User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	const insertUser = `
		INSERT INTO users (id, username, email, password_hash, department)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`
	out := *u
	if err := tx.QueryRowContext(ctx, insertUser, u.ID, u.Username, u.Email, u.PasswordHash, u.Department).
		Scan(&out.CreatedAt, &out.UpdatedAt); err != nil {
		return nil, translateError(err)
	}

	const linkRole = `
		INSERT INTO user_roles (user_id, role_id)
		SELECT $1, id FROM roles WHERE name = $2
	`
	for _, name := range u.Roles {
		if _, err := tx.ExecContext(ctx, linkRole, u.ID, name); err != nil {
			return nil, fmt.Errorf("link role %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	out.Roles = append([]string(nil), u.Roles...)
	return &out, nil
}

// FindByEmail fetches a single user by email.
func (r *UserPostgres) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	const q = `
		SELECT id, username, email, password_hash, department, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	return r.findOne(ctx, q, email)
}

// FindByID fetches a single user by ID.
func (r *UserPostgres) FindByID(ctx context.Context, id string) (*model.User, error) {
	const q = `
		SELECT id, username, email, password_hash, department, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	return r.findOne(ctx, q, id)
}

func (r *UserPostgres) findOne(ctx context.Context, q string, arg any) (*model.User, error) {
	var u model.User
	if err := r.db.QueryRowContext(ctx, q, arg).Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.Department,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}

	roles, err := r.roleNames(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	u.Roles = roles
	return &u, nil
}

func (r *UserPostgres) roleNames(ctx context.Context, userID string) ([]string, error) {
	const q = `
		SELECT r.name
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY r.id
	`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make([]string, 0, 2)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
