package postgres

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"catalogue/internal/model"
	"catalogue/internal/repository"
)

// RolePostgres is a PostgreSQL implementation of repository.RoleRepository.
type RolePostgres struct {
	db *sql.DB
}

// NewRolePostgres creates a new RolePostgres repository.
func NewRolePostgres(db *sql.DB) *RolePostgres {
	return &RolePostgres{db: db}
}

var _ repository.RoleRepository = (*RolePostgres)(nil)

func (r *RolePostgres) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM roles`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *RolePostgres) Create(ctx context.Context, name string) (*model.Role, error) {
	const q = `INSERT INTO roles (name) VALUES ($1) RETURNING id, name`
	var role model.Role
	if err := r.db.QueryRowContext(ctx, q, name).Scan(&role.ID, &role.Name); err != nil {
		return nil, translateError(err)
	}
	return &role, nil
}

func (r *RolePostgres) FindByNames(ctx context.Context, names []string) ([]model.Role, error) {
	if len(names) == 0 {
		return []model.Role{}, nil
	}
	placeholders := make([]string, len(names))
	args := make([]any, len(names))
	for i, n := range names {
		placeholders[i] = "$" + strconv.Itoa(i+1)
		args[i] = n
	}
	q := `SELECT id, name FROM roles WHERE name IN (` + strings.Join(placeholders, ", ") + `) ORDER BY id`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := make([]model.Role, 0, len(names))
	for rows.Next() {
		var role model.Role
		if err := rows.Scan(&role.ID, &role.Name); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}
