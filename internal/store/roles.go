package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/erazemk/assettrack/internal/model"
)

const roleColumns = `id, name, description, permissions, created_at, updated_at`

func scanRole(s rowScanner) (*model.Role, error) {
	r := &model.Role{}
	var description sql.NullString
	var perms string
	if err := s.Scan(&r.ID, &r.Name, &description, &perms, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Description = description.String
	r.Permissions = model.Permissions{}
	if perms != "" {
		if err := json.Unmarshal([]byte(perms), &r.Permissions); err != nil {
			return nil, fmt.Errorf("decoding permissions of role %q: %w", r.Name, err)
		}
	}
	return r, nil
}

func encodePermissions(p model.Permissions) (string, error) {
	if p == nil {
		p = model.Permissions{}
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encoding permissions: %w", err)
	}
	return string(b), nil
}

// CreateRole creates a role. Names are unique.
func CreateRole(ctx context.Context, db *sql.DB, name, description string, perms model.Permissions) (*model.Role, error) {
	existing, err := GetRoleByName(ctx, db, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, invalidf("role name already exists")
	}

	encoded, err := encodePermissions(perms)
	if err != nil {
		return nil, err
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO roles (name, description, permissions) VALUES (?, ?, ?)`,
		name, nullString(description), encoded,
	)
	if err != nil {
		return nil, fmt.Errorf("creating role: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting role id: %w", err)
	}
	return GetRole(ctx, db, id)
}

// GetRole returns a role by ID.
func GetRole(ctx context.Context, db *sql.DB, id int64) (*model.Role, error) {
	r, err := scanRole(db.QueryRowContext(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting role: %w", err)
	}
	return r, nil
}

// GetRoleByName returns a role by its unique name.
func GetRoleByName(ctx context.Context, db *sql.DB, name string) (*model.Role, error) {
	r, err := scanRole(db.QueryRowContext(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = ?`, name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting role by name: %w", err)
	}
	return r, nil
}

// ListRoles returns all roles ordered by name.
func ListRoles(ctx context.Context, db *sql.DB) ([]model.Role, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing roles: %w", err)
	}
	defer rows.Close()

	var roles []model.Role
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning role: %w", err)
		}
		roles = append(roles, *r)
	}
	return roles, rows.Err()
}

// UpdateRole replaces a role's name, description and permissions.
func UpdateRole(ctx context.Context, db *sql.DB, id int64, name, description string, perms model.Permissions) (*model.Role, error) {
	existing, err := GetRoleByName(ctx, db, name)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.ID != id {
		return nil, invalidf("role name already exists")
	}

	encoded, err := encodePermissions(perms)
	if err != nil {
		return nil, err
	}

	result, err := db.ExecContext(ctx,
		`UPDATE roles SET name = ?, description = ?, permissions = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, nullString(description), encoded, id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating role: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, notFound("role")
	}
	return GetRole(ctx, db, id)
}

// DeleteRole deletes a role. Fails while any user still references it.
func DeleteRole(ctx context.Context, db *sql.DB, id int64) error {
	var users int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE role_id = ?`, id).Scan(&users)
	if err != nil {
		return fmt.Errorf("checking role users: %w", err)
	}
	if users > 0 {
		return invalidf("cannot delete role: still assigned to %d users", users)
	}

	result, err := db.ExecContext(ctx, `DELETE FROM roles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting role: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return notFound("role")
	}
	return nil
}
