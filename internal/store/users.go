package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/assettrack/internal/model"
)

const userColumns = `u.id, u.username, u.email, u.full_name, u.password_hash, u.role_id, r.name,
	u.is_active, u.last_login_at, u.created_at, u.updated_at, u.deleted_at`

const userFrom = ` FROM users u JOIN roles r ON r.id = u.role_id`

func scanUser(s rowScanner) (*model.User, error) {
	u := &model.User{}
	var email, fullName sql.NullString
	if err := s.Scan(&u.ID, &u.Username, &email, &fullName, &u.PasswordHash, &u.RoleID, &u.Role,
		&u.IsActive, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt, &u.DeletedAt); err != nil {
		return nil, err
	}
	u.Email = email.String
	u.FullName = fullName.String
	return u, nil
}

// CreateUser creates a new user with the named role.
func CreateUser(ctx context.Context, db *sql.DB, username, passwordHash, roleName string) (*model.User, error) {
	role, err := GetRoleByName(ctx, db, roleName)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, invalidf("role %q does not exist", roleName)
	}

	u := &model.User{Username: username, PasswordHash: passwordHash, RoleID: role.ID, IsActive: true}
	return InsertUser(ctx, db, u)
}

// InsertUser inserts a fully populated user.
func InsertUser(ctx context.Context, db *sql.DB, u *model.User) (*model.User, error) {
	taken, err := usernameTaken(ctx, db, u.Username, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, invalidf("username already exists")
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO users (username, email, full_name, password_hash, role_id, is_active)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.Username, nullString(u.Email), nullString(u.FullName), u.PasswordHash, u.RoleID, u.IsActive,
	)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting user id: %w", err)
	}

	return GetUser(ctx, db, id)
}

func usernameTaken(ctx context.Context, q DBTX, username string, excludeID int64) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE username = ? AND deleted_at IS NULL AND id <> ?`,
		username, excludeID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking username: %w", err)
	}
	return n > 0, nil
}

// GetUser returns a user by ID.
func GetUser(ctx context.Context, db *sql.DB, id int64) (*model.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx, `SELECT `+userColumns+userFrom+` WHERE u.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// GetUserByUsername returns the active (non-deleted) user with the given username.
func GetUserByUsername(ctx context.Context, db *sql.DB, username string) (*model.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+userFrom+` WHERE u.username = ? AND u.deleted_at IS NULL`, username))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by username: %w", err)
	}
	return u, nil
}

// CountUsers returns the number of non-deleted users.
func CountUsers(ctx context.Context, db *sql.DB) (int, error) {
	n, err := count(ctx, db, `SELECT id FROM users WHERE deleted_at IS NULL`)
	if err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}

// ListUsers returns non-deleted users ordered by ID, plus the total count.
func ListUsers(ctx context.Context, db *sql.DB, page Page) ([]model.User, int, error) {
	base := `SELECT ` + userColumns + userFrom + ` WHERE u.deleted_at IS NULL`

	total, err := count(ctx, db, base)
	if err != nil {
		return nil, 0, fmt.Errorf("counting users: %w", err)
	}

	query, args := page.clause(base+` ORDER BY u.id`, nil)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, total, rows.Err()
}

// UserUpdate carries the admin-editable user fields.
type UserUpdate struct {
	Email    *string `json:"email"`
	FullName *string `json:"fullName"`
	RoleID   *int64  `json:"roleId"`
	IsActive *bool   `json:"isActive"`
}

// UpdateUser applies u to the user with the given ID.
func UpdateUser(ctx context.Context, db *sql.DB, id int64, upd UserUpdate) (*model.User, error) {
	user, err := GetUser(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if user == nil || user.DeletedAt != nil {
		return nil, notFound("user")
	}

	if upd.Email != nil {
		user.Email = *upd.Email
	}
	if upd.FullName != nil {
		user.FullName = *upd.FullName
	}
	if upd.IsActive != nil {
		user.IsActive = *upd.IsActive
	}
	if upd.RoleID != nil {
		role, err := GetRole(ctx, db, *upd.RoleID)
		if err != nil {
			return nil, err
		}
		if role == nil {
			return nil, notFound("role")
		}
		user.RoleID = role.ID
	}

	_, err = db.ExecContext(ctx,
		`UPDATE users SET email = ?, full_name = ?, role_id = ?, is_active = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		nullString(user.Email), nullString(user.FullName), user.RoleID, user.IsActive, id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating user: %w", err)
	}
	return GetUser(ctx, db, id)
}

// UpdateUserPassword updates a user's password hash.
func UpdateUserPassword(ctx context.Context, db *sql.DB, id int64, passwordHash string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating user password: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return notFound("user")
	}
	return nil
}

// TouchLastLogin records a successful login.
func TouchLastLogin(ctx context.Context, db *sql.DB, id int64) error {
	_, err := db.ExecContext(ctx, `UPDATE users SET last_login_at = ? WHERE id = ?`, now(), id)
	if err != nil {
		return fmt.Errorf("updating last login: %w", err)
	}
	return nil
}

// DeleteUser soft-deletes a user.
func DeleteUser(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx,
		`UPDATE users SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return notFound("user")
	}
	return nil
}
