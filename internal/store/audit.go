package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/assettrack/internal/model"
)

const auditColumns = `id, action, entity_type, entity_id, user_id, username, previous_values, new_values,
	ip_address, user_agent, created_at`

func scanAuditLog(s rowScanner) (*model.AuditLog, error) {
	l := &model.AuditLog{}
	var prev, next sql.NullString
	err := s.Scan(&l.ID, &l.Action, &l.EntityType, &l.EntityID, &l.UserID, text{&l.Username},
		&prev, &next, text{&l.IPAddress}, text{&l.UserAgent}, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	if prev.Valid {
		l.PreviousValues = []byte(prev.String)
	}
	if next.Valid {
		l.NewValues = []byte(next.String)
	}
	return l, nil
}

func rawJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

// CreateAuditLog appends an audit entry. Entries are never updated.
func CreateAuditLog(ctx context.Context, db *sql.DB, l *model.AuditLog) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now()
	}
	result, err := db.ExecContext(ctx,
		`INSERT INTO audit_logs (action, entity_type, entity_id, user_id, username, previous_values,
		 new_values, ip_address, user_agent, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.Action, l.EntityType, l.EntityID, l.UserID, nullString(l.Username), rawJSON(l.PreviousValues),
		rawJSON(l.NewValues), nullString(l.IPAddress), nullString(l.UserAgent), l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating audit log: %w", err)
	}
	l.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting audit log id: %w", err)
	}
	return nil
}

// GetAuditLog returns an audit entry by ID, or nil if it does not exist.
func GetAuditLog(ctx context.Context, db *sql.DB, id int64) (*model.AuditLog, error) {
	l, err := scanAuditLog(db.QueryRowContext(ctx, `SELECT `+auditColumns+` FROM audit_logs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting audit log: %w", err)
	}
	return l, nil
}

// AuditFilter narrows ListAuditLogs.
type AuditFilter struct {
	Action     string
	EntityType string
	EntityID   *int64
	UserID     *int64
	Created    DateRange
}

// ListAuditLogs returns audit entries, newest first.
func ListAuditLogs(ctx context.Context, db *sql.DB, f AuditFilter, page Page) ([]model.AuditLog, int, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_logs WHERE 1=1`
	var args []any
	if f.Action != "" {
		query += ` AND action = ?`
		args = append(args, f.Action)
	}
	if f.EntityType != "" {
		query += ` AND entity_type = ?`
		args = append(args, f.EntityType)
	}
	if f.EntityID != nil {
		query += ` AND entity_id = ?`
		args = append(args, *f.EntityID)
	}
	if f.UserID != nil {
		query += ` AND user_id = ?`
		args = append(args, *f.UserID)
	}
	query, args = f.Created.where("created_at", query, args)

	total, err := count(ctx, db, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("counting audit logs: %w", err)
	}

	query, args = page.clause(query+` ORDER BY created_at DESC, id DESC`, args)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing audit logs: %w", err)
	}
	defer rows.Close()

	var logs []model.AuditLog
	for rows.Next() {
		l, err := scanAuditLog(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning audit log: %w", err)
		}
		logs = append(logs, *l)
	}
	return logs, total, rows.Err()
}
