package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/assettrack/internal/discrepancy"
	"github.com/erazemk/assettrack/internal/model"
)

const discrepancyColumns = `id, asset_id, movement_id, type, description, expected_value, actual_value,
	status, priority, detected_by, detected_at, resolved_by, resolved_at, resolution, created_at, updated_at`

func scanDiscrepancy(s rowScanner) (*model.Discrepancy, error) {
	d := &model.Discrepancy{}
	err := s.Scan(&d.ID, &d.AssetID, &d.MovementID, &d.Type, text{&d.Description}, &d.ExpectedValue,
		&d.ActualValue, &d.Status, &d.Priority, &d.DetectedBy, &d.DetectedAt, &d.ResolvedBy,
		&d.ResolvedAt, text{&d.Resolution}, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ownerTable returns the table holding the owner's hasDiscrepancy flag and the
// discrepancies column referencing it.
func ownerTable(o model.Owner) (table, column string) {
	if o.Kind == model.OwnerMovement {
		return "movements", "movement_id"
	}
	return "assets", "asset_id"
}

func ownerExists(ctx context.Context, q DBTX, o model.Owner) (bool, error) {
	query := `SELECT COUNT(*) FROM assets WHERE id = ? AND deleted_at IS NULL`
	if o.Kind == model.OwnerMovement {
		query = `SELECT COUNT(*) FROM movements WHERE id = ?`
	}
	var n int
	if err := q.QueryRowContext(ctx, query, o.ID).Scan(&n); err != nil {
		return false, fmt.Errorf("checking %s: %w", o.Kind, err)
	}
	return n > 0, nil
}

func setOwnerFlag(ctx context.Context, q DBTX, o model.Owner, flag bool) error {
	table, _ := ownerTable(o)
	_, err := q.ExecContext(ctx,
		`UPDATE `+table+` SET has_discrepancy = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, flag, o.ID)
	if err != nil {
		return fmt.Errorf("updating %s discrepancy flag: %w", o.Kind, err)
	}
	return nil
}

// countSiblings counts the owner's other discrepancies. With unsettledOnly,
// Resolved and Closed rows are skipped.
func countSiblings(ctx context.Context, q DBTX, o model.Owner, excludeID int64, unsettledOnly bool) (int, error) {
	_, column := ownerTable(o)
	query := `SELECT COUNT(*) FROM discrepancies WHERE ` + column + ` = ? AND id <> ?`
	if unsettledOnly {
		query += ` AND status NOT IN ('Resolved', 'Closed')`
	}
	var n int
	if err := q.QueryRowContext(ctx, query, o.ID, excludeID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting sibling discrepancies: %w", err)
	}
	return n, nil
}

func insertDiscrepancy(ctx context.Context, q DBTX, d *model.Discrepancy) error {
	d.DetectedAt = now()
	result, err := q.ExecContext(ctx,
		`INSERT INTO discrepancies (asset_id, movement_id, type, description, expected_value, actual_value,
		 status, priority, detected_by, detected_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.AssetID, d.MovementID, d.Type, nullString(d.Description), d.ExpectedValue, d.ActualValue,
		d.Status, d.Priority, d.DetectedBy, d.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("creating discrepancy: %w", err)
	}
	d.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting discrepancy id: %w", err)
	}
	return nil
}

// openFindings inserts one Open discrepancy per finding for owner.
func openFindings(ctx context.Context, q DBTX, owner model.Owner, findings []discrepancy.Finding, actorID *int64) ([]model.Discrepancy, error) {
	out := make([]model.Discrepancy, 0, len(findings))
	for _, f := range findings {
		d := f.Discrepancy(owner, actorID)
		if err := insertDiscrepancy(ctx, q, &d); err != nil {
			return nil, err
		}
		stored, err := getDiscrepancy(ctx, q, d.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, *stored)
	}
	return out, nil
}

func getDiscrepancy(ctx context.Context, q DBTX, id int64) (*model.Discrepancy, error) {
	d, err := scanDiscrepancy(q.QueryRowContext(ctx,
		`SELECT `+discrepancyColumns+` FROM discrepancies WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting discrepancy: %w", err)
	}
	return d, nil
}

// GetDiscrepancy returns a discrepancy by ID, or nil if it does not exist.
func GetDiscrepancy(ctx context.Context, db *sql.DB, id int64) (*model.Discrepancy, error) {
	return getDiscrepancy(ctx, db, id)
}

// CreateDiscrepancy records a manual finding against exactly one asset or
// movement. The row is always created Open and the owner is flagged in the
// same transaction.
func CreateDiscrepancy(ctx context.Context, db *sql.DB, in model.DiscrepancyInput, actorID *int64) (*model.Discrepancy, error) {
	owner, err := model.NewOwner(in.AssetID, in.MovementID)
	if err != nil {
		return nil, invalidf("%s", err)
	}

	d := &model.Discrepancy{Status: model.DiscrepancyOpen, Priority: model.PriorityMedium, DetectedBy: actorID}
	in.Apply(d)
	d.SetOwner(owner)
	if !model.ValidDiscrepancyType(d.Type) {
		return nil, invalidf("invalid discrepancy type %q", d.Type)
	}
	if !model.ValidPriority(d.Priority) {
		return nil, invalidf("invalid priority %q", d.Priority)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	exists, err := ownerExists(ctx, tx, owner)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, notFound(string(owner.Kind))
	}

	if err := insertDiscrepancy(ctx, tx, d); err != nil {
		return nil, err
	}
	if err := setOwnerFlag(ctx, tx, owner, true); err != nil {
		return nil, err
	}

	created, err := getDiscrepancy(ctx, tx, d.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return created, nil
}

// DiscrepancyFilter narrows ListDiscrepancies.
type DiscrepancyFilter struct {
	Status     string
	Type       string
	Priority   string
	AssetID    *int64
	MovementID *int64
}

// ListDiscrepancies returns discrepancies, newest first.
func ListDiscrepancies(ctx context.Context, db *sql.DB, f DiscrepancyFilter, page Page) ([]model.Discrepancy, int, error) {
	query := `SELECT ` + discrepancyColumns + ` FROM discrepancies WHERE 1=1`
	var args []any
	for _, eq := range []struct {
		column string
		value  string
	}{{"status", f.Status}, {"type", f.Type}, {"priority", f.Priority}} {
		if eq.value != "" {
			query += ` AND ` + eq.column + ` = ?`
			args = append(args, eq.value)
		}
	}
	if f.AssetID != nil {
		query += ` AND asset_id = ?`
		args = append(args, *f.AssetID)
	}
	if f.MovementID != nil {
		query += ` AND movement_id = ?`
		args = append(args, *f.MovementID)
	}

	total, err := count(ctx, db, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("counting discrepancies: %w", err)
	}

	query, args = page.clause(query+` ORDER BY detected_at DESC, id DESC`, args)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing discrepancies: %w", err)
	}
	defer rows.Close()

	var out []model.Discrepancy
	for rows.Next() {
		d, err := scanDiscrepancy(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning discrepancy: %w", err)
		}
		out = append(out, *d)
	}
	return out, total, rows.Err()
}

// DiscrepancyChange is the outcome of UpdateDiscrepancy.
type DiscrepancyChange struct {
	Discrepancy *model.Discrepancy
	Previous    *model.Discrepancy
	// OwnerCleared is set when the owner's flag was cleared by this update.
	OwnerCleared bool
}

// UpdateDiscrepancy edits a discrepancy and keeps the owner's flag in step
// with its status. The owner cannot be changed.
func UpdateDiscrepancy(ctx context.Context, db *sql.DB, id int64, in model.DiscrepancyInput, actorID *int64) (*DiscrepancyChange, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	d, err := getDiscrepancy(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, notFound("discrepancy")
	}
	prev := *d

	in.Apply(d)
	if in.Status != nil {
		d.Status = *in.Status
	}
	if !model.ValidDiscrepancyType(d.Type) {
		return nil, invalidf("invalid discrepancy type %q", d.Type)
	}
	if !model.ValidPriority(d.Priority) {
		return nil, invalidf("invalid priority %q", d.Priority)
	}
	if !model.ValidDiscrepancyStatus(d.Status) {
		return nil, invalidf("invalid discrepancy status %q", d.Status)
	}

	change := &DiscrepancyChange{Previous: &prev}
	owner := d.Owner()

	switch {
	case discrepancy.Resolves(prev.Status, d.Status):
		at := now()
		d.ResolvedAt = &at
		d.ResolvedBy = actorID
	case discrepancy.Reopens(prev.Status, d.Status):
		d.ResolvedAt = nil
		d.ResolvedBy = nil
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE discrepancies SET type = ?, description = ?, expected_value = ?, actual_value = ?,
		 status = ?, priority = ?, resolved_by = ?, resolved_at = ?, resolution = ?,
		 updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		d.Type, nullString(d.Description), d.ExpectedValue, d.ActualValue, d.Status, d.Priority,
		d.ResolvedBy, d.ResolvedAt, nullString(d.Resolution), id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating discrepancy: %w", err)
	}

	switch {
	case discrepancy.Resolves(prev.Status, d.Status):
		remaining, err := countSiblings(ctx, tx, owner, id, true)
		if err != nil {
			return nil, err
		}
		if remaining == 0 {
			if err := setOwnerFlag(ctx, tx, owner, false); err != nil {
				return nil, err
			}
			change.OwnerCleared = true
		}
	case discrepancy.Reopens(prev.Status, d.Status):
		if err := setOwnerFlag(ctx, tx, owner, true); err != nil {
			return nil, err
		}
	}

	change.Discrepancy, err = getDiscrepancy(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return change, nil
}

// DeleteDiscrepancy removes a discrepancy. The owner's flag is cleared when
// it has no other discrepancies of any status.
func DeleteDiscrepancy(ctx context.Context, db *sql.DB, id int64) (*model.Discrepancy, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	d, err := getDiscrepancy(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, notFound("discrepancy")
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM discrepancies WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("deleting discrepancy: %w", err)
	}

	owner := d.Owner()
	remaining, err := countSiblings(ctx, tx, owner, id, false)
	if err != nil {
		return nil, err
	}
	if remaining == 0 {
		if err := setOwnerFlag(ctx, tx, owner, false); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return d, nil
}

// ReconcileDiscrepancyFlags recomputes every asset and movement flag from the
// discrepancies table: the flag is true iff an Open row references the owner.
// It returns the number of owners whose flag was corrected.
func ReconcileDiscrepancyFlags(ctx context.Context, db *sql.DB) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var fixed int64
	for _, o := range []model.OwnerKind{model.OwnerAsset, model.OwnerMovement} {
		table, column := ownerTable(model.Owner{Kind: o})
		open := `EXISTS (SELECT 1 FROM discrepancies d WHERE d.` + column + ` = ` + table + `.id AND d.status = 'Open')`
		result, err := tx.ExecContext(ctx,
			`UPDATE `+table+` SET has_discrepancy = `+open+`, updated_at = CURRENT_TIMESTAMP
			 WHERE has_discrepancy <> `+open)
		if err != nil {
			return 0, fmt.Errorf("reconciling %s flags: %w", table, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("reconciling %s flags: %w", table, err)
		}
		fixed += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return int(fixed), nil
}
