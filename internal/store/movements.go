package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/assettrack/internal/model"
)

const movementColumns = `m.id, m.asset_id, m.type, m.from_location, m.to_location, m.from_custodian,
	m.to_custodian, m.reason, m.notes, m.status, m.requester_id, m.approver_id, m.request_date,
	m.approval_date, m.completion_date, m.has_discrepancy, m.created_at, m.updated_at,
	a.name, a.asset_tag`

const movementFrom = ` FROM movements m LEFT JOIN assets a ON a.id = m.asset_id`

func scanMovement(s rowScanner) (*model.Movement, error) {
	m := &model.Movement{}
	err := s.Scan(&m.ID, &m.AssetID, &m.Type, text{&m.FromLocation}, text{&m.ToLocation},
		text{&m.FromCustodian}, text{&m.ToCustodian}, text{&m.Reason}, text{&m.Notes}, &m.Status,
		&m.RequesterID, &m.ApproverID, &m.RequestDate, &m.ApprovalDate, &m.CompletionDate,
		&m.HasDiscrepancy, &m.CreatedAt, &m.UpdatedAt, text{&m.AssetName}, text{&m.AssetTag})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func getMovement(ctx context.Context, q DBTX, id int64) (*model.Movement, error) {
	m, err := scanMovement(q.QueryRowContext(ctx, `SELECT `+movementColumns+movementFrom+` WHERE m.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting movement: %w", err)
	}
	return m, nil
}

// GetMovement returns a movement by ID, or nil if it does not exist.
func GetMovement(ctx context.Context, db *sql.DB, id int64) (*model.Movement, error) {
	return getMovement(ctx, db, id)
}

// MovementActor is who is acting on a movement and what they may do.
type MovementActor struct {
	UserID     int64
	IsAdmin    bool
	CanApprove bool
}

func (a MovementActor) isRequester(m *model.Movement) bool {
	return m.RequesterID != nil && *m.RequesterID == a.UserID
}

// CreateMovement opens a Pending movement for an existing asset. Missing
// from-values default to the asset's current placement.
func CreateMovement(ctx context.Context, db *sql.DB, in model.MovementInput, requesterID int64) (*model.Movement, error) {
	if in.AssetID == nil || *in.AssetID <= 0 {
		return nil, invalidf("assetId is required")
	}

	asset, err := GetAsset(ctx, db, *in.AssetID)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, notFound("asset")
	}

	m := &model.Movement{
		AssetID:       asset.ID,
		Type:          model.MovementTypeTransfer,
		FromLocation:  asset.Location,
		FromCustodian: asset.Custodian,
		Status:        model.MovementPending,
		RequesterID:   &requesterID,
		RequestDate:   now(),
	}
	in.Apply(m)
	if m.FromLocation == "" {
		m.FromLocation = asset.Location
	}
	if m.FromCustodian == "" {
		m.FromCustodian = asset.Custodian
	}
	if !model.ValidMovementType(m.Type) {
		return nil, invalidf("invalid movement type %q", m.Type)
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO movements (asset_id, type, from_location, to_location, from_custodian, to_custodian,
		 reason, notes, status, requester_id, request_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.AssetID, m.Type, nullString(m.FromLocation), nullString(m.ToLocation),
		nullString(m.FromCustodian), nullString(m.ToCustodian), nullString(m.Reason), nullString(m.Notes),
		m.Status, m.RequesterID, m.RequestDate,
	)
	if err != nil {
		return nil, fmt.Errorf("creating movement: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting movement id: %w", err)
	}
	return GetMovement(ctx, db, id)
}

// MovementFilter narrows ListMovements.
type MovementFilter struct {
	Status      string
	Type        string
	AssetID     *int64
	RequesterID *int64
	Requested   DateRange
}

// ListMovements returns movements, most recently requested first.
func ListMovements(ctx context.Context, db *sql.DB, f MovementFilter, page Page) ([]model.Movement, int, error) {
	query := `SELECT ` + movementColumns + movementFrom + ` WHERE 1=1`
	var args []any
	if f.Status != "" {
		query += ` AND m.status = ?`
		args = append(args, f.Status)
	}
	if f.Type != "" {
		query += ` AND m.type = ?`
		args = append(args, f.Type)
	}
	if f.AssetID != nil {
		query += ` AND m.asset_id = ?`
		args = append(args, *f.AssetID)
	}
	if f.RequesterID != nil {
		query += ` AND m.requester_id = ?`
		args = append(args, *f.RequesterID)
	}
	query, args = f.Requested.where("m.request_date", query, args)

	total, err := count(ctx, db, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("counting movements: %w", err)
	}

	query, args = page.clause(query+` ORDER BY m.request_date DESC, m.id DESC`, args)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing movements: %w", err)
	}
	defer rows.Close()

	var out []model.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning movement: %w", err)
		}
		out = append(out, *m)
	}
	return out, total, rows.Err()
}

// MovementChange is the outcome of UpdateMovement.
type MovementChange struct {
	Movement *model.Movement
	Previous *model.Movement
	// Asset is the propagated asset when the movement was completed.
	Asset *model.Asset
}

// StatusChanged reports whether the update moved the movement to a new status.
func (c *MovementChange) StatusChanged() bool {
	return c.Movement.Status != c.Previous.Status
}

// UpdateMovement edits a movement and applies any status transition. Only the
// requester, an Admin or an approver may update; only Admins and approvers may
// approve or reject. Completion copies the destination onto the asset in the
// same transaction.
func UpdateMovement(ctx context.Context, db *sql.DB, id int64, in model.MovementInput, actor MovementActor) (*MovementChange, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	m, err := getMovement(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, notFound("movement")
	}
	if !actor.IsAdmin && !actor.CanApprove && !actor.isRequester(m) {
		return nil, fmt.Errorf("updating movement: %w", ErrForbidden)
	}
	if model.IsTerminal(m.Status) {
		return nil, invalidf("cannot update a %s movement", m.Status)
	}

	prev := *m
	in.Apply(m)
	if !model.ValidMovementType(m.Type) {
		return nil, invalidf("invalid movement type %q", m.Type)
	}

	change := &MovementChange{Previous: &prev}
	if in.Status != nil && *in.Status != prev.Status {
		next := *in.Status
		if !model.ValidMovementStatus(next) {
			return nil, invalidf("invalid movement status %q", next)
		}
		if !model.CanTransition(prev.Status, next) {
			return nil, invalidf("cannot move from %s to %s", prev.Status, next)
		}
		m.Status = next

		at := now()
		switch next {
		case model.MovementApproved, model.MovementRejected:
			if !actor.IsAdmin && !actor.CanApprove {
				return nil, fmt.Errorf("approving movement: %w", ErrForbidden)
			}
			if next == model.MovementApproved {
				m.ApproverID = &actor.UserID
				m.ApprovalDate = &at
			}
		case model.MovementCompleted:
			m.CompletionDate = &at
			if change.Asset, err = propagateToAsset(ctx, tx, m); err != nil {
				return nil, err
			}
		}
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE movements SET type = ?, from_location = ?, to_location = ?, from_custodian = ?,
		 to_custodian = ?, reason = ?, notes = ?, status = ?, approver_id = ?, approval_date = ?,
		 completion_date = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ?`,
		m.Type, nullString(m.FromLocation), nullString(m.ToLocation), nullString(m.FromCustodian),
		nullString(m.ToCustodian), nullString(m.Reason), nullString(m.Notes), m.Status, m.ApproverID,
		m.ApprovalDate, m.CompletionDate, id, prev.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("updating movement: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, fmt.Errorf("updating movement: %w", err)
	} else if n == 0 {
		return nil, fmt.Errorf("movement changed concurrently: %w", ErrConflict)
	}

	change.Movement, err = getMovement(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return change, nil
}

// propagateToAsset overwrites the asset's location and custodian with the
// movement's non-empty destination values.
func propagateToAsset(ctx context.Context, tx *sql.Tx, m *model.Movement) (*model.Asset, error) {
	result, err := tx.ExecContext(ctx,
		`UPDATE assets SET location = COALESCE(?, location), custodian = COALESCE(?, custodian),
		 updated_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		nullString(m.ToLocation), nullString(m.ToCustodian), m.AssetID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating asset placement: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, notFound("asset")
	}
	return getAsset(ctx, tx, `id = ?`, m.AssetID)
}

// DeleteMovement deletes a Pending movement. Only the requester or an Admin
// may delete. Discrepancies and photos of the movement are removed with it;
// the returned keys are the blobs of the removed photos.
func DeleteMovement(ctx context.Context, db *sql.DB, id int64, actor MovementActor) (*model.Movement, []string, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	m, err := getMovement(ctx, tx, id)
	if err != nil {
		return nil, nil, err
	}
	if m == nil {
		return nil, nil, notFound("movement")
	}
	if m.Status != model.MovementPending {
		return nil, nil, invalidf("only Pending movements can be deleted")
	}
	if !actor.IsAdmin && !actor.isRequester(m) {
		return nil, nil, fmt.Errorf("deleting movement: %w", ErrForbidden)
	}

	keys, err := photoKeys(ctx, tx, `movement_id = ?`, id)
	if err != nil {
		return nil, nil, err
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM movements WHERE id = ? AND status = ?`, id, model.MovementPending)
	if err != nil {
		return nil, nil, fmt.Errorf("deleting movement: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, nil, fmt.Errorf("movement changed concurrently: %w", ErrConflict)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("committing transaction: %w", err)
	}
	return m, keys, nil
}
