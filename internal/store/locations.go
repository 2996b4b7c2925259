package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/erazemk/assettrack/internal/model"
)

const locationColumns = `l.id, l.site_id, l.parent_id, l.name, l.code, l.description,
	l.created_at, l.updated_at, s.name`

const locationFrom = ` FROM locations l JOIN sites s ON s.id = l.site_id`

func scanLocation(s rowScanner) (*model.Location, error) {
	l := &model.Location{}
	err := s.Scan(&l.ID, &l.SiteID, &l.ParentID, &l.Name, text{&l.Code}, text{&l.Description},
		&l.CreatedAt, &l.UpdatedAt, &l.SiteName)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func getLocation(ctx context.Context, q DBTX, id int64) (*model.Location, error) {
	l, err := scanLocation(q.QueryRowContext(ctx, `SELECT `+locationColumns+locationFrom+` WHERE l.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting location: %w", err)
	}
	return l, nil
}

// GetLocation returns a location by ID, or nil if it does not exist.
func GetLocation(ctx context.Context, db *sql.DB, id int64) (*model.Location, error) {
	return getLocation(ctx, db, id)
}

// checkPlacement validates the site and parent of l. A non-zero selfID is the
// location being updated and must not become its own ancestor.
func checkPlacement(ctx context.Context, q DBTX, l *model.Location, selfID int64) error {
	var exists int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM sites WHERE id = ?`, l.SiteID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking site: %w", err)
	}
	if exists == 0 {
		return notFound("site")
	}

	if l.ParentID == nil {
		return nil
	}

	parent, err := getLocation(ctx, q, *l.ParentID)
	if err != nil {
		return err
	}
	if parent == nil {
		return notFound("parent location")
	}
	if parent.SiteID != l.SiteID {
		return invalidf("parent location belongs to a different site")
	}
	if selfID == 0 {
		return nil
	}

	// Walk up from the new parent. Reaching selfID means a cycle.
	seen := map[int64]bool{}
	for cur := parent; cur != nil; {
		if cur.ID == selfID {
			return invalidf("location cannot be nested under itself")
		}
		if seen[cur.ID] || cur.ParentID == nil {
			break
		}
		seen[cur.ID] = true
		if cur, err = getLocation(ctx, q, *cur.ParentID); err != nil {
			return err
		}
	}
	return nil
}

// locationRefs counts the child locations and live assets placed at id.
func locationRefs(ctx context.Context, q DBTX, id int64) (children, assets int, err error) {
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM locations WHERE parent_id = ?`, id).Scan(&children); err != nil {
		return 0, 0, fmt.Errorf("counting child locations: %w", err)
	}
	if err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM assets WHERE location_id = ? AND deleted_at IS NULL`, id).Scan(&assets); err != nil {
		return 0, 0, fmt.Errorf("counting location assets: %w", err)
	}
	return children, assets, nil
}

// CreateLocation creates a location inside a site.
func CreateLocation(ctx context.Context, db *sql.DB, l *model.Location) (*model.Location, error) {
	l.Name = strings.TrimSpace(l.Name)
	if l.Name == "" {
		return nil, invalidf("location name is required")
	}
	if err := checkPlacement(ctx, db, l, 0); err != nil {
		return nil, err
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO locations (site_id, parent_id, name, code, description) VALUES (?, ?, ?, ?, ?)`,
		l.SiteID, l.ParentID, l.Name, nullString(l.Code), nullString(l.Description),
	)
	if err != nil {
		return nil, fmt.Errorf("creating location: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting location id: %w", err)
	}
	return GetLocation(ctx, db, id)
}

// LocationFilter narrows ListLocations.
type LocationFilter struct {
	SiteID   *int64
	ParentID *int64
}

// ListLocations returns locations ordered by site and name.
func ListLocations(ctx context.Context, db *sql.DB, f LocationFilter, page Page) ([]model.Location, int, error) {
	query := `SELECT ` + locationColumns + locationFrom + ` WHERE 1=1`
	var args []any
	if f.SiteID != nil {
		query += ` AND l.site_id = ?`
		args = append(args, *f.SiteID)
	}
	if f.ParentID != nil {
		query += ` AND l.parent_id = ?`
		args = append(args, *f.ParentID)
	}

	total, err := count(ctx, db, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("counting locations: %w", err)
	}

	query, args = page.clause(query+` ORDER BY s.name, l.name`, args)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing locations: %w", err)
	}
	defer rows.Close()

	var locations []model.Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning location: %w", err)
		}
		locations = append(locations, *l)
	}
	return locations, total, rows.Err()
}

// UpdateLocation replaces a location's fields and returns the previous state.
func UpdateLocation(ctx context.Context, db *sql.DB, id int64, l *model.Location) (updated, previous *model.Location, err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	previous, err = getLocation(ctx, tx, id)
	if err != nil {
		return nil, nil, err
	}
	if previous == nil {
		return nil, nil, notFound("location")
	}

	l.Name = strings.TrimSpace(l.Name)
	if l.Name == "" {
		return nil, nil, invalidf("location name is required")
	}
	if l.ParentID != nil && *l.ParentID == id {
		return nil, nil, invalidf("location cannot be nested under itself")
	}
	if err := checkPlacement(ctx, tx, l, id); err != nil {
		return nil, nil, err
	}
	if l.SiteID != previous.SiteID {
		children, assets, err := locationRefs(ctx, tx, id)
		if err != nil {
			return nil, nil, err
		}
		if children > 0 || assets > 0 {
			return nil, nil, invalidf("cannot move location to another site: referenced by %d child locations and %d assets", children, assets)
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE locations SET site_id = ?, parent_id = ?, name = ?, code = ?, description = ?,
		 updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		l.SiteID, l.ParentID, l.Name, nullString(l.Code), nullString(l.Description), id,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("updating location: %w", err)
	}

	updated, err = getLocation(ctx, tx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("committing transaction: %w", err)
	}
	return updated, previous, nil
}

// DeleteLocation deletes a location. Fails while child locations or assets
// reference it.
func DeleteLocation(ctx context.Context, db *sql.DB, id int64) (*model.Location, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	l, err := getLocation(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, notFound("location")
	}

	children, assets, err := locationRefs(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if children > 0 || assets > 0 {
		return nil, invalidf("cannot delete location: referenced by %d child locations and %d assets", children, assets)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE assets SET location_id = NULL WHERE location_id = ? AND deleted_at IS NOT NULL`, id); err != nil {
		return nil, fmt.Errorf("detaching deleted assets: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM locations WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("deleting location: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return l, nil
}
