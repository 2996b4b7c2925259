package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/erazemk/assettrack/internal/model"
)

const siteColumns = `id, name, code, address, description, created_at, updated_at`

func scanSite(s rowScanner) (*model.Site, error) {
	site := &model.Site{}
	err := s.Scan(&site.ID, &site.Name, text{&site.Code}, text{&site.Address}, text{&site.Description},
		&site.CreatedAt, &site.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return site, nil
}

func validateSite(site *model.Site) error {
	site.Name = strings.TrimSpace(site.Name)
	if site.Name == "" {
		return invalidf("site name is required")
	}
	return nil
}

func siteNameTaken(ctx context.Context, q DBTX, name string, excludeID int64) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM sites WHERE name = ? AND id <> ?`, name, excludeID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking site name: %w", err)
	}
	return n > 0, nil
}

// CreateSite creates a new site. Names are unique.
func CreateSite(ctx context.Context, db *sql.DB, site *model.Site) (*model.Site, error) {
	if err := validateSite(site); err != nil {
		return nil, err
	}
	taken, err := siteNameTaken(ctx, db, site.Name, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, invalidf("site name already exists")
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO sites (name, code, address, description) VALUES (?, ?, ?, ?)`,
		site.Name, nullString(site.Code), nullString(site.Address), nullString(site.Description),
	)
	if err != nil {
		return nil, fmt.Errorf("creating site: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting site id: %w", err)
	}
	return GetSite(ctx, db, id)
}

// GetSite returns a site by ID, or nil if it does not exist.
func GetSite(ctx context.Context, db *sql.DB, id int64) (*model.Site, error) {
	site, err := scanSite(db.QueryRowContext(ctx, `SELECT `+siteColumns+` FROM sites WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting site: %w", err)
	}
	return site, nil
}

// ListSites returns sites ordered by name. search matches name or code.
func ListSites(ctx context.Context, db *sql.DB, search string, page Page) ([]model.Site, int, error) {
	query := `SELECT ` + siteColumns + ` FROM sites WHERE 1=1`
	var args []any
	if search != "" {
		query += ` AND (name LIKE ? OR code LIKE ?)`
		like := "%" + search + "%"
		args = append(args, like, like)
	}

	total, err := count(ctx, db, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("counting sites: %w", err)
	}

	query, args = page.clause(query+` ORDER BY name`, args)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing sites: %w", err)
	}
	defer rows.Close()

	var sites []model.Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning site: %w", err)
		}
		sites = append(sites, *site)
	}
	return sites, total, rows.Err()
}

// UpdateSite replaces the site's fields and returns the previous state.
func UpdateSite(ctx context.Context, db *sql.DB, id int64, site *model.Site) (updated, previous *model.Site, err error) {
	previous, err = GetSite(ctx, db, id)
	if err != nil {
		return nil, nil, err
	}
	if previous == nil {
		return nil, nil, notFound("site")
	}
	if err := validateSite(site); err != nil {
		return nil, nil, err
	}
	taken, err := siteNameTaken(ctx, db, site.Name, id)
	if err != nil {
		return nil, nil, err
	}
	if taken {
		return nil, nil, invalidf("site name already exists")
	}

	_, err = db.ExecContext(ctx,
		`UPDATE sites SET name = ?, code = ?, address = ?, description = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		site.Name, nullString(site.Code), nullString(site.Address), nullString(site.Description), id,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("updating site: %w", err)
	}

	updated, err = GetSite(ctx, db, id)
	return updated, previous, err
}

// DeleteSite deletes a site. Fails while locations or assets reference it.
func DeleteSite(ctx context.Context, db *sql.DB, id int64) (*model.Site, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	site, err := scanSite(tx.QueryRowContext(ctx, `SELECT `+siteColumns+` FROM sites WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, notFound("site")
	}
	if err != nil {
		return nil, fmt.Errorf("getting site: %w", err)
	}

	var locations, assets int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM locations WHERE site_id = ?`, id).Scan(&locations); err != nil {
		return nil, fmt.Errorf("counting site locations: %w", err)
	}
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM assets WHERE site_id = ? AND deleted_at IS NULL`, id).Scan(&assets); err != nil {
		return nil, fmt.Errorf("counting site assets: %w", err)
	}
	if locations > 0 || assets > 0 {
		return nil, invalidf("cannot delete site: referenced by %d locations and %d assets", locations, assets)
	}

	// Tombstoned assets keep their history but lose the reference.
	if _, err := tx.ExecContext(ctx,
		`UPDATE assets SET site_id = NULL WHERE site_id = ? AND deleted_at IS NOT NULL`, id); err != nil {
		return nil, fmt.Errorf("detaching deleted assets: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sites WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("deleting site: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return site, nil
}
