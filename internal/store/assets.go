package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/erazemk/assettrack/internal/discrepancy"
	"github.com/erazemk/assettrack/internal/model"
)

const assetColumns = `id, asset_tag, serial_number, name, category, model, manufacturer, purchase_date,
	purchase_price, current_value, location, site_id, location_id, custodian, department, status,
	condition, notes, last_scanned_at, latitude, longitude, has_discrepancy, created_by,
	created_at, updated_at, deleted_at`

func scanAsset(s rowScanner) (*model.Asset, error) {
	a := &model.Asset{}
	err := s.Scan(&a.ID, text{&a.AssetTag}, text{&a.SerialNumber}, &a.Name, text{&a.Category},
		text{&a.Model}, text{&a.Manufacturer}, &a.PurchaseDate, &a.PurchasePrice, &a.CurrentValue,
		text{&a.Location}, &a.SiteID, &a.LocationID, text{&a.Custodian}, text{&a.Department},
		&a.Status, &a.Condition, text{&a.Notes}, &a.LastScannedAt, &a.Latitude, &a.Longitude,
		&a.HasDiscrepancy, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt, &a.DeletedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func getAsset(ctx context.Context, q DBTX, where string, arg any) (*model.Asset, error) {
	a, err := scanAsset(q.QueryRowContext(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE `+where+` AND deleted_at IS NULL`, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting asset: %w", err)
	}
	return a, nil
}

// GetAsset returns a non-deleted asset by ID, or nil if none exists.
func GetAsset(ctx context.Context, db *sql.DB, id int64) (*model.Asset, error) {
	return getAsset(ctx, db, `id = ?`, id)
}

// GetAssetByTag returns a non-deleted asset by its asset tag.
func GetAssetByTag(ctx context.Context, db *sql.DB, tag string) (*model.Asset, error) {
	return getAsset(ctx, db, `asset_tag = ?`, tag)
}

// validateAsset normalizes a and checks its business rules: required name,
// known status and condition, unique tag and serial, consistent placement.
func validateAsset(ctx context.Context, q DBTX, a *model.Asset) error {
	a.Name = strings.TrimSpace(a.Name)
	a.AssetTag = strings.TrimSpace(a.AssetTag)
	a.SerialNumber = strings.TrimSpace(a.SerialNumber)
	if a.Name == "" {
		return invalidf("asset name is required")
	}
	if a.Status == "" {
		a.Status = model.AssetStatusActive
	}
	if a.Condition == "" {
		a.Condition = model.ConditionGood
	}
	if !model.ValidAssetStatus(a.Status) {
		return invalidf("invalid asset status %q", a.Status)
	}
	if !model.ValidCondition(a.Condition) {
		return invalidf("invalid asset condition %q", a.Condition)
	}

	for _, u := range []struct{ column, value, label string }{
		{"asset_tag", a.AssetTag, "asset tag"},
		{"serial_number", a.SerialNumber, "serial number"},
	} {
		if u.value == "" {
			continue
		}
		var n int
		err := q.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM assets WHERE `+u.column+` = ? AND deleted_at IS NULL AND id <> ?`,
			u.value, a.ID,
		).Scan(&n)
		if err != nil {
			return fmt.Errorf("checking %s: %w", u.label, err)
		}
		if n > 0 {
			return invalidf("%s already exists", u.label)
		}
	}

	if a.LocationID != nil {
		loc, err := getLocation(ctx, q, *a.LocationID)
		if err != nil {
			return err
		}
		if loc == nil {
			return notFound("location")
		}
		if a.SiteID == nil {
			a.SiteID = &loc.SiteID
		} else if *a.SiteID != loc.SiteID {
			return invalidf("location belongs to a different site")
		}
	}
	if a.SiteID != nil {
		var n int
		if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM sites WHERE id = ?`, *a.SiteID).Scan(&n); err != nil {
			return fmt.Errorf("checking site: %w", err)
		}
		if n == 0 {
			return notFound("site")
		}
	}
	return nil
}

// CreateAsset creates an asset from in.
func CreateAsset(ctx context.Context, db *sql.DB, in model.AssetInput, createdBy *int64) (*model.Asset, error) {
	a := &model.Asset{CreatedBy: createdBy}
	in.Apply(a)
	if err := validateAsset(ctx, db, a); err != nil {
		return nil, err
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO assets (asset_tag, serial_number, name, category, model, manufacturer, purchase_date,
		 purchase_price, current_value, location, site_id, location_id, custodian, department, status,
		 condition, notes, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullString(a.AssetTag), nullString(a.SerialNumber), a.Name, nullString(a.Category),
		nullString(a.Model), nullString(a.Manufacturer), a.PurchaseDate, a.PurchasePrice, a.CurrentValue,
		nullString(a.Location), a.SiteID, a.LocationID, nullString(a.Custodian), nullString(a.Department),
		a.Status, a.Condition, nullString(a.Notes), a.CreatedBy,
	)
	if err != nil {
		return nil, fmt.Errorf("creating asset: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting asset id: %w", err)
	}
	return GetAsset(ctx, db, id)
}

// AssetFilter narrows ListAssets. Zero values are ignored.
type AssetFilter struct {
	Category       string
	Status         string
	Condition      string
	Department     string
	Custodian      string
	SiteID         *int64
	LocationID     *int64
	HasDiscrepancy *bool
	Search         string
	Created        DateRange
}

func (f AssetFilter) where() (string, []any) {
	query := ` WHERE deleted_at IS NULL`
	var args []any
	for _, eq := range []struct{ column, value string }{
		{"category", f.Category},
		{"status", f.Status},
		{"condition", f.Condition},
		{"department", f.Department},
		{"custodian", f.Custodian},
	} {
		if eq.value != "" {
			query += ` AND ` + eq.column + ` = ?`
			args = append(args, eq.value)
		}
	}
	if f.SiteID != nil {
		query += ` AND site_id = ?`
		args = append(args, *f.SiteID)
	}
	if f.LocationID != nil {
		query += ` AND location_id = ?`
		args = append(args, *f.LocationID)
	}
	if f.HasDiscrepancy != nil {
		query += ` AND has_discrepancy = ?`
		args = append(args, *f.HasDiscrepancy)
	}
	if f.Search != "" {
		query += ` AND (name LIKE ? OR asset_tag LIKE ? OR serial_number LIKE ? OR model LIKE ? OR manufacturer LIKE ?)`
		like := "%" + f.Search + "%"
		args = append(args, like, like, like, like, like)
	}
	return f.Created.where("created_at", query, args)
}

// ListAssets returns non-deleted assets, newest first, plus the total count.
// A zero Page returns every match.
func ListAssets(ctx context.Context, db *sql.DB, f AssetFilter, page Page) ([]model.Asset, int, error) {
	where, args := f.where()
	query := `SELECT ` + assetColumns + ` FROM assets` + where

	total, err := count(ctx, db, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("counting assets: %w", err)
	}

	query, args = page.clause(query+` ORDER BY created_at DESC, id DESC`, args)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing assets: %w", err)
	}
	defer rows.Close()

	var assets []model.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning asset: %w", err)
		}
		assets = append(assets, *a)
	}
	return assets, total, rows.Err()
}

// AssetChange is the outcome of an asset update or scan.
type AssetChange struct {
	Asset         *model.Asset
	Previous      *model.Asset
	Discrepancies []model.Discrepancy
}

func writeAsset(ctx context.Context, q DBTX, a *model.Asset) error {
	_, err := q.ExecContext(ctx,
		`UPDATE assets SET asset_tag = ?, serial_number = ?, name = ?, category = ?, model = ?,
		 manufacturer = ?, purchase_date = ?, purchase_price = ?, current_value = ?, location = ?,
		 site_id = ?, location_id = ?, custodian = ?, department = ?, status = ?, condition = ?,
		 notes = ?, last_scanned_at = ?, latitude = ?, longitude = ?, has_discrepancy = ?,
		 updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		nullString(a.AssetTag), nullString(a.SerialNumber), a.Name, nullString(a.Category),
		nullString(a.Model), nullString(a.Manufacturer), a.PurchaseDate, a.PurchasePrice, a.CurrentValue,
		nullString(a.Location), a.SiteID, a.LocationID, nullString(a.Custodian), nullString(a.Department),
		a.Status, a.Condition, nullString(a.Notes), a.LastScannedAt, a.Latitude, a.Longitude,
		a.HasDiscrepancy, a.ID,
	)
	if err != nil {
		return fmt.Errorf("updating asset: %w", err)
	}
	return nil
}

// UpdateAsset applies in to an asset. Each changed location, custodian or
// condition opens a discrepancy in the same transaction and flags the asset.
// The flag is never cleared here.
func UpdateAsset(ctx context.Context, db *sql.DB, id int64, in model.AssetInput, actorID *int64) (*AssetChange, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	a, err := getAsset(ctx, tx, `id = ?`, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, notFound("asset")
	}
	prev := *a

	findings := discrepancy.DetectAsset(a, in)
	in.Apply(a)
	if err := validateAsset(ctx, tx, a); err != nil {
		return nil, err
	}

	return commitAssetChange(ctx, tx, a, &prev, findings, actorID)
}

// ScanInput is what a field scan reports about an asset.
type ScanInput struct {
	Location  *string  `json:"location"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// ScanAsset records a scan of the asset with the given tag. A reported
// location that differs from the stored one opens a Location discrepancy and
// becomes the asset's location.
func ScanAsset(ctx context.Context, db *sql.DB, tag string, scan ScanInput, actorID *int64) (*AssetChange, error) {
	if strings.TrimSpace(tag) == "" {
		return nil, invalidf("asset tag is required")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	a, err := getAsset(ctx, tx, `asset_tag = ?`, tag)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, notFound("asset")
	}
	prev := *a

	findings := discrepancy.DetectScan(a, scan.Location)
	if scan.Location != nil && *scan.Location != "" {
		a.Location = *scan.Location
	}
	if scan.Latitude != nil && scan.Longitude != nil {
		a.Latitude, a.Longitude = scan.Latitude, scan.Longitude
	}
	at := now()
	a.LastScannedAt = &at

	return commitAssetChange(ctx, tx, a, &prev, findings, actorID)
}

func commitAssetChange(ctx context.Context, tx *sql.Tx, a, prev *model.Asset, findings []discrepancy.Finding, actorID *int64) (*AssetChange, error) {
	opened, err := openFindings(ctx, tx, model.Owner{Kind: model.OwnerAsset, ID: a.ID}, findings, actorID)
	if err != nil {
		return nil, err
	}
	a.HasDiscrepancy = prev.HasDiscrepancy || len(opened) > 0

	if err := writeAsset(ctx, tx, a); err != nil {
		return nil, err
	}
	updated, err := getAsset(ctx, tx, `id = ?`, a.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return &AssetChange{Asset: updated, Previous: prev, Discrepancies: opened}, nil
}

// SoftDeleteAsset tombstones an asset and returns its last state.
func SoftDeleteAsset(ctx context.Context, db *sql.DB, id int64) (*model.Asset, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	a, err := getAsset(ctx, tx, `id = ?`, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, notFound("asset")
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE assets SET deleted_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, now(), id)
	if err != nil {
		return nil, fmt.Errorf("deleting asset: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return a, nil
}
