package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/assettrack/internal/model"
)

const photoColumns = `id, asset_id, movement_id, file_name, original_name, mime_type, size, description,
	latitude, longitude, taken_at, uploaded_by, created_at, updated_at`

func scanPhoto(s rowScanner) (*model.Photo, error) {
	p := &model.Photo{}
	err := s.Scan(&p.ID, &p.AssetID, &p.MovementID, &p.FileName, text{&p.OriginalName}, &p.MimeType,
		&p.Size, text{&p.Description}, &p.Latitude, &p.Longitude, &p.TakenAt, &p.UploadedBy,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// CheckPhotoOwner verifies that the asset or movement a photo is attached to
// exists.
func CheckPhotoOwner(ctx context.Context, db *sql.DB, o model.Owner) error {
	exists, err := ownerExists(ctx, db, o)
	if err != nil {
		return err
	}
	if !exists {
		return notFound(string(o.Kind))
	}
	return nil
}

// CreatePhoto stores photo metadata. The blob must already be written.
func CreatePhoto(ctx context.Context, db *sql.DB, p *model.Photo) (*model.Photo, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO photos (asset_id, movement_id, file_name, original_name, mime_type, size, description,
		 latitude, longitude, taken_at, uploaded_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.AssetID, p.MovementID, p.FileName, nullString(p.OriginalName), p.MimeType, p.Size,
		nullString(p.Description), p.Latitude, p.Longitude, p.TakenAt, p.UploadedBy,
	)
	if err != nil {
		return nil, fmt.Errorf("creating photo: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting photo id: %w", err)
	}
	return GetPhoto(ctx, db, id)
}

// GetPhoto returns a photo by ID, or nil if it does not exist.
func GetPhoto(ctx context.Context, db *sql.DB, id int64) (*model.Photo, error) {
	p, err := scanPhoto(db.QueryRowContext(ctx, `SELECT `+photoColumns+` FROM photos WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting photo: %w", err)
	}
	return p, nil
}

// PhotoFilter narrows ListPhotos.
type PhotoFilter struct {
	AssetID    *int64
	MovementID *int64
}

// ListPhotos returns photos, newest first.
func ListPhotos(ctx context.Context, db *sql.DB, f PhotoFilter, page Page) ([]model.Photo, int, error) {
	query := `SELECT ` + photoColumns + ` FROM photos WHERE 1=1`
	var args []any
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
		return nil, 0, fmt.Errorf("counting photos: %w", err)
	}

	query, args = page.clause(query+` ORDER BY created_at DESC, id DESC`, args)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing photos: %w", err)
	}
	defer rows.Close()

	var photos []model.Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning photo: %w", err)
		}
		photos = append(photos, *p)
	}
	return photos, total, rows.Err()
}

// UpdatePhotoDescription changes a photo's description.
func UpdatePhotoDescription(ctx context.Context, db *sql.DB, id int64, description string) (*model.Photo, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE photos SET description = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		nullString(description), id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating photo: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, notFound("photo")
	}
	return GetPhoto(ctx, db, id)
}

// DeletePhoto removes a photo row and returns it so the caller can delete
// the blob.
func DeletePhoto(ctx context.Context, db *sql.DB, id int64) (*model.Photo, error) {
	p, err := GetPhoto(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, notFound("photo")
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM photos WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("deleting photo: %w", err)
	}
	return p, nil
}

func photoKeys(ctx context.Context, q DBTX, where string, arg any) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT file_name FROM photos WHERE `+where, arg)
	if err != nil {
		return nil, fmt.Errorf("listing photo files: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scanning photo file: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
