package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
)

const settingJWTSecret = "jwt_secret"

// GetSetting returns the value stored under key and whether it exists.
func GetSetting(ctx context.Context, db *sql.DB, key string) (string, bool, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("querying setting %s: %w", key, err)
	}
	return value, true, nil
}

// initSetting stores candidate under key unless a value is already present,
// and returns whichever value won. Safe against concurrent first starts.
func initSetting(ctx context.Context, db *sql.DB, key, candidate string) (string, error) {
	_, err := db.ExecContext(ctx, `INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`, key, candidate)
	if err != nil {
		return "", fmt.Errorf("storing setting %s: %w", key, err)
	}
	value, _, err := GetSetting(ctx, db, key)
	return value, err
}

// GetJWTSecret returns the persisted signing secret, generating one on first
// use. Used when no secret is configured.
func GetJWTSecret(ctx context.Context, db *sql.DB) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}
	return initSetting(ctx, db, settingJWTSecret, hex.EncodeToString(buf))
}
