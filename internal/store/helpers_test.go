package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/erazemk/assettrack/internal/model"
)

func ptr[T any](v T) *T { return &v }

func seedUser(t *testing.T, database *sql.DB, username, role string) *model.User {
	t.Helper()
	u, err := CreateUser(context.Background(), database, username, "hash", role)
	if err != nil {
		t.Fatalf("seeding user %s: %v", username, err)
	}
	return u
}

func seedAsset(t *testing.T, database *sql.DB, in model.AssetInput) *model.Asset {
	t.Helper()
	if in.Name == nil {
		in.Name = ptr("Laptop")
	}
	a, err := CreateAsset(context.Background(), database, in, nil)
	if err != nil {
		t.Fatalf("seeding asset: %v", err)
	}
	return a
}

func mustAsset(t *testing.T, database *sql.DB, id int64) *model.Asset {
	t.Helper()
	a, err := GetAsset(context.Background(), database, id)
	if err != nil || a == nil {
		t.Fatalf("GetAsset(%d) = %v, %v", id, a, err)
	}
	return a
}

func countRows(t *testing.T, database *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := database.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
		t.Fatalf("counting %s: %v", table, err)
	}
	return n
}
