package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/erazemk/assettrack/internal/db"
	"github.com/erazemk/assettrack/internal/model"
)

func TestPhotoLifecycle(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	a := seedAsset(t, database, model.AssetInput{})
	owner := model.Owner{Kind: model.OwnerAsset, ID: a.ID}

	if err := CheckPhotoOwner(ctx, database, owner); err != nil {
		t.Fatalf("CheckPhotoOwner: %v", err)
	}
	if err := CheckPhotoOwner(ctx, database, model.Owner{Kind: model.OwnerMovement, ID: 42}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing movement: expected ErrNotFound, got %v", err)
	}

	taken := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	p := &model.Photo{FileName: "assets/1/x.png", OriginalName: "x.png", MimeType: "image/png", Size: 10,
		Latitude: ptr(46.0), Longitude: ptr(14.5), TakenAt: &taken}
	p.SetOwner(owner)

	created, err := CreatePhoto(ctx, database, p)
	if err != nil {
		t.Fatalf("CreatePhoto: %v", err)
	}
	if created.AssetID == nil || *created.AssetID != a.ID || created.TakenAt == nil || !created.TakenAt.Equal(taken) {
		t.Errorf("unexpected photo: %+v", created)
	}

	// The storage key is unique.
	if _, err := CreatePhoto(ctx, database, p); err == nil {
		t.Error("expected duplicate file name to fail")
	}

	updated, err := UpdatePhotoDescription(ctx, database, created.ID, "front side")
	if err != nil {
		t.Fatalf("UpdatePhotoDescription: %v", err)
	}
	if updated.Description != "front side" {
		t.Errorf("expected description updated, got %q", updated.Description)
	}

	photos, total, err := ListPhotos(ctx, database, PhotoFilter{AssetID: &a.ID}, Page{Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("ListPhotos: %v", err)
	}
	if total != 1 || photos[0].ID != created.ID {
		t.Errorf("unexpected list: %+v", photos)
	}

	deleted, err := DeletePhoto(ctx, database, created.ID)
	if err != nil {
		t.Fatalf("DeletePhoto: %v", err)
	}
	if deleted.FileName != "assets/1/x.png" {
		t.Errorf("expected deleted photo to carry its key, got %q", deleted.FileName)
	}
	if _, err := DeletePhoto(ctx, database, created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestAuditLogs(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	entity := int64(5)
	entries := []model.AuditLog{
		{Action: model.ActionCreate, EntityType: "Asset", EntityID: &entity, Username: "alice",
			NewValues: json.RawMessage(`{"name":"Laptop"}`)},
		{Action: model.ActionUpdate, EntityType: "Asset", EntityID: &entity, Username: "alice",
			PreviousValues: json.RawMessage(`{"name":"Laptop"}`), NewValues: json.RawMessage(`{"name":"PC"}`)},
		{Action: model.ActionLogin, EntityType: "User", Username: "bob", IPAddress: "10.0.0.1"},
	}
	for i := range entries {
		if err := CreateAuditLog(ctx, database, &entries[i]); err != nil {
			t.Fatalf("CreateAuditLog: %v", err)
		}
	}

	got, err := GetAuditLog(ctx, database, entries[1].ID)
	if err != nil {
		t.Fatalf("GetAuditLog: %v", err)
	}
	if string(got.PreviousValues) != `{"name":"Laptop"}` || string(got.NewValues) != `{"name":"PC"}` {
		t.Errorf("values not preserved: %s -> %s", got.PreviousValues, got.NewValues)
	}
	if login, _ := GetAuditLog(ctx, database, entries[2].ID); login.PreviousValues != nil || login.IPAddress != "10.0.0.1" {
		t.Errorf("unexpected login entry: %+v", login)
	}

	tests := []struct {
		name string
		f    AuditFilter
		want int
	}{
		{"all", AuditFilter{}, 3},
		{"by entity", AuditFilter{EntityType: "Asset", EntityID: &entity}, 2},
		{"by action", AuditFilter{Action: model.ActionLogin}, 1},
		{"future", AuditFilter{Created: DateRange{From: time.Now().Add(time.Hour)}}, 0},
		{"past", AuditFilter{Created: DateRange{From: time.Now().Add(-time.Hour)}}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, total, err := ListAuditLogs(ctx, database, tt.f, Page{Page: 1, Limit: 10})
			if err != nil {
				t.Fatalf("ListAuditLogs: %v", err)
			}
			if total != tt.want {
				t.Errorf("expected %d, got %d", tt.want, total)
			}
		})
	}
}
