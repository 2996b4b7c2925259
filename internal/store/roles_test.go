package store

import (
	"context"
	"errors"
	"testing"

	"github.com/erazemk/assettrack/internal/db"
	"github.com/erazemk/assettrack/internal/model"
)

func TestSeededRoles(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	admin, err := GetRoleByName(ctx, database, model.RoleAdmin)
	if err != nil || admin == nil {
		t.Fatalf("GetRoleByName(Admin) = %v, %v", admin, err)
	}
	if !admin.Permissions.Allows("anything.at_all") {
		t.Error("expected Admin to hold the global wildcard")
	}

	user, _ := GetRoleByName(ctx, database, model.RoleUser)
	if !user.Permissions.Allows("assets.scan") || user.Permissions.Allows("assets.delete") {
		t.Errorf("unexpected User permissions %v", user.Permissions)
	}
}

func TestRoleCRUD(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	role, err := CreateRole(ctx, database, "Auditor", "read only", model.Permissions{"assets.read": true})
	if err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	if !role.Permissions["assets.read"] {
		t.Errorf("permissions not stored: %v", role.Permissions)
	}

	var verr *ValidationError
	if _, err := CreateRole(ctx, database, "Auditor", "", nil); !errors.As(err, &verr) {
		t.Errorf("expected validation error for duplicate name, got %v", err)
	}
	if _, err := UpdateRole(ctx, database, role.ID, model.RoleManager, "", nil); !errors.As(err, &verr) {
		t.Errorf("expected validation error renaming onto Manager, got %v", err)
	}

	updated, err := UpdateRole(ctx, database, role.ID, "Auditor", "reports", model.Permissions{"assets.*": true})
	if err != nil {
		t.Fatalf("UpdateRole: %v", err)
	}
	if updated.Description != "reports" || !updated.Permissions.Allows("assets.export") {
		t.Errorf("unexpected role after update %+v", updated)
	}

	seedUser(t, database, "carol", "Auditor")
	if err := DeleteRole(ctx, database, role.ID); !errors.As(err, &verr) {
		t.Errorf("expected validation error deleting assigned role, got %v", err)
	}

	if err := DeleteRole(ctx, database, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
