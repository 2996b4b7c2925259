package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/erazemk/assettrack/internal/db"
	"github.com/erazemk/assettrack/internal/model"
)

// flaggedAsset returns an asset with n open Location discrepancies.
func flaggedAsset(t *testing.T, database *sql.DB, n int) (*model.Asset, []model.Discrepancy) {
	t.Helper()
	ctx := context.Background()

	a := seedAsset(t, database, model.AssetInput{})
	var out []model.Discrepancy
	for i := 0; i < n; i++ {
		d, err := CreateDiscrepancy(ctx, database, model.DiscrepancyInput{
			AssetID: &a.ID,
			Type:    ptr(model.DiscrepancyLocation),
		}, nil)
		if err != nil {
			t.Fatalf("CreateDiscrepancy: %v", err)
		}
		out = append(out, *d)
	}
	return a, out
}

func TestCreateDiscrepancyFlagsOwner(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	a, ds := flaggedAsset(t, database, 1)
	if ds[0].Status != model.DiscrepancyOpen || ds[0].Priority != model.PriorityMedium {
		t.Errorf("unexpected defaults: %+v", ds[0])
	}
	if !mustAsset(t, database, a.ID).HasDiscrepancy {
		t.Error("expected asset flagged")
	}

	m, err := CreateMovement(ctx, database, model.MovementInput{AssetID: &a.ID}, seedUser(t, database, "req", model.RoleUser).ID)
	if err != nil {
		t.Fatalf("CreateMovement: %v", err)
	}
	if _, err := CreateDiscrepancy(ctx, database, model.DiscrepancyInput{
		MovementID: &m.ID, Type: ptr(model.DiscrepancyMissing), Priority: ptr(model.PriorityHigh),
	}, nil); err != nil {
		t.Fatalf("CreateDiscrepancy(movement): %v", err)
	}
	got, _ := GetMovement(ctx, database, m.ID)
	if !got.HasDiscrepancy {
		t.Error("expected movement flagged")
	}
}

func TestCreateDiscrepancyOwnerErrors(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	a := seedAsset(t, database, model.AssetInput{})

	var verr *ValidationError
	tests := []struct {
		name    string
		in      model.DiscrepancyInput
		wantErr func(error) bool
	}{
		{
			"neither owner",
			model.DiscrepancyInput{Type: ptr(model.DiscrepancyOther)},
			func(err error) bool { return errors.As(err, &verr) },
		},
		{
			"both owners",
			model.DiscrepancyInput{AssetID: &a.ID, MovementID: ptr(int64(1)), Type: ptr(model.DiscrepancyOther)},
			func(err error) bool { return errors.As(err, &verr) },
		},
		{
			"missing asset",
			model.DiscrepancyInput{AssetID: ptr(int64(999)), Type: ptr(model.DiscrepancyOther)},
			func(err error) bool { return errors.Is(err, ErrNotFound) },
		},
		{
			"missing movement",
			model.DiscrepancyInput{MovementID: ptr(int64(999)), Type: ptr(model.DiscrepancyOther)},
			func(err error) bool { return errors.Is(err, ErrNotFound) },
		},
		{
			"bad type",
			model.DiscrepancyInput{AssetID: &a.ID, Type: ptr("Vibes")},
			func(err error) bool { return errors.As(err, &verr) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CreateDiscrepancy(ctx, database, tt.in, nil)
			if !tt.wantErr(err) {
				t.Fatalf("unexpected error: %v", err)
			}
			if n := countRows(t, database, "discrepancies"); n != 0 {
				t.Errorf("expected no rows written, got %d", n)
			}
			if mustAsset(t, database, a.ID).HasDiscrepancy {
				t.Error("asset flagged by a failed create")
			}
		})
	}
}

func TestResolveLastDiscrepancyClearsFlag(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	resolver := seedUser(t, database, "resolver", model.RoleManager)

	a, ds := flaggedAsset(t, database, 2)

	change, err := UpdateDiscrepancy(ctx, database, ds[0].ID, model.DiscrepancyInput{
		Status: ptr(model.DiscrepancyResolved), Resolution: ptr("found it"),
	}, &resolver.ID)
	if err != nil {
		t.Fatalf("UpdateDiscrepancy: %v", err)
	}
	if change.Discrepancy.ResolvedAt == nil || change.Discrepancy.ResolvedBy == nil || *change.Discrepancy.ResolvedBy != resolver.ID {
		t.Errorf("resolution not stamped: %+v", change.Discrepancy)
	}
	if change.OwnerCleared {
		t.Error("flag cleared while another discrepancy is open")
	}
	if !mustAsset(t, database, a.ID).HasDiscrepancy {
		t.Fatal("non-last resolution must leave the flag set")
	}

	change, err = UpdateDiscrepancy(ctx, database, ds[1].ID, model.DiscrepancyInput{Status: ptr(model.DiscrepancyClosed)}, &resolver.ID)
	if err != nil {
		t.Fatalf("UpdateDiscrepancy: %v", err)
	}
	if !change.OwnerCleared {
		t.Error("expected OwnerCleared on last resolution")
	}
	if mustAsset(t, database, a.ID).HasDiscrepancy {
		t.Fatal("last resolution must clear the flag")
	}

	// Reopening flags the owner again and drops the resolution stamp.
	change, err = UpdateDiscrepancy(ctx, database, ds[1].ID, model.DiscrepancyInput{Status: ptr(model.DiscrepancyOpen)}, &resolver.ID)
	if err != nil {
		t.Fatalf("UpdateDiscrepancy: %v", err)
	}
	if change.Discrepancy.ResolvedAt != nil {
		t.Error("expected resolvedAt cleared on reopen")
	}
	if !mustAsset(t, database, a.ID).HasDiscrepancy {
		t.Error("reopen must set the flag")
	}
}

func TestUpdateDiscrepancyWithoutStatusChange(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	a, ds := flaggedAsset(t, database, 1)
	change, err := UpdateDiscrepancy(ctx, database, ds[0].ID, model.DiscrepancyInput{Priority: ptr(model.PriorityCritical)}, nil)
	if err != nil {
		t.Fatalf("UpdateDiscrepancy: %v", err)
	}
	if change.Discrepancy.Priority != model.PriorityCritical || change.Discrepancy.ResolvedAt != nil {
		t.Errorf("unexpected discrepancy: %+v", change.Discrepancy)
	}
	if !mustAsset(t, database, a.ID).HasDiscrepancy {
		t.Error("flag changed without a status change")
	}

	var verr *ValidationError
	if _, err := UpdateDiscrepancy(ctx, database, ds[0].ID, model.DiscrepancyInput{Status: ptr("Done")}, nil); !errors.As(err, &verr) {
		t.Errorf("bad status: expected ValidationError, got %v", err)
	}
	if _, err := UpdateDiscrepancy(ctx, database, 999, model.DiscrepancyInput{}, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing: expected ErrNotFound, got %v", err)
	}
}

func TestDeleteDiscrepancyCountsAllSiblings(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	a, ds := flaggedAsset(t, database, 2)

	// A resolved sibling still blocks clearing on delete.
	if _, err := UpdateDiscrepancy(ctx, database, ds[1].ID, model.DiscrepancyInput{Status: ptr(model.DiscrepancyResolved)}, nil); err != nil {
		t.Fatalf("UpdateDiscrepancy: %v", err)
	}

	if _, err := DeleteDiscrepancy(ctx, database, ds[0].ID); err != nil {
		t.Fatalf("DeleteDiscrepancy: %v", err)
	}
	if !mustAsset(t, database, a.ID).HasDiscrepancy {
		t.Fatal("deleting one of several must leave the flag set")
	}

	if _, err := DeleteDiscrepancy(ctx, database, ds[1].ID); err != nil {
		t.Fatalf("DeleteDiscrepancy: %v", err)
	}
	if mustAsset(t, database, a.ID).HasDiscrepancy {
		t.Fatal("deleting the only discrepancy must clear the flag")
	}

	if _, err := DeleteDiscrepancy(ctx, database, ds[1].ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestDeleteOnlyDiscrepancyClearsFlag(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	a, ds := flaggedAsset(t, database, 1)
	if _, err := DeleteDiscrepancy(ctx, database, ds[0].ID); err != nil {
		t.Fatalf("DeleteDiscrepancy: %v", err)
	}
	if mustAsset(t, database, a.ID).HasDiscrepancy {
		t.Error("expected flag cleared")
	}
}

func TestReconcileDiscrepancyFlags(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	stale, ds := flaggedAsset(t, database, 1)
	missed := seedAsset(t, database, model.AssetInput{})
	healthy, _ := flaggedAsset(t, database, 1)

	// Bypass the engine: close a row directly and insert an unflagged open row.
	if _, err := database.Exec(`UPDATE discrepancies SET status = 'Closed' WHERE id = ?`, ds[0].ID); err != nil {
		t.Fatal(err)
	}
	if _, err := database.Exec(`INSERT INTO discrepancies (asset_id, type) VALUES (?, 'Other')`, missed.ID); err != nil {
		t.Fatal(err)
	}

	fixed, err := ReconcileDiscrepancyFlags(ctx, database)
	if err != nil {
		t.Fatalf("ReconcileDiscrepancyFlags: %v", err)
	}
	if fixed != 2 {
		t.Errorf("expected 2 corrected owners, got %d", fixed)
	}
	if mustAsset(t, database, stale.ID).HasDiscrepancy {
		t.Error("stale flag not cleared")
	}
	if !mustAsset(t, database, missed.ID).HasDiscrepancy {
		t.Error("missing flag not set")
	}
	if !mustAsset(t, database, healthy.ID).HasDiscrepancy {
		t.Error("correct flag changed")
	}

	if fixed, _ := ReconcileDiscrepancyFlags(ctx, database); fixed != 0 {
		t.Errorf("second pass corrected %d owners, expected 0", fixed)
	}
}

func TestListDiscrepanciesFilters(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	a, ds := flaggedAsset(t, database, 3)
	flaggedAsset(t, database, 1)
	UpdateDiscrepancy(ctx, database, ds[0].ID, model.DiscrepancyInput{Status: ptr(model.DiscrepancyResolved)}, nil)

	_, total, err := ListDiscrepancies(ctx, database, DiscrepancyFilter{AssetID: &a.ID, Status: model.DiscrepancyOpen}, Page{Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("ListDiscrepancies: %v", err)
	}
	if total != 2 {
		t.Errorf("expected 2 open for asset, got %d", total)
	}

	_, total, _ = ListDiscrepancies(ctx, database, DiscrepancyFilter{}, Page{})
	if total != 4 {
		t.Errorf("expected 4 total, got %d", total)
	}
}
