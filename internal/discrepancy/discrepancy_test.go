package discrepancy

import (
	"testing"

	"github.com/erazemk/assettrack/internal/model"
)

func str(s string) *string { return &s }

func TestDetectAsset(t *testing.T) {
	stored := &model.Asset{Location: "Warehouse A", Custodian: "alice", Condition: model.ConditionGood}

	tests := []struct {
		name string
		in   model.AssetInput
		want []Finding
	}{
		{"no changes", model.AssetInput{}, nil},
		{"same values", model.AssetInput{Location: str("Warehouse A"), Custodian: str("alice")}, nil},
		{"empty incoming ignored", model.AssetInput{Location: str("")}, nil},
		{
			"location only",
			model.AssetInput{Location: str("Warehouse B")},
			[]Finding{{model.DiscrepancyLocation, "Warehouse A", "Warehouse B"}},
		},
		{
			"all three",
			model.AssetInput{Location: str("B"), Custodian: str("bob"), Condition: str(model.ConditionPoor)},
			[]Finding{
				{model.DiscrepancyLocation, "Warehouse A", "B"},
				{model.DiscrepancyCustodian, "alice", "bob"},
				{model.DiscrepancyCondition, model.ConditionGood, model.ConditionPoor},
			},
		},
		{"untracked fields", model.AssetInput{Name: str("Laptop"), Notes: str("x")}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectAsset(stored, tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d findings, want %d: %+v", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("finding %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDetectAssetFromEmpty(t *testing.T) {
	got := DetectAsset(&model.Asset{}, model.AssetInput{Location: str("Dock")})
	if len(got) != 1 || got[0].Expected != "" || got[0].Actual != "Dock" {
		t.Fatalf("unexpected findings: %+v", got)
	}
}

func TestDetectScan(t *testing.T) {
	stored := &model.Asset{Location: "Lab", Custodian: "alice"}

	if got := DetectScan(stored, nil); got != nil {
		t.Errorf("nil location: got %+v", got)
	}
	if got := DetectScan(stored, str("Lab")); got != nil {
		t.Errorf("same location: got %+v", got)
	}
	got := DetectScan(stored, str("Office"))
	if len(got) != 1 || got[0].Type != model.DiscrepancyLocation {
		t.Fatalf("got %+v", got)
	}
}

func TestResolves(t *testing.T) {
	tests := []struct {
		prev, next string
		want       bool
	}{
		{model.DiscrepancyOpen, model.DiscrepancyResolved, true},
		{model.DiscrepancyOpen, model.DiscrepancyClosed, true},
		{model.DiscrepancyResolved, model.DiscrepancyClosed, true},
		{model.DiscrepancyResolved, model.DiscrepancyResolved, false},
		{model.DiscrepancyOpen, model.DiscrepancyOpen, false},
		{model.DiscrepancyClosed, model.DiscrepancyOpen, false},
	}
	for _, tt := range tests {
		if got := Resolves(tt.prev, tt.next); got != tt.want {
			t.Errorf("Resolves(%q, %q) = %v, want %v", tt.prev, tt.next, got, tt.want)
		}
	}
}

func TestReopens(t *testing.T) {
	if !Reopens(model.DiscrepancyClosed, model.DiscrepancyOpen) {
		t.Error("closed -> open should reopen")
	}
	if Reopens(model.DiscrepancyOpen, model.DiscrepancyOpen) {
		t.Error("open -> open should not reopen")
	}
	if Reopens(model.DiscrepancyResolved, model.DiscrepancyClosed) {
		t.Error("resolved -> closed should not reopen")
	}
}

func TestFindingDiscrepancy(t *testing.T) {
	actor := int64(7)
	d := Finding{model.DiscrepancyCustodian, "alice", "bob"}.Discrepancy(
		model.Owner{Kind: model.OwnerAsset, ID: 3}, &actor)

	if d.AssetID == nil || *d.AssetID != 3 || d.MovementID != nil {
		t.Fatalf("owner not set: %+v", d)
	}
	if d.Status != model.DiscrepancyOpen || d.Priority != model.PriorityMedium {
		t.Errorf("status/priority = %s/%s", d.Status, d.Priority)
	}
	if d.DetectedBy == nil || *d.DetectedBy != 7 {
		t.Errorf("detectedBy = %v", d.DetectedBy)
	}
}
