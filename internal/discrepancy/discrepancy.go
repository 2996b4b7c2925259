// Package discrepancy holds the pure detection and resolution rules of the
// discrepancy engine. Persistence lives in the store package.
package discrepancy

import "github.com/erazemk/assettrack/internal/model"

// Finding is a tracked field whose incoming value differs from the stored one.
type Finding struct {
	Type     string
	Expected string
	Actual   string
}

// DetectAsset compares the placement fields of an asset update against the
// stored asset. One finding is produced per differing field, in the order
// location, custodian, condition.
func DetectAsset(stored *model.Asset, in model.AssetInput) []Finding {
	var out []Finding
	out = appendIfDrift(out, model.DiscrepancyLocation, stored.Location, in.Location)
	out = appendIfDrift(out, model.DiscrepancyCustodian, stored.Custodian, in.Custodian)
	out = appendIfDrift(out, model.DiscrepancyCondition, stored.Condition, in.Condition)
	return out
}

// DetectScan applies the location-only check used when an asset is scanned.
func DetectScan(stored *model.Asset, location *string) []Finding {
	return appendIfDrift(nil, model.DiscrepancyLocation, stored.Location, location)
}

func appendIfDrift(out []Finding, typ, stored string, incoming *string) []Finding {
	if !present(incoming) || *incoming == stored {
		return out
	}
	return append(out, Finding{Type: typ, Expected: stored, Actual: *incoming})
}

// present treats nil and empty values as absent.
func present(s *string) bool {
	return s != nil && *s != ""
}

// IsSettled reports whether a discrepancy status no longer needs attention.
func IsSettled(status string) bool {
	return status == model.DiscrepancyResolved || status == model.DiscrepancyClosed
}

// Resolves reports whether moving from prev to next settles a discrepancy.
// Resolved to Closed counts, since the status changes.
func Resolves(prev, next string) bool {
	return prev != next && IsSettled(next)
}

// Reopens reports whether moving from prev to next makes a settled
// discrepancy open again.
func Reopens(prev, next string) bool {
	return IsSettled(prev) && !IsSettled(next)
}

// Discrepancy builds an Open discrepancy row for f.
func (f Finding) Discrepancy(owner model.Owner, detectedBy *int64) model.Discrepancy {
	d := model.Discrepancy{
		Type:          f.Type,
		Description:   f.Type + " changed from expected value",
		ExpectedValue: f.Expected,
		ActualValue:   f.Actual,
		Status:        model.DiscrepancyOpen,
		Priority:      model.PriorityMedium,
		DetectedBy:    detectedBy,
	}
	d.SetOwner(owner)
	return d
}
