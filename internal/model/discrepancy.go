package model

import (
	"errors"
	"time"
)

// Discrepancy is a finding that a tracked value differs from what was expected.
// It belongs to exactly one asset or one movement.
type Discrepancy struct {
	ID            int64      `json:"id"`
	AssetID       *int64     `json:"assetId,omitempty"`
	MovementID    *int64     `json:"movementId,omitempty"`
	Type          string     `json:"type"`
	Description   string     `json:"description,omitempty"`
	ExpectedValue string     `json:"expectedValue"`
	ActualValue   string     `json:"actualValue"`
	Status        string     `json:"status"`
	Priority      string     `json:"priority"`
	DetectedBy    *int64     `json:"detectedBy,omitempty"`
	DetectedAt    time.Time  `json:"detectedAt"`
	ResolvedBy    *int64     `json:"resolvedBy,omitempty"`
	ResolvedAt    *time.Time `json:"resolvedAt,omitempty"`
	Resolution    string     `json:"resolution,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Owner returns the entity the discrepancy belongs to.
func (d *Discrepancy) Owner() Owner {
	if d.AssetID != nil {
		return Owner{Kind: OwnerAsset, ID: *d.AssetID}
	}
	if d.MovementID != nil {
		return Owner{Kind: OwnerMovement, ID: *d.MovementID}
	}
	return Owner{}
}

// SetOwner points the discrepancy at o, clearing the other reference.
func (d *Discrepancy) SetOwner(o Owner) {
	d.AssetID, d.MovementID = o.refs()
}

// Discrepancy types.
const (
	DiscrepancyLocation  = "Location"
	DiscrepancyCustodian = "Custodian"
	DiscrepancyCondition = "Condition"
	DiscrepancyMissing   = "Missing"
	DiscrepancyOther     = "Other"
)

// Discrepancy statuses.
const (
	DiscrepancyOpen     = "Open"
	DiscrepancyResolved = "Resolved"
	DiscrepancyClosed   = "Closed"
)

// Discrepancy priorities.
const (
	PriorityLow      = "Low"
	PriorityMedium   = "Medium"
	PriorityHigh     = "High"
	PriorityCritical = "Critical"
)

// ValidDiscrepancyType reports whether t is a known discrepancy type.
func ValidDiscrepancyType(t string) bool {
	switch t {
	case DiscrepancyLocation, DiscrepancyCustodian, DiscrepancyCondition, DiscrepancyMissing, DiscrepancyOther:
		return true
	}
	return false
}

// ValidDiscrepancyStatus reports whether s is a known discrepancy status.
func ValidDiscrepancyStatus(s string) bool {
	switch s {
	case DiscrepancyOpen, DiscrepancyResolved, DiscrepancyClosed:
		return true
	}
	return false
}

// ValidPriority reports whether p is a known priority.
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// OwnerKind names the entity type a discrepancy or photo is attached to.
type OwnerKind string

// Owner kinds.
const (
	OwnerAsset    OwnerKind = "asset"
	OwnerMovement OwnerKind = "movement"
)

// Owner identifies exactly one asset or movement.
type Owner struct {
	Kind OwnerKind
	ID   int64
}

// Owner construction errors.
var (
	ErrNoOwner        = errors.New("either assetId or movementId is required")
	ErrAmbiguousOwner = errors.New("only one of assetId or movementId may be set")
)

// NewOwner builds an Owner from two optional references. Exactly one must be set.
func NewOwner(assetID, movementID *int64) (Owner, error) {
	hasAsset := assetID != nil && *assetID > 0
	hasMovement := movementID != nil && *movementID > 0
	switch {
	case hasAsset && hasMovement:
		return Owner{}, ErrAmbiguousOwner
	case hasAsset:
		return Owner{Kind: OwnerAsset, ID: *assetID}, nil
	case hasMovement:
		return Owner{Kind: OwnerMovement, ID: *movementID}, nil
	}
	return Owner{}, ErrNoOwner
}

// IsZero reports whether the owner is unset.
func (o Owner) IsZero() bool {
	return o.Kind == "" || o.ID == 0
}

func (o Owner) refs() (assetID, movementID *int64) {
	id := o.ID
	switch o.Kind {
	case OwnerAsset:
		return &id, nil
	case OwnerMovement:
		return nil, &id
	}
	return nil, nil
}

// DiscrepancyInput carries the writable discrepancy fields.
type DiscrepancyInput struct {
	AssetID       *int64  `json:"assetId"`
	MovementID    *int64  `json:"movementId"`
	Type          *string `json:"type"`
	Description   *string `json:"description"`
	ExpectedValue *string `json:"expectedValue"`
	ActualValue   *string `json:"actualValue"`
	Status        *string `json:"status"`
	Priority      *string `json:"priority"`
	Resolution    *string `json:"resolution"`
}

// Apply copies the descriptive fields of in onto d. Owner and status are
// handled by the discrepancy engine.
func (in DiscrepancyInput) Apply(d *Discrepancy) {
	setString(&d.Type, in.Type)
	setString(&d.Description, in.Description)
	setString(&d.ExpectedValue, in.ExpectedValue)
	setString(&d.ActualValue, in.ActualValue)
	setString(&d.Priority, in.Priority)
	setString(&d.Resolution, in.Resolution)
}
