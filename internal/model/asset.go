package model

import "time"

// Asset is an individually tracked piece of equipment.
type Asset struct {
	ID             int64      `json:"id"`
	AssetTag       string     `json:"assetTag,omitempty"`
	SerialNumber   string     `json:"serialNumber,omitempty"`
	Name           string     `json:"name"`
	Category       string     `json:"category,omitempty"`
	Model          string     `json:"model,omitempty"`
	Manufacturer   string     `json:"manufacturer,omitempty"`
	PurchaseDate   *time.Time `json:"purchaseDate,omitempty"`
	PurchasePrice  *float64   `json:"purchasePrice,omitempty"`
	CurrentValue   *float64   `json:"currentValue,omitempty"`
	Location       string     `json:"location,omitempty"`
	SiteID         *int64     `json:"siteId,omitempty"`
	LocationID     *int64     `json:"locationId,omitempty"`
	Custodian      string     `json:"custodian,omitempty"`
	Department     string     `json:"department,omitempty"`
	Status         string     `json:"status"`
	Condition      string     `json:"condition"`
	Notes          string     `json:"notes,omitempty"`
	LastScannedAt  *time.Time `json:"lastScannedAt,omitempty"`
	Latitude       *float64   `json:"latitude,omitempty"`
	Longitude      *float64   `json:"longitude,omitempty"`
	HasDiscrepancy bool       `json:"hasDiscrepancy"`
	CreatedBy      *int64     `json:"createdBy,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	DeletedAt      *time.Time `json:"deletedAt,omitempty"`
}

// Asset statuses.
const (
	AssetStatusActive      = "Active"
	AssetStatusMaintenance = "In Maintenance"
	AssetStatusRetired     = "Retired"
	AssetStatusLost        = "Lost"
	AssetStatusDisposed    = "Disposed"
)

// Asset conditions.
const (
	ConditionNew     = "New"
	ConditionGood    = "Good"
	ConditionFair    = "Fair"
	ConditionPoor    = "Poor"
	ConditionDamaged = "Damaged"
)

// ValidAssetStatus reports whether s is a known asset status.
func ValidAssetStatus(s string) bool {
	switch s {
	case AssetStatusActive, AssetStatusMaintenance, AssetStatusRetired, AssetStatusLost, AssetStatusDisposed:
		return true
	}
	return false
}

// ValidCondition reports whether c is a known asset condition.
func ValidCondition(c string) bool {
	switch c {
	case ConditionNew, ConditionGood, ConditionFair, ConditionPoor, ConditionDamaged:
		return true
	}
	return false
}

// AssetInput carries the writable asset fields. Nil fields are left unchanged
// on update.
type AssetInput struct {
	AssetTag      *string    `json:"assetTag"`
	SerialNumber  *string    `json:"serialNumber"`
	Name          *string    `json:"name"`
	Category      *string    `json:"category"`
	Model         *string    `json:"model"`
	Manufacturer  *string    `json:"manufacturer"`
	PurchaseDate  *time.Time `json:"purchaseDate"`
	PurchasePrice *float64   `json:"purchasePrice"`
	CurrentValue  *float64   `json:"currentValue"`
	Location      *string    `json:"location"`
	SiteID        *int64     `json:"siteId"`
	LocationID    *int64     `json:"locationId"`
	Custodian     *string    `json:"custodian"`
	Department    *string    `json:"department"`
	Status        *string    `json:"status"`
	Condition     *string    `json:"condition"`
	Notes         *string    `json:"notes"`
}

// Apply copies every non-nil field of in onto a. Location, custodian and
// condition are tracked for drift, so an empty value leaves them unchanged.
func (in AssetInput) Apply(a *Asset) {
	setString(&a.AssetTag, in.AssetTag)
	setString(&a.SerialNumber, in.SerialNumber)
	setString(&a.Name, in.Name)
	setString(&a.Category, in.Category)
	setString(&a.Model, in.Model)
	setString(&a.Manufacturer, in.Manufacturer)
	setTracked(&a.Location, in.Location)
	setTracked(&a.Custodian, in.Custodian)
	setString(&a.Department, in.Department)
	setString(&a.Status, in.Status)
	setTracked(&a.Condition, in.Condition)
	setString(&a.Notes, in.Notes)
	if in.PurchaseDate != nil {
		a.PurchaseDate = in.PurchaseDate
	}
	if in.PurchasePrice != nil {
		a.PurchasePrice = in.PurchasePrice
	}
	if in.CurrentValue != nil {
		a.CurrentValue = in.CurrentValue
	}
	if in.SiteID != nil {
		a.SiteID = in.SiteID
	}
	if in.LocationID != nil {
		a.LocationID = in.LocationID
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setTracked(dst *string, src *string) {
	if src != nil && *src != "" {
		*dst = *src
	}
}
