package model

import "time"

// Movement is a request to relocate or reassign an asset.
type Movement struct {
	ID             int64      `json:"id"`
	AssetID        int64      `json:"assetId"`
	Type           string     `json:"type"`
	FromLocation   string     `json:"fromLocation,omitempty"`
	ToLocation     string     `json:"toLocation,omitempty"`
	FromCustodian  string     `json:"fromCustodian,omitempty"`
	ToCustodian    string     `json:"toCustodian,omitempty"`
	Reason         string     `json:"reason,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	Status         string     `json:"status"`
	RequesterID    *int64     `json:"requesterId,omitempty"`
	ApproverID     *int64     `json:"approverId,omitempty"`
	RequestDate    time.Time  `json:"requestDate"`
	ApprovalDate   *time.Time `json:"approvalDate,omitempty"`
	CompletionDate *time.Time `json:"completionDate,omitempty"`
	HasDiscrepancy bool       `json:"hasDiscrepancy"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`

	// Joined fields (not always populated).
	AssetName string `json:"assetName,omitempty"`
	AssetTag  string `json:"assetTag,omitempty"`
}

// Movement statuses.
const (
	MovementPending   = "Pending"
	MovementApproved  = "Approved"
	MovementRejected  = "Rejected"
	MovementCompleted = "Completed"
)

// Movement types.
const (
	MovementTypeTransfer    = "Transfer"
	MovementTypeCheckout    = "Checkout"
	MovementTypeReturn      = "Return"
	MovementTypeMaintenance = "Maintenance"
	MovementTypeDisposal    = "Disposal"
)

// ValidMovementType reports whether t is a known movement type.
func ValidMovementType(t string) bool {
	switch t {
	case MovementTypeTransfer, MovementTypeCheckout, MovementTypeReturn, MovementTypeMaintenance, MovementTypeDisposal:
		return true
	}
	return false
}

// ValidMovementStatus reports whether s is a known movement status.
func ValidMovementStatus(s string) bool {
	switch s {
	case MovementPending, MovementApproved, MovementRejected, MovementCompleted:
		return true
	}
	return false
}

var movementTransitions = map[string][]string{
	MovementPending:  {MovementApproved, MovementRejected},
	MovementApproved: {MovementCompleted},
}

// CanTransition reports whether a movement may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range movementTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible from status.
func IsTerminal(status string) bool {
	return len(movementTransitions[status]) == 0
}

// MovementInput carries the writable movement fields. Nil fields are left
// unchanged on update.
type MovementInput struct {
	AssetID       *int64  `json:"assetId"`
	Type          *string `json:"type"`
	FromLocation  *string `json:"fromLocation"`
	ToLocation    *string `json:"toLocation"`
	FromCustodian *string `json:"fromCustodian"`
	ToCustodian   *string `json:"toCustodian"`
	Reason        *string `json:"reason"`
	Notes         *string `json:"notes"`
	Status        *string `json:"status"`
}

// Apply copies the descriptive fields of in onto m. Status and AssetID are
// handled by the lifecycle code.
func (in MovementInput) Apply(m *Movement) {
	setString(&m.Type, in.Type)
	setString(&m.FromLocation, in.FromLocation)
	setString(&m.ToLocation, in.ToLocation)
	setString(&m.FromCustodian, in.FromCustodian)
	setString(&m.ToCustodian, in.ToCustodian)
	setString(&m.Reason, in.Reason)
	setString(&m.Notes, in.Notes)
}
