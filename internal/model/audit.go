package model

import (
	"encoding/json"
	"time"
)

// AuditLog is a write-once record of a state-changing request.
type AuditLog struct {
	ID             int64           `json:"id"`
	Action         string          `json:"action"`
	EntityType     string          `json:"entityType"`
	EntityID       *int64          `json:"entityId,omitempty"`
	UserID         *int64          `json:"userId,omitempty"`
	Username       string          `json:"username,omitempty"`
	PreviousValues json.RawMessage `json:"previousValues,omitempty"`
	NewValues      json.RawMessage `json:"newValues,omitempty"`
	IPAddress      string          `json:"ipAddress,omitempty"`
	UserAgent      string          `json:"userAgent,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// Audit actions.
const (
	ActionCreate = "CREATE"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
	ActionLogin  = "LOGIN"
	ActionScan   = "SCAN"
	ActionUpload = "UPLOAD"
)
