package model

import "time"

// Photo is an image attached to an asset or a movement. The binary lives in
// blob storage under FileName.
type Photo struct {
	ID           int64      `json:"id"`
	AssetID      *int64     `json:"assetId,omitempty"`
	MovementID   *int64     `json:"movementId,omitempty"`
	FileName     string     `json:"fileName"`
	OriginalName string     `json:"originalName,omitempty"`
	MimeType     string     `json:"mimeType"`
	Size         int64      `json:"size"`
	Description  string     `json:"description,omitempty"`
	Latitude     *float64   `json:"latitude,omitempty"`
	Longitude    *float64   `json:"longitude,omitempty"`
	TakenAt      *time.Time `json:"takenAt,omitempty"`
	UploadedBy   *int64     `json:"uploadedBy,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// SetOwner points the photo at o, clearing the other reference.
func (p *Photo) SetOwner(o Owner) {
	p.AssetID, p.MovementID = o.refs()
}
