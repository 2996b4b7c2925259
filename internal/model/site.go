package model

import "time"

// Site is a physical facility that contains locations.
type Site struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Code        string    `json:"code,omitempty"`
	Address     string    `json:"address,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Location is a place within a site, optionally nested under another location
// of the same site.
type Location struct {
	ID          int64     `json:"id"`
	SiteID      int64     `json:"siteId"`
	ParentID    *int64    `json:"parentId,omitempty"`
	Name        string    `json:"name"`
	Code        string    `json:"code,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	// Joined fields (not always populated).
	SiteName string `json:"siteName,omitempty"`
}
