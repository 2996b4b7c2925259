package model

import (
	"strings"
	"time"
)

// Built-in role names. Admin bypasses every permission check.
const (
	RoleAdmin   = "Admin"
	RoleManager = "Manager"
	RoleUser    = "User"
)

// Wildcard permission keys.
const (
	PermissionAll    = "*.*"
	permissionSuffix = ".*"
)

// Permissions maps "resource.action" keys to grants. "resource.*" grants every
// action on a resource and "*.*" grants everything. The most specific key
// present wins, so "assets.update": false denies even under "assets.*": true.
type Permissions map[string]bool

// Allows reports whether key is granted directly or through a wildcard.
func (p Permissions) Allows(key string) bool {
	if granted, ok := p[key]; ok {
		return granted
	}
	if resource, _, ok := strings.Cut(key, "."); ok {
		if granted, ok := p[resource+permissionSuffix]; ok {
			return granted
		}
	}
	return p[PermissionAll]
}

// Role is a named permission set assigned to users.
type Role struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Permissions Permissions `json:"permissions"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}
