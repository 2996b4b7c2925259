// Package authz decides whether an authenticated principal may perform an
// operation. Routes pick one Policy: a role-name list or a permission key.
package authz

import (
	"slices"
	"strings"

	"github.com/erazemk/assettrack/internal/model"
)

// Principal is the authenticated caller, loaded fresh for every request.
type Principal struct {
	UserID      int64
	Username    string
	Role        string
	Permissions model.Permissions
}

// IsAdmin reports whether p holds the Admin role.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == model.RoleAdmin
}

// Can reports whether p holds the permission key. Admin holds everything.
func (p *Principal) Can(key string) bool {
	if p == nil {
		return false
	}
	return p.IsAdmin() || p.Permissions.Allows(key)
}

// Policy is the shared evaluation contract for route authorization.
type Policy interface {
	Allow(p *Principal) bool
	String() string
}

type rolePolicy []string

// Roles allows principals whose role name is one of roles.
func Roles(roles ...string) Policy {
	return rolePolicy(roles)
}

func (r rolePolicy) Allow(p *Principal) bool {
	return p != nil && slices.Contains(r, p.Role)
}

func (r rolePolicy) String() string {
	return "roles(" + strings.Join(r, ",") + ")"
}

type permissionPolicy string

// Permission allows principals whose role grants key, directly or through a
// wildcard. Admin always passes.
func Permission(key string) Policy {
	return permissionPolicy(key)
}

func (k permissionPolicy) Allow(p *Principal) bool {
	return p.Can(string(k))
}

func (k permissionPolicy) String() string {
	return "permission(" + string(k) + ")"
}

type authenticated struct{}

// Authenticated allows any signed-in principal. Finer checks happen in the
// operation itself.
func Authenticated() Policy {
	return authenticated{}
}

func (authenticated) Allow(p *Principal) bool { return p != nil }

func (authenticated) String() string { return "authenticated" }
