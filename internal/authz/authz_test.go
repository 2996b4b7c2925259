package authz

import (
	"testing"

	"github.com/erazemk/assettrack/internal/model"
)

func TestPolicies(t *testing.T) {
	admin := &Principal{Role: model.RoleAdmin}
	manager := &Principal{Role: model.RoleManager, Permissions: model.Permissions{"assets.*": true}}
	user := &Principal{Role: model.RoleUser, Permissions: model.Permissions{"assets.scan": true}}

	tests := []struct {
		name   string
		policy Policy
		p      *Principal
		want   bool
	}{
		{"role match", Roles(model.RoleAdmin, model.RoleManager), manager, true},
		{"role miss", Roles(model.RoleAdmin, model.RoleManager), user, false},
		{"role admin not listed", Roles(model.RoleManager), admin, false},
		{"permission exact", Permission("assets.scan"), user, true},
		{"permission missing", Permission("assets.delete"), user, false},
		{"permission wildcard", Permission("assets.delete"), manager, true},
		{"permission admin bypass", Permission("roles.delete"), admin, true},
		{"authenticated", Authenticated(), user, true},
		{"anonymous role", Roles(model.RoleUser), nil, false},
		{"anonymous permission", Permission("assets.scan"), nil, false},
		{"anonymous authenticated", Authenticated(), nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.Allow(tt.p); got != tt.want {
				t.Errorf("%s.Allow = %v, want %v", tt.policy, got, tt.want)
			}
		})
	}
}

func TestPrincipalCan(t *testing.T) {
	p := &Principal{Role: model.RoleUser, Permissions: model.Permissions{"movements.approve": true}}
	if !p.Can("movements.approve") || p.Can("movements.delete") {
		t.Errorf("unexpected Can results for %+v", p)
	}
	if p.IsAdmin() {
		t.Error("user is not admin")
	}

	var nobody *Principal
	if nobody.Can("x.y") || nobody.IsAdmin() {
		t.Error("nil principal must not be allowed anything")
	}
}
