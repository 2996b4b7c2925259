package model

import "testing"

func TestPermissionsAllows(t *testing.T) {
	tests := []struct {
		name     string
		perms    Permissions
		key      string
		expected bool
	}{
		{"exact grant", Permissions{"assets.update": true}, "assets.update", true},
		{"exact deny", Permissions{"assets.update": false}, "assets.update", false},
		{"missing key", Permissions{"assets.read": true}, "assets.update", false},
		{"resource wildcard", Permissions{"assets.*": true}, "assets.delete", true},
		{"other resource wildcard", Permissions{"sites.*": true}, "assets.delete", false},
		{"global wildcard", Permissions{"*.*": true}, "roles.delete", true},
		{"exact deny under resource wildcard", Permissions{"assets.*": true, "assets.update": false}, "assets.update", false},
		{"resource wildcard beside exact deny", Permissions{"assets.*": true, "assets.update": false}, "assets.read", true},
		{"resource deny under global wildcard", Permissions{"*.*": true, "roles.*": false}, "roles.delete", false},
		{"exact grant under resource deny", Permissions{"roles.*": false, "roles.read": true}, "roles.read", true},
		{"nil map", nil, "assets.read", false},
		// Keys without an action only match exactly or through "*.*".
		{"malformed key", Permissions{"assets.*": true}, "assets", false},
	}

	for _, tt := range tests {
		got := tt.perms.Allows(tt.key)
		if got != tt.expected {
			t.Errorf("%s: Allows(%q) = %v, want %v", tt.name, tt.key, got, tt.expected)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		wantErr  bool
	}{
		{"", true},
		{"short", true},
		{"1234567", true},
		{"12345678", false},
		{"a-valid-password", false},
	}

	for _, tt := range tests {
		err := ValidatePassword(tt.password)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidatePassword(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
		}
	}
}
