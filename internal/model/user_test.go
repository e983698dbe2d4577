package model

import (
	"testing"
	"time"
)

func TestRoleAtLeast(t *testing.T) {
	tests := []struct {
		role     string
		minimum  string
		expected bool
	}{
		{RoleAdmin, RoleAdmin, true},
		{RoleAdmin, RoleUser, true},
		{RoleUser, RoleAdmin, false},
		{RoleUser, RoleUser, true},
		// Unknown roles fail-closed.
		{"unknown", RoleUser, false},
		{RoleAdmin, "unknown", false},
		{"", "", false},
		{"", RoleUser, false},
	}

	for _, tt := range tests {
		got := RoleAtLeast(tt.role, tt.minimum)
		if got != tt.expected {
			t.Errorf("RoleAtLeast(%q, %q) = %v, want %v", tt.role, tt.minimum, got, tt.expected)
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
		{"123456", false},
		{"a-valid-password", false},
	}

	for _, tt := range tests {
		err := ValidatePassword(tt.password)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidatePassword(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
		}
	}
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email   string
		wantErr bool
	}{
		{"ana@example.com", false},
		{"  Ana.Novak@Example.SI ", false},
		{"", true},
		{"no-at-sign", true},
		{"two@@example.com", true},
		{"ana@localhost", true},
	}

	for _, tt := range tests {
		err := ValidateEmail(tt.email)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateEmail(%q) error = %v, wantErr %v", tt.email, err, tt.wantErr)
		}
	}
}

func TestDisplayName(t *testing.T) {
	if got := (&User{Username: "ana", Email: "x@y.si"}).DisplayName(); got != "ana" {
		t.Errorf("expected 'ana', got %q", got)
	}
	if got := (&User{Email: "mojca@example.com"}).DisplayName(); got != "mojca" {
		t.Errorf("expected 'mojca', got %q", got)
	}
	if got := (&User{}).DisplayName(); got != DefaultUsername {
		t.Errorf("expected %q, got %q", DefaultUsername, got)
	}
}

func TestMemberSinceLabel(t *testing.T) {
	got := MemberSinceLabel(time.Date(2026, time.March, 4, 0, 0, 0, 0, time.UTC))
	if got != "Mar 2026" {
		t.Errorf("expected 'Mar 2026', got %q", got)
	}
}
