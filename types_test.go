package authcore

import (
	"errors"
	"testing"
)

func TestRoleOrdering(t *testing.T) {
	if !RoleFull.AtLeast(RoleElevated) || !RoleElevated.AtLeast(RoleBasic) {
		t.Fatal("expected strict privilege ordering")
	}
	if RoleBasic.AtLeast(RoleElevated) {
		t.Fatal("basic must not reach elevated")
	}
}

func TestRoleRoundTrip(t *testing.T) {
	for _, role := range []Role{RoleBasic, RoleElevated, RoleFull} {
		parsed, err := ParseRole(role.String())
		if err != nil {
			t.Fatalf("ParseRole(%s) failed: %v", role, err)
		}
		if parsed != role {
			t.Fatalf("round trip mismatch: %s != %s", parsed, role)
		}
	}

	if _, err := ParseRole("superuser"); !errors.Is(err, ErrRoleInvalid) {
		t.Fatalf("expected ErrRoleInvalid, got %v", err)
	}
	if Role(42).Valid() {
		t.Fatal("expected out-of-range role to be invalid")
	}
	if Role(42).String() != "unknown" {
		t.Fatalf("unexpected string for invalid role: %s", Role(42).String())
	}
}

func TestParseRoleNormalizesInput(t *testing.T) {
	for _, tag := range []string{"FULL", " full ", "Full"} {
		role, err := ParseRole(tag)
		if err != nil {
			t.Fatalf("ParseRole(%q) failed: %v", tag, err)
		}
		if role != RoleFull {
			t.Fatalf("expected full, got %s", role)
		}
	}
}
