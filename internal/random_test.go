package internal

import (
	"strings"
	"testing"
)

func TestSessionIDRoundTrip(t *testing.T) {
	sid, err := NewSessionID()
	if err != nil {
		t.Fatalf("NewSessionID failed: %v", err)
	}

	encoded := sid.String()
	if len(encoded) != 22 {
		t.Fatalf("expected 22-char compact form, got %d (%s)", len(encoded), encoded)
	}

	decoded, err := ParseSessionID(encoded)
	if err != nil {
		t.Fatalf("ParseSessionID failed: %v", err)
	}
	if decoded != sid {
		t.Fatal("round trip mismatch")
	}
}

func TestParseSessionIDRejectsBadInput(t *testing.T) {
	for _, in := range []string{"", "short", "!!!not-base64url!!!", strings.Repeat("A", 44)} {
		if _, err := ParseSessionID(in); err == nil {
			t.Fatalf("expected rejection for %q", in)
		}
	}
}

func TestNewBackupCode(t *testing.T) {
	code, err := NewBackupCode(8)
	if err != nil {
		t.Fatalf("NewBackupCode failed: %v", err)
	}
	if len(code) != 8 {
		t.Fatalf("expected 8 chars, got %d", len(code))
	}
	if code != strings.ToUpper(code) {
		t.Fatalf("expected uppercase, got %s", code)
	}
	for _, r := range code {
		if !strings.ContainsRune("0123456789ABCDEF", r) {
			t.Fatalf("unexpected character %q in %s", r, code)
		}
	}

	if _, err := NewBackupCode(7); err == nil {
		t.Fatal("expected rejection for odd length")
	}
	if _, err := NewBackupCode(4); err == nil {
		t.Fatal("expected rejection for short length")
	}
}

func TestFormatAndCanonicalize(t *testing.T) {
	formatted := FormatBackupCode("3F9AC01D")
	if formatted != "3F9A-C01D" {
		t.Fatalf("unexpected format: %s", formatted)
	}

	for _, in := range []string{"3F9A-C01D", "3f9ac01d", " 3f9a c01d ", "3F9AC01D"} {
		if got := CanonicalizeBackupCode(in); got != "3F9AC01D" {
			t.Fatalf("canonicalize %q: got %s", in, got)
		}
	}
}

func TestBackupCodeHashBindsPrincipal(t *testing.T) {
	a := BackupCodeHash("p1", "3F9AC01D")
	b := BackupCodeHash("p2", "3F9AC01D")
	if a == b {
		t.Fatal("expected different principals to produce different hashes")
	}
	if a != BackupCodeHash("p1", "3F9AC01D") {
		t.Fatal("expected hash to be deterministic")
	}
}
