package authcore

import (
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
)

func testTOTPConfig() TOTPConfig {
	return TOTPConfig{
		Issuer:     "authcore",
		Digits:     6,
		Period:     30,
		Skew:       1,
		SecretSize: 20,
	}
}

func TestVerifyCodeReportsMatchedStep(t *testing.T) {
	m := newTOTPManager(testTOTPConfig())
	now := time.Unix(1700000000, 0)

	code, err := totp.GenerateCode(testTOTPSecret, now)
	if err != nil {
		t.Fatalf("GenerateCode failed: %v", err)
	}

	ok, step, err := m.VerifyCode(testTOTPSecret, code, now)
	if err != nil {
		t.Fatalf("VerifyCode failed: %v", err)
	}
	if !ok {
		t.Fatal("expected code to verify")
	}
	if want := now.Unix() / 30; step != want {
		t.Fatalf("expected step %d, got %d", want, step)
	}
}

func TestVerifyCodeSkewWindow(t *testing.T) {
	m := newTOTPManager(testTOTPConfig())
	now := time.Unix(1700000000, 0)

	// One step behind and one ahead verify; two steps away does not.
	for _, tc := range []struct {
		offset time.Duration
		want   bool
	}{
		{-30 * time.Second, true},
		{30 * time.Second, true},
		{-90 * time.Second, false},
		{90 * time.Second, false},
	} {
		code, err := totp.GenerateCode(testTOTPSecret, now.Add(tc.offset))
		if err != nil {
			t.Fatalf("GenerateCode failed: %v", err)
		}
		ok, _, err := m.VerifyCode(testTOTPSecret, code, now)
		if err != nil {
			t.Fatalf("VerifyCode failed: %v", err)
		}
		if ok != tc.want {
			t.Fatalf("offset %s: expected ok=%v, got %v", tc.offset, tc.want, ok)
		}
	}
}

func TestVerifyCodeAdjacentStepReported(t *testing.T) {
	m := newTOTPManager(testTOTPConfig())
	now := time.Unix(1700000000, 0)

	code, err := totp.GenerateCode(testTOTPSecret, now.Add(30*time.Second))
	if err != nil {
		t.Fatalf("GenerateCode failed: %v", err)
	}
	ok, step, err := m.VerifyCode(testTOTPSecret, code, now)
	if err != nil {
		t.Fatalf("VerifyCode failed: %v", err)
	}
	if !ok {
		t.Fatal("expected adjacent-step code to verify")
	}
	if want := now.Unix()/30 + 1; step != want {
		t.Fatalf("expected step %d, got %d", want, step)
	}
}

func TestVerifyCodeRejectsMalformedInput(t *testing.T) {
	m := newTOTPManager(testTOTPConfig())
	now := time.Unix(1700000000, 0)

	for _, code := range []string{"", "12345", "1234567", "12a456", "abcdef"} {
		ok, _, err := m.VerifyCode(testTOTPSecret, code, now)
		if err != nil {
			t.Fatalf("VerifyCode(%q) failed: %v", code, err)
		}
		if ok {
			t.Fatalf("expected %q rejected", code)
		}
	}
}

func TestGenerateKey(t *testing.T) {
	m := newTOTPManager(testTOTPConfig())

	secret, uri, err := m.GenerateKey("alice")
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	if secret == "" {
		t.Fatal("expected a secret")
	}
	if uri == "" {
		t.Fatal("expected a provisioning URI")
	}

	// The generated secret verifies its own codes.
	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		t.Fatalf("GenerateCode failed: %v", err)
	}
	ok, _, err := m.VerifyCode(secret, code, time.Now())
	if err != nil || !ok {
		t.Fatalf("expected generated secret to verify, ok=%v err=%v", ok, err)
	}
}
