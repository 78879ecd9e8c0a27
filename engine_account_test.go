package authcore

import (
	"context"
	"errors"
	"testing"
)

func TestCreateAccountSuccess(t *testing.T) {
	provider := newMockProvider()
	engine, done := newTestEngine(t, testConfig(), provider)
	defer done()

	p, err := engine.CreateAccount(context.Background(), CreateAccountRequest{
		Username: "alice",
		Password: testPassword,
		Role:     RoleElevated,
		StaffID:  "staff-7",
	})
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	if p.PrincipalID == "" {
		t.Fatal("expected generated principal id")
	}
	if !p.Active {
		t.Fatal("expected account to start active")
	}
	if p.PasswordHash == testPassword || p.PasswordHash == "" {
		t.Fatal("expected stored password to be hashed")
	}
	ok, err := engine.hasher.Verify(testPassword, p.PasswordHash)
	if err != nil || !ok {
		t.Fatalf("expected stored hash to verify, ok=%v err=%v", ok, err)
	}

	if _, err := engine.Login(context.Background(), "alice", testPassword, ""); err != nil {
		t.Fatalf("Login after create failed: %v", err)
	}
}

func TestCreateAccountDuplicateRejected(t *testing.T) {
	provider := newMockProvider()
	engine, done := newTestEngine(t, testConfig(), provider)
	defer done()

	req := CreateAccountRequest{Username: "alice", Password: testPassword, Role: RoleBasic}
	if _, err := engine.CreateAccount(context.Background(), req); err != nil {
		t.Fatalf("first CreateAccount failed: %v", err)
	}
	if _, err := engine.CreateAccount(context.Background(), req); !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
}

func TestCreateAccountWeakPassword(t *testing.T) {
	provider := newMockProvider()
	engine, done := newTestEngine(t, testConfig(), provider)
	defer done()

	_, err := engine.CreateAccount(context.Background(), CreateAccountRequest{
		Username: "alice",
		Password: "password",
		Role:     RoleBasic,
	})
	if !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("expected ErrPasswordPolicy, got %v", err)
	}
	pe, ok := AsPolicyError(err)
	if !ok || len(pe.Rules) == 0 {
		t.Fatalf("expected violated rules, got %+v", err)
	}

	// Nothing was stored.
	if _, err := provider.GetPrincipalByUsername(context.Background(), "alice"); !errors.Is(err, ErrPrincipalNotFound) {
		t.Fatalf("expected no record, got %v", err)
	}
}

func TestCreateAccountInvalidRole(t *testing.T) {
	provider := newMockProvider()
	engine, done := newTestEngine(t, testConfig(), provider)
	defer done()

	_, err := engine.CreateAccount(context.Background(), CreateAccountRequest{
		Username: "alice",
		Password: testPassword,
		Role:     Role(9),
	})
	if !errors.Is(err, ErrRoleInvalid) {
		t.Fatalf("expected ErrRoleInvalid, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	provider := newMockProvider()
	engine, done := newTestEngine(t, testConfig(), provider)
	defer done()

	p := seedPrincipal(t, engine, provider, "alice", RoleBasic)
	ctx := context.Background()

	res, err := engine.Login(ctx, "alice", testPassword, "")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	const newPassword = "N3w!Passphrase9"
	if err := engine.ChangePassword(ctx, p.PrincipalID, testPassword, newPassword); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}

	// The live session dies with the old credential.
	if _, err := engine.ValidateSession(ctx, res.Handle); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session revoked, got %v", err)
	}

	if _, err := engine.Login(ctx, "alice", testPassword, ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password rejected, got %v", err)
	}
	if _, err := engine.Login(ctx, "alice", newPassword, ""); err != nil {
		t.Fatalf("Login with new password failed: %v", err)
	}
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	provider := newMockProvider()
	engine, done := newTestEngine(t, testConfig(), provider)
	defer done()

	p := seedPrincipal(t, engine, provider, "alice", RoleBasic)

	err := engine.ChangePassword(context.Background(), p.PrincipalID, "Wr0ng!Password", "N3w!Passphrase9")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestChangePasswordReuseRejected(t *testing.T) {
	provider := newMockProvider()
	engine, done := newTestEngine(t, testConfig(), provider)
	defer done()

	p := seedPrincipal(t, engine, provider, "alice", RoleBasic)

	err := engine.ChangePassword(context.Background(), p.PrincipalID, testPassword, testPassword)
	if !errors.Is(err, ErrPasswordReuse) {
		t.Fatalf("expected ErrPasswordReuse, got %v", err)
	}
}

func TestChangePasswordPolicyFailureLeavesDigest(t *testing.T) {
	provider := newMockProvider()
	engine, done := newTestEngine(t, testConfig(), provider)
	defer done()

	p := seedPrincipal(t, engine, provider, "alice", RoleBasic)
	ctx := context.Background()

	err := engine.ChangePassword(ctx, p.PrincipalID, testPassword, "weak")
	if !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("expected ErrPasswordPolicy, got %v", err)
	}

	// The old credential still works.
	if _, err := engine.Login(ctx, "alice", testPassword, ""); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
}

func TestDeactivateRevokesSessions(t *testing.T) {
	provider := newMockProvider()
	engine, done := newTestEngine(t, testConfig(), provider)
	defer done()

	p := seedPrincipal(t, engine, provider, "alice", RoleBasic)
	ctx := context.Background()

	res, err := engine.Login(ctx, "alice", testPassword, "")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if err := engine.SetAccountActive(ctx, p.PrincipalID, false); err != nil {
		t.Fatalf("SetAccountActive failed: %v", err)
	}
	if _, err := engine.ValidateSession(ctx, res.Handle); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session revoked, got %v", err)
	}
	if _, err := engine.Login(ctx, "alice", testPassword, ""); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}

	// Reactivation restores login but not the old session.
	if err := engine.SetAccountActive(ctx, p.PrincipalID, true); err != nil {
		t.Fatalf("reactivate failed: %v", err)
	}
	if _, err := engine.ValidateSession(ctx, res.Handle); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected old session still gone, got %v", err)
	}
	if _, err := engine.Login(ctx, "alice", testPassword, ""); err != nil {
		t.Fatalf("Login after reactivation failed: %v", err)
	}
}

func TestSetRoleRevokesSessionAndAppliesAtNextLogin(t *testing.T) {
	provider := newMockProvider()
	engine, done := newTestEngine(t, testConfig(), provider)
	defer done()

	p := seedPrincipal(t, engine, provider, "alice", RoleElevated)
	ctx := context.Background()

	res, err := engine.Login(ctx, "alice", testPassword, "")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if err := engine.SetRole(ctx, p.PrincipalID, RoleFull); err != nil {
		t.Fatalf("SetRole failed: %v", err)
	}
	if _, err := engine.ValidateSession(ctx, res.Handle); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session revoked, got %v", err)
	}

	// The stricter tier bites at the next login.
	if _, err := engine.Login(ctx, "alice", testPassword, ""); !errors.Is(err, ErrSecondFactorEnrollmentRequired) {
		t.Fatalf("expected ErrSecondFactorEnrollmentRequired, got %v", err)
	}
}

func TestSetRoleInvalid(t *testing.T) {
	provider := newMockProvider()
	engine, done := newTestEngine(t, testConfig(), provider)
	defer done()

	p := seedPrincipal(t, engine, provider, "alice", RoleBasic)

	if err := engine.SetRole(context.Background(), p.PrincipalID, Role(42)); !errors.Is(err, ErrRoleInvalid) {
		t.Fatalf("expected ErrRoleInvalid, got %v", err)
	}
}
