package authcore

import (
	"context"
	"strings"
)

// Role is the ordered privilege tier of a principal. Higher values carry
// strictly more privilege; [RoleFull] principals must complete second-factor
// enrollment before any session can be created for them.
type Role uint8

const (
	// RoleBasic is the lowest tier: day-to-day read/export operations.
	RoleBasic Role = iota
	// RoleElevated adds data modification and staff visibility.
	RoleElevated
	// RoleFull is unrestricted; second factor mandatory at login.
	RoleFull
)

var roleNames = map[Role]string{
	RoleBasic:    "basic",
	RoleElevated: "elevated",
	RoleFull:     "full",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether r is one of the defined tiers.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// AtLeast reports whether r carries at least the privilege of other.
func (r Role) AtLeast(other Role) bool {
	return r >= other
}

// ParseRole converts a stored role tag back into a Role.
func ParseRole(tag string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "basic":
		return RoleBasic, nil
	case "elevated":
		return RoleElevated, nil
	case "full":
		return RoleFull, nil
	default:
		return RoleBasic, ErrRoleInvalid
	}
}

// PrincipalRecord is the durable account record exchanged with
// [PrincipalProvider]. PasswordHash is a self-describing PHC digest; the
// plaintext password never reaches the provider.
type PrincipalRecord struct {
	PrincipalID  string
	Username     string
	PasswordHash string
	Role         Role
	Active       bool

	// StaffID optionally links the principal to an external staff identity.
	// Opaque to this package.
	StaffID string
}

// SecondFactorRecord is the per-principal TOTP state. A nil record means
// the second factor is disabled; Enabled=false means enrollment is pending
// (secret generated, first verification outstanding).
type SecondFactorRecord struct {
	// Secret is the base32-encoded shared secret generated at enrollment.
	Secret  string
	Enabled bool

	// LastUsedStep is the most recent accepted TOTP time step. Codes at or
	// before this step are rejected to block replay.
	LastUsedStep int64
}

// BackupCodeRecord stores the SHA-256 hash of a single unused backup code.
// The plaintext is shown once at generation and never persisted.
type BackupCodeRecord struct {
	Hash [32]byte
}

// CreatePrincipalInput is the input for [PrincipalProvider.CreatePrincipal].
type CreatePrincipalInput struct {
	PrincipalID  string
	Username     string
	PasswordHash string
	Role         Role
	Active       bool
	StaffID      string
}

// PrincipalProvider is the persistence interface callers must implement to
// back authcore with their user database. Every method is a single-record
// read or write keyed by principal; no multi-record transactions are
// required. Lookups return [ErrPrincipalNotFound] when no record exists.
//
// ConsumeBackupCode must be atomic: it removes the code whose hash matches
// and reports whether a code was removed, such that two concurrent calls
// can never both consume the same code.
//
// UpdateSecondFactorLastStep must only ever move the stored counter
// forward: an update with a step at or below the stored value is a no-op.
// A compare-and-set (or an update guarded by the record lock) keeps two
// racing logins from both advancing past the same code.
type PrincipalProvider interface {
	GetPrincipalByUsername(ctx context.Context, username string) (PrincipalRecord, error)
	GetPrincipalByID(ctx context.Context, principalID string) (PrincipalRecord, error)
	CreatePrincipal(ctx context.Context, input CreatePrincipalInput) (PrincipalRecord, error)
	UpdatePasswordHash(ctx context.Context, principalID, newHash string) error
	UpdateRole(ctx context.Context, principalID string, role Role) error
	UpdateActive(ctx context.Context, principalID string, active bool) error

	GetSecondFactor(ctx context.Context, principalID string) (*SecondFactorRecord, error)
	SaveSecondFactor(ctx context.Context, principalID string, record *SecondFactorRecord) error
	UpdateSecondFactorLastStep(ctx context.Context, principalID string, step int64) error

	GetBackupCodes(ctx context.Context, principalID string) ([]BackupCodeRecord, error)
	ReplaceBackupCodes(ctx context.Context, principalID string, codes []BackupCodeRecord) error
	ConsumeBackupCode(ctx context.Context, principalID string, codeHash [32]byte) (bool, error)
}

// LoginResult is returned by [Engine.Login] on full success.
type LoginResult struct {
	// Handle is the opaque session handle presented on subsequent calls.
	Handle      string
	PrincipalID string
	Role        Role
}

// SessionInfo is returned by [Engine.ValidateSession].
type SessionInfo struct {
	PrincipalID string
	Role        Role
}

// EnrollmentResult is returned by [Engine.BeginSecondFactorEnrollment].
// Secret and URI are shown to the user exactly once; the URI embeds the
// account label and secret for QR rendering by the presentation layer.
type EnrollmentResult struct {
	Secret string
	URI    string
}

// CreateAccountRequest is the input for [Engine.CreateAccount].
type CreateAccountRequest struct {
	Username string
	Password string
	Role     Role
	StaffID  string
}

// LockoutStatus is returned by [Engine.LockoutStatus] for administrative
// visibility into a principal's brute-force counters.
type LockoutStatus struct {
	Locked     bool
	RetryAfter int64 // seconds remaining, 0 when not locked
	Failures   int
}
