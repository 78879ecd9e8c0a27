package authcore

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials is returned when the username is unknown or the
	// password does not match. The two cases are deliberately merged to
	// prevent username enumeration.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDisabled is returned when the principal has been
	// soft-deactivated by an administrator.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrAccountLocked is returned while a lockout window is in effect.
	// Use [AsLockedError] to recover the retry-after duration.
	ErrAccountLocked = errors.New("account locked")
	// ErrSecondFactorRequired is returned when the principal must present a
	// second-factor code and none was supplied. Not counted as a failed
	// attempt.
	ErrSecondFactorRequired = errors.New("second factor required")
	// ErrSecondFactorEnrollmentRequired routes the caller to enrollment: a
	// second factor is mandatory for the principal's role but enrollment has
	// not completed.
	ErrSecondFactorEnrollmentRequired = errors.New("second factor enrollment required")
	// ErrSecondFactorInvalid is returned when a submitted TOTP or backup
	// code does not verify. Counted as a failed attempt.
	ErrSecondFactorInvalid = errors.New("invalid second factor code")
	// ErrSecondFactorNotEnrolled is returned by second-factor management
	// operations when the principal has no enrollment in the required state.
	ErrSecondFactorNotEnrolled = errors.New("second factor not enrolled")
	// ErrSecondFactorAlreadyEnabled is returned when enrollment is begun for
	// a principal whose second factor is already active.
	ErrSecondFactorAlreadyEnabled = errors.New("second factor already enabled")
	// ErrPasswordPolicy is returned when a candidate password violates the
	// strength policy. Use [AsPolicyError] to list every violated rule.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrPasswordReuse is returned when the new password equals the current one.
	ErrPasswordReuse = errors.New("new password must differ from current password")
	// ErrSessionExpired is returned when a session exceeded its idle timeout
	// or absolute lifetime; the caller must re-authenticate.
	ErrSessionExpired = errors.New("session expired")
	// ErrSessionNotFound is returned for revoked, superseded, or unknown
	// session handles.
	ErrSessionNotFound = errors.New("session not found")
	// ErrPrincipalNotFound must be returned by [PrincipalProvider] lookups
	// when no record exists. It never escapes Login.
	ErrPrincipalNotFound = errors.New("principal not found")
	// ErrAccountExists is returned by CreateAccount for a duplicate username.
	ErrAccountExists = errors.New("account already exists")
	// ErrRoleInvalid is returned when a role tag cannot be parsed.
	ErrRoleInvalid = errors.New("invalid role")
	// ErrEngineNotReady is returned when a nil or incompletely built engine
	// is used.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// LockedError carries the remaining lockout duration. It unwraps to
// [ErrAccountLocked] so callers can match with errors.Is.
type LockedError struct {
	RetryAfter time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked, retry after %s", e.RetryAfter)
}

func (e *LockedError) Unwrap() error { return ErrAccountLocked }

// AsLockedError extracts a *LockedError from an error chain, if present.
func AsLockedError(err error) (*LockedError, bool) {
	var le *LockedError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}

// PolicyError lists every policy rule the candidate password violated, in
// one pass, so the caller can present complete feedback. It unwraps to
// [ErrPasswordPolicy].
type PolicyError struct {
	Rules []string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("password policy violation: %d rule(s) not met", len(e.Rules))
}

func (e *PolicyError) Unwrap() error { return ErrPasswordPolicy }

// AsPolicyError extracts a *PolicyError from an error chain, if present.
func AsPolicyError(err error) (*PolicyError, bool) {
	var pe *PolicyError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
