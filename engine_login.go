package authcore

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/stmgr-io/authcore/password"
)

// Login runs the end-to-end authentication protocol: lockout gate,
// password verification, second-factor verification where required, then
// session minting. Every failure is one typed error; unknown usernames and
// wrong passwords are indistinguishable to the caller. secondFactorCode may
// be empty when the principal has no second factor; when one is required
// and the code is missing, [ErrSecondFactorRequired] is returned without
// counting a failed attempt.
//
// Password verification is CPU-bound; treat Login as a blocking call and
// keep it off interactive threads.
func (e *Engine) Login(ctx context.Context, username, pass, secondFactorCode string) (*LoginResult, error) {
	if e == nil || e.provider == nil {
		return nil, ErrEngineNotReady
	}

	p, err := e.provider.GetPrincipalByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return nil, e.failUnknownPrincipal(ctx, username, pass)
		}
		return nil, err
	}

	if !p.Active {
		e.emitAudit(auditEventLoginFailure, false, p.PrincipalID, username, "", ErrAccountDisabled, func() map[string]string {
			return map[string]string{"reason": "account_disabled"}
		})
		return nil, ErrAccountDisabled
	}

	// Locked principals are rejected before any credential work, and the
	// rejection is not itself a failed attempt, so hammering a locked
	// account never extends the lock.
	allowed, retryAfter, err := e.lockout.MayAttempt(ctx, username)
	if err != nil {
		return nil, err
	}
	if !allowed {
		e.emitAudit(auditEventLoginLocked, false, p.PrincipalID, username, "", ErrAccountLocked, nil)
		return nil, &LockedError{RetryAfter: retryAfter}
	}

	ok, verr := e.hasher.Verify(pass, p.PasswordHash)
	if verr != nil {
		if !errors.Is(verr, password.ErrMalformedDigest) {
			return nil, verr
		}
		// Data-integrity alarm: a stored digest we wrote should always
		// parse. Deny, never crash.
		log.Printf("authcore: malformed password digest for principal %s", p.PrincipalID)
		e.emitAudit(auditEventDigestIntegrityAlarm, false, p.PrincipalID, username, "", verr, nil)
		ok = false
	}
	if !ok {
		return nil, e.failLogin(ctx, p, username, ErrInvalidCredentials, "password_mismatch")
	}

	e.maybeRehash(ctx, p, pass)

	sf, err := e.provider.GetSecondFactor(ctx, p.PrincipalID)
	if err != nil {
		return nil, err
	}

	if secondFactorRequired(p, sf) {
		if sf == nil || !sf.Enabled {
			e.emitAudit(auditEventSecondFactorRequired, false, p.PrincipalID, username, "", ErrSecondFactorEnrollmentRequired, func() map[string]string {
				return map[string]string{"reason": "not_enrolled"}
			})
			return nil, ErrSecondFactorEnrollmentRequired
		}
		if strings.TrimSpace(secondFactorCode) == "" {
			e.emitAudit(auditEventSecondFactorRequired, false, p.PrincipalID, username, "", ErrSecondFactorRequired, nil)
			return nil, ErrSecondFactorRequired
		}
		if err := e.verifySecondFactor(ctx, p, sf, secondFactorCode); err != nil {
			if errors.Is(err, ErrSecondFactorInvalid) {
				return nil, e.failLogin(ctx, p, username, ErrSecondFactorInvalid, "second_factor_mismatch")
			}
			return nil, err
		}
	}

	if err := e.lockout.RecordSuccess(ctx, username); err != nil {
		return nil, err
	}

	sessionID, err := e.sessions.Create(ctx, p.PrincipalID, p.Role.String(), e.config.Session.IdleTimeout)
	if err != nil {
		return nil, err
	}
	handle, err := e.handles.Issue(sessionID, p.PrincipalID, p.Role.String(), time.Now())
	if err != nil {
		return nil, err
	}

	e.emitAudit(auditEventLoginSuccess, true, p.PrincipalID, username, sessionID, nil, nil)
	return &LoginResult{
		Handle:      handle,
		PrincipalID: p.PrincipalID,
		Role:        p.Role,
	}, nil
}

// maybeRehash upgrades digests whose embedded work factors lag the current
// configuration. Best effort: the login proceeds on the old digest if the
// write fails, and the next login retries.
func (e *Engine) maybeRehash(ctx context.Context, p PrincipalRecord, pass string) {
	stale, err := e.hasher.NeedsRehash(p.PasswordHash)
	if err != nil || !stale {
		return
	}
	fresh, err := e.hasher.Hash(pass)
	if err != nil {
		return
	}
	if err := e.provider.UpdatePasswordHash(ctx, p.PrincipalID, fresh); err != nil {
		log.Printf("authcore: digest upgrade failed for principal %s: %v", p.PrincipalID, err)
	}
}

// failUnknownPrincipal keeps the timing and error profile of an unknown
// username aligned with a wrong password: burn a full-cost verification
// against a throwaway digest, count the failure under the attempted
// username, and return the merged error.
func (e *Engine) failUnknownPrincipal(ctx context.Context, username, pass string) error {
	_, _ = e.hasher.Verify(pass, e.dummyDigest)
	if _, err := e.lockout.RecordFailure(ctx, username); err != nil {
		return err
	}
	e.emitAudit(auditEventLoginFailure, false, "", username, "", ErrInvalidCredentials, func() map[string]string {
		return map[string]string{"reason": "unknown_principal"}
	})
	return ErrInvalidCredentials
}

func (e *Engine) failLogin(ctx context.Context, p PrincipalRecord, username string, cause error, reason string) error {
	locked, err := e.lockout.RecordFailure(ctx, username)
	if err != nil {
		return err
	}
	e.emitAudit(auditEventLoginFailure, false, p.PrincipalID, username, "", cause, func() map[string]string {
		return map[string]string{"reason": reason}
	})
	if locked {
		e.emitAudit(auditEventLoginLocked, false, p.PrincipalID, username, "", ErrAccountLocked, func() map[string]string {
			return map[string]string{"reason": "threshold_reached"}
		})
	}
	return cause
}

// verifySecondFactor accepts either a rolling TOTP code or a backup code.
// A code shaped like a TOTP code is tried against the rolling secret first
// and, on mismatch, against the backup set: an all-digit backup code is
// indistinguishable from a TOTP code by shape alone. TOTP codes are
// accepted at most once per time step; the backup path consumes the
// matched code atomically.
func (e *Engine) verifySecondFactor(ctx context.Context, p PrincipalRecord, sf *SecondFactorRecord, code string) error {
	trimmed := strings.TrimSpace(code)

	if len(trimmed) == e.config.TOTP.Digits && isDigits(trimmed) {
		ok, step, err := e.totp.VerifyCode(sf.Secret, trimmed, time.Now())
		if err != nil {
			return err
		}
		if !ok {
			return e.consumeBackupCode(ctx, p, trimmed)
		}
		if step <= sf.LastUsedStep {
			// Replay of an already-accepted step. A coincidentally equal
			// code at a later step passes this check and is evaluated on
			// its own merits.
			e.emitAudit(auditEventSecondFactorFailure, false, p.PrincipalID, p.Username, "", ErrSecondFactorInvalid, func() map[string]string {
				return map[string]string{"reason": "replay"}
			})
			return ErrSecondFactorInvalid
		}
		if err := e.provider.UpdateSecondFactorLastStep(ctx, p.PrincipalID, step); err != nil {
			return err
		}
		e.emitAudit(auditEventSecondFactorSuccess, true, p.PrincipalID, p.Username, "", nil, nil)
		return nil
	}

	return e.consumeBackupCode(ctx, p, trimmed)
}
