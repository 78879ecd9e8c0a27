package authcore

import (
	"context"

	"github.com/stmgr-io/authcore/internal/audit"
	"github.com/stmgr-io/authcore/internal/limiters"
	"github.com/stmgr-io/authcore/jwt"
	"github.com/stmgr-io/authcore/password"
	"github.com/stmgr-io/authcore/session"
)

// Engine is the authentication core. It owns no durable state itself: it
// coordinates the credential hasher, policy engine, lockout tracker,
// second-factor engine, and session registry, with [PrincipalProvider] as
// the durable backing store. Construct through [Builder.Build]; all methods
// are then safe for concurrent use.
type Engine struct {
	config   Config
	provider PrincipalProvider

	hasher      *password.Hasher
	policy      *password.Policy
	lockout     *limiters.LockoutTracker
	sessions    *session.Registry
	handles     *jwt.Manager
	totp        *totpManager
	audit       *audit.Dispatcher
	dummyDigest string
}

// Close flushes and stops the audit dispatcher. The Engine must not be
// used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// secondFactorRequired applies the role policy: mandatory for [RoleFull],
// opt-in (enabled state) for everyone else. Enforcement lives here, at
// login time, not in the second-factor engine.
func secondFactorRequired(p PrincipalRecord, sf *SecondFactorRecord) bool {
	if p.Role.AtLeast(RoleFull) {
		return true
	}
	return sf != nil && sf.Enabled
}

// LockoutStatus reports the principal's current lockout state for
// administrative visibility.
func (e *Engine) LockoutStatus(ctx context.Context, username string) (LockoutStatus, error) {
	if e == nil || e.lockout == nil {
		return LockoutStatus{}, ErrEngineNotReady
	}
	allowed, retryAfter, err := e.lockout.MayAttempt(ctx, username)
	if err != nil {
		return LockoutStatus{}, err
	}
	failures, err := e.lockout.FailureCount(ctx, username)
	if err != nil {
		return LockoutStatus{}, err
	}
	status := LockoutStatus{
		Locked:   !allowed,
		Failures: failures,
	}
	if !allowed {
		status.RetryAfter = int64(retryAfter.Seconds())
	}
	return status, nil
}

// UnlockAccount clears the principal's lockout state. Administrative
// operation; the caller is responsible for authorization.
func (e *Engine) UnlockAccount(ctx context.Context, username string) error {
	if e == nil || e.lockout == nil {
		return ErrEngineNotReady
	}
	if err := e.lockout.Unlock(ctx, username); err != nil {
		return err
	}
	e.emitAudit(auditEventAccountUnlocked, true, "", username, "", nil, nil)
	return nil
}
