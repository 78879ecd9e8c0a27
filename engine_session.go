package authcore

import (
	"context"
	"errors"

	"github.com/stmgr-io/authcore/jwt"
	"github.com/stmgr-io/authcore/session"
)

// resolveHandle parses a session handle down to its registry session ID.
// Signature or structure failures map to [ErrSessionNotFound] so callers
// cannot distinguish a forged handle from a revoked session; an elapsed
// absolute lifetime maps to [ErrSessionExpired].
func (e *Engine) resolveHandle(handle string) (*jwt.Claims, error) {
	claims, err := e.handles.Parse(handle)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, ErrSessionNotFound
	}
	return claims, nil
}

func mapSessionErr(err error) error {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return ErrSessionNotFound
	case errors.Is(err, session.ErrExpired):
		return ErrSessionExpired
	default:
		return err
	}
}

// ValidateSession checks a handle against the registry and reports the
// owning principal and role. It does not count as activity; use
// [Engine.TouchSession] on requests that should keep the session alive.
func (e *Engine) ValidateSession(ctx context.Context, handle string) (*SessionInfo, error) {
	if e == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}
	claims, err := e.resolveHandle(handle)
	if err != nil {
		return nil, err
	}
	rec, err := e.sessions.Validate(ctx, claims.ID)
	if err != nil {
		return nil, mapSessionErr(err)
	}
	return sessionInfoFromRecord(claims, rec)
}

// TouchSession refreshes the session's idle window and reports the owning
// principal and role. Once the idle window has elapsed the session is gone
// for good; touching it returns [ErrSessionExpired] and the principal must
// log in again.
func (e *Engine) TouchSession(ctx context.Context, handle string) (*SessionInfo, error) {
	if e == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}
	claims, err := e.resolveHandle(handle)
	if err != nil {
		return nil, err
	}
	rec, err := e.sessions.Touch(ctx, claims.ID)
	if err != nil {
		return nil, mapSessionErr(err)
	}
	return sessionInfoFromRecord(claims, rec)
}

// sessionInfoFromRecord cross-checks the handle claims against the registry
// record. The registry is the source of truth; a principal mismatch means
// the handle does not belong to this session.
func sessionInfoFromRecord(claims *jwt.Claims, rec session.Record) (*SessionInfo, error) {
	if rec.PrincipalID != claims.PrincipalID {
		return nil, ErrSessionNotFound
	}
	role, err := ParseRole(rec.Role)
	if err != nil {
		return nil, ErrSessionNotFound
	}
	return &SessionInfo{
		PrincipalID: rec.PrincipalID,
		Role:        role,
	}, nil
}

// Logout revokes the session behind the handle. Logging out an already
// expired or revoked session succeeds; the end state is the same.
func (e *Engine) Logout(ctx context.Context, handle string) error {
	if e == nil || e.sessions == nil {
		return ErrEngineNotReady
	}
	claims, err := e.resolveHandle(handle)
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			return nil
		}
		return err
	}
	if err := e.sessions.Revoke(ctx, claims.ID); err != nil {
		return err
	}
	e.emitAudit(auditEventLogout, true, claims.PrincipalID, "", claims.ID, nil, nil)
	return nil
}

// RevokeAllSessions force-terminates whatever session the principal
// currently holds. Administrative operation, also invoked internally on
// password change, role change, and deactivation.
func (e *Engine) RevokeAllSessions(ctx context.Context, principalID string) error {
	if e == nil || e.sessions == nil {
		return ErrEngineNotReady
	}
	if err := e.sessions.RevokeAll(ctx, principalID); err != nil {
		return err
	}
	e.emitAudit(auditEventLogoutAll, true, principalID, "", "", nil, nil)
	return nil
}
