package authcore

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// checkPolicy validates a candidate password against the configured rule
// set and reports every violated rule at once.
func (e *Engine) checkPolicy(candidate string) error {
	if violations := e.policy.Validate(candidate); len(violations) > 0 {
		return &PolicyError{Rules: violations}
	}
	return nil
}

// CreateAccount provisions a new principal with a policy-checked password.
// The principal ID is generated here; callers never pick their own. The
// account starts active, with no second factor and no sessions.
func (e *Engine) CreateAccount(ctx context.Context, req CreateAccountRequest) (*PrincipalRecord, error) {
	if e == nil || e.provider == nil {
		return nil, ErrEngineNotReady
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, errors.New("username must not be empty")
	}
	if !req.Role.Valid() {
		return nil, ErrRoleInvalid
	}
	if err := e.checkPolicy(req.Password); err != nil {
		return nil, err
	}

	if _, err := e.provider.GetPrincipalByUsername(ctx, username); err == nil {
		return nil, ErrAccountExists
	} else if !errors.Is(err, ErrPrincipalNotFound) {
		return nil, err
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	p, err := e.provider.CreatePrincipal(ctx, CreatePrincipalInput{
		PrincipalID:  uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Role:         req.Role,
		Active:       true,
		StaffID:      req.StaffID,
	})
	if err != nil {
		return nil, err
	}

	e.emitAudit(auditEventAccountCreated, true, p.PrincipalID, username, "", nil, func() map[string]string {
		return map[string]string{"role": p.Role.String()}
	})
	return &p, nil
}

// ChangePassword verifies the current password, enforces the policy on the
// new one, and stores a fresh digest. Every live session for the principal
// is revoked on success so a stolen session cannot outlive a credential
// rotation. A policy or verification failure leaves the stored digest
// untouched.
func (e *Engine) ChangePassword(ctx context.Context, principalID, currentPassword, newPassword string) error {
	if e == nil || e.provider == nil {
		return ErrEngineNotReady
	}
	p, err := e.provider.GetPrincipalByID(ctx, principalID)
	if err != nil {
		return err
	}
	if !p.Active {
		return ErrAccountDisabled
	}

	ok, err := e.hasher.Verify(currentPassword, p.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		e.emitAudit(auditEventPasswordChangeFailure, false, principalID, p.Username, "", ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}
	if newPassword == currentPassword {
		return ErrPasswordReuse
	}
	if err := e.checkPolicy(newPassword); err != nil {
		e.emitAudit(auditEventPasswordChangeFailure, false, principalID, p.Username, "", err, nil)
		return err
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := e.provider.UpdatePasswordHash(ctx, principalID, hash); err != nil {
		return err
	}
	if err := e.sessions.RevokeAll(ctx, principalID); err != nil {
		return err
	}

	e.emitAudit(auditEventPasswordChangeSuccess, true, principalID, p.Username, "", nil, nil)
	return nil
}

// SetAccountActive toggles the principal's soft-active flag. Deactivation
// also tears down any live session; reactivation never restores one.
func (e *Engine) SetAccountActive(ctx context.Context, principalID string, active bool) error {
	if e == nil || e.provider == nil {
		return ErrEngineNotReady
	}
	p, err := e.provider.GetPrincipalByID(ctx, principalID)
	if err != nil {
		return err
	}
	if p.Active == active {
		return nil
	}
	if err := e.provider.UpdateActive(ctx, principalID, active); err != nil {
		return err
	}
	if !active {
		if err := e.sessions.RevokeAll(ctx, principalID); err != nil {
			return err
		}
	}
	e.emitAudit(auditEventAccountStatusChange, true, principalID, p.Username, "", nil, func() map[string]string {
		if active {
			return map[string]string{"status": "active"}
		}
		return map[string]string{"status": "disabled"}
	})
	return nil
}

// SetRole reassigns the principal's privilege tier. The change takes effect
// at the next login: the current session is revoked rather than mutated, so
// a session's role is fixed for its lifetime. Raising a principal to
// [RoleFull] does not enroll a second factor; the next login demands it.
func (e *Engine) SetRole(ctx context.Context, principalID string, role Role) error {
	if e == nil || e.provider == nil {
		return ErrEngineNotReady
	}
	if !role.Valid() {
		return ErrRoleInvalid
	}
	p, err := e.provider.GetPrincipalByID(ctx, principalID)
	if err != nil {
		return err
	}
	if p.Role == role {
		return nil
	}
	if err := e.provider.UpdateRole(ctx, principalID, role); err != nil {
		return err
	}
	if err := e.sessions.RevokeAll(ctx, principalID); err != nil {
		return err
	}
	e.emitAudit(auditEventAccountRoleChange, true, principalID, p.Username, "", nil, func() map[string]string {
		return map[string]string{"from": p.Role.String(), "to": role.String()}
	})
	return nil
}

// PasswordStrength grades a candidate without storing anything, for
// presentation-layer feedback while the user types.
func (e *Engine) PasswordStrength(candidate string) (label string, score int) {
	if e == nil || e.policy == nil {
		return "unknown", 0
	}
	return e.policy.Strength(candidate)
}
