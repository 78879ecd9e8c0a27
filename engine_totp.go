package authcore

import (
	"context"
	"time"
)

// BeginSecondFactorEnrollment generates a fresh TOTP secret for the
// principal and stores it in the pending state. The secret and otpauth URI
// are returned exactly once; the factor stays inert until
// [Engine.ConfirmSecondFactorEnrollment] proves the authenticator app holds
// the secret. Re-running enrollment before confirmation replaces the
// pending secret.
func (e *Engine) BeginSecondFactorEnrollment(ctx context.Context, principalID string) (*EnrollmentResult, error) {
	if e == nil || e.provider == nil {
		return nil, ErrEngineNotReady
	}
	p, err := e.provider.GetPrincipalByID(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, ErrAccountDisabled
	}
	sf, err := e.provider.GetSecondFactor(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if sf != nil && sf.Enabled {
		return nil, ErrSecondFactorAlreadyEnabled
	}

	secret, uri, err := e.totp.GenerateKey(p.Username)
	if err != nil {
		return nil, err
	}
	pending := &SecondFactorRecord{Secret: secret, Enabled: false}
	if err := e.provider.SaveSecondFactor(ctx, principalID, pending); err != nil {
		return nil, err
	}

	e.emitAudit(auditEventEnrollmentStarted, true, principalID, p.Username, "", nil, nil)
	return &EnrollmentResult{Secret: secret, URI: uri}, nil
}

// ConfirmSecondFactorEnrollment verifies one code against the pending
// secret and, on success, activates the factor and mints a fresh set of
// backup codes. The returned plaintexts are shown once and never stored;
// only their hashes persist.
func (e *Engine) ConfirmSecondFactorEnrollment(ctx context.Context, principalID, code string) ([]string, error) {
	if e == nil || e.provider == nil {
		return nil, ErrEngineNotReady
	}
	p, err := e.provider.GetPrincipalByID(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, ErrAccountDisabled
	}
	sf, err := e.provider.GetSecondFactor(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if sf == nil {
		return nil, ErrSecondFactorNotEnrolled
	}
	if sf.Enabled {
		return nil, ErrSecondFactorAlreadyEnabled
	}

	ok, step, err := e.totp.VerifyCode(sf.Secret, code, time.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		e.emitAudit(auditEventSecondFactorFailure, false, principalID, p.Username, "", ErrSecondFactorInvalid, func() map[string]string {
			return map[string]string{"reason": "enrollment_code_mismatch"}
		})
		return nil, ErrSecondFactorInvalid
	}

	// The confirmation code consumes its time step like any other accepted
	// code, so it cannot be replayed at first login.
	activated := &SecondFactorRecord{Secret: sf.Secret, Enabled: true, LastUsedStep: step}
	if err := e.provider.SaveSecondFactor(ctx, principalID, activated); err != nil {
		return nil, err
	}

	codes, err := e.issueBackupCodes(ctx, principalID)
	if err != nil {
		return nil, err
	}

	e.emitAudit(auditEventEnrollmentConfirmed, true, principalID, p.Username, "", nil, nil)
	return codes, nil
}

// DisableSecondFactor removes the principal's TOTP secret and all backup
// codes. A Full-role principal who disables the factor will be required to
// re-enroll before the next login completes.
func (e *Engine) DisableSecondFactor(ctx context.Context, principalID string) error {
	if e == nil || e.provider == nil {
		return ErrEngineNotReady
	}
	sf, err := e.provider.GetSecondFactor(ctx, principalID)
	if err != nil {
		return err
	}
	if sf == nil {
		return ErrSecondFactorNotEnrolled
	}
	if err := e.provider.SaveSecondFactor(ctx, principalID, nil); err != nil {
		return err
	}
	if err := e.provider.ReplaceBackupCodes(ctx, principalID, nil); err != nil {
		return err
	}
	e.emitAudit(auditEventSecondFactorDisabled, true, principalID, "", "", nil, nil)
	return nil
}
