package authcore

import (
	"context"
	"strconv"

	"github.com/stmgr-io/authcore/internal"
)

// issueBackupCodes mints a full set of codes, persists their hashes, and
// returns the display-formatted plaintexts.
func (e *Engine) issueBackupCodes(ctx context.Context, principalID string) ([]string, error) {
	count := e.config.TOTP.BackupCodeCount
	plaintexts := make([]string, 0, count)
	records := make([]BackupCodeRecord, 0, count)
	for i := 0; i < count; i++ {
		code, err := internal.NewBackupCode(e.config.TOTP.BackupCodeLength)
		if err != nil {
			return nil, err
		}
		plaintexts = append(plaintexts, internal.FormatBackupCode(code))
		records = append(records, BackupCodeRecord{Hash: internal.BackupCodeHash(principalID, code)})
	}
	if err := e.provider.ReplaceBackupCodes(ctx, principalID, records); err != nil {
		return nil, err
	}
	e.emitAudit(auditEventBackupCodesGenerated, true, principalID, "", "", nil, func() map[string]string {
		return map[string]string{"count": strconv.Itoa(count)}
	})
	return plaintexts, nil
}

// RegenerateBackupCodes replaces every outstanding backup code with a fresh
// set. Requires an active, fully enrolled second factor; old codes stop
// working immediately.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, principalID string) ([]string, error) {
	if e == nil || e.provider == nil {
		return nil, ErrEngineNotReady
	}
	sf, err := e.provider.GetSecondFactor(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if sf == nil || !sf.Enabled {
		return nil, ErrSecondFactorNotEnrolled
	}
	return e.issueBackupCodes(ctx, principalID)
}

// RemainingBackupCodes reports how many unused codes the principal has
// left, so the presentation layer can nudge regeneration.
func (e *Engine) RemainingBackupCodes(ctx context.Context, principalID string) (int, error) {
	if e == nil || e.provider == nil {
		return 0, ErrEngineNotReady
	}
	codes, err := e.provider.GetBackupCodes(ctx, principalID)
	if err != nil {
		return 0, err
	}
	return len(codes), nil
}

// consumeBackupCode burns one code atomically through the provider. Each
// code works exactly once; hyphens and case in the submitted code are
// ignored.
func (e *Engine) consumeBackupCode(ctx context.Context, p PrincipalRecord, code string) error {
	canonical := internal.CanonicalizeBackupCode(code)
	if canonical == "" {
		return ErrSecondFactorInvalid
	}
	hash := internal.BackupCodeHash(p.PrincipalID, canonical)
	consumed, err := e.provider.ConsumeBackupCode(ctx, p.PrincipalID, hash)
	if err != nil {
		return err
	}
	if !consumed {
		e.emitAudit(auditEventBackupCodeFailed, false, p.PrincipalID, p.Username, "", ErrSecondFactorInvalid, nil)
		return ErrSecondFactorInvalid
	}

	remaining, err := e.provider.GetBackupCodes(ctx, p.PrincipalID)
	if err != nil {
		return err
	}
	e.emitAudit(auditEventBackupCodeUsed, true, p.PrincipalID, p.Username, "", nil, func() map[string]string {
		return map[string]string{"remaining": strconv.Itoa(len(remaining))}
	})
	return nil
}
