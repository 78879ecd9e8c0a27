package authcore

import (
	"io"
	"time"

	internalaudit "github.com/stmgr-io/authcore/internal/audit"
)

// AuditEvent is one security-relevant occurrence emitted to the configured
// [AuditSink].
type AuditEvent = internalaudit.Event

// AuditSink receives audit events. Implementations must be safe for
// concurrent use; a slow sink can only ever cause events to be dropped,
// never block the authentication path.
type AuditSink = internalaudit.Sink

// NoOpSink discards audit events.
type NoOpSink = internalaudit.NoOpSink

// NewChannelSink returns a sink that forwards events into a buffered
// channel, for callers that consume events in-process.
func NewChannelSink(buffer int) *internalaudit.ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink that writes one JSON event per line.
func NewJSONWriterSink(w io.Writer) *internalaudit.JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

const (
	auditEventLoginSuccess            = "login_success"
	auditEventLoginFailure            = "login_failure"
	auditEventLoginLocked             = "login_locked"
	auditEventSecondFactorRequired    = "second_factor_required"
	auditEventSecondFactorSuccess     = "second_factor_success"
	auditEventSecondFactorFailure     = "second_factor_failure"
	auditEventEnrollmentStarted       = "second_factor_enrollment_started"
	auditEventEnrollmentConfirmed     = "second_factor_enrollment_confirmed"
	auditEventSecondFactorDisabled    = "second_factor_disabled"
	auditEventBackupCodesGenerated    = "backup_codes_generated"
	auditEventBackupCodeUsed          = "backup_code_used"
	auditEventBackupCodeFailed        = "backup_code_failed"
	auditEventLogout                  = "logout"
	auditEventLogoutAll               = "logout_all"
	auditEventAccountCreated          = "account_created"
	auditEventAccountStatusChange     = "account_status_change"
	auditEventAccountRoleChange       = "account_role_change"
	auditEventAccountUnlocked         = "account_unlocked"
	auditEventPasswordChangeSuccess   = "password_change_success"
	auditEventPasswordChangeFailure   = "password_change_failure"
	auditEventDigestIntegrityAlarm    = "digest_integrity_alarm"
)

func (e *Engine) emitAudit(
	eventType string,
	success bool,
	principalID string,
	username string,
	sessionID string,
	cause error,
	metadata func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp:   time.Now(),
		EventType:   eventType,
		PrincipalID: principalID,
		Username:    username,
		SessionID:   sessionID,
		Success:     success,
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	if metadata != nil {
		event.Metadata = metadata()
	}

	e.audit.Emit(event)
}
