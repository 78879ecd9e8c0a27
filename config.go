package authcore

import (
	"errors"
	"time"
)

// Config groups every tunable of the engine. Configure once before
// [Builder.Build]; the engine clones it and never reads the original again.
type Config struct {
	Password PasswordConfig
	Policy   PolicyConfig
	Lockout  LockoutConfig
	TOTP     TOTPConfig
	Session  SessionConfig
	Audit    AuditConfig
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds the argon2id work factors. The factors in use at
// hash time are embedded in each digest, so raising them later never
// invalidates stored digests; [password.Hasher.NeedsRehash] detects stale
// ones.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

/*
====================================
POLICY CONFIG
====================================
*/

// PolicyConfig holds the password strength rule set.
type PolicyConfig struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireDigit     bool
	RequireSymbol    bool

	// RejectCommon additionally rejects a small blocklist of frequently
	// guessed passwords.
	RejectCommon bool
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig controls the brute-force lockout tracker.
type LockoutConfig struct {
	// Threshold is the failed-attempt count that triggers a lock.
	Threshold int
	// Window bounds the rolling failure-counting window. Zero means the
	// counter persists until the next successful login or administrative
	// unlock.
	Window time.Duration
	// Duration is how long a triggered lock rejects attempts. Attempts made
	// while locked are refused before any counter mutation, so they never
	// extend the lock.
	Duration time.Duration
}

/*
====================================
TOTP CONFIG
====================================
*/

// TOTPConfig controls second-factor provisioning and verification.
type TOTPConfig struct {
	Issuer string
	Digits int
	Period int
	// Skew is the number of adjacent time steps accepted on either side of
	// now, to tolerate clock drift.
	Skew int
	// SecretSize is the raw secret length in bytes (minimum 20 = 160 bits).
	SecretSize int

	BackupCodeCount  int
	BackupCodeLength int
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the session registry and handle codec.
type SessionConfig struct {
	// IdleTimeout is the inactivity span after which a session expires.
	// Checked lazily on touch/validate; there is no background sweeper.
	IdleTimeout time.Duration
	// AbsoluteLifetime caps a session regardless of activity.
	AbsoluteLifetime time.Duration
	// HandleSecret signs session handles (HS256). Minimum 32 bytes.
	HandleSecret []byte
	RedisPrefix  string
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls asynchronous audit dispatch. Delivery is best
// effort: events beyond BufferSize are dropped and counted, never queued
// against the caller.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
}

// DefaultConfig returns the recommended configuration. Callers must still
// set Session.HandleSecret before [Builder.Build].
func DefaultConfig() Config {
	return Config{
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        2,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: PolicyConfig{
			MinLength:        8,
			RequireUppercase: true,
			RequireLowercase: true,
			RequireDigit:     true,
			RequireSymbol:    true,
			RejectCommon:     true,
		},
		Lockout: LockoutConfig{
			Threshold: 5,
			Window:    0,
			Duration:  15 * time.Minute,
		},
		TOTP: TOTPConfig{
			Issuer:           "authcore",
			Digits:           6,
			Period:           30,
			Skew:             1,
			SecretSize:       20,
			BackupCodeCount:  8,
			BackupCodeLength: 8,
		},
		Session: SessionConfig{
			IdleTimeout:      30 * time.Minute,
			AbsoluteLifetime: 12 * time.Hour,
			RedisPrefix:      "ac",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
		},
	}
}

// Validate rejects configurations that would weaken the security posture.
func (c Config) Validate() error {
	if c.Lockout.Threshold < 1 {
		return errors.New("lockout threshold must be >= 1")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("lockout duration must be positive")
	}
	if c.Lockout.Window < 0 {
		return errors.New("lockout window must not be negative")
	}
	if c.Policy.MinLength < 1 {
		return errors.New("policy minimum length must be >= 1")
	}
	if c.TOTP.Digits != 6 && c.TOTP.Digits != 8 {
		return errors.New("totp digits must be 6 or 8")
	}
	if c.TOTP.Period < 15 {
		return errors.New("totp period must be >= 15 seconds")
	}
	if c.TOTP.Skew < 0 || c.TOTP.Skew > 2 {
		return errors.New("totp skew must be between 0 and 2 steps")
	}
	if c.TOTP.SecretSize < 20 {
		return errors.New("totp secret must be at least 20 bytes (160 bits)")
	}
	if c.TOTP.BackupCodeCount < 1 {
		return errors.New("backup code count must be >= 1")
	}
	if c.TOTP.BackupCodeLength < 8 {
		return errors.New("backup code length must be >= 8")
	}
	if c.Session.IdleTimeout <= 0 {
		return errors.New("session idle timeout must be positive")
	}
	if c.Session.AbsoluteLifetime < c.Session.IdleTimeout {
		return errors.New("session absolute lifetime must be >= idle timeout")
	}
	if len(c.Session.HandleSecret) < 32 {
		return errors.New("session handle secret must be at least 32 bytes")
	}
	if c.Audit.Enabled && c.Audit.BufferSize < 1 {
		return errors.New("audit buffer size must be >= 1 when audit is enabled")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Session.HandleSecret = cloneBytes(cfg.Session.HandleSecret)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
