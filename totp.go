package authcore

import (
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// totpManager wraps time-based code provisioning and verification. It is
// stateless; replay bookkeeping (last accepted time step) lives with the
// principal's SecondFactorRecord.
type totpManager struct {
	config TOTPConfig
}

func newTOTPManager(cfg TOTPConfig) *totpManager {
	if cfg.Issuer == "" {
		cfg.Issuer = "authcore"
	}
	return &totpManager{config: cfg}
}

func (m *totpManager) digits() otp.Digits {
	if m.config.Digits == 8 {
		return otp.DigitsEight
	}
	return otp.DigitsSix
}

// GenerateKey provisions a fresh shared secret for the account and returns
// the base32 secret plus the otpauth:// URI for QR rendering.
func (m *totpManager) GenerateKey(account string) (secret, uri string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.config.Issuer,
		AccountName: account,
		Period:      uint(m.config.Period),
		SecretSize:  uint(m.config.SecretSize),
		Digits:      m.digits(),
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

// VerifyCode checks code against the secret at the current time step and
// the configured number of adjacent steps. On success it reports the
// matched step so the caller can enforce at-most-once acceptance per step:
// the same numeric code reappearing at a later step is a fresh match, not a
// replay.
func (m *totpManager) VerifyCode(secret, code string, now time.Time) (bool, int64, error) {
	trimmed := strings.TrimSpace(code)
	if len(trimmed) != m.config.Digits || !isDigits(trimmed) {
		return false, 0, nil
	}

	period := int64(m.config.Period)
	base := now.Unix() / period
	opts := totp.ValidateOpts{
		Period:    uint(m.config.Period),
		Skew:      0,
		Digits:    m.digits(),
		Algorithm: otp.AlgorithmSHA1,
	}

	// Check each step individually (skew pinned to 0) so the matched step
	// is known exactly.
	for offset := -int64(m.config.Skew); offset <= int64(m.config.Skew); offset++ {
		step := base + offset
		if step < 0 {
			continue
		}
		ok, err := totp.ValidateCustom(trimmed, secret, time.Unix(step*period, 0), opts)
		if err != nil {
			return false, 0, err
		}
		if ok {
			return true, step, nil
		}
	}
	return false, 0, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
