package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
)

// SessionID is a 128-bit random session identifier.
type SessionID [16]byte

// NewSessionID draws a fresh random session identifier.
func NewSessionID() (SessionID, error) {
	var sid SessionID
	_, err := rand.Read(sid[:])
	return sid, err
}

func (s SessionID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(s[:])
}

// ParseSessionID decodes the compact string form back into a SessionID.
func ParseSessionID(id string) (SessionID, error) {
	var sid SessionID
	raw, err := base64.RawURLEncoding.DecodeString(id)
	if err != nil {
		return sid, err
	}
	if len(raw) != len(sid) {
		return sid, errors.New("invalid session id size")
	}
	copy(sid[:], raw)
	return sid, nil
}

// NewBackupCode draws a random backup code of length hex characters,
// uppercase. length must be even and at least 8.
func NewBackupCode(length int) (string, error) {
	if length < 8 || length%2 != 0 {
		return "", errors.New("backup code length must be even and >= 8")
	}
	raw := make([]byte, length/2)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(raw)), nil
}

// FormatBackupCode renders a canonical code for display, grouped in blocks
// of four: "3F9A-C01D".
func FormatBackupCode(code string) string {
	var b strings.Builder
	for i, r := range code {
		if i > 0 && i%4 == 0 {
			b.WriteByte('-')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CanonicalizeBackupCode strips display formatting and normalizes case so
// user input matches the stored form.
func CanonicalizeBackupCode(code string) string {
	code = strings.ReplaceAll(code, "-", "")
	code = strings.ReplaceAll(code, " ", "")
	return strings.ToUpper(strings.TrimSpace(code))
}

// BackupCodeHash binds the code to its principal so identical codes issued
// to different principals never share a stored hash.
func BackupCodeHash(principalID, canonicalCode string) [32]byte {
	return sha256.Sum256([]byte(principalID + ":" + canonicalCode))
}
