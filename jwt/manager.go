package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/stmgr-io/authcore/internal"
)

// ErrTokenInvalid is returned for tokens that fail signature, structure, or
// claim checks.
var ErrTokenInvalid = errors.New("invalid session token")

// ErrTokenExpired is returned when the token's absolute lifetime has
// elapsed.
var ErrTokenExpired = errors.New("session token expired")

// Config for the handle codec. Secret must be at least 32 bytes; TTL is the
// absolute session lifetime cap (idle expiry is enforced elsewhere).
type Config struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
}

// Claims carried by a session handle. The registered JWT ID (jti) is the
// registry-side session identifier.
type Claims struct {
	PrincipalID string `json:"pid"`
	Role        string `json:"rol"`
	jwt.RegisteredClaims
}

// Manager signs and parses session handles. Immutable after construction,
// safe for concurrent use.
type Manager struct {
	config Config
}

// NewManager validates the codec configuration.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("handle secret must be at least 32 bytes")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("handle TTL must be positive")
	}
	return &Manager{config: cfg}, nil
}

// Issue signs a handle for the given registry session.
func (m *Manager) Issue(sessionID, principalID, role string, now time.Time) (string, error) {
	claims := Claims{
		PrincipalID: principalID,
		Role:        role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.config.Secret)
}

// Parse verifies the signature and lifetime and returns the claims. The
// signing method is pinned to HS256; tokens asserting any other algorithm
// are rejected outright.
func (m *Manager) Parse(handle string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(handle, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return m.config.Secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid || claims.ID == "" || claims.PrincipalID == "" {
		return nil, ErrTokenInvalid
	}
	if _, err := internal.ParseSessionID(claims.ID); err != nil {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
