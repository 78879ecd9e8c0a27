package authcore

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/stmgr-io/authcore/internal/audit"
	"github.com/stmgr-io/authcore/internal/limiters"
	"github.com/stmgr-io/authcore/jwt"
	"github.com/stmgr-io/authcore/password"
	"github.com/stmgr-io/authcore/session"
)

// Builder assembles an [Engine]. Configure with the With* chain, then call
// Build exactly once. A Builder is not safe for concurrent use; the Engine
// it produces is.
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	provider  PrincipalProvider
	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with the default configuration.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the Redis client backing the session registry and the
// lockout tracker.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithPrincipalProvider supplies the persistence collaborator.
func (b *Builder) WithPrincipalProvider(p PrincipalProvider) *Builder {
	b.provider = p
	return b
}

// WithAuditSink supplies the audit event consumer and enables dispatch.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = true
	return b
}

// Build validates the configuration, wires every component, and returns a
// ready Engine. The single shared Engine is initialized at process start
// and torn down with [Engine.Close]; tests instantiate isolated engines the
// same way.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.provider == nil {
		return nil, errors.New("principal provider required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(password.Params{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	handles, err := jwt.NewManager(jwt.Config{
		Secret: cfg.Session.HandleSecret,
		TTL:    cfg.Session.AbsoluteLifetime,
		Issuer: cfg.TOTP.Issuer,
	})
	if err != nil {
		return nil, err
	}

	// Verified against at the same cost as a real digest when the username
	// is unknown, so lookup misses and password mismatches are
	// indistinguishable by timing.
	dummyDigest, err := hasher.Hash("authcore-enumeration-filler")
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:      cfg,
		provider:    b.provider,
		hasher:      hasher,
		dummyDigest: dummyDigest,
		policy: password.NewPolicy(password.PolicyRules{
			MinLength:        cfg.Policy.MinLength,
			RequireUppercase: cfg.Policy.RequireUppercase,
			RequireLowercase: cfg.Policy.RequireLowercase,
			RequireDigit:     cfg.Policy.RequireDigit,
			RequireSymbol:    cfg.Policy.RequireSymbol,
			RejectCommon:     cfg.Policy.RejectCommon,
		}),
		lockout: limiters.NewLockoutTracker(b.redis, cfg.Session.RedisPrefix, limiters.LockoutConfig{
			Threshold: cfg.Lockout.Threshold,
			Window:    cfg.Lockout.Window,
			Duration:  cfg.Lockout.Duration,
		}),
		sessions: session.NewRegistry(b.redis, cfg.Session.RedisPrefix),
		handles:  handles,
		totp:     newTOTPManager(cfg.TOTP),
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
		}, b.auditSink),
	}

	b.built = true
	return engine, nil
}
