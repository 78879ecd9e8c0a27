// Package authcore is the authentication and session-security core of a
// multi-role business application. It verifies credentials (argon2id),
// enforces account lockout after repeated failures, handles TOTP second
// factors with single-use backup codes, and manages Redis-backed sessions
// with one active session per principal and lazy idle-timeout expiry.
//
// The package is designed for concurrent request workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build]. Every rejection is a typed sentinel error; ambiguity
// always resolves to a denial.
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// sentinel errors, and the [PrincipalProvider] integration interface.
// Lockout tracking and audit dispatch live under internal/ and are never
// exported. Durable principal state belongs to the caller's storage behind
// [PrincipalProvider]; authcore never opens a database connection itself.
//
// # What this package must NOT do
//
//   - Expose Redis clients or key layouts in its public API.
//   - Reveal whether a username exists: unknown principals and wrong
//     passwords produce the same error and a comparable timing profile.
//   - Retry failed persistence calls; retry policy belongs to the provider.
//
// # Performance contract
//
// Password verification is deliberately slow (argon2id work factor) and
// runs on the calling goroutine; callers must treat Login as a blocking
// operation. Session validation and touch are one Redis script call each.
package authcore
