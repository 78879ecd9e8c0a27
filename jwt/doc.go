// Package jwt encodes session handles as compact HS256 tokens. The token
// is only the transport form of a handle: the session registry remains the
// source of truth for liveness, idle timeout, and revocation. Signature
// verification lets the engine reject forged or garbled handles before any
// Redis round-trip.
package jwt
