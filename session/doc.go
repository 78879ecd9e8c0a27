// Package session implements the Redis-backed session registry: at most
// one active session per principal, idle-timeout expiry evaluated lazily on
// touch/validate, and explicit revocation. Creation, touch, and revocation
// run as Redis scripts so concurrent logins for the same principal
// serialize; the second creation always supersedes the first.
package session
