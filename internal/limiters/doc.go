// Package limiters implements the account lockout tracker: a Redis-backed
// per-principal failure counter with an atomic increment-and-compare
// trigger, so concurrent failed logins can never lose an update or race
// past the lockout threshold.
package limiters
