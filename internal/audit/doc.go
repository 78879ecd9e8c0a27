// Package audit implements the asynchronous audit event pipeline: a
// canonical event model, pluggable sinks, and a buffered dispatcher that
// never blocks the authentication path. The root package re-exports the
// caller-facing pieces.
package audit
