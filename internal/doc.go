// Package internal holds crypto-random identifier and backup-code helpers
// shared by the root engine. Nothing here is part of the public API.
package internal
