package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stmgr-io/authcore/internal"
)

// ErrNotFound is returned for unknown, revoked, or superseded session IDs.
var ErrNotFound = errors.New("session not found")

// ErrExpired is returned when the idle timeout elapsed; the session is
// removed as a side effect. Terminal state, like revocation: a new login
// always produces a new session.
var ErrExpired = errors.New("session expired")

// ErrUnavailable indicates the registry backend is unreachable.
var ErrUnavailable = errors.New("session backend unavailable")

const (
	statusNotFound int64 = 0
	statusExpired  int64 = 1
	statusOK       int64 = 2
)

// createScript installs a new session and tears down the principal's
// previous one in the same atomic step, so two concurrent logins cannot
// both end up owning "the" active session.
//
// The record carries a Redis TTL of twice the idle window as a retention
// cap, so a session nobody ever touches again is reclaimed without a
// sweeper. Between one and two idle windows a stale lookup reports
// ErrExpired; once the cap fires the record is gone and the same lookup
// reports ErrNotFound. Both are terminal.
//
// KEYS[1] = owner pointer, KEYS[2] = new session key
// ARGV = {session id, principal, role, now ms, idle ms, session key prefix}
var createScript = redis.NewScript(`
local old = redis.call("GET", KEYS[1])
if old then
  redis.call("DEL", ARGV[6] .. old)
end
redis.call("SET", KEYS[1], ARGV[1])
redis.call("HSET", KEYS[2], "principal", ARGV[2], "role", ARGV[3], "created", ARGV[4], "last", ARGV[4], "idle", ARGV[5])
redis.call("PEXPIRE", KEYS[2], tonumber(ARGV[5]) * 2)
return 1
`)

// lookupScript backs both Touch and Validate. It checks the idle window
// against the caller-supplied clock, removes the record (and the owner
// pointer, if still ours) on expiry, and optionally refreshes
// last-activity.
//
// KEYS[1] = session key
// ARGV = {now ms, owner key prefix, session id, touch flag}
var lookupScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return {0}
end
local last = tonumber(redis.call("HGET", KEYS[1], "last"))
local idle = tonumber(redis.call("HGET", KEYS[1], "idle"))
local now = tonumber(ARGV[1])
if now - last > idle then
  local principal = redis.call("HGET", KEYS[1], "principal")
  redis.call("DEL", KEYS[1])
  local owner = ARGV[2] .. principal
  if redis.call("GET", owner) == ARGV[3] then
    redis.call("DEL", owner)
  end
  return {1}
end
if tonumber(ARGV[4]) == 1 then
  redis.call("HSET", KEYS[1], "last", now)
  redis.call("PEXPIRE", KEYS[1], idle * 2)
end
return {2, redis.call("HGET", KEYS[1], "principal"), redis.call("HGET", KEYS[1], "role"), redis.call("HGET", KEYS[1], "created"), last}
`)

// revokeScript removes a session and its owner pointer when the pointer
// still references this session.
//
// KEYS[1] = session key
// ARGV = {owner key prefix, session id}
var revokeScript = redis.NewScript(`
local principal = redis.call("HGET", KEYS[1], "principal")
local existed = redis.call("DEL", KEYS[1])
if principal then
  local owner = ARGV[1] .. principal
  if redis.call("GET", owner) == ARGV[2] then
    redis.call("DEL", owner)
  end
end
return existed
`)

// revokeAllScript tears down whatever session the principal currently owns.
//
// KEYS[1] = owner pointer
// ARGV = {session key prefix}
var revokeAllScript = redis.NewScript(`
local id = redis.call("GET", KEYS[1])
if id then
  redis.call("DEL", ARGV[1] .. id)
end
redis.call("DEL", KEYS[1])
return 1
`)

// Record is the registry's view of one session.
type Record struct {
	SessionID    string
	PrincipalID  string
	Role         string
	CreatedAt    time.Time
	LastActivity time.Time
}

// Registry tracks the single active session per principal. Safe for
// concurrent use; per-principal linearizability comes from Redis script
// execution.
type Registry struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRegistry creates a registry using the given key prefix.
func NewRegistry(redisClient redis.UniversalClient, prefix string) *Registry {
	return &Registry{
		redis:  redisClient,
		prefix: prefix,
		now:    time.Now,
	}
}

func (r *Registry) sessPrefix() string { return r.prefix + ":sess:" }
func (r *Registry) ownPrefix() string  { return r.prefix + ":own:" }

// Create mints a new session for the principal, invalidating any previous
// one, and returns the new session ID.
func (r *Registry) Create(ctx context.Context, principalID, role string, idleTimeout time.Duration) (string, error) {
	if idleTimeout <= 0 {
		return "", errors.New("idle timeout must be positive")
	}
	sid, err := internal.NewSessionID()
	if err != nil {
		return "", err
	}
	id := sid.String()

	err = createScript.Run(ctx, r.redis,
		[]string{r.ownPrefix() + principalID, r.sessPrefix() + id},
		id,
		principalID,
		role,
		r.now().UnixMilli(),
		idleTimeout.Milliseconds(),
		r.sessPrefix(),
	).Err()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return id, nil
}

// Touch refreshes last-activity if the session is still within its idle
// window. If the window elapsed, the session is removed and ErrExpired is
// returned; the caller must re-authenticate.
func (r *Registry) Touch(ctx context.Context, sessionID string) (Record, error) {
	return r.lookup(ctx, sessionID, true)
}

// Validate reports the owning principal and role without counting as
// activity. Expiry is still evaluated (and enforced) lazily here.
func (r *Registry) Validate(ctx context.Context, sessionID string) (Record, error) {
	return r.lookup(ctx, sessionID, false)
}

func (r *Registry) lookup(ctx context.Context, sessionID string, touch bool) (Record, error) {
	touchFlag := 0
	if touch {
		touchFlag = 1
	}
	res, err := lookupScript.Run(ctx, r.redis,
		[]string{r.sessPrefix() + sessionID},
		r.now().UnixMilli(),
		r.ownPrefix(),
		sessionID,
		touchFlag,
	).Slice()
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(res) == 0 {
		return Record{}, fmt.Errorf("%w: empty script reply", ErrUnavailable)
	}

	status, ok := res[0].(int64)
	if !ok {
		return Record{}, fmt.Errorf("%w: unexpected script reply", ErrUnavailable)
	}
	switch status {
	case statusNotFound:
		return Record{}, ErrNotFound
	case statusExpired:
		return Record{}, ErrExpired
	case statusOK:
		if len(res) != 5 {
			return Record{}, fmt.Errorf("%w: unexpected script reply", ErrUnavailable)
		}
		return decodeRecord(sessionID, res)
	default:
		return Record{}, fmt.Errorf("%w: unexpected status %d", ErrUnavailable, status)
	}
}

func decodeRecord(sessionID string, res []interface{}) (Record, error) {
	principal, ok1 := res[1].(string)
	role, ok2 := res[2].(string)
	created, ok3 := res[3].(string)
	if !ok1 || !ok2 || !ok3 {
		return Record{}, fmt.Errorf("%w: corrupt session record", ErrUnavailable)
	}
	createdMs, err := parseMillis(created)
	if err != nil {
		return Record{}, fmt.Errorf("%w: corrupt session record", ErrUnavailable)
	}
	var lastMs int64
	switch v := res[4].(type) {
	case int64:
		lastMs = v
	case string:
		lastMs, err = parseMillis(v)
		if err != nil {
			return Record{}, fmt.Errorf("%w: corrupt session record", ErrUnavailable)
		}
	default:
		return Record{}, fmt.Errorf("%w: corrupt session record", ErrUnavailable)
	}

	return Record{
		SessionID:    sessionID,
		PrincipalID:  principal,
		Role:         role,
		CreatedAt:    time.UnixMilli(createdMs),
		LastActivity: time.UnixMilli(lastMs),
	}, nil
}

func parseMillis(s string) (int64, error) {
	var ms int64
	_, err := fmt.Sscanf(s, "%d", &ms)
	return ms, err
}

// Revoke removes the session immediately regardless of timeout. Revoking
// an already-gone session is not an error.
func (r *Registry) Revoke(ctx context.Context, sessionID string) error {
	err := revokeScript.Run(ctx, r.redis,
		[]string{r.sessPrefix() + sessionID},
		r.ownPrefix(),
		sessionID,
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// RevokeAll tears down every live session for the principal, forcing
// re-authentication. Used on deactivation and password change.
func (r *Registry) RevokeAll(ctx context.Context, principalID string) error {
	err := revokeAllScript.Run(ctx, r.redis,
		[]string{r.ownPrefix() + principalID},
		r.sessPrefix(),
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
