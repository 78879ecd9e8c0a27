// Command authcore-demo wires the engine against an in-memory principal
// store and walks one full credential lifecycle: account creation, login,
// second-factor enrollment, session validation, and logout. Useful as a
// smoke test against a real Redis and as a wiring reference.
package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pquerna/otp/totp"
	"github.com/redis/go-redis/v9"

	authcore "github.com/stmgr-io/authcore"
)

type memoryProvider struct {
	mu         sync.Mutex
	byUsername map[string]authcore.PrincipalRecord
	factors    map[string]*authcore.SecondFactorRecord
	backup     map[string][]authcore.BackupCodeRecord
}

func newMemoryProvider() *memoryProvider {
	return &memoryProvider{
		byUsername: make(map[string]authcore.PrincipalRecord),
		factors:    make(map[string]*authcore.SecondFactorRecord),
		backup:     make(map[string][]authcore.BackupCodeRecord),
	}
}

func (m *memoryProvider) GetPrincipalByUsername(_ context.Context, username string) (authcore.PrincipalRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byUsername[username]
	if !ok {
		return authcore.PrincipalRecord{}, authcore.ErrPrincipalNotFound
	}
	return p, nil
}

func (m *memoryProvider) GetPrincipalByID(_ context.Context, principalID string) (authcore.PrincipalRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.byUsername {
		if p.PrincipalID == principalID {
			return p, nil
		}
	}
	return authcore.PrincipalRecord{}, authcore.ErrPrincipalNotFound
}

func (m *memoryProvider) CreatePrincipal(_ context.Context, in authcore.CreatePrincipalInput) (authcore.PrincipalRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byUsername[in.Username]; ok {
		return authcore.PrincipalRecord{}, authcore.ErrAccountExists
	}
	p := authcore.PrincipalRecord{
		PrincipalID:  in.PrincipalID,
		Username:     in.Username,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		Active:       in.Active,
		StaffID:      in.StaffID,
	}
	m.byUsername[in.Username] = p
	return p, nil
}

func (m *memoryProvider) mutate(principalID string, fn func(*authcore.PrincipalRecord)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for username, p := range m.byUsername {
		if p.PrincipalID == principalID {
			fn(&p)
			m.byUsername[username] = p
			return nil
		}
	}
	return authcore.ErrPrincipalNotFound
}

func (m *memoryProvider) UpdatePasswordHash(_ context.Context, principalID, newHash string) error {
	return m.mutate(principalID, func(p *authcore.PrincipalRecord) { p.PasswordHash = newHash })
}

func (m *memoryProvider) UpdateRole(_ context.Context, principalID string, role authcore.Role) error {
	return m.mutate(principalID, func(p *authcore.PrincipalRecord) { p.Role = role })
}

func (m *memoryProvider) UpdateActive(_ context.Context, principalID string, active bool) error {
	return m.mutate(principalID, func(p *authcore.PrincipalRecord) { p.Active = active })
}

func (m *memoryProvider) GetSecondFactor(_ context.Context, principalID string) (*authcore.SecondFactorRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sf, ok := m.factors[principalID]
	if !ok || sf == nil {
		return nil, nil
	}
	out := *sf
	return &out, nil
}

func (m *memoryProvider) SaveSecondFactor(_ context.Context, principalID string, record *authcore.SecondFactorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if record == nil {
		delete(m.factors, principalID)
		return nil
	}
	cp := *record
	m.factors[principalID] = &cp
	return nil
}

func (m *memoryProvider) UpdateSecondFactorLastStep(_ context.Context, principalID string, step int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sf, ok := m.factors[principalID]
	if !ok || sf == nil {
		return authcore.ErrSecondFactorNotEnrolled
	}
	if step > sf.LastUsedStep {
		sf.LastUsedStep = step
	}
	return nil
}

func (m *memoryProvider) GetBackupCodes(_ context.Context, principalID string) ([]authcore.BackupCodeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]authcore.BackupCodeRecord(nil), m.backup[principalID]...), nil
}

func (m *memoryProvider) ReplaceBackupCodes(_ context.Context, principalID string, codes []authcore.BackupCodeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backup[principalID] = append([]authcore.BackupCodeRecord(nil), codes...)
	return nil
}

func (m *memoryProvider) ConsumeBackupCode(_ context.Context, principalID string, codeHash [32]byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	codes := m.backup[principalID]
	for i, c := range codes {
		if c.Hash == codeHash {
			m.backup[principalID] = append(codes[:i], codes[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func main() {
	var (
		redisAddr = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		username  = flag.String("username", "demo.admin", "username to provision")
		password  = flag.String("password", "Sunlit-Harbor-91!", "password to provision")
	)
	flag.Parse()

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate handle secret: %v\n", err)
		os.Exit(1)
	}

	cfg := authcore.DefaultConfig()
	cfg.Session.HandleSecret = secret
	engine, err := authcore.New().
		WithConfig(cfg).
		WithRedis(client).
		WithPrincipalProvider(newMemoryProvider()).
		WithAuditSink(authcore.NewJSONWriterSink(os.Stdout)).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	p, err := engine.CreateAccount(ctx, authcore.CreateAccountRequest{
		Username: *username,
		Password: *password,
		Role:     authcore.RoleFull,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "create account failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("created %s (%s)\n", p.Username, p.PrincipalID)

	// A full-privilege principal cannot log in until the second factor is
	// enrolled; the engine says so explicitly.
	if _, err := engine.Login(ctx, *username, *password, ""); err != authcore.ErrSecondFactorEnrollmentRequired {
		fmt.Fprintf(os.Stderr, "expected enrollment-required, got: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("login correctly demanded second-factor enrollment")

	enrollment, err := engine.BeginSecondFactorEnrollment(ctx, p.PrincipalID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "enrollment failed: %v\n", err)
		os.Exit(1)
	}
	code, err := totp.GenerateCode(enrollment.Secret, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "code generation failed: %v\n", err)
		os.Exit(1)
	}
	backupCodes, err := engine.ConfirmSecondFactorEnrollment(ctx, p.PrincipalID, code)
	if err != nil {
		fmt.Fprintf(os.Stderr, "confirmation failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("second factor enrolled, %d backup codes issued\n", len(backupCodes))

	// The confirmation code's time step is spent; authenticate with a
	// backup code instead of waiting out the period.
	result, err := engine.Login(ctx, *username, *password, backupCodes[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("logged in as %s role=%s\n", result.PrincipalID, result.Role)

	info, err := engine.TouchSession(ctx, result.Handle)
	if err != nil {
		fmt.Fprintf(os.Stderr, "touch failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("session live for %s role=%s\n", info.PrincipalID, info.Role)

	if err := engine.Logout(ctx, result.Handle); err != nil {
		fmt.Fprintf(os.Stderr, "logout failed: %v\n", err)
		os.Exit(1)
	}
	if _, err := engine.ValidateSession(ctx, result.Handle); err != authcore.ErrSessionNotFound {
		fmt.Fprintf(os.Stderr, "expected session-not-found after logout, got: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("logged out, handle rejected")
}
