package goIdentity

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goIdentity/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type memAccounts struct {
	mu       sync.RWMutex
	accounts map[string]*Account
	err      error
}

func newMemAccounts() *memAccounts {
	return &memAccounts{accounts: make(map[string]*Account)}
}

func (m *memAccounts) put(a *Account) {
	m.mu.Lock()
	m.accounts[a.ID] = a
	m.mu.Unlock()
}

func (m *memAccounts) FindByIdentifier(_ context.Context, identifier, domain string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, a := range m.accounts {
		if a.Domain == domain && a.Identifier(identifier) != nil {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memAccounts) FindByID(_ context.Context, id string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	a, ok := m.accounts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

type memApplications map[string]*Application

func (m memApplications) FindApplication(_ context.Context, id string) (*Application, error) {
	return m[id], nil
}

type memTOTPKeys map[string]*TOTPKey

func (m memTOTPKeys) FindActiveKey(_ context.Context, accountID string) (*TOTPKey, error) {
	k, ok := m[accountID]
	if !ok || !k.Active {
		return nil, nil
	}
	return k, nil
}

type fixture struct {
	engine    *Engine
	clock     *testClock
	accounts  *memAccounts
	apps      memApplications
	keys      memTOTPKeys
	publisher *ChannelPublisher
	redis     *miniredis.Miniredis
	cfg       Config
}

func testConfig(t *testing.T) Config {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = priv
	cfg.Password.Current = password.Config{
		Algorithm:   password.AlgorithmArgon2id,
		SaltLength:  16,
		KeyLength:   32,
		Memory:      8192,
		Time:        1,
		Parallelism: 1,
	}
	cfg.Password.Legacy = map[int]password.Config{
		0: {Algorithm: password.AlgorithmPBKDF2SHA256, SaltLength: 16, KeyLength: 32, Iterations: 1000},
	}
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	cfg.Events.DropIfFull = false
	return cfg
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig(t)
	if mutate != nil {
		mutate(&cfg)
	}

	f := &fixture{
		clock:     newTestClock(),
		accounts:  newMemAccounts(),
		apps:      memApplications{},
		keys:      memTOTPKeys{},
		publisher: NewChannelPublisher(64),
		redis:     mr,
		cfg:       cfg,
	}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccountStore(f.accounts).
		WithApplicationStore(f.apps).
		WithTOTPKeyStore(f.keys).
		WithEventPublisher(f.publisher).
		WithClock(f.clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() { _ = engine.Close() })
	f.engine = engine
	return f
}

// addAccount stores an active account with one active email identifier.
func (f *fixture) addAccount(t *testing.T, id, email, plaintext string) *Account {
	t.Helper()
	hash, salt, version, err := f.engine.HashPassword(plaintext)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	a := &Account{
		ID:                id,
		Domain:            f.cfg.GlobalDomain,
		Identifiers:       []Identifier{{Type: IdentifierEmail, Value: email, Active: true}},
		PasswordHash:      hash,
		PasswordSalt:      salt,
		PasswordVersion:   version,
		PasswordUpdatedAt: f.clock.Now(),
		Active:            true,
		ExternalID:        "ext-" + id,
		Scopes:            []string{"read", "write"},
		Permissions:       []string{"orders:view", "orders:edit"},
		Roles:             []string{"member"},
	}
	f.accounts.put(a)
	return a
}

func (f *fixture) nextEvent(t *testing.T) EventMessage {
	t.Helper()
	select {
	case msg := <-f.publisher.Messages():
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return EventMessage{}
}

func expectErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}
