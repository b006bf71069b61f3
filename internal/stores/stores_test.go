package stores

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestOpaqueTokenStoreSaveGet(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewOpaqueTokenStore(rdb, "")
	ctx := context.Background()

	record := &OpaqueRecord{
		ID:           "rec-1",
		Kind:         "authorization_code",
		AccountID:    "acct-1",
		ExpiresAt:    time.Now().Add(time.Minute).UTC(),
		Restrictions: &Restrictions{Scopes: []string{"read"}},
		InfoType:     "note",
		InfoData:     json.RawMessage(`{"a":1}`),
		DeviceID:     "dev-1",
	}
	if err := store.Save(ctx, "token-abc", record, 2*time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	for _, k := range mr.Keys() {
		if k == "gio:token-abc" {
			t.Fatal("raw token must not appear in the key")
		}
	}

	got, err := store.Get(ctx, "token-abc")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil || got.AccountID != "acct-1" || got.Kind != "authorization_code" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.Restrictions == nil || got.Restrictions.Scopes[0] != "read" {
		t.Fatalf("restrictions not preserved: %+v", got.Restrictions)
	}
	if string(got.InfoData) != `{"a":1}` {
		t.Fatalf("info data not preserved: %s", got.InfoData)
	}

	if err := store.Save(ctx, "token-abc", record, time.Minute); err == nil {
		t.Fatal("expected duplicate save to fail")
	}

	missing, err := store.Get(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil record for unknown token, got %+v err=%v", missing, err)
	}

	mr.FastForward(3 * time.Minute)
	gone, err := store.Get(ctx, "token-abc")
	if err != nil || gone != nil {
		t.Fatalf("expected record to be evicted after ttl, got %+v err=%v", gone, err)
	}
}

func TestOTPStoreSaveGet(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewOTPStore(rdb, "otp")
	ctx := context.Background()

	record := &OTPRecord{ID: "otp-1", Code: "123456", AccountID: "acct-1", ExpiresAt: time.Now().Add(time.Minute)}
	if err := store.Save(ctx, record, time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := store.Get(ctx, "otp-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil || got.Code != "123456" || got.AccountID != "acct-1" {
		t.Fatalf("unexpected record: %+v", got)
	}

	if err := store.Save(ctx, &OTPRecord{}, time.Minute); err == nil {
		t.Fatal("expected missing id to fail")
	}
}

func TestJTILedgerLifecycle(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ledger := NewJTILedger(rdb, "")
	ctx := context.Background()

	if err := ledger.Record(ctx, "jti-1", time.Minute); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	ok, err := ledger.IsValid(ctx, "jti-1")
	if err != nil || !ok {
		t.Fatalf("expected recorded jti to be valid, ok=%v err=%v", ok, err)
	}

	removed, err := ledger.Revoke(ctx, "jti-1")
	if err != nil || !removed {
		t.Fatalf("expected revoke to remove entry, removed=%v err=%v", removed, err)
	}
	if ok, _ := ledger.IsValid(ctx, "jti-1"); ok {
		t.Fatal("expected revoked jti to be invalid")
	}

	if err := ledger.Record(ctx, "jti-2", time.Second); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	mr.FastForward(2 * time.Second)
	if ok, _ := ledger.IsValid(ctx, "jti-2"); ok {
		t.Fatal("expected jti to lapse with its ttl")
	}
}

func TestStoresWrapBackendErrors(t *testing.T) {
	mr, rdb := newTestRedis(t)
	mr.Close()
	ctx := context.Background()

	if _, err := NewOTPStore(rdb, "").Get(ctx, "x"); !errors.Is(err, ErrBackend) {
		t.Fatalf("expected ErrBackend, got %v", err)
	}
	if _, err := NewJTILedger(rdb, "").IsValid(ctx, "x"); !errors.Is(err, ErrBackend) {
		t.Fatalf("expected ErrBackend, got %v", err)
	}
	if _, err := NewOpaqueTokenStore(rdb, "").Get(ctx, "x"); !errors.Is(err, ErrBackend) {
		t.Fatalf("expected ErrBackend, got %v", err)
	}
}
