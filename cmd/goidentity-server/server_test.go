package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memAccounts struct {
	mu       sync.RWMutex
	accounts map[string]*goIdentity.Account
	err      error
}

func (m *memAccounts) FindByIdentifier(_ context.Context, identifier, domain string) (*goIdentity.Account, error) {
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

func (m *memAccounts) FindByID(_ context.Context, id string) (*goIdentity.Account, error) {
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

type testServer struct {
	handler  http.Handler
	accounts *memAccounts
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	cfg := goIdentity.DefaultConfig()
	cfg.JWT.PrivateKey = priv
	cfg.Password.Current = password.Config{
		Algorithm:   password.AlgorithmArgon2id,
		SaltLength:  16,
		KeyLength:   32,
		Memory:      8192,
		Time:        1,
		Parallelism: 1,
	}

	accounts := &memAccounts{accounts: map[string]*goIdentity.Account{}}
	engine, err := goIdentity.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccountStore(accounts).
		Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	hash, salt, version, err := engine.HashPassword("correct-horse")
	require.NoError(t, err)
	accounts.accounts["acc-1"] = &goIdentity.Account{
		ID:                "acc-1",
		Domain:            cfg.GlobalDomain,
		Identifiers:       []goIdentity.Identifier{{Type: goIdentity.IdentifierEmail, Value: "alice@example.com", Active: true}},
		PasswordHash:      hash,
		PasswordSalt:      salt,
		PasswordVersion:   version,
		PasswordUpdatedAt: time.Now(),
		Active:            true,
		Scopes:            []string{"read"},
	}

	srv := &server{engine: engine, logger: zerolog.Nop(), requestTimeout: 5 * time.Second}
	return &testServer{handler: srv.routes(nil), accounts: accounts}
}

func (ts *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) login(t *testing.T) goIdentity.Tokens {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/exchange/basic/accessToken", nil)
	req.SetBasicAuth("alice@example.com", "correct-horse")
	rec := ts.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var tokens goIdentity.Tokens
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&tokens))
	return tokens
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var out errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestExchange_BasicHeaderIssuesAccessToken(t *testing.T) {
	ts := newTestServer(t)

	tokens := ts.login(t)
	assert.Equal(t, goIdentity.TypeAccessToken, tokens.Type)
	assert.Equal(t, "acc-1", tokens.EntityID)
	assert.NotEmpty(t, tokens.Token)
	assert.NotEmpty(t, tokens.RefreshToken)
}

func TestExchange_WrongPasswordIsOpaque401(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/exchange/basic/accessToken", nil)
	req.SetBasicAuth("alice@example.com", "wrong")
	rec := ts.do(t, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, goIdentity.ErrUnauthorized.Error(), body.Error)
	assert.Equal(t, "authorization", body.Kind)
}

func TestExchange_BodyCredentialWithDomain(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/exchange/basicDomain/accessToken",
		strings.NewReader(`{"credential":"alice@example.com:correct-horse","domain":"global"}`))
	rec := ts.do(t, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestExchange_MalformedCredentialIs400(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/exchange/basicDomain/accessToken",
		strings.NewReader(`{"credential":"no-separator"}`))
	rec := ts.do(t, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "format", decodeError(t, rec).Kind)
}

func TestExchange_MalformedBodyIs400(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/exchange/basicDomain/accessToken", strings.NewReader(`{`))
	rec := ts.do(t, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExchange_UnsupportedPairIs404(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/exchange/otp/apiKey", strings.NewReader(`{"credential":"x:y"}`))
	rec := ts.do(t, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "dispatch", decodeError(t, rec).Kind)
}

func TestExchange_StoreFailureIs503(t *testing.T) {
	ts := newTestServer(t)
	ts.accounts.mu.Lock()
	ts.accounts.err = errors.New("connection refused")
	ts.accounts.mu.Unlock()

	req := httptest.NewRequest(http.MethodPost, "/v1/exchange/basic/accessToken", nil)
	req.SetBasicAuth("alice@example.com", "correct-horse")
	rec := ts.do(t, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, goIdentity.ErrBackendUnavailable.Error(), decodeError(t, rec).Error)
}

func TestExchange_AccessTokenFromAuthorizationHeader(t *testing.T) {
	ts := newTestServer(t)
	tokens := ts.login(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/exchange/accessToken/idToken", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.Token)
	rec := ts.do(t, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var id goIdentity.Tokens
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&id))
	assert.Equal(t, goIdentity.TypeIDToken, id.Type)
}

func TestRevoke_RevokedTokenStopsVerifying(t *testing.T) {
	ts := newTestServer(t)
	tokens := ts.login(t)

	rec := ts.do(t, httptest.NewRequest(http.MethodPost, "/v1/revoke",
		strings.NewReader(`{"token":"`+tokens.Token+`"}`)))
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	req := httptest.NewRequest(http.MethodPost, "/v1/exchange/accessToken/idToken", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.Token)
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, req).Code)
}

func TestMe_RequiresAccessToken(t *testing.T) {
	ts := newTestServer(t)
	tokens := ts.login(t)

	assert.Equal(t, http.StatusUnauthorized, ts.do(t, httptest.NewRequest(http.MethodGet, "/v1/me", nil)).Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.Token)
	rec := ts.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var me meResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&me))
	assert.Equal(t, goIdentity.EntityAccount, me.EntityType)
	assert.Equal(t, "acc-1", me.EntityID)
	assert.Equal(t, []string{"read"}, me.Scopes)
}

func TestMe_RestrictedTokenWithoutReadIs403(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/exchange/basicDomain/accessToken",
		strings.NewReader(`{"credential":"alice@example.com:correct-horse","restrictions":{"scopes":[]}}`))
	rec := ts.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var narrowed goIdentity.Tokens
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&narrowed))
	req = httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+narrowed.Token)
	assert.Equal(t, http.StatusForbidden, ts.do(t, req).Code)
}

func TestListExchanges(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/v1/exchanges", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var pairs []exchangePair
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&pairs))
	assert.Contains(t, pairs, exchangePair{From: goIdentity.TypeBasic, To: goIdentity.TypeAccessToken})
	assert.NotContains(t, pairs, exchangePair{From: goIdentity.TypeClientCredentials, To: goIdentity.TypeAPIKey})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{goIdentity.ErrExpiredToken, http.StatusUnauthorized},
		{goIdentity.ErrInvalidAuthorizationFormat, http.StatusBadRequest},
		{goIdentity.ErrUnsupportedExchange, http.StatusNotFound},
		{goIdentity.ErrBackendUnavailable, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{context.Canceled, 499},
		{goIdentity.ErrEngineNotReady, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			status, _ := statusFor(goIdentity.KindOf(tt.err), tt.err)
			assert.Equal(t, tt.status, status)
		})
	}
}
