package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeVerifier(principal *goIdentity.Principal, err error) goIdentity.Verifier {
	return goIdentity.VerifierFunc(func(_ context.Context, req goIdentity.AuthRequest) (*goIdentity.Principal, error) {
		if req.Credential != "good-token" {
			return nil, goIdentity.ErrUnauthorized
		}
		return principal, err
	})
}

func serve(h http.Handler, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGuardInjectsPrincipal(t *testing.T) {
	want := &goIdentity.Principal{
		EntityType: goIdentity.EntityAccount,
		Account:    &goIdentity.Account{ID: "acct-1"},
	}
	var got *goIdentity.Principal
	h := Guard(fakeVerifier(want, nil))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		require.True(t, ok)
		got = p
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := serve(h, "Bearer good-token")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Same(t, want, got)

	rec = serve(h, "bearer good-token")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestGuardRejects(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("next handler must not run")
	})

	tests := []struct {
		name          string
		verifier      goIdentity.Verifier
		authorization string
		want          int
	}{
		{name: "no header", verifier: fakeVerifier(nil, nil), want: http.StatusUnauthorized},
		{name: "basic scheme", verifier: fakeVerifier(nil, nil), authorization: "Basic abc", want: http.StatusUnauthorized},
		{name: "empty bearer", verifier: fakeVerifier(nil, nil), authorization: "Bearer ", want: http.StatusUnauthorized},
		{name: "bad token", verifier: fakeVerifier(nil, nil), authorization: "Bearer nope", want: http.StatusUnauthorized},
		{name: "nil verifier", authorization: "Bearer good-token", want: http.StatusUnauthorized},
		{
			name:          "backend down",
			verifier:      fakeVerifier(nil, fmt.Errorf("%w: %w", goIdentity.ErrBackendUnavailable, errors.New("dial tcp"))),
			authorization: "Bearer good-token",
			want:          http.StatusServiceUnavailable,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(Guard(tc.verifier)(next), tc.authorization)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestRequireAccessTokenNilEngine(t *testing.T) {
	h := RequireAccessToken(nil)(http.NotFoundHandler())
	assert.Equal(t, http.StatusUnauthorized, serve(h, "Bearer good-token").Code)
}

func TestRequireScopes(t *testing.T) {
	account := &goIdentity.Account{ID: "acct-1", Scopes: []string{"read", "write"}}
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	tests := []struct {
		name      string
		principal *goIdentity.Principal
		scopes    []string
		want      int
	}{
		{name: "granted", principal: &goIdentity.Principal{Account: account}, scopes: []string{"read", "write"}, want: http.StatusOK},
		{name: "missing", principal: &goIdentity.Principal{Account: account}, scopes: []string{"admin"}, want: http.StatusForbidden},
		{
			name:      "restricted token",
			principal: &goIdentity.Principal{Account: account, Restrictions: &goIdentity.TokenRestrictions{Scopes: []string{"read"}}},
			scopes:    []string{"write"},
			want:      http.StatusForbidden,
		},
		{
			name:      "application",
			principal: &goIdentity.Principal{Application: &goIdentity.Application{ID: "app", Scopes: []string{"sync"}}},
			scopes:    []string{"sync"},
			want:      http.StatusOK,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := Guard(fakeVerifier(tc.principal, nil))(RequireScopes(tc.scopes...)(ok))
			assert.Equal(t, tc.want, serve(h, "Bearer good-token").Code)
		})
	}
}

func TestRequireScopesWithoutGuard(t *testing.T) {
	h := RequireScopes("read")(http.NotFoundHandler())
	assert.Equal(t, http.StatusUnauthorized, serve(h, "").Code)
}
