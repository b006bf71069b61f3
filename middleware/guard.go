package middleware

import (
	"context"
	"net/http"
	"strings"

	goIdentity "github.com/MrEthical07/goIdentity"
)

type principalContextKey struct{}

// PrincipalFromContext returns the principal stored by [Guard].
func PrincipalFromContext(ctx context.Context) (*goIdentity.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*goIdentity.Principal)
	return p, ok && p != nil
}

// Guard authenticates the bearer token of each request with verifier. Rejected
// credentials get 401, backend failures 503.
func Guard(verifier goIdentity.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			principal, err := verifier.Verify(r.Context(), goIdentity.AuthRequest{Credential: token})
			if err != nil {
				switch goIdentity.KindOf(err) {
				case goIdentity.KindUnavailable, goIdentity.KindTimeout:
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				default:
					http.Error(w, "unauthorized", http.StatusUnauthorized)
				}
				return
			}

			ctx := context.WithValue(r.Context(), principalContextKey{}, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAccessToken guards with the engine's access token verifier.
func RequireAccessToken(engine *goIdentity.Engine) func(http.Handler) http.Handler {
	if engine == nil {
		return Guard(nil)
	}
	return Guard(engine.AccessTokenVerifier())
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
