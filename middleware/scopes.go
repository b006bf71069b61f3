package middleware

import (
	"net/http"
	"slices"

	goIdentity "github.com/MrEthical07/goIdentity"
)

// RequireScopes rejects requests whose principal does not hold every scope.
// Restricted tokens are judged by their restrictions, not the subject's full
// grants. It must run after [Guard].
func RequireScopes(scopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			held := principalScopes(principal)
			for _, s := range scopes {
				if !slices.Contains(held, s) {
					http.Error(w, "forbidden", http.StatusForbidden)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func principalScopes(p *goIdentity.Principal) []string {
	switch {
	case p.Restrictions != nil:
		return p.Restrictions.Scopes
	case p.Account != nil:
		return p.Account.Scopes
	case p.Application != nil:
		return p.Application.Scopes
	}
	return nil
}
