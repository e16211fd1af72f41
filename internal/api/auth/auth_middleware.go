package auth

import (
	"context"
	"net/http"

	"github.com/aulaplan/aulaplan/internal/api"
	"github.com/aulaplan/aulaplan/internal/types"
)

// TokenHeader is the header clients send their access token in.
const TokenHeader = "x-auth-token"

const (
	msgNoToken      = "No hay token, autorización denegada"
	msgInvalidToken = "Token no válido"
	msgForbidden    = "Acceso denegado"
)

type contextKey string

const principalKey contextKey = "principal"

// PrincipalFromContext returns the principal Authenticate attached to the
// request context.
func PrincipalFromContext(ctx context.Context) (types.Principal, bool) {
	p, ok := ctx.Value(principalKey).(types.Principal)
	return p, ok
}

// ContextWithPrincipal is exported for handler tests.
func ContextWithPrincipal(ctx context.Context, p types.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// Authenticate rejects requests without a valid access token. A missing
// header and a bad token get distinct 401 bodies; nothing else reaches the
// wrapped handler.
func Authenticate(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := r.Header.Get(TokenHeader)
			if tokenStr == "" {
				api.MsgResponse(w, r, http.StatusUnauthorized, msgNoToken)
				return
			}

			principal, err := tokens.Verify(tokenStr)
			if err != nil {
				api.MsgResponse(w, r, http.StatusUnauthorized, msgInvalidToken)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireRole guards a route group behind a role allow-list. It must run
// after Authenticate.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				api.MsgResponse(w, r, http.StatusUnauthorized, msgNoToken)
				return
			}
			if !p.HasRole(roles...) {
				api.MsgResponse(w, r, http.StatusForbidden, msgForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
