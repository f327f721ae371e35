package middleware

import (
	"context"
	"net/http"

	"github.com/MrEthical07/accountcore"
)

type sessionClaimsContextKey struct{}

// SessionFromContext returns the claims injected by Guard.
func SessionFromContext(ctx context.Context) (*accountcore.SessionClaims, bool) {
	claims, ok := ctx.Value(sessionClaimsContextKey{}).(*accountcore.SessionClaims)
	return claims, ok
}

// RejectFunc writes the response for a request without a valid session.
type RejectFunc func(w http.ResponseWriter, r *http.Request, err error)

func plainReject(w http.ResponseWriter, _ *http.Request, _ error) {
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

// Guard rejects requests without a valid session token with a plain 401.
func Guard(engine *accountcore.Engine) func(http.Handler) http.Handler {
	return GuardWith(engine, plainReject)
}

// GuardWith is Guard with a custom rejection writer.
func GuardWith(engine *accountcore.Engine, reject RejectFunc) func(http.Handler) http.Handler {
	if reject == nil {
		reject = plainReject
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				reject(w, r, accountcore.ErrEngineNotReady)
				return
			}

			token := engine.SessionFromRequest(r)
			if token == "" {
				reject(w, r, accountcore.ErrInvalidToken)
				return
			}

			claims, err := engine.ValidateSession(r.Context(), token)
			if err != nil {
				reject(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), sessionClaimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
