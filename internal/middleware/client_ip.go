package middleware

import (
	"net/http"

	"github.com/centinelapos/webapp/pkg"
)

// ClientIP resolves the client address once for the rest of the chain.
func ClientIP(resolver *pkg.IPResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := pkg.WithClientIP(r.Context(), resolver.ClientIP(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
