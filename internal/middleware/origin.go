package middleware

import (
	"net/http"
	"net/url"
	"strings"

	log "github.com/sirupsen/logrus"
)

// SameOrigin rejects state changing requests whose Origin (or Referer) is not
// the request host or one of the allowed origins.
func SameOrigin(allowedOrigins []string) func(next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.TrimSuffix(o, "/")] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			origin := r.Header.Get("Origin")
			if origin == "" {
				if ref, err := url.Parse(r.Referer()); err == nil && ref.Host != "" {
					origin = ref.Scheme + "://" + ref.Host
				}
			}

			if OriginAllowed(origin, r.Host, allowed) {
				next.ServeHTTP(w, r)
				return
			}

			log.Warnf("origin not allowed for path [%s] and origin [%s]", r.URL.Path, origin)
			http.Error(w, "forbidden", http.StatusForbidden)
		})
	}
}

// OriginAllowed reports whether origin matches host or the allowed set.
// Requests without any origin information (non browser clients) pass.
func OriginAllowed(origin, host string, allowed map[string]bool) bool {
	if origin == "" || allowed[origin] {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, host)
}
