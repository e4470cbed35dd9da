package middleware

import (
	"net/http"
	"net/url"
	"strings"
	"unicode"

	"github.com/centinelapos/webapp/internal/account"
	"github.com/centinelapos/webapp/internal/session"

	log "github.com/sirupsen/logrus"
)

// ProtectedRoute lets through only authenticated sessions whose role is one of
// allowed. Anonymous visitors go to the login page, other roles to their own
// dashboard.
func ProtectedRoute(basePath string, allowed ...account.Role) func(next http.Handler) http.Handler {
	allowedRoles := make(map[account.Role]bool, len(allowed))
	for _, role := range allowed {
		allowedRoles[role] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := session.FromContext(r.Context())
			if s == nil || !s.IsAuthenticated {
				loginPath := "/login"
				if len(allowed) == 1 && allowed[0] == account.RoleAdmin {
					loginPath = account.RoleAdmin.LoginPath()
				}
				http.Redirect(w, r, basePath+loginPath, http.StatusSeeOther)
				return
			}

			role := s.Role()
			if len(allowedRoles) > 0 && !allowedRoles[role] {
				log.Debugf("guard: role [%s] not allowed on [%s]", role, r.URL.Path)
				http.Redirect(w, r, basePath+role.DashboardPath(), http.StatusSeeOther)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// PublicRoute sends signed in users with a known role to their dashboard.
func PublicRoute(basePath string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := session.FromContext(r.Context())
			if s != nil && s.IsAuthenticated && s.Role().Known() {
				http.Redirect(w, r, basePath+s.Role().DashboardPath(), http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LegacyRedirect resolves links produced by the old static host, which
// encoded the real location as ?p=<path>&q=<query> with ~and~ standing for &.
func LegacyRedirect(basePath string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			target, ok := LegacyTarget(r.URL.Query())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			http.Redirect(w, r, basePath+target, http.StatusMovedPermanently)
		})
	}
}

// LegacyTarget decodes the p/q pair into a local path with query.
func LegacyTarget(query url.Values) (string, bool) {
	p := query.Get("p")
	if p == "" {
		return "", false
	}

	p = strings.ReplaceAll(p, "~and~", "&")
	// only local paths, never another host; browsers drop tabs and newlines
	// so "/\t/host" would become "//host"
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.Contains(p, `\`) || hasControl(p) {
		return "", false
	}

	target := p
	if q := query.Get("q"); q != "" {
		if hasControl(q) {
			return "", false
		}
		target += "?" + strings.ReplaceAll(q, "~and~", "&")
	}

	return target, true
}

func hasControl(s string) bool {
	return strings.IndexFunc(s, unicode.IsControl) >= 0
}
