package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/centinelapos/webapp/internal/account"
	"github.com/centinelapos/webapp/internal/session"

	"github.com/stretchr/testify/assert"
)

const testBasePath = "/frontend-centinela-pos"

func requestWithSession(path string, role account.Role) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	s := session.New("sid", time.Now())
	if role != "" {
		s.Login("tkn", &account.User{ID: "1", Nombres: "Ana", Rol: role})
	}
	return req.WithContext(session.WithSession(req.Context(), s))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestProtectedRoute(t *testing.T) {
	bossOnly := ProtectedRoute(testBasePath, account.RoleBoss)(okHandler())
	adminOnly := ProtectedRoute(testBasePath, account.RoleAdmin)(okHandler())
	anyRole := ProtectedRoute(testBasePath)(okHandler())

	testCases := []struct {
		name         string
		handler      http.Handler
		role         account.Role
		wantCode     int
		wantLocation string
	}{
		{"anonymous to login", bossOnly, "", http.StatusSeeOther, testBasePath + "/login"},
		{"anonymous admin area to admin login", adminOnly, "", http.StatusSeeOther, testBasePath + "/admin/login"},
		{"boss allowed", bossOnly, account.RoleBoss, http.StatusOK, ""},
		{"employee to own dashboard", bossOnly, account.RoleEmployee, http.StatusSeeOther, testBasePath + "/dashboard/employee"},
		{"admin to own dashboard", bossOnly, account.RoleAdmin, http.StatusSeeOther, testBasePath + "/admin/dashboard"},
		{"boss in admin area", adminOnly, account.RoleBoss, http.StatusSeeOther, testBasePath + "/dashboard/admin"},
		{"unknown role to home", bossOnly, account.Role("cajero"), http.StatusSeeOther, testBasePath + "/"},
		{"no role restriction", anyRole, account.Role("cajero"), http.StatusOK, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			tc.handler.ServeHTTP(rr, requestWithSession("/dashboard/admin", tc.role))
			assert.Equal(t, tc.wantCode, rr.Code)
			assert.Equal(t, tc.wantLocation, rr.Header().Get("Location"))
		})
	}
}

func TestProtectedRoute_NoSession(t *testing.T) {
	rr := httptest.NewRecorder()
	ProtectedRoute(testBasePath, account.RoleBoss)(okHandler()).
		ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/dashboard/admin", nil))
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, testBasePath+"/login", rr.Header().Get("Location"))
}

func TestPublicRoute(t *testing.T) {
	handler := PublicRoute(testBasePath)(okHandler())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, requestWithSession("/login", ""))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, requestWithSession("/login", account.RoleEmployee))
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, testBasePath+"/dashboard/employee", rr.Header().Get("Location"))

	// unknown roles stay on public pages, no redirect loop
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, requestWithSession("/login", account.Role("cajero")))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestLegacyTarget(t *testing.T) {
	testCases := []struct {
		query  string
		want   string
		wantOk bool
	}{
		{"p=/login", "/login", true},
		{"p=/reset-password/abc&q=from=mail~and~x=1", "/reset-password/abc?from=mail&x=1", true},
		{"p=/a~and~b", "/a&b", true},
		{"", "", false},
		{"q=x=1", "", false},
		{"p=//evil.com", "", false},
		{"p=https://evil.com", "", false},
		{"p=/\\evil.com", "", false},
		{"p=/%09/evil.com", "", false},
		{"p=/%0A/evil.com", "", false},
		{"p=%2F%0D%2Fevil.com", "", false},
		{"p=/login&q=x=1%0A", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.query, func(t *testing.T) {
			values, err := url.ParseQuery(tc.query)
			assert.NoError(t, err)
			got, ok := LegacyTarget(values)
			assert.Equal(t, tc.wantOk, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLegacyRedirect(t *testing.T) {
	handler := LegacyRedirect(testBasePath)(okHandler())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/?p=/confirm/jefe/tok123", nil))
	assert.Equal(t, http.StatusMovedPermanently, rr.Code)
	assert.Equal(t, testBasePath+"/confirm/jefe/tok123", rr.Header().Get("Location"))

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/?p=/login", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestLegacyRedirect_emptyBasePathControlChars(t *testing.T) {
	handler := LegacyRedirect("")(okHandler())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/?p=/%09/evil.example", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Header().Get("Location"))
}
