//go:build integration_test

package test

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/centinelapos/webapp/internal/session"
)

func (s *IntegrationTestSuite) postForm(client *http.Client, path, clientIP string, form url.Values) *http.Response {
	req, err := http.NewRequest(http.MethodPost, serverEndpoint+path, strings.NewReader(form.Encode()))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Real-Ip", clientIP)

	resp, err := client.Do(req)
	s.Require().NoError(err)
	return resp
}

func (s *IntegrationTestSuite) sessionCookie(client *http.Client) string {
	u, err := url.Parse(serverEndpoint + "/")
	s.Require().NoError(err)
	for _, c := range client.Jar.Cookies(u) {
		if c.Name == session.CookieName {
			return c.Value
		}
	}
	return ""
}

func (s *IntegrationTestSuite) TestEmployeeSession() {
	ctx := context.Background()
	t := s.T()

	s.api.HandleFunc("POST /api/employees/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"_id":"emp-7","nombres":"Luis","apellidos":"Mora","email":"luis@centinela.com","rol":"empleado","token":"jwt-emp-7"}`))
	})

	browser := s.newBrowser()

	resp := s.postForm(browser, "/login", "198.51.100.10", url.Values{
		"role":     {"employee"},
		"email":    {"luis@centinela.com"},
		"password": {"secreto123"},
	})
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, basePath+"/dashboard/employee", resp.Header.Get("Location"))

	sessionID := s.sessionCookie(browser)
	require.NotEmpty(t, sessionID)

	// the session lives in redis and carries the API token
	raw, err := s.redisClient.Get(ctx, "centinela-session||"+sessionID).Result()
	require.NoError(t, err)
	assert.Contains(t, raw, "jwt-emp-7")
	isMember, err := s.redisClient.SIsMember(ctx, "centinela-sessions", sessionID).Result()
	require.NoError(t, err)
	assert.True(t, isMember)

	resp, err = browser.Get(serverEndpoint + "/dashboard/employee")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Bienvenido Luis Mora")

	// employees are kept away from the owner dashboard
	resp, err = browser.Get(serverEndpoint + "/dashboard/admin")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, basePath+"/dashboard/employee", resp.Header.Get("Location"))

	resp = s.postForm(browser, "/logout", "198.51.100.10", url.Values{})
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, basePath+"/login", resp.Header.Get("Location"))

	// logging out moves the visitor to a fresh session id
	exists, err := s.redisClient.Exists(ctx, "centinela-session||"+sessionID).Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
	assert.NotEqual(t, sessionID, s.sessionCookie(browser))

	resp, err = browser.Get(serverEndpoint + "/dashboard/employee")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, basePath+"/login", resp.Header.Get("Location"))
}

func (s *IntegrationTestSuite) TestLoginRateLimit() {
	t := s.T()
	s.api.HandleFunc("POST /api/boss/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"msg":"Usuario o contraseña incorrectos"}`))
	})

	browser := s.newBrowser()
	form := url.Values{
		"role":     {"boss"},
		"email":    {"ana@centinela.com"},
		"password": {"equivocada"},
	}

	for range 3 {
		resp := s.postForm(browser, "/login", "203.0.113.7", form)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Contains(t, string(body), "Usuario o contraseña incorrectos")
	}

	resp := s.postForm(browser, "/login", "203.0.113.7", form)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	// other visitors are not affected
	resp = s.postForm(s.newBrowser(), "/login", "203.0.113.8", form)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
