//go:build integration_test

package test

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) TestContactMessageStored() {
	ctx := context.Background()
	t := s.T()

	name := gofakeit.Name()
	email := strings.ToLower(gofakeit.Email())
	message := gofakeit.Sentence(12)

	resp := s.postForm(s.newBrowser(), "/contact", "198.51.100.20", url.Values{
		"name":    {name},
		"email":   {email},
		"phone":   {"099 123 4567"},
		"message": {message},
	})
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, basePath+"/", resp.Header.Get("Location"))

	var storedPhone, storedMessage string
	err := s.DB.QueryRow(ctx,
		`SELECT phone, message FROM contact_message WHERE email = $1`, email,
	).Scan(&storedPhone, &storedMessage)
	require.NoError(t, err)
	assert.Equal(t, "0991234567", storedPhone)
	assert.Equal(t, message, storedMessage)
}

func (s *IntegrationTestSuite) TestNewsletterSubscribeTwice() {
	ctx := context.Background()
	t := s.T()

	browser := s.newBrowser()
	email := strings.ToLower(gofakeit.Email())

	for range 2 {
		resp := s.postForm(browser, "/newsletter", "198.51.100.30", url.Values{"email": {email}})
		require.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	}

	var count int
	err := s.DB.QueryRow(ctx,
		`SELECT count(*) FROM newsletter_subscription WHERE email = $1`, email,
	).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// the second attempt is reported on the next page view
	resp, err := browser.Get(serverEndpoint + "/")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Contains(t, string(body), "Este correo ya está suscrito a nuestras novedades.")
}

func (s *IntegrationTestSuite) TestMetricsEndpoint() {
	t := s.T()

	resp, err := http.Get("http://" + serverHost + ":" + metricsPort + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "centinela_webapp_life_signal 1")
	assert.Contains(t, string(body), "pgxpool_")
}
