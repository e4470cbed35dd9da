package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/centinelapos/webapp/internal/telemetry/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
	)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *metrics.Manager) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	metricsManager := metrics.NewTestManager()
	return NewClient(server.URL+"/api/", NewHTTPClient(5*time.Second), metricsManager), metricsManager
}

func TestClient_DoAttachesTokenAndBody(t *testing.T) {
	client, metricsManager := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/boss/login", r.URL.Path)
		assert.Equal(t, "Bearer tkn-123", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ana@mail.com", body["email"])

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"msg":"ok"}`))
	})

	ctx := WithToken(context.Background(), "tkn-123")
	var out MsgResponse
	err := client.Do(ctx, http.MethodPost, "/boss/login", map[string]string{"email": "ana@mail.com"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Msg)
	assert.Equal(t, float64(1), testutil.ToFloat64(metricsManager.CounterAPICalls.WithLabelValues("POST", "200")))
}

func TestClient_DoWithoutToken(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Empty(t, r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusNoContent)
	})

	var out MsgResponse
	require.NoError(t, client.Do(context.Background(), http.MethodGet, "/negocios/list", nil, &out))
	assert.Empty(t, out.Msg)
}

func TestClient_DoUnsupportedMethod(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("must not be called")
	})

	err := client.Do(context.Background(), http.MethodPatch, "/x", nil, nil)
	assert.ErrorIs(t, err, ErrUnsupportedMethod)

	err = client.DoMultipart(context.Background(), http.MethodGet, "/x", nil, nil, nil)
	assert.ErrorIs(t, err, ErrUnsupportedMethod)
}

func TestClient_ErrorNormalization(t *testing.T) {
	testCases := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantMsg    string
	}{
		{"msg field", http.StatusUnauthorized, `{"msg":"Password incorrecto"}`, 401, "Password incorrecto"},
		{"message field", http.StatusBadRequest, `{"message":"Datos inválidos"}`, 400, "Datos inválidos"},
		{"empty json", http.StatusInternalServerError, `{}`, 500, DefaultErrorMessage},
		{"html body", http.StatusBadGateway, `<html>bad gateway</html>`, 502, DefaultErrorMessage},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			err := client.Do(context.Background(), http.MethodGet, "/x", nil, nil)
			require.Error(t, err)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tc.wantStatus, apiErr.StatusCode)
			assert.Equal(t, tc.wantMsg, apiErr.Msg)
			assert.Equal(t, tc.wantMsg, Message(err))
			assert.Equal(t, tc.wantStatus, StatusCode(err))
		})
	}
}

func TestClient_TransportError(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", NewHTTPClient(time.Second), nil)

	err := client.Do(context.Background(), http.MethodGet, "/x", nil, nil)
	require.Error(t, err)
	assert.Equal(t, DefaultErrorMessage, Message(err))
	assert.Equal(t, 0, StatusCode(err))
}

func TestClient_MalformedSuccessBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"msg":`))
	})

	var out MsgResponse
	err := client.Do(context.Background(), http.MethodGet, "/x", nil, &out)
	require.Error(t, err)
	assert.Equal(t, DefaultErrorMessage, Message(err))
	assert.Equal(t, http.StatusOK, StatusCode(err))
}

func TestMessage_NonAPIError(t *testing.T) {
	assert.Equal(t, DefaultErrorMessage, Message(errors.New("boom")))
	assert.Equal(t, 0, StatusCode(errors.New("boom")))
}

func TestClient_DoMultipart(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "Bearer tkn", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "Ana", r.FormValue("nombres"))
		assert.Equal(t, "Vera", r.FormValue("apellidos"))

		file, header, err := r.FormFile("foto")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "me.png", header.Filename)
		content, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "png-bytes", string(content))

		_, _ = w.Write([]byte(`{"msg":"Datos actualizados correctamente","data":{"_id":"1","nombres":"Ana"}}`))
	})

	ctx := WithToken(context.Background(), "tkn")
	var out ProfileResponse
	err := client.DoMultipart(ctx, http.MethodPut, "/boss/perfil/update",
		map[string]string{"nombres": "Ana", "apellidos": "Vera"},
		&Upload{FieldName: "foto", FileName: "me.png", ContentType: "image/png", Content: strings.NewReader("png-bytes")},
		&out,
	)
	require.NoError(t, err)
	assert.Equal(t, "Datos actualizados correctamente", out.Msg)
	require.NotNil(t, out.Data)
	assert.Equal(t, "Ana", out.Data.Nombres)
}

func TestTokenContext(t *testing.T) {
	assert.Empty(t, TokenFromContext(context.Background()))
	assert.Equal(t, "abc", TokenFromContext(WithToken(context.Background(), "abc")))
}
