package chat

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/centinelapos/webapp/internal/account"
	"github.com/centinelapos/webapp/internal/session"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withTestSession(next http.Handler, authenticated bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := session.New("sid", time.Now())
		if authenticated {
			s.Login("tkn", &account.User{ID: "u1", Nombres: "Ana", Rol: account.RoleBoss})
		}
		next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), s)))
	})
}

func TestRelay_Unauthenticated(t *testing.T) {
	relay := NewRelay(RelayParams{ChatURL: "ws://127.0.0.1:1/"})
	rr := httptest.NewRecorder()
	withTestSession(relay, false).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/chat/ws", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRelay_BridgesMessages(t *testing.T) {
	upstream := newFakeSocketServer(t, `40{"sid":"socket-sid"}`)
	relay := NewRelay(RelayParams{ChatURL: upstream.url()})
	relayServer := httptest.NewServer(withTestSession(relay, true))
	defer relayServer.Close()

	browserURL := "ws" + strings.TrimPrefix(relayServer.URL, "http")
	browser, resp, err := websocket.DefaultDialer.Dial(browserURL, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()

	server := upstream.accept(t)

	require.NoError(t, browser.WriteJSON(map[string]string{"text": "hola"}))
	assert.Equal(t, `42["enviar-mensaje-front-back","hola"]`, readText(t, server))

	require.NoError(t, server.WriteMessage(websocket.TextMessage, []byte(`42["enviar-mensaje-front-back","buenas"]`)))

	var got Message
	require.NoError(t, browser.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, browser.ReadJSON(&got))
	assert.Equal(t, "buenas", got.Text)
	assert.Equal(t, SenderOther, got.Sender)

	require.NoError(t, browser.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	))
	// relay disconnects upstream when the browser leaves
	assert.Equal(t, "41", readText(t, server))
	_ = browser.Close()
}

func TestRelay_ForeignOriginRejected(t *testing.T) {
	relay := NewRelay(RelayParams{
		ChatURL:        "ws://127.0.0.1:1/",
		AllowedOrigins: []string{"https://centinela-pos.com"},
	})
	relayServer := httptest.NewServer(withTestSession(relay, true))
	defer relayServer.Close()

	header := http.Header{}
	header.Set("Origin", "https://evil.com")
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(relayServer.URL, "http"), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()
}
