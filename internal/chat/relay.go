package chat

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/centinelapos/webapp/internal/middleware"
	"github.com/centinelapos/webapp/internal/session"
	"github.com/centinelapos/webapp/internal/telemetry/metrics"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const maxBrowserMessageBytes = 4096

type RelayParams struct {
	ChatURL        string
	AllowedOrigins []string
	MetricsManager *metrics.Manager
	NewBackOff     func() backoff.BackOff
}

// Relay bridges the dashboard chat widget to the chat server. Every browser
// connection gets its own upstream Client, like a page load did.
type Relay struct {
	chatURL        string
	metricsManager *metrics.Manager
	newBackOff     func() backoff.BackOff
	upgrader       websocket.Upgrader
}

type browserMessage struct {
	Text string `json:"text"`
}

func NewRelay(params RelayParams) *Relay {
	allowed := make(map[string]bool, len(params.AllowedOrigins))
	for _, o := range params.AllowedOrigins {
		allowed[strings.TrimSuffix(o, "/")] = true
	}

	return &Relay{
		chatURL:        params.ChatURL,
		metricsManager: params.MetricsManager,
		newBackOff:     params.NewBackOff,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return middleware.OriginAllowed(r.Header.Get("Origin"), r.Host, allowed)
			},
		},
	}
}

func (rl *Relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	if s == nil || !s.IsAuthenticated {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	browser, err := rl.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader already replied
		log.Warnf("chat relay upgrade: %s", err)
		return
	}
	defer browser.Close()
	browser.SetReadLimit(maxBrowserMessageBytes)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	client := NewClient(ClientParams{
		URL:            rl.chatURL,
		MetricsManager: rl.metricsManager,
		NewBackOff:     rl.newBackOff,
	})

	connectCtx, connectCancel := context.WithTimeout(ctx, defaultHandshakeTimeout)
	err = client.Connect(connectCtx)
	connectCancel()
	if err != nil {
		log.Errorf("chat relay for role [%s]: %s", s.Role(), err)
		_ = client.Close()
		_ = browser.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "chat no disponible"),
			time.Now().Add(time.Second),
		)
		return
	}

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		seen := 0
		for range client.Incoming() {
			var pending []Message
			pending, seen = fromServerSince(client.Log(), seen)
			for _, msg := range pending {
				if err := browser.WriteJSON(msg); err != nil {
					log.Debugf("chat relay write to browser: %s", err)
				}
			}
		}
	}()

	for {
		var in browserMessage
		if err := browser.ReadJSON(&in); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debugf("chat relay read from browser: %s", err)
			}
			break
		}

		if err := client.Send(ctx, in.Text); err != nil {
			switch {
			case errors.Is(err, ErrEmptyMessage):
			case errors.Is(err, ErrNotConnected):
				log.Debugf("chat relay: message kept locally, upstream reconnecting")
			default:
				log.Warnf("chat relay send: %s", err)
			}
		}
	}

	_ = client.Close()
	<-pumpDone
}

// fromServerSince returns the server messages logged after offset, including
// those that did not fit the incoming buffer.
func fromServerSince(l *Log, offset int) ([]Message, int) {
	messages, next := l.Since(offset)
	out := messages[:0]
	for _, m := range messages {
		if m.Sender == SenderOther {
			out = append(out, m)
		}
	}
	return out, next
}
