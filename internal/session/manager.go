package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/centinelapos/webapp/pkg"

	log "github.com/sirupsen/logrus"
)

const (
	CookieName = "centinela_session"
	idLength   = 35
)

type contextKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the request session, or nil when none was attached.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(contextKey{}).(*Session)
	return s
}

type ManagerParams struct {
	TTL          time.Duration
	CookiePath   string
	CookieSecure bool
}

// Manager binds sessions from a Store to the session cookie.
type Manager struct {
	store        Store
	ttl          time.Duration
	cookiePath   string
	cookieSecure bool

	// ability to inject random string generator func for ids (for unit and dev testing)
	RandStringFunc func(s int) (string, error)
	Now            func() time.Time
}

func NewManager(store Store, params ManagerParams) *Manager {
	ttl := params.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	cookiePath := params.CookiePath
	if cookiePath == "" {
		cookiePath = "/"
	}
	return &Manager{
		store:          store,
		ttl:            ttl,
		cookiePath:     cookiePath,
		cookieSecure:   params.CookieSecure,
		RandStringFunc: pkg.GenerateRandomString,
		Now:            time.Now,
	}
}

// Load returns the session referenced by the request cookie, or a fresh
// unsaved session when there is none.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(CookieName)
	if err == nil && cookie.Value != "" {
		s, err := m.store.Get(r.Context(), cookie.Value)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	id, err := m.RandStringFunc(idLength)
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	return New(id, m.Now()), nil
}

// Save persists the session and refreshes the cookie.
func (m *Manager) Save(ctx context.Context, w http.ResponseWriter, s *Session) error {
	if err := m.store.Save(ctx, s); err != nil {
		return err
	}
	s.modified = false

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    s.ID,
		Path:     m.cookiePath,
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	return nil
}

// Renew moves the session to a fresh id, dropping the old one from the store.
// Called when the privilege level of the session changes.
func (m *Manager) Renew(ctx context.Context, s *Session) error {
	id, err := m.RandStringFunc(idLength)
	if err != nil {
		return fmt.Errorf("generate session id: %w", err)
	}

	if err := m.store.Delete(ctx, s.ID); err != nil {
		return err
	}
	s.ID = id
	s.modified = true

	return nil
}

// Middleware attaches the session to the request context and saves it, when
// modified, right before the response header is written.
func (m *Manager) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, err := m.Load(r)
			if err != nil {
				log.Errorf("load session: %s", err)
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}

			sw := &savingWriter{
				ResponseWriter: w,
				ctx:            r.Context(),
				manager:        m,
				session:        s,
			}
			next.ServeHTTP(sw, r.WithContext(WithSession(r.Context(), s)))
			sw.saveOnce()
		})
	}
}

type savingWriter struct {
	http.ResponseWriter
	ctx     context.Context
	manager *Manager
	session *Session
	once    sync.Once
}

func (sw *savingWriter) saveOnce() {
	sw.once.Do(func() {
		if !sw.session.Modified() {
			return
		}
		if err := sw.manager.Save(sw.ctx, sw.ResponseWriter, sw.session); err != nil {
			log.Errorf("save session %s: %s", sw.session.ID, err)
		}
	})
}

func (sw *savingWriter) WriteHeader(statusCode int) {
	sw.saveOnce()
	sw.ResponseWriter.WriteHeader(statusCode)
}

func (sw *savingWriter) Write(b []byte) (int, error) {
	sw.saveOnce()
	return sw.ResponseWriter.Write(b)
}

func (sw *savingWriter) Flush() {
	if f, ok := sw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack lets the websocket upgrader take over the connection.
func (sw *savingWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	sw.saveOnce()
	h, ok := sw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}
