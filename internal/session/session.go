package session

import (
	"time"

	"github.com/centinelapos/webapp/internal/account"
)

type FlashKind string

const (
	FlashSuccess FlashKind = "success"
	FlashError   FlashKind = "error"
	FlashInfo    FlashKind = "info"
)

// Flash is a one-shot notification shown on the next rendered page.
type Flash struct {
	Kind    FlashKind `json:"kind"`
	Message string    `json:"message"`
}

// Session is the per-browser state: the API token, the signed in user and
// pending flash messages. Token present implies IsAuthenticated.
type Session struct {
	ID              string        `json:"id"`
	Token           string        `json:"token,omitempty"`
	User            *account.User `json:"user,omitempty"`
	IsAuthenticated bool          `json:"isAuthenticated"`
	Flashes         []Flash       `json:"flashes,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`

	modified bool
}

func New(id string, createdAt time.Time) *Session {
	return &Session{
		ID:        id,
		CreatedAt: createdAt,
	}
}

// Login replaces token and user of the session.
func (s *Session) Login(token string, user *account.User) {
	s.Token = token
	s.User = user
	s.IsAuthenticated = token != ""
	s.modified = true
}

func (s *Session) Logout() {
	s.Token = ""
	s.User = nil
	s.IsAuthenticated = false
	s.modified = true
}

// Role is the role of the signed in user, empty when anonymous.
func (s *Session) Role() account.Role {
	if !s.IsAuthenticated || s.User == nil {
		return ""
	}
	return s.User.Rol
}

// SetUser refreshes the cached user after a profile update, keeping the token.
func (s *Session) SetUser(user *account.User) {
	if !s.IsAuthenticated {
		return
	}
	s.User = user
	s.modified = true
}

func (s *Session) AddFlash(kind FlashKind, message string) {
	if message == "" {
		return
	}
	s.Flashes = append(s.Flashes, Flash{Kind: kind, Message: message})
	s.modified = true
}

// PopFlashes returns the pending flashes and clears them.
func (s *Session) PopFlashes() []Flash {
	if len(s.Flashes) == 0 {
		return nil
	}
	flashes := s.Flashes
	s.Flashes = nil
	s.modified = true
	return flashes
}

func (s *Session) Modified() bool {
	return s.modified
}

func (s *Session) clone() *Session {
	c := *s
	if s.User != nil {
		u := *s.User
		c.User = &u
	}
	if s.Flashes != nil {
		c.Flashes = make([]Flash, len(s.Flashes))
		copy(c.Flashes, s.Flashes)
	}
	c.modified = false
	return &c
}
