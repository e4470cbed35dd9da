package leads

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidLead = errors.New("lead without email or message")

// ContactMessage is what a visitor leaves through the landing page contact form.
type ContactMessage struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Phone     string
	Message   string
	CreatedAt time.Time
}

// Subscription is a newsletter sign up.
type Subscription struct {
	Email     string
	CreatedAt time.Time
}

var _ Repo = (*PsqlRepo)(nil)
var _ Repo = (*MemoryRepo)(nil)

type Repo interface {
	AddContact(ctx context.Context, msg *ContactMessage) (*ContactMessage, error)
	// Subscribe reports whether the email was not subscribed before.
	Subscribe(ctx context.Context, sub Subscription) (bool, error)
	RecentContacts(ctx context.Context, limit int) ([]ContactMessage, error)
}

func (m *ContactMessage) validate() error {
	if m == nil || m.Email == "" || m.Message == "" || m.CreatedAt.IsZero() {
		return ErrInvalidLead
	}
	return nil
}
