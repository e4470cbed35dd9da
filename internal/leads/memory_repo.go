package leads

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepo keeps leads in process, used in development and tests.
type MemoryRepo struct {
	mutex         sync.Mutex
	contacts      []ContactMessage
	subscriptions map[string]Subscription
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		subscriptions: make(map[string]Subscription),
	}
}

func (r *MemoryRepo) AddContact(_ context.Context, msg *ContactMessage) (*ContactMessage, error) {
	if err := msg.validate(); err != nil {
		return nil, err
	}
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.contacts = append(r.contacts, *msg)

	return msg, nil
}

func (r *MemoryRepo) Subscribe(_ context.Context, sub Subscription) (bool, error) {
	email := strings.ToLower(strings.TrimSpace(sub.Email))
	if email == "" || sub.CreatedAt.IsZero() {
		return false, errors.New("subscription email or timestamp empty")
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, ok := r.subscriptions[email]; ok {
		return false, nil
	}
	sub.Email = email
	r.subscriptions[email] = sub

	return true, nil
}

func (r *MemoryRepo) RecentContacts(_ context.Context, limit int) ([]ContactMessage, error) {
	if limit <= 0 {
		return nil, nil
	}

	r.mutex.Lock()
	contacts := make([]ContactMessage, len(r.contacts))
	copy(contacts, r.contacts)
	r.mutex.Unlock()

	sort.SliceStable(contacts, func(i, j int) bool {
		return contacts[i].CreatedAt.After(contacts[j].CreatedAt)
	})
	if len(contacts) > limit {
		contacts = contacts[:limit]
	}

	return contacts, nil
}

func (r *MemoryRepo) Subscriptions() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.subscriptions)
}
