package leads

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/centinelapos/webapp/internal/telemetry/tracing"
)

const Schema = `
CREATE TABLE IF NOT EXISTS public.contact_message
(
    id         UUID PRIMARY KEY,
    name       VARCHAR     NOT NULL DEFAULT '',
    email      VARCHAR     NOT NULL,
    phone      VARCHAR     NOT NULL DEFAULT '',
    message    TEXT        NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS ix_contact_message_created_at ON public.contact_message (created_at);

CREATE TABLE IF NOT EXISTS public.newsletter_subscription
(
    email      VARCHAR PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL
);
`

type PsqlRepo struct {
	db *pgxpool.Pool
}

func NewPsqlRepo(db *pgxpool.Pool) *PsqlRepo {
	return &PsqlRepo{
		db: db,
	}
}

// EnsureSchema creates the leads tables when missing.
func (r *PsqlRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure leads schema: %w", err)
	}
	return nil
}

func (r *PsqlRepo) AddContact(ctx context.Context, msg *ContactMessage) (_ *ContactMessage, err error) {
	ctx, span := tracing.StartSpan(ctx, "leadsRepo.addContact")
	defer func() { tracing.EndSpan(span, err) }()

	if err := msg.validate(); err != nil {
		return nil, err
	}

	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}

	_, err = r.db.Exec(
		ctx,
		`INSERT INTO contact_message (id, name, email, phone, message, created_at) VALUES ($1, $2, $3, $4, $5, $6);`,
		msg.ID, msg.Name, msg.Email, msg.Phone, msg.Message, msg.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert contact message: %w", err)
	}

	return msg, nil
}

func (r *PsqlRepo) Subscribe(ctx context.Context, sub Subscription) (_ bool, err error) {
	ctx, span := tracing.StartSpan(ctx, "leadsRepo.subscribe")
	defer func() { tracing.EndSpan(span, err) }()

	email := strings.ToLower(strings.TrimSpace(sub.Email))
	if email == "" || sub.CreatedAt.IsZero() {
		return false, errors.New("subscription email or timestamp empty")
	}

	tag, err := r.db.Exec(
		ctx,
		`INSERT INTO newsletter_subscription (email, created_at) VALUES ($1, $2) ON CONFLICT (email) DO NOTHING;`,
		email, sub.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert subscription: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *PsqlRepo) RecentContacts(ctx context.Context, limit int) (_ []ContactMessage, err error) {
	ctx, span := tracing.StartSpan(ctx, "leadsRepo.recentContacts")
	defer func() { tracing.EndSpan(span, err) }()

	if limit <= 0 {
		return nil, nil
	}

	rows, err := r.db.Query(
		ctx,
		`
			SELECT
				id, name, email, phone, message, created_at
			FROM contact_message
			ORDER BY created_at DESC
			LIMIT $1;`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []ContactMessage
	for rows.Next() {
		var m ContactMessage
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Phone, &m.Message, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}
