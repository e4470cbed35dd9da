package session

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("session not found")

//go:generate mockgen -source=$GOFILE -destination=store_mock_test.go -package=session

type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}
