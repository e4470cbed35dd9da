package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultTTL       = 24 * time.Hour
	sessionKeyPrefix = "centinela-session||"
	sessionsSetKey   = "centinela-sessions"
)

type RedisStore struct {
	redisClient *redis.Client
	ttl         time.Duration
}

func NewRedisStore(redisClient *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		redisClient: redisClient,
		ttl:         ttl,
	}
}

func (rs *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	cmd := rs.redisClient.Get(ctx, sessionKeyPrefix+id)
	if err := cmd.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	var s Session
	if err := json.Unmarshal([]byte(cmd.Val()), &s); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}

	return &s, nil
}

func (rs *RedisStore) Save(ctx context.Context, s *Session) error {
	sessionJson, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if err := rs.redisClient.Set(ctx, sessionKeyPrefix+s.ID, string(sessionJson), rs.ttl).Err(); err != nil {
		return fmt.Errorf("set session: %w", err)
	}

	// keep track of session ids for the periodic cleanup
	if err := rs.redisClient.SAdd(ctx, sessionsSetKey, s.ID).Err(); err != nil {
		return fmt.Errorf("add session id: %w", err)
	}

	return nil
}

func (rs *RedisStore) Delete(ctx context.Context, id string) error {
	if err := rs.redisClient.Del(ctx, sessionKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if err := rs.redisClient.SRem(ctx, sessionsSetKey, id).Err(); err != nil {
		return fmt.Errorf("remove session id: %w", err)
	}
	return nil
}

// ScanAndClean drops ids of sessions whose keys already expired from the ids set.
func (rs *RedisStore) ScanAndClean(ctx context.Context) {
	cmd := rs.redisClient.SMembers(ctx, sessionsSetKey)
	if err := cmd.Err(); err != nil {
		log.Errorf("!!! session store, scan and clean, get sessions: %s", err)
		return
	}

	sessionIDs := cmd.Val()
	if len(sessionIDs) == 0 {
		log.Debugln("=> session store, scan and clean abort, no sessions")
		return
	}

	log.Debugf("=> session store, scan and clean [%d sessions] start ...", len(sessionIDs))
	var toRemove []string
	for _, id := range sessionIDs {
		existsCmd := rs.redisClient.Exists(ctx, sessionKeyPrefix+id)
		if err := existsCmd.Err(); err != nil {
			log.Errorf("=> session store, scan and clean session %s: %s", id, err)
			continue
		}
		if existsCmd.Val() == 0 {
			toRemove = append(toRemove, id)
		}
	}

	for _, id := range toRemove {
		if err := rs.redisClient.SRem(ctx, sessionsSetKey, id).Err(); err != nil {
			log.Errorf("=> session store, clean session %s: %s", id, err)
			continue
		}
	}

	if len(toRemove) > 0 {
		log.Infof("=> session store, cleaned %d expired sessions", len(toRemove))
	}
}
