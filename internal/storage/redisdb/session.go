// Package redisdb implements a session store on Redis. Sessions are kept as
// JSON documents that expire with the session.
package redisdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/luikyv/go-authorize/internal/timeutil"
	"github.com/luikyv/go-authorize/pkg/goidc"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "authorize:session:"

var _ goidc.SessionManager = (*SessionManager)(nil)

type SessionManager struct {
	client *redis.Client
}

func NewSessionManager(client *redis.Client) *SessionManager {
	return &SessionManager{client: client}
}

// Open connects to the Redis server referenced by the URL informed.
func Open(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("could not ping redis: %w", err)
	}

	return client, nil
}

func (m *SessionManager) Save(ctx context.Context, session *goidc.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("could not encode the session: %w", err)
	}

	return m.client.Set(ctx, sessionKey(session.ID), payload, ttl(session, timeutil.TimestampNow())).Err()
}

func (m *SessionManager) Session(ctx context.Context, id string) (*goidc.Session, error) {
	payload, err := m.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, goidc.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var session goidc.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("could not decode the session: %w", err)
	}

	return &session, nil
}

func (m *SessionManager) Delete(ctx context.Context, id string) error {
	return m.client.Del(ctx, sessionKey(id)).Err()
}

func sessionKey(id string) string {
	return keyPrefix + id
}

// ttl returns how long the session must be kept. Zero means no expiration.
// Sessions already expired are kept for a second so they are evicted by
// Redis itself.
func ttl(session *goidc.Session, now int) time.Duration {
	if session.ExpiresAtTimestamp == 0 {
		return 0
	}

	secs := session.ExpiresAtTimestamp - now
	if secs <= 0 {
		return time.Second
	}
	return time.Duration(secs) * time.Second
}
