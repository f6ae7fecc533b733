package shared

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound indicates a missing or expired session token.
var ErrSessionNotFound = errors.New("session not found")

// Session identifies an authenticated kiosk or admin client.
type Session struct {
	Token    string `json:"-"`
	UserID   int64  `json:"user_id"`
	Role     string `json:"role"`
	IssuedAt int64  `json:"issued_at"`
}

// SessionManager stores bearer-token sessions in Redis.
type SessionManager struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, ttl time.Duration) *SessionManager {
	return &SessionManager{client: client, ttl: ttl}
}

// Create issues a fresh token for the user and persists the session.
func (sm *SessionManager) Create(ctx context.Context, userID int64, role string) (Session, error) {
	sess := Session{
		Token:    uuid.NewString(),
		UserID:   userID,
		Role:     role,
		IssuedAt: time.Now().Unix(),
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return Session{}, err
	}
	if err := sm.client.Set(ctx, sm.redisKey(sess.Token), data, sm.ttl).Err(); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Load resolves the bearer token from the request, refreshing its TTL.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (Session, error) {
	token := bearerToken(r)
	if token == "" {
		return Session{}, ErrSessionNotFound
	}
	payload, err := sm.client.GetEx(ctx, sm.redisKey(token), sm.ttl).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, err
	}
	var sess Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return Session{}, err
	}
	sess.Token = token
	return sess, nil
}

// Destroy removes the session for the given token.
func (sm *SessionManager) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	err := sm.client.Del(ctx, sm.redisKey(token)).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

func (sm *SessionManager) redisKey(token string) string {
	return "session:" + token
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
