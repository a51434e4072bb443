package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ErrNotFound is returned when a server session is missing or expired.
var ErrNotFound = errors.New("session not found")

// Record is the server-side view of a signed-in user, keyed by the token id.
type Record struct {
	ID          string    `json:"id"`
	UserID      int64     `json:"user_id"`
	RoleID      int64     `json:"role_id"`
	CompanyID   int64     `json:"company_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	RoleName    string    `json:"role_name"`
	CompanyName string    `json:"company_name"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ServerStore keeps server sessions so logout can revoke a token before it
// expires.
type ServerStore interface {
	Create(ctx context.Context, rec *Record, ttl time.Duration) error
	Get(ctx context.Context, id string) (*Record, error)
	Delete(ctx context.Context, id string) error
	// DeleteUser revokes every session of userID.
	DeleteUser(ctx context.Context, userID int64) error
}

const serverKeyPrefix = "helpdesk:srv-session:"

// RedisStore keeps sessions in redis with the token ttl.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a redis-backed session store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func userSetKey(userID int64) string {
	return fmt.Sprintf("%suser:%d", serverKeyPrefix, userID)
}

func (s *RedisStore) Create(ctx context.Context, rec *Record, ttl time.Duration) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("session record requires an id")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, serverKeyPrefix+rec.ID, data, ttl)
	pipe.SAdd(ctx, userSetKey(rec.UserID), rec.ID)
	pipe.Expire(ctx, userSetKey(rec.UserID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	data, err := s.client.Get(ctx, serverKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &rec, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	rec, err := s.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, serverKeyPrefix+id)
	pipe.SRem(ctx, userSetKey(rec.UserID), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *RedisStore) DeleteUser(ctx context.Context, userID int64) error {
	ids, err := s.client.SMembers(ctx, userSetKey(userID)).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, serverKeyPrefix+id)
	}
	keys = append(keys, userSetKey(userID))
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}
	return nil
}

// MemoryStore keeps sessions in an expiring LRU. Used when redis is not
// configured and in tests.
type MemoryStore struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, *Record]
	now   func() time.Time
}

// NewMemoryStore creates a store holding at most size sessions.
func NewMemoryStore(size int, maxTTL time.Duration) *MemoryStore {
	return &MemoryStore{
		cache: expirable.NewLRU[string, *Record](size, nil, maxTTL),
		now:   time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, rec *Record, ttl time.Duration) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("session record requires an id")
	}
	cp := *rec
	if cp.ExpiresAt.IsZero() {
		cp.ExpiresAt = s.now().Add(ttl)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Add(cp.ID, &cp)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.cache.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	if !rec.ExpiresAt.IsZero() && !s.now().Before(rec.ExpiresAt) {
		s.cache.Remove(id)
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Remove(id)
	return nil
}

func (s *MemoryStore) DeleteUser(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.cache.Keys() {
		if rec, ok := s.cache.Peek(id); ok && rec.UserID == userID {
			s.cache.Remove(id)
		}
	}
	return nil
}
