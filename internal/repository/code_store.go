package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/edubridge-api/internal/models"
)

// RedisCodeStore keeps the single active attendance code per section in Redis.
// Replacing a code overwrites the section's key; the TTL doubles as the sweep
// for long-idle sessions. Expiry is still decided by comparing timestamps at
// submission time, so the TTL carries a margin beyond the code duration.
type RedisCodeStore struct {
	client *redis.Client
	margin time.Duration
}

// NewRedisCodeStore builds the store.
func NewRedisCodeStore(client *redis.Client, margin time.Duration) *RedisCodeStore {
	if margin <= 0 {
		margin = time.Minute
	}
	return &RedisCodeStore{client: client, margin: margin}
}

func codeKey(section string) string {
	return "attendance:active-code:" + section
}

// Put stores the active code for its section, replacing any previous one.
func (s *RedisCodeStore) Put(ctx context.Context, code *models.AttendanceCode) error {
	payload, err := json.Marshal(code)
	if err != nil {
		return fmt.Errorf("encode attendance code: %w", err)
	}
	ttl := code.Duration + s.margin
	if err := s.client.Set(ctx, codeKey(code.Section), payload, ttl).Err(); err != nil {
		return fmt.Errorf("store attendance code: %w", err)
	}
	return nil
}

// Get returns the section's active code, or nil when none is stored.
func (s *RedisCodeStore) Get(ctx context.Context, section string) (*models.AttendanceCode, error) {
	raw, err := s.client.Get(ctx, codeKey(section)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("load attendance code: %w", err)
	}
	var code models.AttendanceCode
	if err := json.Unmarshal(raw, &code); err != nil {
		return nil, fmt.Errorf("decode attendance code: %w", err)
	}
	return &code, nil
}

// MemoryCodeStore is the in-process variant used by tests and single-node
// deployments without Redis. Like the Redis store it keeps a code for a
// margin past its expiry, then evicts it on the next read.
type MemoryCodeStore struct {
	mu     sync.Mutex
	margin time.Duration
	codes  map[string]*models.AttendanceCode

	now func() time.Time
}

// NewMemoryCodeStore builds an empty in-memory store.
func NewMemoryCodeStore(margin time.Duration) *MemoryCodeStore {
	if margin <= 0 {
		margin = time.Minute
	}
	return &MemoryCodeStore{
		margin: margin,
		codes:  make(map[string]*models.AttendanceCode),
		now:    time.Now,
	}
}

// Put stores the active code for its section, replacing any previous one.
func (s *MemoryCodeStore) Put(_ context.Context, code *models.AttendanceCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *code
	s.codes[code.Section] = &c
	return nil
}

// Get returns the section's active code, or nil when none is stored. A code
// past its expiry plus the margin is treated as absent and dropped, matching
// the Redis TTL eviction.
func (s *MemoryCodeStore) Get(_ context.Context, section string) (*models.AttendanceCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.codes[section]
	if !ok {
		return nil, nil
	}
	if !code.ExpiresAt.IsZero() && s.now().After(code.ExpiresAt.Add(s.margin)) {
		delete(s.codes, section)
		return nil, nil
	}
	c := *code
	return &c, nil
}
