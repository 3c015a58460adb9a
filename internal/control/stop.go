// Package control carries out-of-band signals to long running loops
package control

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// StopSignal is a named flag raised by an operator and polled by a running loop
type StopSignal interface {
	Raise(ctx context.Context, name string) error
	IsRaised(ctx context.Context, name string) (bool, error)
	Clear(ctx context.Context, name string) error
}

// MemoryStopSignal keeps the flags in process memory
type MemoryStopSignal struct {
	mu    sync.RWMutex
	flags map[string]bool
}

// NewMemoryStopSignal creates an empty in-memory stop signal
func NewMemoryStopSignal() *MemoryStopSignal {
	return &MemoryStopSignal{flags: make(map[string]bool)}
}

// Raise implements StopSignal
func (m *MemoryStopSignal) Raise(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags[name] = true
	return nil
}

// IsRaised implements StopSignal
func (m *MemoryStopSignal) IsRaised(_ context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.flags[name], nil
}

// Clear implements StopSignal
func (m *MemoryStopSignal) Clear(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.flags, name)
	return nil
}

// DefaultStopTTL bounds how long a raised flag survives when nobody clears it
const DefaultStopTTL = 24 * time.Hour

// RedisStopSignal stores the flags as expiring redis keys so that every
// process sharing the redis sees them
type RedisStopSignal struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisStopSignal creates a stop signal backed by client
func NewRedisStopSignal(client redis.Cmdable, prefix string) *RedisStopSignal {
	if prefix == "" {
		prefix = "outreach:stop:"
	}
	return &RedisStopSignal{client: client, prefix: prefix, ttl: DefaultStopTTL}
}

func (r *RedisStopSignal) key(name string) string {
	return r.prefix + name
}

// Raise implements StopSignal
func (r *RedisStopSignal) Raise(ctx context.Context, name string) error {
	if err := r.client.Set(ctx, r.key(name), "1", r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to raise stop signal %s: %w", name, err)
	}
	return nil
}

// IsRaised implements StopSignal
func (r *RedisStopSignal) IsRaised(ctx context.Context, name string) (bool, error) {
	err := r.client.Get(ctx, r.key(name)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read stop signal %s: %w", name, err)
	}
	return true, nil
}

// Clear implements StopSignal
func (r *RedisStopSignal) Clear(ctx context.Context, name string) error {
	if err := r.client.Del(ctx, r.key(name)).Err(); err != nil {
		return fmt.Errorf("failed to clear stop signal %s: %w", name, err)
	}
	return nil
}

// New returns a redis backed signal when addr is set, an in-memory one otherwise
func New(addr, password string) StopSignal {
	if addr == "" {
		return NewMemoryStopSignal()
	}
	return NewRedisStopSignal(redis.NewClient(&redis.Options{Addr: addr, Password: password}), "")
}
