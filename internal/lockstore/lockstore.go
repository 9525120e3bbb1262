// Package lockstore defines the LockStore external collaborator spec §6
// names (distributed mutual exclusion over "rotation:<domain>") plus an
// in-memory, TTL-respecting reference implementation. The shape mirrors the
// teacher's Replay interface (pkg/platform/lti/replay.go): atomically mark a
// key as held, honor a TTL, and let a stale holder's lease expire on its own
// rather than require an explicit heartbeat.
package lockstore

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-uuid"
)

// Store is the LockStore contract spec §6 defines. Acquire returns ok=false
// (no token) when the key is already held by someone else and not expired;
// it never blocks.
type Store interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) (ok bool, err error)
}

type entry struct {
	token     string
	expiresAt time.Time
}

// InMemory is a process-local reference Store (dev/tests only — spec §5
// requires the real store to expire stale leases so crashed rotators don't
// deadlock a domain; this implementation honors TTL the same way).
type InMemory struct {
	mu   sync.Mutex
	held map[string]entry
	now  func() time.Time
}

func NewInMemory() *InMemory {
	return &InMemory{held: make(map[string]entry), now: time.Now}
}

func (s *InMemory) Acquire(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.held[key]; ok && now.Before(e.expiresAt) {
		return "", false, nil
	}

	token, err := uuid.GenerateUUID()
	if err != nil {
		return "", false, err
	}
	s.held[key] = entry{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

func (s *InMemory) Release(_ context.Context, key, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.held[key]
	if !ok || e.token != token {
		return false, nil
	}
	delete(s.held, key)
	return true, nil
}
