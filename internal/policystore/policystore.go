// Package policystore defines the PolicyStore external collaborator spec §6
// names (rotation-due policies) plus an in-memory reference implementation
// for tests and local running.
package policystore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/itsGurdevSingh/keyvault/internal/txsession"
)

// Policy is the per-domain rotation schedule spec §6 describes.
type Policy struct {
	ID               string
	Domain           string
	RotationInterval time.Duration
	// LastRotatedAt tracks when this domain last rotated, used by the
	// in-memory store's GetDueForRotation to decide what's due.
	LastRotatedAt time.Time
}

// Store is the PolicyStore contract spec §6 defines.
type Store interface {
	GetDueForRotation(ctx context.Context) ([]Policy, error)
	FindByDomain(ctx context.Context, domain string) (*Policy, error)
	GetSession(ctx context.Context) (txsession.Session, error)
	AcknowledgeSuccessfulRotation(ctx context.Context, policy Policy, session txsession.Session) error
}

// InMemory is a process-local reference Store, analogous to the teacher's
// InMemoryKeyStorage: a plain mutex-guarded map, fine for dev/tests, never
// for production multi-node deployments.
type InMemory struct {
	mu         sync.Mutex
	policies   map[string]Policy // domain -> policy
	newSession func() txsession.Session
	now        func() time.Time
}

// NewInMemory returns an InMemory store. newSession builds a fresh Session
// per GetSession call (typically txsession.NewInMemory).
func NewInMemory(newSession func() txsession.Session) *InMemory {
	return &InMemory{
		policies:   make(map[string]Policy),
		newSession: newSession,
		now:        time.Now,
	}
}

// Upsert registers or replaces a domain's rotation policy.
func (s *InMemory) Upsert(domain string, interval time.Duration) Policy {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.policies[domain]
	if !ok {
		p = Policy{ID: uuid.NewString(), Domain: domain}
	}
	p.RotationInterval = interval
	s.policies[domain] = p
	return p
}

func (s *InMemory) GetDueForRotation(_ context.Context) ([]Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	due := make([]Policy, 0)
	for _, p := range s.policies {
		if p.LastRotatedAt.IsZero() || now.Sub(p.LastRotatedAt) >= p.RotationInterval {
			due = append(due, p)
		}
	}
	return due, nil
}

func (s *InMemory) FindByDomain(_ context.Context, domain string) (*Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.policies[domain]
	if !ok {
		return nil, nil
	}
	cp := p
	return &cp, nil
}

func (s *InMemory) GetSession(_ context.Context) (txsession.Session, error) {
	if s.newSession == nil {
		return txsession.NewInMemory(), nil
	}
	return s.newSession(), nil
}

func (s *InMemory) AcknowledgeSuccessfulRotation(_ context.Context, policy Policy, _ txsession.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.policies[policy.Domain]
	if !ok {
		return nil
	}
	p.LastRotatedAt = s.now()
	s.policies[policy.Domain] = p
	return nil
}
