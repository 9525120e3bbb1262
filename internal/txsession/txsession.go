// Package txsession defines the TransactionSession external collaborator
// spec §6 names (StartTransaction/CommitTransaction/AbortTransaction/
// EndSession) plus an in-memory reference implementation that just tracks
// state transitions, for tests and local running without a real database.
package txsession

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-uuid"
)

// Session is the transaction-bracketing contract spec §6 and §4.10 require:
// the Rotator calls these around the caller-supplied DB callback.
type Session interface {
	StartTransaction() error
	CommitTransaction() error
	AbortTransaction() error
	EndSession() error
}

// state is the lifecycle an InMemory session walks through; it makes
// out-of-order calls fail. Every call is also recorded in Calls, which the
// Rotator tests assert on to confirm which session methods were invoked.
type state int

const (
	stateIdle state = iota
	stateActive
	stateCommitted
	stateAborted
	stateEnded
)

// InMemory is a reference Session: no real database, just a state machine
// that rejects out-of-order calls, so Rotator tests can assert exactly what
// was invoked and in what order.
type InMemory struct {
	mu    sync.Mutex
	id    string
	state state
	Calls []string
}

// NewInMemory returns a fresh, idle session.
func NewInMemory() *InMemory {
	id, err := uuid.GenerateUUID()
	if err != nil {
		id = "session"
	}
	return &InMemory{id: id, state: stateIdle}
}

func (s *InMemory) StartTransaction() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, "start")
	if s.state != stateIdle {
		return fmt.Errorf("txsession: start called from state %d", s.state)
	}
	s.state = stateActive
	return nil
}

func (s *InMemory) CommitTransaction() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, "commit")
	if s.state != stateActive {
		return fmt.Errorf("txsession: commit called from state %d", s.state)
	}
	s.state = stateCommitted
	return nil
}

func (s *InMemory) AbortTransaction() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, "abort")
	if s.state != stateActive {
		return fmt.Errorf("txsession: abort called from state %d", s.state)
	}
	s.state = stateAborted
	return nil
}

func (s *InMemory) EndSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, "end")
	s.state = stateEnded
	return nil
}
