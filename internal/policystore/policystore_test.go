package policystore

import (
	"context"
	"testing"
	"time"
)

func TestGetDueForRotation(t *testing.T) {
	s := NewInMemory(nil)
	now := time.Now()
	s.now = func() time.Time { return now }

	s.Upsert("USER", 24*time.Hour)
	ctx := context.Background()

	due, err := s.GetDueForRotation(ctx)
	if err != nil {
		t.Fatalf("GetDueForRotation: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("expected 1 due policy (never rotated), got %d", len(due))
	}

	session, err := s.GetSession(ctx)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if err := s.AcknowledgeSuccessfulRotation(ctx, due[0], session); err != nil {
		t.Fatalf("AcknowledgeSuccessfulRotation: %v", err)
	}

	due, err = s.GetDueForRotation(ctx)
	if err != nil {
		t.Fatalf("GetDueForRotation (after ack): %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("expected 0 due policies right after rotation, got %d", len(due))
	}

	s.now = func() time.Time { return now.Add(25 * time.Hour) }
	due, err = s.GetDueForRotation(ctx)
	if err != nil {
		t.Fatalf("GetDueForRotation (after interval elapses): %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("expected 1 due policy once the interval elapses, got %d", len(due))
	}
}

func TestFindByDomainMiss(t *testing.T) {
	s := NewInMemory(nil)
	p, err := s.FindByDomain(context.Background(), "NOPE")
	if err != nil {
		t.Fatalf("FindByDomain: %v", err)
	}
	if p != nil {
		t.Fatalf("expected nil for unknown domain, got %+v", p)
	}
}
