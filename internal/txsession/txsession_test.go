package txsession

import "testing"

func TestHappyPathOrdering(t *testing.T) {
	s := NewInMemory()
	if err := s.StartTransaction(); err != nil {
		t.Fatalf("StartTransaction: %v", err)
	}
	if err := s.CommitTransaction(); err != nil {
		t.Fatalf("CommitTransaction: %v", err)
	}
	if err := s.EndSession(); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	want := []string{"start", "commit", "end"}
	if len(s.Calls) != len(want) {
		t.Fatalf("Calls = %v, want %v", s.Calls, want)
	}
	for i := range want {
		if s.Calls[i] != want[i] {
			t.Errorf("Calls[%d] = %q, want %q", i, s.Calls[i], want[i])
		}
	}
}

func TestCommitAfterAbortFails(t *testing.T) {
	s := NewInMemory()
	if err := s.StartTransaction(); err != nil {
		t.Fatalf("StartTransaction: %v", err)
	}
	if err := s.AbortTransaction(); err != nil {
		t.Fatalf("AbortTransaction: %v", err)
	}
	if err := s.CommitTransaction(); err == nil {
		t.Error("expected CommitTransaction after Abort to fail")
	}
}

func TestCommitWithoutStartFails(t *testing.T) {
	s := NewInMemory()
	if err := s.CommitTransaction(); err == nil {
		t.Error("expected CommitTransaction without Start to fail")
	}
}
