package session

import (
	"strings"
	"testing"
)

func TestStoreLifecycle(t *testing.T) {
	s := NewStore(&mockGateway{}, nil)

	id, m := s.Create()
	if !strings.HasPrefix(id, "sess_") {
		t.Errorf("id = %q, want sess_ prefix", id)
	}
	if m == nil {
		t.Fatal("Create() returned nil machine")
	}

	got, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != m {
		t.Error("Get() returned a different machine")
	}

	if err := s.Delete(id); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get(id); err == nil {
		t.Error("Get() after delete should fail")
	}
	if err := s.Delete(id); err == nil {
		t.Error("second Delete() should fail")
	}
}

func TestStoreSessionsAreIndependent(t *testing.T) {
	s := NewStore(&mockGateway{}, nil)

	idA, a := s.Create()
	idB, b := s.Create()
	if idA == idB {
		t.Fatal("duplicate session IDs")
	}

	a.Capture(jpegMedia(8))
	if a.State() != StateCaptured {
		t.Errorf("a state = %s", a.State())
	}
	if b.State() != StateIdle {
		t.Errorf("b state = %s, want untouched idle", b.State())
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
}
