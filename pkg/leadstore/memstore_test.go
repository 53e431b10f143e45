package leadstore

import (
	"testing"

	"github.com/google/uuid"
)

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	l := New()
	if l.ID == uuid.Nil {
		t.Error("New() left ID unset")
	}
	if l.SourceTag != "voice_capture" {
		t.Errorf("SourceTag = %q, want voice_capture", l.SourceTag)
	}
	if l.LifetimeValue != 0 {
		t.Errorf("LifetimeValue = %v, want 0", l.LifetimeValue)
	}
	if l.Status != "lead" {
		t.Errorf("Status = %q, want lead", l.Status)
	}
	if l.CreatedAt.IsZero() {
		t.Error("CreatedAt is zero")
	}
}

func TestMemStore_AppendAndList(t *testing.T) {
	t.Parallel()

	s := NewMemStore()

	first := New()
	first.Name = "Maria Lopez"
	if err := s.Append(t.Context(), first); err != nil {
		t.Fatalf("Append: %v", err)
	}

	second := New()
	second.Name = "Dave Chen"
	if err := s.Append(t.Context(), second); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got := s.List()
	if len(got) != 2 {
		t.Fatalf("List len = %d, want 2", len(got))
	}
	if got[0].Name != "Maria Lopez" || got[1].Name != "Dave Chen" {
		t.Errorf("append order not preserved: %q, %q", got[0].Name, got[1].Name)
	}

	// Stored leads are copies.
	first.Name = "changed"
	if s.List()[0].Name != "Maria Lopez" {
		t.Error("caller mutation leaked into the store")
	}
}

func TestMemStore_RejectsInvalid(t *testing.T) {
	t.Parallel()

	s := NewMemStore()
	if err := s.Append(t.Context(), nil); err == nil {
		t.Error("nil lead accepted")
	}
	if err := s.Append(t.Context(), &Lead{}); err == nil {
		t.Error("lead without ID accepted")
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d after rejected appends", s.Len())
	}
}
