package mcp

import (
	"fmt"
	"sync"
	"testing"
)

func TestNoteRefs_Track_AssignsSequentialRefs(t *testing.T) {
	s := NewNoteRefs()

	for i, id := range []string{"a", "b", "c"} {
		want := fmt.Sprintf("N%d", i+1)
		if got := s.Track(id); got != want {
			t.Errorf("Track(%q) = %q, want %q", id, got, want)
		}
	}
}

func TestNoteRefs_Track_ReturnsSameRefForDuplicate(t *testing.T) {
	s := NewNoteRefs()

	first := s.Track("note-1")
	if again := s.Track("note-1"); again != first {
		t.Errorf("Track() returned %q for a tracked note, want %q", again, first)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestNoteRefs_Resolve(t *testing.T) {
	s := NewNoteRefs()
	s.Track("note-1")

	id, ok := s.Resolve("N1")
	if !ok || id != "note-1" {
		t.Errorf("Resolve(N1) = (%q, %v), want (note-1, true)", id, ok)
	}

	id, ok = s.Resolve("01JRAWID")
	if ok || id != "01JRAWID" {
		t.Errorf("Resolve(raw id) = (%q, %v), want passthrough", id, ok)
	}
}

func TestNoteRefs_Forget_DoesNotReuseRefs(t *testing.T) {
	s := NewNoteRefs()
	s.Track("note-1")
	s.Forget("note-1")

	if _, ok := s.Resolve("N1"); ok {
		t.Error("forgotten ref should not resolve")
	}
	if got := s.Track("note-2"); got != "N2" {
		t.Errorf("Track() after Forget = %q, want N2", got)
	}
}

func TestNoteRefs_ConcurrentAccess(t *testing.T) {
	s := NewNoteRefs()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ref := s.Track(fmt.Sprintf("note-%d", i))
			if _, ok := s.Resolve(ref); !ok {
				t.Errorf("Resolve(%q) failed", ref)
			}
		}(i)
	}
	wg.Wait()

	if s.Len() != 50 {
		t.Errorf("Len() = %d, want 50", s.Len())
	}
}
