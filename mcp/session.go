package mcp

import (
	"fmt"
	"sync"
)

// NoteRefs hands out short session references (N1, N2, ...) for notes shown
// to an agent, so later calls can name a note without its full ID.
// References stay stable for the lifetime of the server.
type NoteRefs struct {
	mu      sync.Mutex
	refs    map[string]string // ref -> note ID
	reverse map[string]string // note ID -> ref
	counter int
}

// NewNoteRefs creates an empty reference table.
func NewNoteRefs() *NoteRefs {
	return &NoteRefs{
		refs:    make(map[string]string),
		reverse: make(map[string]string),
	}
}

// Track returns the reference for noteID, assigning the next one if the
// note has not been seen.
func (s *NoteRefs) Track(noteID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ref, ok := s.reverse[noteID]; ok {
		return ref
	}
	s.counter++
	ref := fmt.Sprintf("N%d", s.counter)
	s.refs[ref] = noteID
	s.reverse[noteID] = ref
	return ref
}

// Resolve returns the note ID behind ref. A value that is not a known
// reference is returned unchanged with ok false, so callers may pass raw IDs.
func (s *NoteRefs) Resolve(ref string) (noteID string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.refs[ref]; ok {
		return id, true
	}
	return ref, false
}

// Forget drops the reference for a deleted note. The counter is not reused.
func (s *NoteRefs) Forget(noteID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ref, ok := s.reverse[noteID]; ok {
		delete(s.refs, ref)
		delete(s.reverse, noteID)
	}
}

// Len returns the number of live references.
func (s *NoteRefs) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.refs)
}
