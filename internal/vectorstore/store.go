// Package vectorstore holds the embedding vectors for a single run and
// enforces dimensional consistency across them.
package vectorstore

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrDimensionMismatch is returned when a vector disagrees with the
	// dimension established by the first stored vector.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrNotFound is returned when no vector exists for an identifier.
	ErrNotFound = errors.New("vector not found")
	// ErrResumeNotSet is returned when the resume vector was never stored.
	ErrResumeNotSet = errors.New("resume vector not set")
	// ErrEmptyVector is returned for zero-length vectors.
	ErrEmptyVector = errors.New("empty vector")
)

// Entry is an (identifier, vector) pair returned by snapshots.
type Entry struct {
	ID     string
	Vector []float32
}

// Store maps posting identifiers to embedding vectors plus the single resume
// vector. Safe for concurrent use; every stored vector has the same
// dimension. A run gets a fresh store.
type Store struct {
	mu      sync.RWMutex
	dim     int
	vectors map[string][]float32
	resume  []float32
}

func New() *Store {
	return &Store{
		vectors: make(map[string][]float32),
	}
}

// Put inserts or overwrites the vector for an identifier. The slice is copied
// so later mutation by the caller cannot corrupt the store. The first vector
// establishes the run dimension; a mismatching vector is rejected and the
// store is left unchanged.
func (s *Store) Put(id string, vector []float32) error {
	if len(vector) == 0 {
		return fmt.Errorf("put %q: %w", id, ErrEmptyVector)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkDimension(vector); err != nil {
		return fmt.Errorf("put %q: %w", id, err)
	}

	s.vectors[id] = cloneVector(vector)

	return nil
}

// SetResume stores the resume vector, subject to the same dimension check.
// Overwrite is allowed: the resume is set once per run, and when it is set
// again the last write wins.
func (s *Store) SetResume(vector []float32) error {
	if len(vector) == 0 {
		return fmt.Errorf("set resume: %w", ErrEmptyVector)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkDimension(vector); err != nil {
		return fmt.Errorf("set resume: %w", err)
	}

	s.resume = cloneVector(vector)

	return nil
}

func (s *Store) Get(id string) ([]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vector, ok := s.vectors[id]
	if !ok {
		return nil, fmt.Errorf("get %q: %w", id, ErrNotFound)
	}

	return cloneVector(vector), nil
}

func (s *Store) Resume() ([]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.resume == nil {
		return nil, ErrResumeNotSet
	}

	return cloneVector(s.resume), nil
}

// All returns a snapshot of every (identifier, vector) pair. Puts made after
// the snapshot is taken are not observed by the caller.
func (s *Store) All() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]Entry, 0, len(s.vectors))
	for id, vector := range s.vectors {
		entries = append(entries, Entry{ID: id, Vector: cloneVector(vector)})
	}

	return entries
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.vectors)
}

// Dimension returns the established vector dimension, or 0 when the store is
// still empty.
func (s *Store) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.dim
}

// checkDimension must be called with the write lock held. It establishes the
// run dimension on first use.
func (s *Store) checkDimension(vector []float32) error {
	if s.dim == 0 {
		s.dim = len(vector)
		return nil
	}

	if len(vector) != s.dim {
		return fmt.Errorf("%w: got %d, store established at %d", ErrDimensionMismatch, len(vector), s.dim)
	}

	return nil
}

func cloneVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
