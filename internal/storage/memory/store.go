// Package memory is a process-local job store for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/cuongbtq/itinerary-be/internal/itinerary"
	"github.com/google/uuid"
)

// Store keeps job records in a map
type Store struct {
	mu      sync.RWMutex
	records map[string]itinerary.Record
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{records: make(map[string]itinerary.Record)}
}

// Create stores rec under a new random id
func (s *Store) Create(ctx context.Context, rec itinerary.Record) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := uuid.NewString()
	rec.ID = id

	s.mu.Lock()
	s.records[id] = rec
	s.mu.Unlock()

	return id, nil
}

// Update applies patch to the record with the given id while it is processing
func (s *Store) Update(ctx context.Context, id string, patch itinerary.Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", itinerary.ErrNotFound, id)
	}
	if rec.Status.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", itinerary.ErrTerminal, id, rec.Status)
	}
	patch.Apply(&rec)
	s.records[id] = rec
	return nil
}

// Get returns a copy of the record with the given id
func (s *Store) Get(ctx context.Context, id string) (*itinerary.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", itinerary.ErrNotFound, id)
	}
	return &rec, nil
}

// Len returns the number of stored records
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
