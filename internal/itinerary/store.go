package itinerary

import "context"

// Store persists job records. Every Update is a partial overwrite of the
// patched fields, applied only while the record is still processing.
type Store interface {
	// Create inserts a new record and returns the id assigned by the store
	Create(ctx context.Context, rec Record) (string, error)
	// Update applies a partial patch to the record with the given id. It
	// returns ErrNotFound for an unknown id and ErrTerminal once the record
	// is completed or failed.
	Update(ctx context.Context, id string, patch Patch) error
	// Get returns the record or ErrNotFound
	Get(ctx context.Context, id string) (*Record, error)
}
