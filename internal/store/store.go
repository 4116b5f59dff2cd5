package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a document does not exist in the caller's namespace
var ErrNotFound = errors.New("document not found")

// Document is one record of a user collection. Data holds the record as
// JSON; the other fields are managed by the store.
type Document struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Collection string          `json:"collection"`
	Data       json.RawMessage `json:"data"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Backend persists documents. Every call is scoped to a user and a
// collection, so one user can never reach another user's documents.
type Backend interface {
	// Create inserts a new document
	Create(ctx context.Context, doc *Document) error
	// Get returns one document or ErrNotFound
	Get(ctx context.Context, userID, collection, id string) (*Document, error)
	// List returns a collection, newest first
	List(ctx context.Context, userID, collection string) ([]*Document, error)
	// Update replaces Data and UpdatedAt of an existing document or returns ErrNotFound
	Update(ctx context.Context, doc *Document) error
	// Delete removes a document or returns ErrNotFound
	Delete(ctx context.Context, userID, collection, id string) error
	// Ping checks that the backend is reachable
	Ping(ctx context.Context) error
	// Close releases backend resources
	Close() error
}
