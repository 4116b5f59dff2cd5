package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Micheline922/kairo/internal/metrics"
)

// Meta carries the fields the store assigns to every record
type Meta struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Metadata returns m. Records embed Meta to satisfy Record.
func (m *Meta) Metadata() *Meta {
	return m
}

// Record is a pointer to a struct embedding Meta
type Record[T any] interface {
	*T
	Metadata() *Meta
}

// Repository gives typed, validated access to one collection
type Repository[T any, P Record[T]] struct {
	backend    Backend
	collection string
	validate   *validator.Validate
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewRepository creates a repository for collection. v and m may be nil.
func NewRepository[T any, P Record[T]](backend Backend, collection string, v *validator.Validate, m *metrics.Metrics) *Repository[T, P] {
	if v == nil {
		v = validator.New()
	}
	return &Repository[T, P]{
		backend:    backend,
		collection: collection,
		validate:   v,
		metrics:    m,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Collection returns the collection name
func (r *Repository[T, P]) Collection() string {
	return r.collection
}

// Add validates rec, assigns its ID and timestamps and stores it
func (r *Repository[T, P]) Add(ctx context.Context, userID string, rec *T) (*T, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id cannot be empty")
	}
	if err := r.validate.Struct(rec); err != nil {
		return nil, err
	}

	now := r.now()
	meta := P(rec).Metadata()
	meta.ID = uuid.NewString()
	meta.CreatedAt = now
	meta.UpdatedAt = now

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s record: %w", r.collection, err)
	}

	err = r.backend.Create(ctx, &Document{
		ID:         meta.ID,
		UserID:     userID,
		Collection: r.collection,
		Data:       data,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	r.metrics.RecordStoreOperation("create", r.collection, err == nil)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Get returns one record or ErrNotFound
func (r *Repository[T, P]) Get(ctx context.Context, userID, id string) (*T, error) {
	doc, err := r.backend.Get(ctx, userID, r.collection, id)
	r.metrics.RecordStoreOperation("get", r.collection, err == nil || errors.Is(err, ErrNotFound))
	if err != nil {
		return nil, err
	}
	return r.decode(doc)
}

// List returns the user's records, newest first
func (r *Repository[T, P]) List(ctx context.Context, userID string) ([]*T, error) {
	docs, err := r.backend.List(ctx, userID, r.collection)
	r.metrics.RecordStoreOperation("list", r.collection, err == nil)
	if err != nil {
		return nil, err
	}

	recs := make([]*T, 0, len(docs))
	for _, doc := range docs {
		rec, err := r.decode(doc)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// Update loads a record, applies mutate, validates and stores the result.
// ID and CreatedAt cannot be changed by mutate.
func (r *Repository[T, P]) Update(ctx context.Context, userID, id string, mutate func(*T) error) (*T, error) {
	rec, err := r.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	original := *P(rec).Metadata()
	if err := mutate(rec); err != nil {
		return nil, err
	}
	if err := r.validate.Struct(rec); err != nil {
		return nil, err
	}

	meta := P(rec).Metadata()
	meta.ID = original.ID
	meta.CreatedAt = original.CreatedAt
	meta.UpdatedAt = r.now()

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s record: %w", r.collection, err)
	}

	err = r.backend.Update(ctx, &Document{
		ID:         meta.ID,
		UserID:     userID,
		Collection: r.collection,
		Data:       data,
		CreatedAt:  meta.CreatedAt,
		UpdatedAt:  meta.UpdatedAt,
	})
	r.metrics.RecordStoreOperation("update", r.collection, err == nil)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes a record or returns ErrNotFound
func (r *Repository[T, P]) Delete(ctx context.Context, userID, id string) error {
	err := r.backend.Delete(ctx, userID, r.collection, id)
	r.metrics.RecordStoreOperation("delete", r.collection, err == nil || errors.Is(err, ErrNotFound))
	return err
}

func (r *Repository[T, P]) decode(doc *Document) (*T, error) {
	rec := new(T)
	if err := json.Unmarshal(doc.Data, rec); err != nil {
		return nil, fmt.Errorf("failed to decode %s/%s: %w", r.collection, doc.ID, err)
	}
	meta := P(rec).Metadata()
	meta.ID = doc.ID
	meta.CreatedAt = doc.CreatedAt
	meta.UpdatedAt = doc.UpdatedAt
	return rec, nil
}
