package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Micheline922/kairo/internal/supabase"
)

// SupabaseBackend stores documents in a PostgREST table with the columns
// user_id, collection, id, data (jsonb), created_at and updated_at
type SupabaseBackend struct {
	client *supabase.Client
	table  string
}

// NewSupabaseBackend creates a backend on top of a service-role client
func NewSupabaseBackend(client *supabase.Client, table string) *SupabaseBackend {
	if table == "" {
		table = "documents"
	}
	return &SupabaseBackend{client: client, table: table}
}

func (s *SupabaseBackend) scoped(userID, collection string) *supabase.QueryBuilder {
	return s.client.From(s.table).
		Eq("user_id", userID).
		Eq("collection", collection)
}

// Create inserts a new document
func (s *SupabaseBackend) Create(ctx context.Context, doc *Document) error {
	resp, err := s.client.From(s.table).ExecuteInsert(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	if err := resp.Error(); err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// Get returns one document or ErrNotFound
func (s *SupabaseBackend) Get(ctx context.Context, userID, collection, id string) (*Document, error) {
	docs, err := s.query(ctx, s.scoped(userID, collection).Eq("id", id).Select("*").Limit(1))
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return docs[0], nil
}

// List returns a collection, newest first
func (s *SupabaseBackend) List(ctx context.Context, userID, collection string) ([]*Document, error) {
	docs, err := s.query(ctx, s.scoped(userID, collection).Select("*").Order("created_at", false).Order("id", false))
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// Update replaces the data of an existing document
func (s *SupabaseBackend) Update(ctx context.Context, doc *Document) error {
	resp, err := s.scoped(doc.UserID, doc.Collection).Eq("id", doc.ID).
		ExecuteUpdate(ctx, map[string]any{
			"data":       doc.Data,
			"updated_at": doc.UpdatedAt.Format(time.RFC3339Nano),
		})
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	return affectedOne(resp)
}

// Delete removes a document
func (s *SupabaseBackend) Delete(ctx context.Context, userID, collection, id string) error {
	resp, err := s.scoped(userID, collection).Eq("id", id).ExecuteDelete(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return affectedOne(resp)
}

// Ping checks that the table is reachable with the configured key
func (s *SupabaseBackend) Ping(ctx context.Context) error {
	resp, err := s.client.From(s.table).Select("id").Limit(1).Execute(ctx)
	if err != nil {
		return err
	}
	return resp.Error()
}

// Close is a no-op; the HTTP client holds no resources that need releasing
func (s *SupabaseBackend) Close() error {
	return nil
}

func (s *SupabaseBackend) query(ctx context.Context, q *supabase.QueryBuilder) ([]*Document, error) {
	resp, err := q.Execute(ctx)
	if err != nil {
		return nil, err
	}
	if err := resp.Error(); err != nil {
		return nil, err
	}

	docs := []*Document{}
	if err := resp.JSON(&docs); err != nil {
		return nil, fmt.Errorf("unmarshal rows: %w", err)
	}
	for _, d := range docs {
		d.CreatedAt = d.CreatedAt.UTC()
		d.UpdatedAt = d.UpdatedAt.UTC()
	}
	return docs, nil
}

func affectedOne(resp *supabase.Response) error {
	if err := resp.Error(); err != nil {
		return err
	}
	var rows []struct {
		ID string `json:"id"`
	}
	if err := resp.JSON(&rows); err != nil {
		return fmt.Errorf("unmarshal rows: %w", err)
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return nil
}
